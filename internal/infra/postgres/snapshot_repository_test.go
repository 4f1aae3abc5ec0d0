package postgres

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/storymap/internal/core/corpus"
	"github.com/jinford/storymap/internal/core/index"
	"github.com/jinford/storymap/pkg/db"
)

// startPostgres はpgvector入りのPostgreSQLコンテナを起動して接続を返す
func startPostgres(t *testing.T) *db.DB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	require.NoError(t, err, "failed to connect to docker")

	resource, err := pool.Run("pgvector/pgvector", "pg17", []string{
		"POSTGRES_USER=storymap",
		"POSTGRES_PASSWORD=storymap",
		"POSTGRES_DB=storymap_test",
	})
	require.NoError(t, err, "failed to start container")
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("failed to purge container: %v", err)
		}
	})

	port, err := strconv.Atoi(resource.GetPort("5432/tcp"))
	require.NoError(t, err)

	params := db.ConnectionParams{
		Host:     "localhost",
		Port:     port,
		User:     "storymap",
		Password: "storymap",
		DBName:   "storymap_test",
		SSLMode:  "disable",
	}

	var database *db.DB
	err = pool.Retry(func() error {
		var err error
		database, err = db.New(context.Background(), params)
		return err
	})
	require.NoError(t, err, "failed to connect to postgres")
	t.Cleanup(database.Close)

	return database
}

func TestSnapshotRepositoryRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping docker-backed test in short mode")
	}

	ctx := context.Background()
	database := startPostgres(t)

	repo := NewSnapshotRepository(database)
	require.NoError(t, repo.Migrate(ctx))

	snapshot := &index.Snapshot{
		ID:         uuid.New(),
		DocumentID: "hashire_merosu.txt",
		Dimension:  3,
		Entries: []index.Entry{
			{Chunk: corpus.Chunk{Ordinal: 0, Text: "メロスは激怒した。", Tokens: 9}, Vector: []float32{0.1, 0.2, 0.3}},
			{Chunk: corpus.Chunk{Ordinal: 1, Text: "必ず、かの邪智暴虐の王を除かなければならぬと決意した。", Tokens: 30}, Vector: []float32{0.4, 0.5, 0.6}},
		},
	}
	require.NoError(t, repo.Save(ctx, snapshot))

	loaded, err := repo.Load(ctx, "hashire_merosu.txt")
	require.NoError(t, err)

	assert.Equal(t, snapshot.ID, loaded.ID)
	assert.Equal(t, snapshot.DocumentID, loaded.DocumentID)
	assert.Equal(t, snapshot.Dimension, loaded.Dimension)
	require.Len(t, loaded.Entries, 2)
	assert.Equal(t, snapshot.Entries[0].Chunk, loaded.Entries[0].Chunk)
	assert.Equal(t, snapshot.Entries[0].Vector, loaded.Entries[0].Vector)
	assert.Equal(t, snapshot.Entries[1].Chunk, loaded.Entries[1].Chunk)
}

func TestSnapshotRepositorySaveReplacesExisting(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping docker-backed test in short mode")
	}

	ctx := context.Background()
	database := startPostgres(t)

	repo := NewSnapshotRepository(database)
	require.NoError(t, repo.Migrate(ctx))

	first := &index.Snapshot{
		ID:         uuid.New(),
		DocumentID: "doc.txt",
		Dimension:  2,
		Entries: []index.Entry{
			{Chunk: corpus.Chunk{Ordinal: 0, Text: "old", Tokens: 1}, Vector: []float32{1, 0}},
		},
	}
	require.NoError(t, repo.Save(ctx, first))

	second := &index.Snapshot{
		ID:         uuid.New(),
		DocumentID: "doc.txt",
		Dimension:  2,
		Entries: []index.Entry{
			{Chunk: corpus.Chunk{Ordinal: 0, Text: "new", Tokens: 1}, Vector: []float32{0, 1}},
			{Chunk: corpus.Chunk{Ordinal: 1, Text: "more", Tokens: 1}, Vector: []float32{1, 1}},
		},
	}
	require.NoError(t, repo.Save(ctx, second))

	loaded, err := repo.Load(ctx, "doc.txt")
	require.NoError(t, err)

	assert.Equal(t, second.ID, loaded.ID)
	require.Len(t, loaded.Entries, 2)
	assert.Equal(t, "new", loaded.Entries[0].Chunk.Text)
}

func TestSnapshotRepositoryLoadMissing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping docker-backed test in short mode")
	}

	ctx := context.Background()
	database := startPostgres(t)

	repo := NewSnapshotRepository(database)
	require.NoError(t, repo.Migrate(ctx))

	_, err := repo.Load(ctx, "missing.txt")
	assert.ErrorIs(t, err, index.ErrSnapshotNotFound)
	assert.ErrorContains(t, err, fmt.Sprintf("%q", "missing.txt"))
}
