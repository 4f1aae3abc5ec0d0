package geocoder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/storymap/internal/core/viz"
)

func TestCoordinatesResolvesName(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "シラクス", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"lat": "37.08", "lon": "15.28"}]`))
	}))
	defer server.Close()

	client := NewNominatimClient(WithBaseURL(server.URL))

	coords, found, err := client.Coordinates(context.Background(), "シラクス")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, viz.Coordinates{Lon: 15.28, Lat: 37.08}, coords)
	assert.Equal(t, int32(1), requests.Load())
}

func TestCoordinatesCachesResults(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`[{"lat": "37.08", "lon": "15.28"}]`))
	}))
	defer server.Close()

	client := NewNominatimClient(WithBaseURL(server.URL))

	for range 3 {
		_, found, err := client.Coordinates(context.Background(), "シラクス")
		require.NoError(t, err)
		assert.True(t, found)
	}

	// 同じ地名の再問い合わせはキャッシュで吸収される
	assert.Equal(t, int32(1), requests.Load())
}

func TestCoordinatesNotFound(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewNominatimClient(WithBaseURL(server.URL))

	_, found, err := client.Coordinates(context.Background(), "存在しない村")
	require.NoError(t, err)
	assert.False(t, found)

	// 見つからなかった結果もキャッシュされる
	_, found, err = client.Coordinates(context.Background(), "存在しない村")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int32(1), requests.Load())
}

func TestCoordinatesServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewNominatimClient(WithBaseURL(server.URL))

	_, _, err := client.Coordinates(context.Background(), "シラクス")
	assert.ErrorContains(t, err, "status 429")
}

func TestCoordinatesMalformedLatitude(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"lat": "not-a-number", "lon": "15.28"}]`))
	}))
	defer server.Close()

	client := NewNominatimClient(WithBaseURL(server.URL))

	_, _, err := client.Coordinates(context.Background(), "シラクス")
	assert.Error(t, err)
}

func TestCoordinatesSendsAPIKey(t *testing.T) {
	// APIキーはクエリパラメータとして付与される
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewNominatimClient(WithBaseURL(server.URL), WithAPIKey("secret"))

	_, _, err := client.Coordinates(context.Background(), "シラクス")
	require.NoError(t, err)
}
