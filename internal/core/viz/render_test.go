package viz

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderGraph(t *testing.T) {
	relations := []CharacterRelation{
		{Name: "メロス", Links: map[string]string{"セリヌンティウス": "親友"}},
		{Name: "セリヌンティウス", Links: map[string]string{}},
	}

	out := string(RenderGraph(relations))

	assert.True(t, strings.HasPrefix(out, "digraph relations {"))
	assert.Contains(t, out, `"メロス";`)
	assert.Contains(t, out, `"セリヌンティウス";`)
	assert.Contains(t, out, `"メロス" -> "セリヌンティウス" [label="親友"];`)
	assert.True(t, strings.HasSuffix(out, "}\n"))
}

func TestRenderGraphQuotesSpecialCharacters(t *testing.T) {
	relations := []CharacterRelation{
		{Name: `王 "暴君"`, Links: map[string]string{"メロス": "敵対"}},
	}

	out := string(RenderGraph(relations))

	assert.Contains(t, out, `"王 \"暴君\""`)
}

func TestRenderTimeline(t *testing.T) {
	events := []TimelineEvent{
		{Date: "初日", Event: "メロスが王城へ向かう"},
		{Date: "三日目", Event: "刑場に|到着する"},
	}

	out := string(RenderTimeline(events))

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "| 日付 | 出来事 |", lines[0])
	assert.Equal(t, "| --- | --- |", lines[1])
	assert.Equal(t, "| 初日 | メロスが王城へ向かう |", lines[2])
	assert.Equal(t, `| 三日目 | 刑場に\|到着する |`, lines[3])
}

func TestRenderMap(t *testing.T) {
	data := &MapData{
		Locations: []Location{
			{Name: "シラクス", Coordinates: Coordinates{Lon: 15.28, Lat: 37.08}},
		},
		Skipped: []string{"不明な村"},
	}

	out, err := RenderMap(data)
	require.NoError(t, err)

	var decoded struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			Geometry struct {
				Type        string     `json:"type"`
				Coordinates [2]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]string `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(out, &decoded))

	assert.Equal(t, "FeatureCollection", decoded.Type)
	require.Len(t, decoded.Features, 1)
	assert.Equal(t, "Point", decoded.Features[0].Geometry.Type)
	assert.Equal(t, [2]float64{15.28, 37.08}, decoded.Features[0].Geometry.Coordinates)
	assert.Equal(t, "シラクス", decoded.Features[0].Properties["name"])
}

func TestRenderMapEmpty(t *testing.T) {
	out, err := RenderMap(&MapData{})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "FeatureCollection", decoded["type"])
}

func TestRenderDiagrams(t *testing.T) {
	diagrams := []Diagram{
		{Title: "あらすじ", Code: "flowchart TD\n  A --> B", Type: "flowchart"},
		{Title: "心情の変化", Code: "graph LR\n  X --> Y\n", Type: "graph"},
	}

	out := string(RenderDiagrams(diagrams))

	assert.Contains(t, out, "## あらすじ\n")
	assert.Contains(t, out, "種別: flowchart\n")
	assert.Contains(t, out, "```mermaid\nflowchart TD\n  A --> B\n```\n")
	assert.Contains(t, out, "## 心情の変化\n")
	assert.Contains(t, out, "```mermaid\ngraph LR\n  X --> Y\n```\n")
}

func TestRenderDispatch(t *testing.T) {
	tests := []struct {
		name     string
		payload  Payload
		wantFile string
	}{
		{name: "相関図", payload: NewGraphPayload([]CharacterRelation{{Name: "メロス"}}), wantFile: "relations.dot"},
		{name: "年表", payload: NewTimelinePayload([]TimelineEvent{{Date: "初日", Event: "出発"}}), wantFile: "timeline.md"},
		{name: "地図", payload: NewMapPayload(&MapData{}), wantFile: "map.geojson"},
		{name: "ダイアグラム", payload: NewDiagramsPayload([]Diagram{{Title: "t", Code: "graph TD", Type: "graph"}}), wantFile: "diagrams.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			file, data, err := Render(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFile, file)
			assert.NotEmpty(t, data)
		})
	}
}

func TestRenderUnknownKind(t *testing.T) {
	_, _, err := Render(Payload{Kind: "unknown"})
	assert.Error(t, err)
}
