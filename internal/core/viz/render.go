package viz

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Render はPayloadをファイル名と内容に変換する。
// 描画そのもの（グラフ描画エンジン等）は外部の協調コンポーネントに委ね、
// ここでは標準的な交換形式への整形のみを行う。
func Render(p Payload) (string, []byte, error) {
	switch p.Kind {
	case KindGraph:
		return "relations.dot", RenderGraph(p.Relations), nil
	case KindTimeline:
		return "timeline.md", RenderTimeline(p.Timeline), nil
	case KindMap:
		data, err := RenderMap(p.Map)
		if err != nil {
			return "", nil, err
		}
		return "map.geojson", data, nil
	case KindDiagrams:
		return "diagrams.md", RenderDiagrams(p.Diagrams), nil
	default:
		return "", nil, fmt.Errorf("unknown payload kind: %q", p.Kind)
	}
}

// RenderGraph は人物相関をGraphviz DOT形式に整形する
func RenderGraph(relations []CharacterRelation) []byte {
	var sb strings.Builder
	sb.WriteString("digraph relations {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box];\n")

	for _, rel := range relations {
		sb.WriteString(fmt.Sprintf("  %s;\n", quoteDot(rel.Name)))
	}
	for _, rel := range relations {
		// 出力を決定的にするため相手名でソートする
		others := make([]string, 0, len(rel.Links))
		for other := range rel.Links {
			others = append(others, other)
		}
		sort.Strings(others)
		for _, other := range others {
			sb.WriteString(fmt.Sprintf("  %s -> %s [label=%s];\n", quoteDot(rel.Name), quoteDot(other), quoteDot(rel.Links[other])))
		}
	}

	sb.WriteString("}\n")
	return []byte(sb.String())
}

// RenderTimeline は年表をMarkdownの表に整形する
func RenderTimeline(events []TimelineEvent) []byte {
	var sb strings.Builder
	sb.WriteString("| 日付 | 出来事 |\n")
	sb.WriteString("| --- | --- |\n")
	for _, event := range events {
		sb.WriteString(fmt.Sprintf("| %s | %s |\n", escapeCell(event.Date), escapeCell(event.Event)))
	}
	return []byte(sb.String())
}

// RenderMap は地図データをGeoJSON FeatureCollectionに整形する
func RenderMap(data *MapData) ([]byte, error) {
	type geometry struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	}
	type feature struct {
		Type       string            `json:"type"`
		Geometry   geometry          `json:"geometry"`
		Properties map[string]string `json:"properties"`
	}
	type collection struct {
		Type     string    `json:"type"`
		Features []feature `json:"features"`
	}

	features := make([]feature, 0, len(data.Locations))
	for _, loc := range data.Locations {
		features = append(features, feature{
			Type: "Feature",
			Geometry: geometry{
				Type:        "Point",
				Coordinates: [2]float64{loc.Coordinates.Lon, loc.Coordinates.Lat},
			},
			Properties: map[string]string{"name": loc.Name},
		})
	}

	out, err := json.MarshalIndent(collection{Type: "FeatureCollection", Features: features}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal geojson: %w", err)
	}
	return out, nil
}

// RenderDiagrams はダイアグラム集をmermaidコードブロック付きMarkdownに整形する
func RenderDiagrams(diagrams []Diagram) []byte {
	var sb strings.Builder
	for i, d := range diagrams {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("## %s\n\n", d.Title))
		sb.WriteString(fmt.Sprintf("種別: %s\n\n", d.Type))
		sb.WriteString("```mermaid\n")
		sb.WriteString(d.Code)
		if !strings.HasSuffix(d.Code, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n")
	}
	return []byte(sb.String())
}

// quoteDot はDOTの識別子を二重引用符でくくる
func quoteDot(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// escapeCell はMarkdown表のセル内の縦棒をエスケープする
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
