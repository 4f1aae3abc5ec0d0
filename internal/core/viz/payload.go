// Package viz は可視化データのモデルとレンダリングを提供します
package viz

// CharacterRelation は登場人物1人と他の人物との関係を表す。
// Linksのキーは相手の人物名、値は関係の種類（父、妹、友人など）。
type CharacterRelation struct {
	Name  string            `json:"name"`
	Links map[string]string `json:"links"`
}

// TimelineEvent は年表上の1つの出来事
type TimelineEvent struct {
	Date  string `json:"date"`
	Event string `json:"event"`
}

// Coordinates は経度・緯度の組
type Coordinates struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Location は座標が判明した地名
type Location struct {
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
}

// MapData は地図データ。座標が引けなかった地名は黙って落とさず、
// Skippedとして呼び出し側に報告する。
type MapData struct {
	Locations []Location `json:"locations"`
	Skipped   []string   `json:"skipped,omitempty"`
}

// Diagram は1つのmermaidダイアグラム
type Diagram struct {
	Title string `json:"title"`
	Code  string `json:"code"`
	Type  string `json:"type"`
}

// Kind は可視化ペイロードの種別
type Kind string

const (
	KindGraph    Kind = "graph"
	KindTimeline Kind = "timeline"
	KindMap      Kind = "map"
	KindDiagrams Kind = "diagrams"
)

// Payload はタグ付きの可視化データ。種別は生成時点で確定し、
// 消費側がデータの形状から種別を推測し直すことはない。
// Kindに対応するフィールドのみが設定される。
type Payload struct {
	Kind      Kind
	Relations []CharacterRelation
	Timeline  []TimelineEvent
	Map       *MapData
	Diagrams  []Diagram
}

// NewGraphPayload は人物相関図のPayloadを作成する
func NewGraphPayload(relations []CharacterRelation) Payload {
	return Payload{Kind: KindGraph, Relations: relations}
}

// NewTimelinePayload は年表のPayloadを作成する
func NewTimelinePayload(events []TimelineEvent) Payload {
	return Payload{Kind: KindTimeline, Timeline: events}
}

// NewMapPayload は地図のPayloadを作成する
func NewMapPayload(data *MapData) Payload {
	return Payload{Kind: KindMap, Map: data}
}

// NewDiagramsPayload はダイアグラム集のPayloadを作成する
func NewDiagramsPayload(diagrams []Diagram) Payload {
	return Payload{Kind: KindDiagrams, Diagrams: diagrams}
}
