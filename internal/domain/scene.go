package domain

// ==================== SCENE ====================

type SceneElementType string

const (
	SceneElementList     SceneElementType = "list"
	SceneElementCard     SceneElementType = "card"
	SceneElementTimeline SceneElementType = "timeline"
	SceneElementChart    SceneElementType = "chart"
	SceneElementText     SceneElementType = "text"
)

type SceneSize string

const (
	SceneSizeSmall  SceneSize = "small"
	SceneSizeMedium SceneSize = "medium"
	SceneSizeLarge  SceneSize = "large"
)

// SceneElement is one typed UI element descriptor in a scene tree. Priority
// orders elements within a scene; lower renders first.
type SceneElement struct {
	Type     SceneElementType `json:"type"`
	Title    string           `json:"title,omitempty"`
	Priority int              `json:"priority"`
	Size     SceneSize        `json:"size,omitempty"`
	Data     JSONB            `json:"data,omitempty"`
	Items    []JSONB          `json:"items,omitempty"`
	Children []SceneElement   `json:"children,omitempty"`
}

// Scene is a ready-to-render UI description assembled without a model call,
// plus a short spoken summary for the voice channel.
type Scene struct {
	Intent   string         `json:"intent"`
	Elements []SceneElement `json:"elements"`
	Spoken   string         `json:"spoken"`
}
