package services

import (
	"fmt"

	"github.com/whutos/backend/internal/domain"
)

// SceneBuilder deterministically assembles a ready-to-render scene from
// prefetched tool results for a recognized intent, with no model call. It is
// the fast path: predictable latency traded against model flexibility.
type SceneBuilder struct{}

func NewSceneBuilder() *SceneBuilder {
	return &SceneBuilder{}
}

// BuildScene returns nil when the expected tool result is missing or empty,
// signaling the caller to fall back to the full planner path.
func (b *SceneBuilder) BuildScene(intent string, results map[string]domain.JSONB) *domain.Scene {
	switch intent {
	case "check_email":
		return b.emailScene(results)
	case "check_calendar":
		return b.calendarScene(results)
	case "check_files":
		return b.filesScene(results)
	case "check_finances":
		return b.financesScene(results)
	case "morning_briefing":
		return b.briefingScene(results)
	default:
		return nil
	}
}

func (b *SceneBuilder) emailScene(results map[string]domain.JSONB) *domain.Scene {
	emails := resultItems(results, "fetch_emails", "emails")
	if len(emails) == 0 {
		return nil
	}
	unread := countWhere(emails, "unread")

	return &domain.Scene{
		Intent: "check_email",
		Elements: []domain.SceneElement{{
			Type:     domain.SceneElementList,
			Title:    fmt.Sprintf("%d unread email%s", unread, plural(unread)),
			Priority: 1,
			Size:     domain.SceneSizeLarge,
			Items:    emails,
		}},
		Spoken: fmt.Sprintf("You have %d unread email%s.", unread, plural(unread)),
	}
}

func (b *SceneBuilder) calendarScene(results map[string]domain.JSONB) *domain.Scene {
	events := resultItems(results, "fetch_calendar", "events")
	if len(events) == 0 {
		return nil
	}

	return &domain.Scene{
		Intent: "check_calendar",
		Elements: []domain.SceneElement{{
			Type:     domain.SceneElementTimeline,
			Title:    fmt.Sprintf("%d event%s today", len(events), plural(len(events))),
			Priority: 1,
			Size:     domain.SceneSizeLarge,
			Items:    events,
		}},
		Spoken: fmt.Sprintf("You have %d event%s on your calendar today.", len(events), plural(len(events))),
	}
}

func (b *SceneBuilder) filesScene(results map[string]domain.JSONB) *domain.Scene {
	files := resultItems(results, "fetch_files", "files")
	if len(files) == 0 {
		return nil
	}

	return &domain.Scene{
		Intent: "check_files",
		Elements: []domain.SceneElement{{
			Type:     domain.SceneElementList,
			Title:    "Recent files",
			Priority: 1,
			Size:     domain.SceneSizeMedium,
			Items:    files,
		}},
		Spoken: fmt.Sprintf("You have %d recently modified file%s.", len(files), plural(len(files))),
	}
}

func (b *SceneBuilder) financesScene(results map[string]domain.JSONB) *domain.Scene {
	finances, ok := results["fetch_finances"]
	if !ok || len(finances) == 0 {
		return nil
	}
	orders := resultItems(results, "fetch_finances", "orders")
	if len(orders) == 0 {
		return nil
	}

	elements := []domain.SceneElement{{
		Type:     domain.SceneElementChart,
		Title:    "Orders",
		Priority: 1,
		Size:     domain.SceneSizeLarge,
		Items:    orders,
	}}
	spoken := fmt.Sprintf("You have %d order%s.", len(orders), plural(len(orders)))
	if revenue, ok := finances["revenue"]; ok {
		elements = append(elements, domain.SceneElement{
			Type:     domain.SceneElementCard,
			Title:    "Revenue",
			Priority: 2,
			Size:     domain.SceneSizeSmall,
			Data:     domain.JSONB{"revenue": revenue},
		})
		spoken = fmt.Sprintf("You have %d order%s and %v in revenue.", len(orders), plural(len(orders)), revenue)
	}

	return &domain.Scene{
		Intent:   "check_finances",
		Elements: elements,
		Spoken:   spoken,
	}
}

// briefingScene composes the email and calendar assemblies. Either half may
// be absent; both absent falls back to the planner.
func (b *SceneBuilder) briefingScene(results map[string]domain.JSONB) *domain.Scene {
	emails := resultItems(results, "fetch_emails", "emails")
	events := resultItems(results, "fetch_calendar", "events")
	if len(emails) == 0 && len(events) == 0 {
		return nil
	}

	scene := &domain.Scene{Intent: "morning_briefing"}
	spoken := "Good morning."

	if len(events) > 0 {
		scene.Elements = append(scene.Elements, domain.SceneElement{
			Type:     domain.SceneElementTimeline,
			Title:    "Today's schedule",
			Priority: 1,
			Size:     domain.SceneSizeLarge,
			Items:    events,
		})
		spoken += fmt.Sprintf(" You have %d event%s today.", len(events), plural(len(events)))
	}
	if len(emails) > 0 {
		unread := countWhere(emails, "unread")
		scene.Elements = append(scene.Elements, domain.SceneElement{
			Type:     domain.SceneElementList,
			Title:    fmt.Sprintf("%d unread email%s", unread, plural(unread)),
			Priority: 2,
			Size:     domain.SceneSizeMedium,
			Items:    emails,
		})
		spoken += fmt.Sprintf(" %d unread email%s in your inbox.", unread, plural(unread))
	}

	scene.Spoken = spoken
	return scene
}

// resultItems reads the canonical list field of a normalized tool result.
// Shape unwrapping happens at the integration boundary, not here.
func resultItems(results map[string]domain.JSONB, tool, key string) []domain.JSONB {
	result, ok := results[tool]
	if !ok {
		return nil
	}
	switch raw := result[key].(type) {
	case []interface{}:
		items := make([]domain.JSONB, 0, len(raw))
		for _, entry := range raw {
			if m, ok := entry.(map[string]interface{}); ok {
				items = append(items, domain.JSONB(m))
			}
		}
		return items
	case []domain.JSONB:
		return raw
	case []map[string]interface{}:
		items := make([]domain.JSONB, 0, len(raw))
		for _, entry := range raw {
			items = append(items, domain.JSONB(entry))
		}
		return items
	default:
		return nil
	}
}

func countWhere(items []domain.JSONB, flag string) int {
	n := 0
	for _, item := range items {
		if v, ok := item[flag].(bool); ok && v {
			n++
		}
	}
	return n
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
