package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/whutos/backend/internal/core/ports"
	"github.com/whutos/backend/internal/infrastructure/logger"
)

// Planner asks a language model to decompose a user intent into an ordered
// step list. It never decides approval; that happens when the steps are
// bound to a task.
type Planner struct {
	llm    ports.LLMClient
	logger *logger.Logger
}

func NewPlanner(llm ports.LLMClient, log *logger.Logger) *Planner {
	return &Planner{llm: llm, logger: log}
}

func (p *Planner) Plan(ctx context.Context, intent string, connectedIntegrations []string) ([]ports.StepSpec, error) {
	if p.llm == nil {
		p.logger.Warnw("planner_no_llm_configured")
		return nil, ErrPlanningFailed
	}

	systemPrompt := buildPlannerPrompt(connectedIntegrations)

	text, err := p.llm.Complete(ctx, systemPrompt, intent)
	if err != nil {
		p.logger.Errorw("planner_llm_failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrPlanningFailed, err)
	}

	specs, err := extractStepSpecs(text)
	if err != nil {
		p.logger.Warnw("planner_parse_failed", "error", err, "response_len", len(text))
		return nil, ErrPlanningFailed
	}
	if len(specs) == 0 {
		p.logger.Warnw("planner_empty_plan", "intent", intent)
		return nil, ErrPlanningFailed
	}

	p.logger.Infow("planner_plan_ok", "intent", intent, "steps", len(specs))
	return specs, nil
}

func buildPlannerPrompt(connectedIntegrations []string) string {
	var b strings.Builder
	b.WriteString("You are the planning engine of a personal assistant.\n")
	b.WriteString("Decompose the user's request into an ordered list of steps.\n")
	b.WriteString("Respond with a JSON array only, no prose, using this schema:\n")
	b.WriteString(`[{"description":"...","tool_name":"...","tool_params":{},"integration_id":"..."}]` + "\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Only use tools from the catalog below.\n")
	b.WriteString("- Omit tool_name for pure-reasoning steps.\n")
	b.WriteString("- Keep the list short and executable.\n\n")

	b.WriteString("TOOL CATALOG:\n")
	for _, tool := range ToolCatalog() {
		b.WriteString("- ")
		b.WriteString(tool.Name)
		b.WriteString(": ")
		b.WriteString(tool.Description)
		if tool.Integration != "" {
			b.WriteString(" (integration: ")
			b.WriteString(tool.Integration)
			b.WriteString(")")
		}
		b.WriteString("\n")
	}

	b.WriteString("\nCONNECTED INTEGRATIONS: ")
	if len(connectedIntegrations) == 0 {
		b.WriteString("none")
	} else {
		b.WriteString(strings.Join(connectedIntegrations, ", "))
	}
	b.WriteString("\n")
	return b.String()
}

// extractStepSpecs pulls the first parseable JSON array out of the model's
// text. Models often wrap JSON in markdown fences or prose, so the whole
// response is not required to be valid JSON.
func extractStepSpecs(text string) ([]ports.StepSpec, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	foundEmpty := false
	for offset := 0; offset < len(s); {
		start := strings.Index(s[offset:], "[")
		if start < 0 {
			break
		}
		start += offset

		var specs []ports.StepSpec
		dec := json.NewDecoder(strings.NewReader(s[start:]))
		if err := dec.Decode(&specs); err == nil {
			if len(specs) > 0 {
				return specs, nil
			}
			// keep scanning; prose may contain "[]" before the real plan
			foundEmpty = true
		}
		offset = start + 1
	}
	if foundEmpty {
		return []ports.StepSpec{}, nil
	}
	return nil, fmt.Errorf("no JSON array in model response")
}
