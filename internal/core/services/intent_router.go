package services

import (
	"regexp"
	"strings"
)

// IntentMatch is the result of routing a user utterance to a known intent:
// the intent id plus the tools to prefetch before any model call.
type IntentMatch struct {
	Intent string   `json:"intent"`
	Tools  []string `json:"tools"`
}

type intentRule struct {
	pattern *regexp.Regexp
	intent  string
	tools   []string
}

// intentRules is evaluated in order and the first match wins, so narrower
// patterns must precede broader ones. Patterns run against the lowercased
// message.
var intentRules = []intentRule{
	{
		pattern: regexp.MustCompile(`\b(good\s+morning|morning\s+briefing|daily\s+briefing|start\s+my\s+day)\b`),
		intent:  "morning_briefing",
		tools:   []string{"fetch_emails", "fetch_calendar"},
	},
	{
		pattern: regexp.MustCompile(`\b(check|read|show|any)\b.*\b(email|emails|inbox|mail)\b|\b(inbox|unread)\b`),
		intent:  "check_email",
		tools:   []string{"fetch_emails"},
	},
	{
		pattern: regexp.MustCompile(`\b(calendar|schedule|agenda|meetings?\s+today|what('| i)?s\s+today)\b`),
		intent:  "check_calendar",
		tools:   []string{"fetch_calendar"},
	},
	{
		pattern: regexp.MustCompile(`\b(files?|documents?|drive|docs)\b`),
		intent:  "check_files",
		tools:   []string{"fetch_files"},
	},
	{
		pattern: regexp.MustCompile(`\b(finances?|revenue|sales|orders|earnings|money)\b`),
		intent:  "check_finances",
		tools:   []string{"fetch_finances"},
	},
}

// IntentRouter pattern-matches utterances against the fixed intent set. Pure
// and side-effect free; no network calls, no fuzzy matching.
type IntentRouter struct{}

func NewIntentRouter() *IntentRouter {
	return &IntentRouter{}
}

// DetectIntent returns the first matching intent or nil, in which case the
// caller falls back to the full planner path.
func (r *IntentRouter) DetectIntent(message string) *IntentMatch {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return nil
	}

	for _, rule := range intentRules {
		if rule.pattern.MatchString(msg) {
			return &IntentMatch{
				Intent: rule.intent,
				Tools:  append([]string(nil), rule.tools...),
			}
		}
	}
	return nil
}
