package integrations

import "github.com/whutos/backend/internal/domain"

// Providers disagree on response shapes ({"emails": [...]}, {"messages":
// [...]}, bare arrays). The unwrapping lives here so the orchestration core
// and the scene builder only ever see one canonical shape per tool.

// NormalizeEmails canonicalizes an email fetch into {"emails": [...]}.
func NormalizeEmails(raw interface{}) domain.JSONB {
	return domain.JSONB{"emails": firstList(raw, "emails", "messages", "items")}
}

// NormalizeEvents canonicalizes a calendar fetch into {"events": [...]}.
func NormalizeEvents(raw interface{}) domain.JSONB {
	return domain.JSONB{"events": firstList(raw, "events", "items")}
}

// NormalizeFiles canonicalizes a drive fetch into {"files": [...]}.
func NormalizeFiles(raw interface{}) domain.JSONB {
	return domain.JSONB{"files": firstList(raw, "files", "items", "documents")}
}

// NormalizeFinances canonicalizes a shop fetch into {"orders": [...]} plus a
// "revenue" figure when the provider reports one.
func NormalizeFinances(raw interface{}) domain.JSONB {
	out := domain.JSONB{"orders": firstList(raw, "orders", "items")}
	if m, ok := raw.(map[string]interface{}); ok {
		for _, key := range []string{"revenue", "total_revenue", "gmv"} {
			if v, ok := m[key]; ok {
				out["revenue"] = v
				break
			}
		}
	}
	return out
}

// firstList returns the first present list field, or the value itself when
// the provider returned a bare array. Always yields []interface{} so
// downstream type switches stay single-shape.
func firstList(raw interface{}, keys ...string) []interface{} {
	switch v := raw.(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		for _, key := range keys {
			if list, ok := v[key].([]interface{}); ok {
				return list
			}
		}
	case domain.JSONB:
		return firstList(map[string]interface{}(v), keys...)
	}
	return []interface{}{}
}
