package services

// ToolInfo describes one entry of the fixed tool catalog.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Integration string `json:"integration,omitempty"`
	// External marks tools whose invocation has an observable side effect
	// outside the system (sends, creates, deletes, mutates remote state).
	External bool `json:"external"`
}

// toolCatalog is the fixed registry of everything the assistant can invoke.
// Read-only tools vastly outnumber mutating ones, so unknown names default
// to not-external.
var toolCatalog = []ToolInfo{
	{Name: "fetch_emails", Description: "Fetch recent emails from the inbox", Integration: "gmail"},
	{Name: "fetch_calendar", Description: "Fetch upcoming calendar events", Integration: "calendar"},
	{Name: "fetch_files", Description: "Fetch recently modified drive files", Integration: "drive"},
	{Name: "fetch_finances", Description: "Fetch shop orders and revenue figures", Integration: "tiktok_shop"},
	{Name: "fetch_slack_messages", Description: "Fetch unread Slack messages", Integration: "slack"},
	{Name: "fetch_notion_pages", Description: "Fetch recently edited Notion pages", Integration: "notion"},
	{Name: "send_email", Description: "Send an email on the user's behalf", Integration: "gmail", External: true},
	{Name: "reply_email", Description: "Reply to an existing email thread", Integration: "gmail", External: true},
	{Name: "create_calendar_event", Description: "Create a calendar event", Integration: "calendar", External: true},
	{Name: "update_calendar_event", Description: "Modify an existing calendar event", Integration: "calendar", External: true},
	{Name: "delete_calendar_event", Description: "Delete a calendar event", Integration: "calendar", External: true},
	{Name: "create_document", Description: "Create a document in the user's drive", Integration: "drive", External: true},
	{Name: "delete_file", Description: "Delete a file from the user's drive", Integration: "drive", External: true},
	{Name: "send_slack_message", Description: "Post a message to a Slack channel", Integration: "slack", External: true},
	{Name: "create_notion_page", Description: "Create a page in the user's Notion workspace", Integration: "notion", External: true},
}

var toolsByName = func() map[string]ToolInfo {
	m := make(map[string]ToolInfo, len(toolCatalog))
	for _, t := range toolCatalog {
		m[t.Name] = t
	}
	return m
}()

// ToolCatalog returns the full catalog in registration order.
func ToolCatalog() []ToolInfo {
	out := make([]ToolInfo, len(toolCatalog))
	copy(out, toolCatalog)
	return out
}

// LookupTool returns the catalog entry for a tool name.
func LookupTool(name string) (ToolInfo, bool) {
	t, ok := toolsByName[name]
	return t, ok
}

// IsExternalAction reports whether invoking the tool mutates state outside
// the system. Unknown tool names are treated as not external.
func IsExternalAction(toolName string) bool {
	return toolsByName[toolName].External
}
