package tickets

import (
	"strconv"
	"strings"
	"time"
)

// Discord caps channel and thread names at 100 characters; 90 keeps a
// safety margin for the API's own trimming.
const maxResourceNameLen = 90

// TemplateVars holds the placeholder values available to panel
// name templates and post sections.
type TemplateVars struct {
	Count     int
	User      string
	UserID    string
	Type      string
	Urgency   string
	CreatedAt time.Time
}

func (v TemplateVars) mapping() map[string]string {
	return map[string]string{
		"count":      strconv.Itoa(v.Count),
		"user":       v.User,
		"user_id":    v.UserID,
		"type":       v.Type,
		"urgency":    v.Urgency,
		"created_at": v.CreatedAt.UTC().Format("20060102-1504"),
	}
}

// RenderTemplate substitutes {placeholder} tokens. Unknown tokens are
// left as-is.
func RenderTemplate(tpl string, vars TemplateVars) string {
	out := tpl
	for k, v := range vars.mapping() {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// ResourceName renders the panel name template into a resource name.
// Channel names are lower-cased with spaces replaced by hyphens;
// threads keep the rendered casing. Both are truncated to the safe
// length bound.
func ResourceName(tpl string, vars TemplateVars, mode string) string {
	name := RenderTemplate(tpl, vars)
	if mode == "channel" {
		name = strings.ReplaceAll(strings.ToLower(name), " ", "-")
	}
	return truncateRunes(name, maxResourceNameLen)
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
