package gaaubesihttp

import (
	"fmt"
	"time"

	"github.com/seetara/ReconBox/internal/integrations/courier"
)

// The courier's comment payloads are not consistent across endpoints: the same
// field shows up under different names depending on which panel wrote it. Each
// field has one preference-ordered alias list, resolved here and nowhere else.
var (
	idAliases     = []string{"id", "comment_id"}
	textAliases   = []string{"comments", "comment", "message"}
	dateAliases   = []string{"created_on", "created_at", "date", "timestamp"}
	authorAliases = []string{"created_by", "addedBy", "user"}
)

func extractComment(raw map[string]any) courier.Comment {
	return courier.Comment{
		ExternalID: firstString(raw, idAliases),
		Text:       firstString(raw, textAliases),
		Author:     firstString(raw, authorAliases),
		CreatedAt:  firstTime(raw, dateAliases),
	}
}

// firstString returns the first alias present with a non-empty value.
// Numeric ids are stringified so `"id": 1042` and `"id": "1042"` both work.
func firstString(raw map[string]any, aliases []string) string {
	for _, k := range aliases {
		switch v := raw[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func firstTime(raw map[string]any, aliases []string) *time.Time {
	for _, k := range aliases {
		s, ok := raw[k].(string)
		if !ok || s == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				u := t.UTC()
				return &u
			}
		}
	}
	return nil
}
