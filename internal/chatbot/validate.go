package chatbot

import (
	"regexp"
	"strings"
)

var themeColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate checks the required fields of a provisioning request. Presence is
// checked first for all four fields so the message matches what the
// dashboard shows for an incomplete form.
func (r *ProvisionRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(string(r.PersonalityStyle)) == "" {
		missing = append(missing, "personalityStyle")
	}
	if strings.TrimSpace(r.ThemeColor) == "" {
		missing = append(missing, "themeColor")
	}
	if strings.TrimSpace(r.SystemPrompt) == "" {
		missing = append(missing, "systemPrompt")
	}
	if len(missing) > 0 {
		return &ValidationError{
			Field:   strings.Join(missing, ","),
			Message: "Missing required fields: name, personalityStyle, themeColor, and systemPrompt are required (missing: " + strings.Join(missing, ", ") + ")",
		}
	}
	if !r.PersonalityStyle.Valid() {
		return &ValidationError{
			Field:   "personalityStyle",
			Message: "Invalid personality style. Must be one of: " + personalityList(),
		}
	}
	if !themeColorRe.MatchString(r.ThemeColor) {
		return &ValidationError{
			Field:   "themeColor",
			Message: "Invalid theme color. Must be a hex color in #RRGGBB form",
		}
	}
	return nil
}
