package chatbot

import (
	"strings"
	"time"
)

// PersonalityStyle is the tone a chatbot answers in.
type PersonalityStyle string

const (
	Friendly     PersonalityStyle = "Friendly"
	Professional PersonalityStyle = "Professional"
	Humorous     PersonalityStyle = "Humorous"
	Technical    PersonalityStyle = "Technical"
)

// PersonalityStyles lists the accepted styles in display order.
var PersonalityStyles = []PersonalityStyle{Friendly, Professional, Humorous, Technical}

// Valid reports whether p is one of PersonalityStyles.
func (p PersonalityStyle) Valid() bool {
	for _, s := range PersonalityStyles {
		if p == s {
			return true
		}
	}
	return false
}

func personalityList() string {
	names := make([]string, 0, len(PersonalityStyles))
	for _, s := range PersonalityStyles {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}

// Chatbot is the persisted chatbot record. ID, CreatedAt and UpdatedAt are
// assigned by the datastore on insert; EmbedSnippet is empty until the patch
// phase of provisioning succeeds.
type Chatbot struct {
	ID                string           `json:"id" bson:"id"`
	OwnerID           string           `json:"ownerId" bson:"ownerId"`
	Name              string           `json:"name" bson:"name"`
	PersonalityStyle  PersonalityStyle `json:"personalityStyle" bson:"personalityStyle"`
	ThemeColor        string           `json:"themeColor" bson:"themeColor"`
	SystemPrompt      string           `json:"systemPrompt" bson:"systemPrompt"`
	ResourceFilePaths []string         `json:"resourceFilePaths" bson:"resourceFilePaths"`
	EmbedSnippet      string           `json:"embedSnippet,omitempty" bson:"embedSnippet,omitempty"`
	CreatedAt         time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// Orphaned reports whether the record was inserted but never received its
// embed snippet.
func (c *Chatbot) Orphaned() bool {
	return c.EmbedSnippet == ""
}

// ProvisionRequest is the body of a provisioning call.
type ProvisionRequest struct {
	Name             string           `json:"name"`
	PersonalityStyle PersonalityStyle `json:"personalityStyle"`
	ThemeColor       string           `json:"themeColor"`
	SystemPrompt     string           `json:"systemPrompt"`
	ResourceFiles    []string         `json:"resourceFiles"`
}

// Caller is an authenticated identity resolved from a bearer credential.
type Caller struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}
