// ABOUTME: Parser and validation for legacy free-text commands
// ABOUTME: Grammar is "-clear" or "-chat <model> <prompt...>", anything else is ignored

package router

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

// Legacy command words.
const (
	LegacyChat  = "-chat"
	LegacyClear = "-clear"
)

// DefaultModels is the allow-list and single enabled identifier used when none are configured.
var DefaultModels = Models{
	Allowed: []string{"davinci", "curie", "babbage", "ada"},
	Enabled: "davinci",
	Backend: "text-davinci-003",
}

// Models gates which model identifiers a chat may name.
type Models struct {
	// Allowed lists every identifier the grammar accepts.
	Allowed []string
	// Enabled is the one identifier that actually works.
	Enabled string
	// Backend is the identifier sent to the completion service for Enabled.
	Backend string
}

// Kind is what an invocation asks for.
type Kind string

const (
	KindChat  Kind = "chat"
	KindClear Kind = "clear"
)

// Invocation is the parsed intent of one request.
type Invocation struct {
	Kind        Kind
	Model       string
	Prompt      string
	Frontend    string
	UserID      string
	DisplayName string
}

// ParseLegacy interprets body as a legacy command. It returns (nil, nil) when the
// body is not a command, and a validation *Failure when it is a malformed chat.
// The returned invocation carries only Kind, Model and Prompt.
func ParseLegacy(body string, models Models) (*Invocation, error) {
	word, rest := cutSpace(body)

	switch word {
	case LegacyClear:
		if strings.TrimSpace(rest) != "" {
			return nil, nil
		}
		return &Invocation{Kind: KindClear}, nil
	case LegacyChat:
	default:
		return nil, nil
	}

	model, prompt := cutSpace(strings.TrimLeftFunc(rest, unicode.IsSpace))
	if err := models.Validate(model); err != nil {
		return nil, err
	}

	prompt = strings.TrimLeftFunc(prompt, unicode.IsSpace)
	if strings.TrimSpace(prompt) == "" {
		return nil, invalid("A prompt is needed to give to the AI.")
	}

	return &Invocation{Kind: KindChat, Model: model, Prompt: prompt}, nil
}

// Validate checks model against the allow-list and the enabled identifier.
func (m Models) Validate(model string) error {
	choices := m.choiceList()
	if model == "" {
		return invalid("Model should be present and be one of: %s.", choices)
	}
	if !slices.Contains(m.Allowed, model) {
		return invalid("Model should be one of: %s. Found `%s`.", choices, model)
	}
	if model != m.Enabled {
		return invalid("Only `%s` works. Found `%s`.", m.Enabled, model)
	}
	return nil
}

// choiceList renders the allow-list as "`a`, `b`, and `c`".
func (m Models) choiceList() string {
	quoted := make([]string, len(m.Allowed))
	for i, model := range m.Allowed {
		quoted[i] = fmt.Sprintf("`%s`", model)
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	case 2:
		return quoted[0] + " and " + quoted[1]
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + ", and " + quoted[len(quoted)-1]
}

// cutSpace splits s at its first whitespace character.
func cutSpace(s string) (head, tail string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}
