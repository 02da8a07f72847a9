// ABOUTME: Transport-neutral description of the structured command schema
// ABOUTME: Gateway adapters translate these specs into their native registration calls

package router

import "strings"

// Command names.
const (
	CommandChat  = "chat"
	CommandClear = "clear"
)

// Option names of the chat command.
const (
	OptionModel  = "model"
	OptionPrompt = "prompt"
)

// Choice is one enumerated value of a string option.
type Choice struct {
	Name  string
	Value string
}

// OptionSpec describes a string option.
type OptionSpec struct {
	Name        string
	Description string
	Required    bool
	Choices     []Choice
}

// CommandSpec describes one structured command.
type CommandSpec struct {
	Name        string
	Description string
	Options     []OptionSpec
}

// Schema returns the command set to register: chat with the enabled model as its
// only choice, and clear with no options.
func (m Models) Schema() []CommandSpec {
	return []CommandSpec{
		{
			Name:        CommandChat,
			Description: "Chat with an AI model.",
			Options: []OptionSpec{
				{
					Name:        OptionModel,
					Description: "name of the model to use",
					Required:    true,
					Choices:     []Choice{{Name: displayChoice(m.Enabled), Value: m.Enabled}},
				},
				{
					Name:        OptionPrompt,
					Description: "Prompt to pass onto the model",
					Required:    true,
				},
			},
		},
		{
			Name:        CommandClear,
			Description: "Clear chat history",
		},
	}
}

func displayChoice(value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}
