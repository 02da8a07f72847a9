// ABOUTME: Tests for legacy command parsing and model gating
// ABOUTME: Covers the grammar, ignored bodies, and every validation message

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLegacy(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    *Invocation
		wantMsg string
	}{
		{name: "clear", body: "-clear", want: &Invocation{Kind: KindClear}},
		{name: "clear trailing newline", body: "-clear\n", want: &Invocation{Kind: KindClear}},
		{name: "clear trailing space", body: "-clear  ", want: &Invocation{Kind: KindClear}},
		{name: "clear with args is ignored", body: "-clear everything"},
		{name: "plain text is ignored", body: "hello there"},
		{name: "empty body is ignored", body: ""},
		{name: "prefix without separator is ignored", body: "-chatty davinci hi"},
		{name: "other dash command is ignored", body: "-help"},
		{
			name: "chat",
			body: "-chat davinci tell me a joke",
			want: &Invocation{Kind: KindChat, Model: "davinci", Prompt: "tell me a joke"},
		},
		{
			name: "chat keeps prompt whitespace and newlines",
			body: "-chat davinci line one\nline  two ",
			want: &Invocation{Kind: KindChat, Model: "davinci", Prompt: "line one\nline  two "},
		},
		{
			name: "chat tab separated",
			body: "-chat\tdavinci\thi",
			want: &Invocation{Kind: KindChat, Model: "davinci", Prompt: "hi"},
		},
		{
			name: "chat extra spaces before model and prompt",
			body: "-chat  davinci   hi",
			want: &Invocation{Kind: KindChat, Model: "davinci", Prompt: "hi"},
		},
		{
			name:    "missing model",
			body:    "-chat",
			wantMsg: "Model should be present and be one of: `davinci`, `curie`, `babbage`, and `ada`.",
		},
		{
			name:    "missing model trailing space",
			body:    "-chat ",
			wantMsg: "Model should be present and be one of: `davinci`, `curie`, `babbage`, and `ada`.",
		},
		{
			name:    "unknown model",
			body:    "-chat gpt4 hi",
			wantMsg: "Model should be one of: `davinci`, `curie`, `babbage`, and `ada`. Found `gpt4`.",
		},
		{
			name:    "disabled model",
			body:    "-chat curie hi",
			wantMsg: "Only `davinci` works. Found `curie`.",
		},
		{
			name:    "missing prompt",
			body:    "-chat davinci",
			wantMsg: "A prompt is needed to give to the AI.",
		},
		{
			name:    "blank prompt",
			body:    "-chat davinci    ",
			wantMsg: "A prompt is needed to give to the AI.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLegacy(tt.body, DefaultModels)
			if tt.wantMsg != "" {
				require.Error(t, err)
				failure := AsFailure(err)
				assert.Equal(t, FailureValidation, failure.Kind)
				assert.Equal(t, tt.wantMsg, failure.Message())
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModels_Validate(t *testing.T) {
	models := DefaultModels

	assert.NoError(t, models.Validate("davinci"))
	for _, disabled := range []string{"curie", "babbage", "ada"} {
		err := models.Validate(disabled)
		require.Error(t, err, disabled)
		assert.Contains(t, AsFailure(err).Message(), "Only `davinci` works")
	}
	assert.Contains(t, AsFailure(models.Validate("DAVINCI")).Message(), "Found `DAVINCI`")
}

func TestModels_ChoiceList(t *testing.T) {
	assert.Equal(t, "", Models{}.choiceList())
	assert.Equal(t, "`a`", Models{Allowed: []string{"a"}}.choiceList())
	assert.Equal(t, "`a` and `b`", Models{Allowed: []string{"a", "b"}}.choiceList())
	assert.Equal(t, "`a`, `b`, and `c`", Models{Allowed: []string{"a", "b", "c"}}.choiceList())
}

func TestModels_Schema(t *testing.T) {
	specs := DefaultModels.Schema()
	require.Len(t, specs, 2)

	chat := specs[0]
	assert.Equal(t, CommandChat, chat.Name)
	require.Len(t, chat.Options, 2)
	assert.Equal(t, OptionModel, chat.Options[0].Name)
	assert.True(t, chat.Options[0].Required)
	assert.Equal(t, []Choice{{Name: "Davinci", Value: "davinci"}}, chat.Options[0].Choices)
	assert.Equal(t, OptionPrompt, chat.Options[1].Name)
	assert.True(t, chat.Options[1].Required)
	assert.Empty(t, chat.Options[1].Choices)

	clearSpec := specs[1]
	assert.Equal(t, CommandClear, clearSpec.Name)
	assert.Empty(t, clearSpec.Options)
}
