// ABOUTME: Builds the bounded context string sent to the completion backend
// ABOUTME: Concatenates transcript and new prompt, keeping only the trailing window

package prompt

import (
	"fmt"
	"unicode/utf8"
)

// Window is the maximum number of bytes of context sent per request.
const Window = 2000

// Separator joins the transcript and the new prompt line.
const Separator = "\n\n"

// Assemble returns the text to send for a new prompt from displayName.
// When the concatenation exceeds Window bytes only the tail is kept. The cut is
// moved back to the nearest rune start so a multi-byte character is never split.
func Assemble(transcript, displayName, prompt string) string {
	full := transcript + Separator + fmt.Sprintf("Prompt from %s: %s", displayName, prompt)
	if len(full) <= Window {
		return full
	}

	cut := len(full) - Window
	for cut > 0 && !utf8.RuneStart(full[cut]) {
		cut--
	}
	return full[cut:]
}

// Exchange formats one completed turn for appending to a transcript.
func Exchange(displayName, prompt, model, reply string) string {
	return fmt.Sprintf("\n\n%s: %s\n%s: %s", displayName, prompt, model, reply)
}
