package hints

import (
	"fmt"
	"strings"

	"github.com/abhisek/lexiz/internal/llm"
	"github.com/abhisek/lexiz/internal/vocab"
)

// Schema is the structured output requested for a hint.
var Schema = llm.MustSchema("item-hint", "A short memory aid for a vocabulary item", map[string]any{
	"type": "object",
	"properties": map[string]any{
		"mnemonic": map[string]any{
			"type":        "string",
			"description": "One or two sentences linking the prompt to its answer",
			"minLength":   1,
			"maxLength":   MaxHintLength,
		},
	},
	"required":             []any{"mnemonic"},
	"additionalProperties": false,
})

const systemPrompt = `You help language learners remember vocabulary. A learner just struggled with a word and will see it again in a few moments. Write one vivid, concrete mnemonic that links the prompt to the answer. Do not state the answer outright as a translation; hint at it through sound, image or association.`

func buildUserMessage(it *vocab.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prompt: %s\n", it.PromptText)
	if it.PromptLocale != "" {
		fmt.Fprintf(&b, "Prompt language: %s\n", it.PromptLocale)
	}
	fmt.Fprintf(&b, "Answer: %s\n", it.AnswerText)
	if it.AnswerLocale != "" {
		fmt.Fprintf(&b, "Answer language: %s\n", it.AnswerLocale)
	}
	if n := it.Attempts(); n > 0 {
		fmt.Fprintf(&b, "Learner accuracy so far: %.0f%% over %d attempts\n", it.Accuracy()*100, n)
	}
	b.WriteString("\nKeep it under 200 characters.")
	return b.String()
}
