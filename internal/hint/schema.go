package hint

import "github.com/abhisek/vitalq/internal/llm"

// NextQuestionSchema constrains the provider's next-question suggestion.
var NextQuestionSchema = &llm.Schema{
	Name:        "next-question",
	Description: "The next question to ask and the candidates made redundant by earlier answers",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"question_id": map[string]any{
				"type":        "string",
				"description": "ID of the question to ask next, taken from the candidate list",
			},
			"skip_list": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"maxItems":    20,
				"description": "IDs of other candidates whose signal is already captured by earlier answers",
			},
			"reasoning": map[string]any{
				"type":        "string",
				"description": "One sentence explaining the choice",
			},
		},
		"required":             []any{"question_id", "skip_list", "reasoning"},
		"additionalProperties": false,
	},
}
