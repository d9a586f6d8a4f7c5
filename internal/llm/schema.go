package llm

import (
	"encoding/json"
	"strings"
)

// BuildEnvelopeJSONSchema returns the JSON-Schema (draft 2020-12 subset) a chat/completions
// response must satisfy before its text is trusted.
func BuildEnvelopeJSONSchema() map[string]any {
	message := map[string]any{
		"type":     "object",
		"required": []string{"content"},
		"properties": map[string]any{
			"role":    map[string]any{"type": "string"},
			"content": map[string]any{"type": "string"},
		},
	}
	choice := map[string]any{
		"type":       "object",
		"required":   []string{"message"},
		"properties": map[string]any{"message": message},
	}
	// only the first choice is read; later ones are not checked
	return map[string]any{
		"$schema":  "https://json-schema.org/draft/2020-12/schema",
		"type":     "object",
		"required": []string{"choices"},
		"properties": map[string]any{
			"choices": map[string]any{
				"type":        "array",
				"minItems":    1,
				"prefixItems": []any{choice},
			},
		},
	}
}

type chatCompletion struct {
	Choices []json.RawMessage `json:"choices"`
}

type chatChoice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

// ParseContent returns choices[0].message.content from a raw chat/completions body.
// The text is returned unmodified. Every failure is a *MalformedResponseError.
func ParseContent(raw []byte) (string, error) {
	var cc chatCompletion
	if err := json.Unmarshal(raw, &cc); err != nil {
		return "", &MalformedResponseError{Reason: "decode response", Err: err}
	}
	if len(cc.Choices) == 0 {
		return "", &MalformedResponseError{Reason: "no choices in response"}
	}
	if err := validateEnvelope(raw); err != nil {
		return "", &MalformedResponseError{Reason: "unexpected response shape", Err: err}
	}
	var first chatChoice
	if err := json.Unmarshal(cc.Choices[0], &first); err != nil {
		return "", &MalformedResponseError{Reason: "decode first choice", Err: err}
	}
	content := first.Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &MalformedResponseError{Reason: "empty message content"}
	}
	return content, nil
}
