package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON strips markdown code fences from a model response and
// returns the raw JSON bytes, verifying they parse. Stages unmarshal
// the bytes into their own typed payloads.
func ExtractJSON(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("empty response")
	}

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	data := []byte(text)
	if !json.Valid(data) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	return data, nil
}

// Unmarshal extracts JSON from a model response and unmarshals it
// into v.
func Unmarshal(text string, v any) error {
	data, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshaling response: %w", err)
	}
	return nil
}
