package llm

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/johnazariah/aura-sub015/internal/errors"
)

// ExtractJSON pulls the first JSON object or array out of model output.
// Models wrap JSON in prose or markdown fences more often than not; this
// strips fences and scans for a balanced value, validating with gjson.
func ExtractJSON(text string) (string, error) {
	text = stripFences(text)

	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", errors.New(errors.KindLLMParse, "no JSON value in response")
	}

	open := text[start]
	closing := byte('}')
	if open == '[' {
		closing = ']'
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == closing:
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				if !gjson.Valid(candidate) {
					return "", errors.New(errors.KindLLMParse,
						"malformed JSON in response")
				}
				return candidate, nil
			}
		}
	}
	return "", errors.New(errors.KindLLMParse, "unterminated JSON in response")
}

// ParseJSON extracts and unmarshals the JSON payload of model output into
// out. Failures carry the llm_parse_error kind.
func ParseJSON(text string, out any) error {
	payload, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return errors.Wrap(errors.KindLLMParse, err, "decode response JSON")
	}
	return nil
}

// stripFences removes markdown code fences around the payload.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.Contains(trimmed, "```") {
		return trimmed
	}
	var out []string
	inFence := false
	kept := false
	for _, line := range strings.Split(trimmed, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			kept = kept || inFence
			continue
		}
		if inFence {
			out = append(out, line)
		}
	}
	if !kept || len(out) == 0 {
		return trimmed
	}
	return strings.Join(out, "\n")
}
