package codegen

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencedBlock matches the first ```json (or bare ```) block in a response.
var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n(.*?)\\n?```")

// extractJSON pulls the first JSON object out of an LLM response and decodes
// it into T. Generated source lives inside JSON strings, so the only repair
// attempted is escaping raw control characters inside those strings.
func extractJSON[T any](response string) (T, error) {
	var result T

	cleaned := strings.TrimSpace(response)
	if m := fencedBlock.FindStringSubmatch(cleaned); m != nil {
		cleaned = strings.TrimSpace(m[1])
	}
	if cleaned == "" {
		return result, fmt.Errorf("no JSON found in response")
	}

	idx := strings.Index(cleaned, "{")
	if idx == -1 {
		return result, fmt.Errorf("no JSON object found in response")
	}
	jsonPart := cleaned[idx:]

	// Decoder stops after one value, so trailing prose is ignored.
	if err := json.NewDecoder(strings.NewReader(jsonPart)).Decode(&result); err != nil {
		var repaired T
		if err2 := json.NewDecoder(strings.NewReader(sanitizeControlChars(jsonPart))).Decode(&repaired); err2 == nil {
			return repaired, nil
		}
		return result, fmt.Errorf("parse JSON: %w", err)
	}
	return result, nil
}

// sanitizeControlChars escapes literal control characters inside JSON strings.
// LLMs often emit raw newlines and tabs inside file content.
func sanitizeControlChars(input string) string {
	var b strings.Builder
	b.Grow(len(input))

	inString := false
	escaped := false
	for i := 0; i < len(input); i++ {
		c := input[i]

		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		if c == '\\' && inString {
			b.WriteByte(c)
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			b.WriteByte(c)
			continue
		}
		if !inString {
			b.WriteByte(c)
			continue
		}

		switch c {
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if c < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}
