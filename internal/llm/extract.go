package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var errNoJSONObject = errors.New("no JSON object found")

// DecodeJSON recovers a JSON object from free-form model output and decodes it
// into v. Stages, in order:
//
//  1. strict: the whole (trimmed) text is a JSON object;
//  2. scan: the first balanced {...} span in the text that parses as JSON.
//
// The recovered object is validated against schema (when non-nil) before
// decoding. Any failure is an *ErrInvalidResponse; the caller owns the third
// stage, its static fallback payload.
func DecodeJSON(raw string, schema *Schema, v any) error {
	doc, err := recoverObject(raw)
	if err != nil {
		return &ErrInvalidResponse{Raw: raw, Err: err}
	}

	var parsed any
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return &ErrInvalidResponse{Raw: raw, Err: err}
	}
	if err := validate(schema, parsed); err != nil {
		return &ErrInvalidResponse{Raw: raw, Err: err}
	}
	if err := json.Unmarshal(doc, v); err != nil {
		return &ErrInvalidResponse{Raw: raw, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

func recoverObject(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if doc, ok := strictObject(trimmed); ok {
		return doc, nil
	}
	found := false
	for rest := trimmed; ; {
		span, start, ok := firstBalancedObject(rest)
		if !ok {
			break
		}
		found = true
		if doc, ok := strictObject(span); ok {
			return doc, nil
		}
		rest = rest[start+1:]
	}
	if found {
		return nil, errors.New("no balanced span is valid JSON")
	}
	return nil, errNoJSONObject
}

func strictObject(s string) ([]byte, bool) {
	b := []byte(s)
	if !bytes.HasPrefix(b, []byte("{")) || !json.Valid(b) {
		return nil, false
	}
	return b, true
}

// firstBalancedObject returns the first {...} span whose braces balance,
// ignoring braces inside JSON string literals, and the offset it starts at.
func firstBalancedObject(s string) (string, int, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		if end, ok := matchBrace(s, start); ok {
			return s[start : end+1], start, true
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", -1, false
}

// matchBrace finds the index of the brace closing the one at start.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
