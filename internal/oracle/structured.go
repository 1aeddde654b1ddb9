package oracle

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// GenerateInto requests a structured response matching req.Schema and decodes
// it into out. The Generation is returned whenever the oracle answered, even
// if decoding failed, so callers can still account for usage.
func GenerateInto(ctx context.Context, gen Generator, req GenerateRequest, out any) (*Generation, error) {
	if req.Schema == nil {
		return nil, eris.New("oracle: structured generation needs a schema")
	}
	req.Prompt = strings.TrimSpace(req.Prompt) + "\n\n" + req.Schema.Instructions()

	g, err := gen.Generate(ctx, req)
	if err != nil {
		return g, err
	}

	doc, err := DecodeObject(g.Text)
	if err != nil {
		return g, eris.Wrapf(err, "oracle: decode %s", req.Schema.Name)
	}
	req.Schema.normalize(doc)
	if err := req.Schema.Validate(doc); err != nil {
		return g, err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return g, eris.Wrapf(err, "oracle: re-encode %s", req.Schema.Name)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return g, eris.Wrapf(err, "oracle: unmarshal %s", req.Schema.Name)
	}
	return g, nil
}

// DecodeObject parses text as a JSON object. Models often wrap JSON in prose or
// code fences, so when strict parsing fails the first balanced {...} object
// is extracted and parsed instead.
func DecodeObject(text string) (map[string]any, error) {
	text = stripFences(strings.TrimSpace(text))
	if text == "" {
		return nil, ErrEmptyResponse
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(text), &doc); err == nil && doc != nil {
		return doc, nil
	}

	obj := firstObject(text)
	if obj == "" {
		return nil, eris.New("oracle: no JSON object in response")
	}
	if err := json.Unmarshal([]byte(obj), &doc); err != nil {
		return nil, eris.Wrap(err, "oracle: malformed JSON object")
	}
	return doc, nil
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// firstObject returns the first brace-balanced object in text, ignoring
// braces inside JSON strings. If the braces never balance it falls back to
// the span from the first '{' to the last '}'.
func firstObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}

	if end := strings.LastIndexByte(text, '}'); end > start {
		return text[start : end+1]
	}
	return ""
}
