// Package frontmatter reads and writes the MDX post container: an exported
// object-literal metadata block, a blank line, then the Markdown body.
package frontmatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/postdesk/internal/apperr"
)

const prefix = "export const frontmatter = "

var containerRe = regexp.MustCompile(`(?s)\A` + regexp.QuoteMeta(prefix) + `(\{.*?\})[ \t]*\n\n(.*)\z`)

// ErrMalformed is returned when the container shape matches but the
// metadata literal cannot be parsed.
var ErrMalformed = fmt.Errorf("%w: malformed frontmatter", apperr.ErrValidation)

// Document is a parsed post container.
type Document struct {
	Metadata map[string]any
	Body     string
}

// Parse splits raw into metadata and body. Input that does not have the
// container shape is returned whole as the body with empty metadata and no
// error. A metadata literal that fails to parse yields the same fallback
// document together with ErrMalformed.
func Parse(raw string) (Document, error) {
	fallback := Document{Metadata: map[string]any{}, Body: raw}

	m := containerRe.FindStringSubmatch(raw)
	if m == nil {
		return fallback, nil
	}

	meta, err := parseLiteral(m[1])
	if err != nil {
		return fallback, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	// The serializer always terminates the body with a newline.
	body := strings.TrimSuffix(m[2], "\n")
	return Document{Metadata: meta, Body: body}, nil
}

// parseLiteral decodes the object literal as JSON, then as a YAML flow
// mapping, which covers unquoted keys and single-quoted strings.
func parseLiteral(lit string) (map[string]any, error) {
	var meta map[string]any
	jsonErr := json.Unmarshal([]byte(lit), &meta)
	if jsonErr == nil {
		return nonNil(meta), nil
	}
	meta = nil
	if err := yaml.Unmarshal([]byte(lit), &meta); err != nil {
		return nil, jsonErr
	}
	return nonNil(meta), nil
}

// Serialize renders meta as canonical indented JSON followed by a blank
// line and body.
func Serialize(meta map[string]any, body string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(nonNil(meta)); err != nil {
		return "", fmt.Errorf("%w: encode frontmatter: %v", apperr.ErrValidation, err)
	}
	lit := strings.TrimSuffix(buf.String(), "\n")
	return prefix + lit + "\n\n" + body + "\n", nil
}

// Title returns the metadata title when it is a non-empty string.
func Title(meta map[string]any) string {
	if s, ok := meta["title"].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
