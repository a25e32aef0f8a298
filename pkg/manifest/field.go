package manifest

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

var (
	ErrFieldNotFound    = errors.New("field not found")
	ErrUnsupportedValue = errors.New("unsupported value formatting")
)

// Field returns the scalar value stored at the dotted key path.
func Field(data []byte, key string) (string, error) {
	node, err := lookup(data, key)
	if err != nil {
		return "", err
	}
	return node.Value, nil
}

// SetField replaces the scalar at the dotted key path with value and returns
// the updated document together with the previous value. Only the value's
// own line changes, so comments, key order and quoting survive the edit.
func SetField(data []byte, key, value string) ([]byte, string, error) {
	node, err := lookup(data, key)
	if err != nil {
		return nil, "", err
	}

	lines := strings.SplitAfter(string(data), "\n")
	if node.Line < 1 || node.Line > len(lines) {
		return nil, "", fmt.Errorf("%w: %s: line %d out of range", ErrUnsupportedValue, key, node.Line)
	}
	line := lines[node.Line-1]

	start, ok := byteOffset(line, node.Column-1)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s: column %d out of range", ErrUnsupportedValue, key, node.Column)
	}

	end, err := tokenEnd(line, start, node)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", ErrUnsupportedValue, key, err)
	}

	lines[node.Line-1] = line[:start] + formatScalar(value, node.Style) + line[end:]
	out := []byte(strings.Join(lines, ""))

	got, err := Field(out, key)
	if err != nil {
		return nil, "", fmt.Errorf("verifying %s after rewrite: %w", key, err)
	}
	if got != value {
		return nil, "", fmt.Errorf("%w: %s reads back as %q, want %q", ErrUnsupportedValue, key, got, value)
	}

	return out, node.Value, nil
}

func lookup(data []byte, key string) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: %s (empty document)", ErrFieldNotFound, key)
	}

	node := doc.Content[0]
	for _, part := range strings.Split(key, ".") {
		if node.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: %s (%q is not inside a mapping)", ErrFieldNotFound, key, part)
		}
		var next *yaml.Node
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == part {
				next = node.Content[i+1]
				break
			}
		}
		if next == nil {
			return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, key)
		}
		node = next
	}

	if node.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("%w: %s is not a scalar", ErrUnsupportedValue, key)
	}
	if node.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		return nil, fmt.Errorf("%w: %s is a block scalar", ErrUnsupportedValue, key)
	}
	if node.Tag == "!!null" && node.Value == "" {
		return nil, fmt.Errorf("%w: %s has no value", ErrUnsupportedValue, key)
	}
	return node, nil
}

// byteOffset converts a rune column into a byte offset within line.
func byteOffset(line string, col int) (int, bool) {
	offset := 0
	for i := 0; i < col; i++ {
		if offset >= len(line) {
			return 0, false
		}
		_, size := utf8.DecodeRuneInString(line[offset:])
		offset += size
	}
	return offset, offset < len(line)
}

func tokenEnd(line string, start int, node *yaml.Node) (int, error) {
	switch {
	case node.Style&yaml.DoubleQuotedStyle != 0:
		for i := start + 1; i < len(line); i++ {
			switch line[i] {
			case '\\':
				i++
			case '"':
				return i + 1, nil
			}
		}
		return 0, errors.New("double-quoted value spans lines")
	case node.Style&yaml.SingleQuotedStyle != 0:
		for i := start + 1; i < len(line); i++ {
			if line[i] != '\'' {
				continue
			}
			if i+1 < len(line) && line[i+1] == '\'' {
				i++
				continue
			}
			return i + 1, nil
		}
		return 0, errors.New("single-quoted value spans lines")
	}

	end := start + len(node.Value)
	if end > len(line) || line[start:end] != node.Value {
		return 0, fmt.Errorf("plain value %q spans lines", node.Value)
	}
	return end, nil
}

func formatScalar(value string, style yaml.Style) string {
	switch {
	case style&yaml.DoubleQuotedStyle != 0:
		return strconv.Quote(value)
	case style&yaml.SingleQuotedStyle != 0:
		return "'" + strings.ReplaceAll(value, "'", "''") + "'"
	}
	if plainSafe(value) {
		return value
	}
	return strconv.Quote(value)
}

// plainSafe reports whether value reads back as the same string when written unquoted.
func plainSafe(value string) bool {
	if value == "" || strings.ContainsAny(value, "\n#") {
		return false
	}
	var decoded map[string]any
	if err := yaml.Unmarshal([]byte("v: "+value), &decoded); err != nil {
		return false
	}
	s, ok := decoded["v"].(string)
	return ok && s == value
}
