package domain

import (
	"fmt"
	"strings"
)

// SplitPath splits a dotted field path into its segments
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty field path", ErrInvalidPath)
	}
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
	}
	return parts, nil
}

// PathOf converts an arbitrary operand into a field path. Anything that is not
// a string fails with ErrInvalidPath. A leading "$" is stripped.
func PathOf(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: field path must be a string, got %T", ErrInvalidPath, v)
	}
	s = strings.TrimPrefix(s, "$")
	if _, err := SplitPath(s); err != nil {
		return "", err
	}
	return s, nil
}

// Lookup resolves a dotted path against a document.
// The second return value is false when any segment is missing.
func Lookup(doc map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = doc
	for _, seg := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SetPath assigns value at path, creating intermediate mappings as needed
func SetPath(doc map[string]interface{}, path string, value interface{}) error {
	parts, err := SplitPath(path)
	if err != nil {
		return err
	}
	cur := doc
	for i, seg := range parts[:len(parts)-1] {
		next, exists := cur[seg]
		if !exists || next == nil {
			m := make(map[string]interface{})
			cur[seg] = m
			cur = m
			continue
		}
		m, ok := asMap(next)
		if !ok {
			return fmt.Errorf("%w: %q is not a mapping", ErrInvalidPath, strings.Join(parts[:i+1], "."))
		}
		cur = m
	}
	cur[parts[len(parts)-1]] = value
	return nil
}

// UnsetPath removes the value at path. Missing paths are ignored.
func UnsetPath(doc map[string]interface{}, path string) error {
	parts, err := SplitPath(path)
	if err != nil {
		return err
	}
	cur := doc
	for _, seg := range parts[:len(parts)-1] {
		m, ok := asMap(cur[seg])
		if !ok {
			return nil
		}
		cur = m
	}
	delete(cur, parts[len(parts)-1])
	return nil
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}
