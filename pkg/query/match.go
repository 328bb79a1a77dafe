// Package query compiles and evaluates document queries, applies update
// operators and orders query results.
package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

type predicate func(doc domain.Document) bool

// Matcher is a compiled query predicate. It is safe for concurrent use.
type Matcher struct {
	preds    []predicate
	equality map[string]interface{}
}

// Compile validates a query and turns it into a Matcher.
// An empty or nil query matches every document.
func Compile(q domain.Document) (*Matcher, error) {
	m := &Matcher{equality: make(map[string]interface{})}
	preds, err := compileQuery(q)
	if err != nil {
		return nil, err
	}
	m.preds = preds
	collectEquality(q, m.equality)
	return m, nil
}

// Match reports whether doc satisfies the query
func (m *Matcher) Match(doc domain.Document) bool {
	for _, p := range m.preds {
		if !p(doc) {
			return false
		}
	}
	return true
}

// EqualityFields returns the top-level field paths constrained to a single
// non-null scalar value. Index lookups can narrow candidates with them.
func (m *Matcher) EqualityFields() map[string]interface{} {
	return m.equality
}

func compileQuery(q map[string]interface{}) ([]predicate, error) {
	preds := make([]predicate, 0, len(q))
	for key, val := range q {
		if strings.HasPrefix(key, "$") {
			p, err := compileLogical(key, val)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
			continue
		}
		if _, err := domain.SplitPath(key); err != nil {
			return nil, err
		}
		p, err := compileField(key, val)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func compileLogical(op string, val interface{}) (predicate, error) {
	items, ok := val.([]interface{})
	if !ok {
		if docs, isDocs := val.([]domain.Document); isDocs {
			for _, d := range docs {
				items = append(items, d)
			}
			ok = true
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s expects an array of queries", domain.ErrInvalidQuery, op)
	}

	var subs []*Matcher
	for _, item := range items {
		sub, isMap := asMap(item)
		if !isMap {
			return nil, fmt.Errorf("%w: %s expects an array of queries", domain.ErrInvalidQuery, op)
		}
		m, err := Compile(sub)
		if err != nil {
			return nil, err
		}
		subs = append(subs, m)
	}

	switch op {
	case "$and":
		return func(doc domain.Document) bool {
			for _, s := range subs {
				if !s.Match(doc) {
					return false
				}
			}
			return true
		}, nil
	case "$or":
		return func(doc domain.Document) bool {
			for _, s := range subs {
				if s.Match(doc) {
					return true
				}
			}
			return false
		}, nil
	case "$nor":
		return func(doc domain.Document) bool {
			for _, s := range subs {
				if s.Match(doc) {
					return false
				}
			}
			return true
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown operator %s", domain.ErrInvalidQuery, op)
}

func compileField(path string, val interface{}) (predicate, error) {
	switch v := val.(type) {
	case *regexp.Regexp:
		return func(doc domain.Document) bool {
			actual, found := domain.Lookup(doc, path)
			return found && regexMatch(v, actual)
		}, nil
	case nil:
		return func(doc domain.Document) bool {
			actual, found := domain.Lookup(doc, path)
			return !found || actual == nil
		}, nil
	}

	if m, ok := asMap(val); ok && isOperatorMap(m) {
		return compileOperators(path, m)
	}

	operand, err := normalizeOperand(val)
	if err != nil {
		return nil, err
	}
	if list, ok := operand.([]interface{}); ok {
		in := compileIn(list)
		return func(doc domain.Document) bool {
			actual, found := domain.Lookup(doc, path)
			return in(actual, found)
		}, nil
	}
	return func(doc domain.Document) bool {
		actual, found := domain.Lookup(doc, path)
		return found && equalOrContains(actual, operand)
	}, nil
}

func compileOperators(path string, ops map[string]interface{}) (predicate, error) {
	var checks []func(actual interface{}, found bool) bool

	if _, hasOptions := ops["$options"]; hasOptions {
		if _, hasRegex := ops["$regex"]; !hasRegex {
			return nil, fmt.Errorf("%w: $options without $regex", domain.ErrInvalidQuery)
		}
	}

	for op, raw := range ops {
		if op == "$options" {
			continue
		}
		if op == "$regex" {
			re, err := compileRegex(raw, ops["$options"])
			if err != nil {
				return nil, err
			}
			checks = append(checks, func(actual interface{}, found bool) bool {
				return found && regexMatch(re, actual)
			})
			continue
		}

		operand, err := normalizeOperand(raw)
		if err != nil {
			return nil, err
		}

		switch op {
		case "$eq":
			checks = append(checks, func(actual interface{}, found bool) bool {
				return eqMatch(actual, found, operand)
			})
		case "$ne":
			checks = append(checks, func(actual interface{}, found bool) bool {
				return !eqMatch(actual, found, operand)
			})
		case "$gt", "$gte", "$lt", "$lte":
			cmp := orderCheck(op)
			checks = append(checks, func(actual interface{}, found bool) bool {
				return found && domain.Comparable(actual, operand) && cmp(domain.Compare(actual, operand))
			})
		case "$in", "$nin":
			list, ok := operand.([]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: %s expects an array", domain.ErrInvalidQuery, op)
			}
			in := compileIn(list)
			if op == "$in" {
				checks = append(checks, in)
			} else {
				checks = append(checks, func(actual interface{}, found bool) bool {
					return !in(actual, found)
				})
			}
		case "$exists":
			want, ok := operand.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: $exists expects a boolean", domain.ErrInvalidQuery)
			}
			checks = append(checks, func(_ interface{}, found bool) bool {
				return found == want
			})
		default:
			return nil, fmt.Errorf("%w: unknown operator %s", domain.ErrInvalidQuery, op)
		}
	}

	return func(doc domain.Document) bool {
		actual, found := domain.Lookup(doc, path)
		for _, c := range checks {
			if !c(actual, found) {
				return false
			}
		}
		return true
	}, nil
}

func orderCheck(op string) func(int) bool {
	switch op {
	case "$gt":
		return func(c int) bool { return c > 0 }
	case "$gte":
		return func(c int) bool { return c >= 0 }
	case "$lt":
		return func(c int) bool { return c < 0 }
	}
	return func(c int) bool { return c <= 0 }
}

// compileIn builds a membership check. Regex candidates match string values.
func compileIn(list []interface{}) func(interface{}, bool) bool {
	return func(actual interface{}, found bool) bool {
		for _, candidate := range list {
			if re, ok := candidate.(*regexp.Regexp); ok {
				if found && regexMatch(re, actual) {
					return true
				}
				continue
			}
			if eqMatch(actual, found, candidate) {
				return true
			}
		}
		return false
	}
}

func eqMatch(actual interface{}, found bool, operand interface{}) bool {
	if operand == nil {
		return !found || actual == nil
	}
	return found && equalOrContains(actual, operand)
}

// equalOrContains matches exact equality, or membership when the document
// field holds an array.
func equalOrContains(actual, operand interface{}) bool {
	if domain.Equal(actual, operand) {
		return true
	}
	if arr, ok := actual.([]interface{}); ok {
		for _, item := range arr {
			if domain.Equal(item, operand) {
				return true
			}
		}
	}
	return false
}

func regexMatch(re *regexp.Regexp, actual interface{}) bool {
	switch v := actual.(type) {
	case string:
		return re.MatchString(v)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && re.MatchString(s) {
				return true
			}
		}
	}
	return false
}

func compileRegex(pattern, options interface{}) (*regexp.Regexp, error) {
	if re, ok := pattern.(*regexp.Regexp); ok {
		return re, nil
	}
	src, ok := pattern.(string)
	if !ok {
		return nil, fmt.Errorf("%w: $regex expects a string", domain.ErrInvalidQuery)
	}
	if options != nil {
		flags, ok := options.(string)
		if !ok {
			return nil, fmt.Errorf("%w: $options expects a string", domain.ErrInvalidQuery)
		}
		var prefix strings.Builder
		for _, f := range flags {
			switch f {
			case 'i', 'm', 's':
				prefix.WriteRune(f)
			default:
				return nil, fmt.Errorf("%w: unsupported regex option %q", domain.ErrInvalidQuery, f)
			}
		}
		if prefix.Len() > 0 {
			src = "(?" + prefix.String() + ")" + src
		}
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidQuery, err)
	}
	return re, nil
}

// normalizeOperand normalizes a query operand, passing regexes through
func normalizeOperand(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case *regexp.Regexp:
		return val, nil
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			nv, err := normalizeOperand(item)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	}
	nv, err := domain.Normalize(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidQuery, err)
	}
	return nv, nil
}

func isOperatorMap(m map[string]interface{}) bool {
	if len(m) == 0 {
		return false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return false
		}
	}
	return true
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case domain.Document:
		return m, true
	}
	return nil, false
}

func collectEquality(q map[string]interface{}, out map[string]interface{}) {
	for key, val := range q {
		if strings.HasPrefix(key, "$") {
			continue
		}
		if m, ok := asMap(val); ok && isOperatorMap(m) {
			if len(m) != 1 {
				continue
			}
			eq, has := m["$eq"]
			if !has {
				continue
			}
			val = eq
		}
		nv, err := domain.Normalize(val)
		if err != nil {
			continue
		}
		switch nv.(type) {
		case string, float64, bool:
			out[key] = nv
		}
	}
}
