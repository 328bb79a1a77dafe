package query

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// Update operators in the order they are applied. Plain (non-$) keys are
// applied as direct field replacements before any operator.
var updateOperators = []string{"$set", "$unset", "$inc", "$push"}

// ValidateUpdate checks the shape of an update spec without applying it
func ValidateUpdate(update domain.Document) error {
	if len(update) == 0 {
		return fmt.Errorf("%w: empty update", domain.ErrInvalidUpdate)
	}
	for key, val := range update {
		if !strings.HasPrefix(key, "$") {
			if _, err := domain.SplitPath(key); err != nil {
				return err
			}
			continue
		}
		if !isUpdateOperator(key) {
			return fmt.Errorf("%w: unknown operator %s", domain.ErrInvalidUpdate, key)
		}
		fields, ok := asMap(val)
		if !ok {
			return fmt.Errorf("%w: %s expects a mapping of fields", domain.ErrInvalidUpdate, key)
		}
		for path := range fields {
			if _, err := domain.SplitPath(path); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyUpdate returns a copy of doc with the update applied. doc itself is
// never modified, so a failed update leaves no partial state behind.
// _id is never changed.
func ApplyUpdate(doc, update domain.Document) (domain.Document, error) {
	if err := ValidateUpdate(update); err != nil {
		return nil, err
	}
	out := doc.Clone()
	if out == nil {
		out = domain.Document{}
	}

	for key, val := range update {
		if strings.HasPrefix(key, "$") || key == domain.FieldID {
			continue
		}
		nv, err := domain.Normalize(val)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidUpdate, err)
		}
		if err := domain.SetPath(out, key, nv); err != nil {
			return nil, err
		}
	}

	for _, op := range updateOperators {
		raw, ok := update[op]
		if !ok {
			continue
		}
		fields, _ := asMap(raw)
		for path, val := range fields {
			if path == domain.FieldID {
				continue
			}
			if err := applyOperator(out, op, path, val); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func applyOperator(doc domain.Document, op, path string, val interface{}) error {
	switch op {
	case "$unset":
		return domain.UnsetPath(doc, path)
	case "$set":
		nv, err := domain.Normalize(val)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInvalidUpdate, err)
		}
		return domain.SetPath(doc, path, nv)
	case "$inc":
		delta, ok := domain.ToFloat64(val)
		if !ok {
			return fmt.Errorf("%w: $inc of %s expects a number", domain.ErrInvalidUpdate, path)
		}
		current := 0.0
		if existing, found := domain.Lookup(doc, path); found {
			n, ok := domain.ToFloat64(existing)
			if !ok {
				return fmt.Errorf("%w: cannot $inc non-numeric field %s", domain.ErrInvalidUpdate, path)
			}
			current = n
		}
		sum := current + delta
		if math.IsNaN(sum) || math.IsInf(sum, 0) {
			return fmt.Errorf("%w: %w: $inc of %s gives non-finite %v", domain.ErrInvalidUpdate, domain.ErrInvalidDocument, path, sum)
		}
		return domain.SetPath(doc, path, sum)
	case "$push":
		items, err := pushItems(val)
		if err != nil {
			return err
		}
		var arr []interface{}
		if existing, found := domain.Lookup(doc, path); found && existing != nil {
			current, ok := existing.([]interface{})
			if !ok {
				return fmt.Errorf("%w: cannot $push to non-array field %s", domain.ErrInvalidUpdate, path)
			}
			arr = append(arr, current...)
		}
		return domain.SetPath(doc, path, append(arr, items...))
	}
	return fmt.Errorf("%w: unknown operator %s", domain.ErrInvalidUpdate, op)
}

// pushItems expands {$each: [...]} or wraps a single value
func pushItems(val interface{}) ([]interface{}, error) {
	if m, ok := asMap(val); ok && len(m) == 1 {
		if each, has := m["$each"]; has {
			nv, err := domain.Normalize(each)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrInvalidUpdate, err)
			}
			list, ok := nv.([]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: $each expects an array", domain.ErrInvalidUpdate)
			}
			return list, nil
		}
	}
	nv, err := domain.Normalize(val)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidUpdate, err)
	}
	return []interface{}{nv}, nil
}

// UpsertDocument builds the document inserted by an upsert: the query's
// equality fields (including those under $and) with the update applied on top.
func UpsertDocument(q, update domain.Document) (domain.Document, error) {
	seed := domain.Document{}
	if err := seedEquality(q, seed); err != nil {
		return nil, err
	}
	return ApplyUpdate(seed, update)
}

func seedEquality(q map[string]interface{}, seed domain.Document) error {
	for key, val := range q {
		if key == "$and" {
			for _, sub := range clauses(val) {
				if err := seedEquality(sub, seed); err != nil {
					return err
				}
			}
			continue
		}
		if strings.HasPrefix(key, "$") {
			continue
		}
		if m, ok := asMap(val); ok && isOperatorMap(m) {
			eq, has := m["$eq"]
			if !has {
				continue
			}
			val = eq
		}
		nv, err := normalizeOperand(val)
		if err != nil {
			return err
		}
		switch nv.(type) {
		case nil, []interface{}, *regexp.Regexp:
			continue
		}
		if err := domain.SetPath(seed, key, nv); err != nil {
			return err
		}
	}
	return nil
}

// clauses returns the mapping items of a logical operator's operand
func clauses(val interface{}) []map[string]interface{} {
	var out []map[string]interface{}
	switch items := val.(type) {
	case []interface{}:
		for _, item := range items {
			if sub, ok := asMap(item); ok {
				out = append(out, sub)
			}
		}
	case []domain.Document:
		for _, item := range items {
			out = append(out, item)
		}
	case []map[string]interface{}:
		out = items
	}
	return out
}

func isUpdateOperator(op string) bool {
	for _, known := range updateOperators {
		if op == known {
			return true
		}
	}
	return false
}
