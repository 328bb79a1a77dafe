// Package aggregation evaluates aggregation pipelines over document sequences.
package aggregation

import (
	"fmt"

	"github.com/adfharrison1/go-docstore/pkg/domain"
	"github.com/adfharrison1/go-docstore/pkg/query"
)

// Run evaluates pipeline stages strictly in order. Each stage consumes the
// previous stage's output; the first stage sees docs. docs is not modified.
func Run(docs []domain.Document, pipeline []domain.Document) ([]domain.Document, error) {
	current := make([]domain.Document, len(docs))
	copy(current, docs)

	for i, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("%w: stage %d must have exactly one operator", domain.ErrInvalidPipeline, i)
		}
		for op, arg := range stage {
			next, err := runStage(op, arg, current)
			if err != nil {
				return nil, fmt.Errorf("stage %d (%s): %w", i, op, err)
			}
			current = next
		}
	}
	return current, nil
}

func runStage(op string, arg interface{}, docs []domain.Document) ([]domain.Document, error) {
	switch op {
	case "$match":
		q, ok := asMap(arg)
		if !ok {
			return nil, fmt.Errorf("%w: $match expects a query", domain.ErrInvalidPipeline)
		}
		m, err := query.Compile(q)
		if err != nil {
			return nil, err
		}
		out := make([]domain.Document, 0, len(docs))
		for _, doc := range docs {
			if m.Match(doc) {
				out = append(out, doc)
			}
		}
		return out, nil
	case "$sort":
		fields, err := sortFields(arg)
		if err != nil {
			return nil, err
		}
		out := make([]domain.Document, len(docs))
		copy(out, docs)
		query.SortDocuments(out, fields)
		return out, nil
	case "$limit":
		n, err := count(op, arg)
		if err != nil {
			return nil, err
		}
		return query.Paginate(docs, 0, n), nil
	case "$skip":
		n, err := count(op, arg)
		if err != nil {
			return nil, err
		}
		return query.Paginate(docs, n, 0), nil
	case "$project":
		spec, ok := asMap(arg)
		if !ok {
			return nil, fmt.Errorf("%w: $project expects a mapping", domain.ErrInvalidPipeline)
		}
		return project(docs, spec)
	case "$group":
		spec, ok := asMap(arg)
		if !ok {
			return nil, fmt.Errorf("%w: $group expects a mapping", domain.ErrInvalidPipeline)
		}
		return group(docs, spec)
	}
	return nil, fmt.Errorf("%w: unknown stage %s", domain.ErrInvalidPipeline, op)
}

// sortFields accepts an ordered []SortField or, for single-key sorts, a mapping
func sortFields(arg interface{}) ([]domain.SortField, error) {
	switch v := arg.(type) {
	case []domain.SortField:
		return v, nil
	case []interface{}:
		fields := make([]domain.SortField, 0, len(v))
		for _, item := range v {
			m, ok := asMap(item)
			if !ok {
				return nil, fmt.Errorf("%w: $sort list items must be {field, direction}", domain.ErrInvalidPipeline)
			}
			path, err := domain.PathOf(m["field"])
			if err != nil {
				return nil, err
			}
			fields = append(fields, domain.SortField{Field: path, Direction: m["direction"]})
		}
		return fields, nil
	}
	m, ok := asMap(arg)
	if !ok {
		return nil, fmt.Errorf("%w: $sort expects a mapping", domain.ErrInvalidPipeline)
	}
	if len(m) > 1 {
		// Go maps carry no key order, so multi-key sorts must use the list form.
		return nil, fmt.Errorf("%w: multi-key $sort needs the list form", domain.ErrInvalidPipeline)
	}
	fields := make([]domain.SortField, 0, 1)
	for path, dir := range m {
		if _, err := domain.SplitPath(path); err != nil {
			return nil, err
		}
		fields = append(fields, domain.SortField{Field: path, Direction: dir})
	}
	return fields, nil
}

func count(op string, arg interface{}) (int, error) {
	f, ok := domain.ToFloat64(arg)
	if !ok || f < 0 || f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %s expects a non-negative integer", domain.ErrInvalidPipeline, op)
	}
	return int(f), nil
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
