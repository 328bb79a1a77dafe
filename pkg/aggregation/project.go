package aggregation

import (
	"fmt"
	"strings"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

type projection func(doc domain.Document) (interface{}, bool)

func project(docs []domain.Document, spec map[string]interface{}) ([]domain.Document, error) {
	fields := make(map[string]projection, len(spec))
	for field, raw := range spec {
		p, include, err := parseProjection(field, raw)
		if err != nil {
			return nil, err
		}
		if include {
			fields[field] = p
		}
	}

	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		projected := make(domain.Document, len(fields))
		for field, p := range fields {
			if v, found := p(doc); found {
				projected[field] = domain.CloneValue(v)
			}
		}
		out = append(out, projected)
	}
	return out, nil
}

// parseProjection returns the value extractor for one output field. include
// is false for 0/false entries, which are dropped.
func parseProjection(field string, raw interface{}) (projection, bool, error) {
	switch v := raw.(type) {
	case bool:
		if !v {
			return nil, false, nil
		}
		return pathProjection(field)
	case string:
		path, err := domain.PathOf(v)
		if err != nil {
			return nil, false, err
		}
		p, _, err := pathProjection(path)
		return p, true, err
	}
	if n, ok := domain.ToFloat64(raw); ok {
		if n == 0 {
			return nil, false, nil
		}
		return pathProjection(field)
	}
	if m, ok := asMap(raw); ok {
		p, err := parseExpression(m)
		return p, true, err
	}
	return nil, false, fmt.Errorf("%w: unsupported projection for %s", domain.ErrInvalidPipeline, field)
}

func pathProjection(path string) (projection, bool, error) {
	if _, err := domain.SplitPath(path); err != nil {
		return nil, false, err
	}
	return func(doc domain.Document) (interface{}, bool) {
		return domain.Lookup(doc, path)
	}, true, nil
}

// parseExpression handles {$concat: [path, ...]}, the only defined expression
func parseExpression(m map[string]interface{}) (projection, error) {
	args, ok := m["$concat"]
	if !ok || len(m) != 1 {
		return nil, fmt.Errorf("%w: only $concat expressions are supported", domain.ErrInvalidPipeline)
	}
	items, ok := args.([]interface{})
	if !ok {
		if strs, isStrs := args.([]string); isStrs {
			for _, s := range strs {
				items = append(items, s)
			}
			ok = true
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: $concat expects an array of field paths", domain.ErrInvalidPipeline)
	}
	paths := make([]string, len(items))
	for i, item := range items {
		path, err := domain.PathOf(item)
		if err != nil {
			return nil, err
		}
		paths[i] = path
	}
	return func(doc domain.Document) (interface{}, bool) {
		var b strings.Builder
		for _, path := range paths {
			v, _ := domain.Lookup(doc, path)
			b.WriteString(domain.Stringify(v))
		}
		return b.String(), true
	}, nil
}
