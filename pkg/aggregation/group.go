package aggregation

import (
	"fmt"
	"sort"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// operand resolves an accumulator argument against one input document
type operand func(doc domain.Document) (interface{}, bool)

type accumulator interface {
	add(v interface{}, found bool)
	result() interface{}
}

type accumulatorSpec struct {
	field string
	op    string
	arg   operand
}

type groupState struct {
	key  interface{}
	accs []accumulator
}

func group(docs []domain.Document, spec map[string]interface{}) ([]domain.Document, error) {
	rawKey, ok := spec[domain.FieldID]
	if !ok {
		return nil, fmt.Errorf("%w: $group requires an _id", domain.ErrInvalidPipeline)
	}
	keyOf, err := groupKey(rawKey)
	if err != nil {
		return nil, err
	}

	fields := make([]string, 0, len(spec))
	for field := range spec {
		if field != domain.FieldID {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)

	specs := make([]accumulatorSpec, 0, len(fields))
	for _, field := range fields {
		s, err := parseAccumulator(field, spec[field])
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}

	groups := make(map[string]*groupState)
	var order []string
	for _, doc := range docs {
		key := keyOf(doc)
		serialized := domain.CanonicalKey(key)
		g, exists := groups[serialized]
		if !exists {
			g = &groupState{key: key, accs: make([]accumulator, len(specs))}
			for i, s := range specs {
				g.accs[i] = newAccumulator(s.op)
			}
			groups[serialized] = g
			order = append(order, serialized)
		}
		for i, s := range specs {
			v, found := s.arg(doc)
			g.accs[i].add(v, found)
		}
	}

	out := make([]domain.Document, 0, len(order))
	for _, serialized := range order {
		g := groups[serialized]
		doc := domain.Document{domain.FieldID: domain.CloneValue(g.key)}
		for i, s := range specs {
			doc[s.field] = g.accs[i].result()
		}
		out = append(out, doc)
	}
	return out, nil
}

// groupKey builds the key extractor: null groups everything together, a
// string groups by that field path, a mapping builds an alias -> value key.
func groupKey(raw interface{}) (func(domain.Document) interface{}, error) {
	if raw == nil {
		return func(domain.Document) interface{} { return nil }, nil
	}
	if m, ok := asMap(raw); ok {
		paths := make(map[string]string, len(m))
		for alias, p := range m {
			path, err := domain.PathOf(p)
			if err != nil {
				return nil, err
			}
			paths[alias] = path
		}
		return func(doc domain.Document) interface{} {
			key := make(map[string]interface{}, len(paths))
			for alias, path := range paths {
				v, _ := domain.Lookup(doc, path)
				key[alias] = v
			}
			return key
		}, nil
	}
	path, err := domain.PathOf(raw)
	if err != nil {
		return nil, err
	}
	return func(doc domain.Document) interface{} {
		v, _ := domain.Lookup(doc, path)
		return v
	}, nil
}

func parseAccumulator(field string, raw interface{}) (accumulatorSpec, error) {
	m, ok := asMap(raw)
	if !ok || len(m) != 1 {
		return accumulatorSpec{}, fmt.Errorf("%w: field %s needs exactly one accumulator", domain.ErrInvalidPipeline, field)
	}
	for op, arg := range m {
		switch op {
		case "$sum", "$avg", "$min", "$max", "$push":
		default:
			return accumulatorSpec{}, fmt.Errorf("%w: unknown accumulator %s", domain.ErrInvalidPipeline, op)
		}
		resolve, err := parseOperand(arg)
		if err != nil {
			return accumulatorSpec{}, err
		}
		return accumulatorSpec{field: field, op: op, arg: resolve}, nil
	}
	return accumulatorSpec{}, nil
}

// parseOperand treats strings as field paths and numbers as constants
func parseOperand(arg interface{}) (operand, error) {
	if f, ok := domain.ToFloat64(arg); ok {
		return func(domain.Document) (interface{}, bool) { return f, true }, nil
	}
	path, err := domain.PathOf(arg)
	if err != nil {
		return nil, err
	}
	return func(doc domain.Document) (interface{}, bool) {
		return domain.Lookup(doc, path)
	}, nil
}

func newAccumulator(op string) accumulator {
	switch op {
	case "$sum":
		return &sumAcc{}
	case "$avg":
		return &avgAcc{}
	case "$min":
		return &extremeAcc{want: -1}
	case "$max":
		return &extremeAcc{want: 1}
	}
	return &pushAcc{items: []interface{}{}}
}

type sumAcc struct{ total float64 }

func (a *sumAcc) add(v interface{}, found bool) {
	if n, ok := domain.ToFloat64(v); found && ok {
		a.total += n
	}
}

func (a *sumAcc) result() interface{} { return a.total }

type avgAcc struct {
	mean  float64
	count int
}

func (a *avgAcc) add(v interface{}, found bool) {
	n, ok := domain.ToFloat64(v)
	if !found || !ok {
		return
	}
	a.count++
	a.mean += (n - a.mean) / float64(a.count)
}

func (a *avgAcc) result() interface{} {
	if a.count == 0 {
		return nil
	}
	return a.mean
}

// extremeAcc keeps the minimum (want -1) or maximum (want 1), seeded from
// the first value encountered.
type extremeAcc struct {
	want   int
	value  interface{}
	seeded bool
}

func (a *extremeAcc) add(v interface{}, found bool) {
	if !found {
		return
	}
	if !a.seeded || domain.Compare(v, a.value) == a.want {
		a.value = v
		a.seeded = true
	}
}

func (a *extremeAcc) result() interface{} { return domain.CloneValue(a.value) }

type pushAcc struct{ items []interface{} }

func (a *pushAcc) add(v interface{}, found bool) {
	if found {
		a.items = append(a.items, domain.CloneValue(v))
	}
}

func (a *pushAcc) result() interface{} { return a.items }
