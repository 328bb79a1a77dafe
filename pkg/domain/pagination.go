package domain

import (
	"fmt"
	"strings"
)

// SortField is one key of a multi-key sort. A Direction of 1 or "asc"
// sorts ascending; anything else sorts descending.
type SortField struct {
	Field     string      `json:"field"`
	Direction interface{} `json:"direction"`
}

// Ascending reports whether the field sorts in ascending order
func (sf SortField) Ascending() bool {
	switch d := sf.Direction.(type) {
	case string:
		return d == "asc"
	}
	if f, ok := ToFloat64(sf.Direction); ok {
		return f == 1
	}
	return false
}

// Asc builds an ascending sort key
func Asc(field string) SortField { return SortField{Field: field, Direction: 1} }

// Desc builds a descending sort key
func Desc(field string) SortField { return SortField{Field: field, Direction: -1} }

// FindOptions controls sorting and pagination of a find
type FindOptions struct {
	Sort  []SortField `json:"sort,omitempty"`
	Skip  int         `json:"skip,omitempty"`
	Limit int         `json:"limit,omitempty"` // 0 means no limit
}

// Validate validates find options
func (fo *FindOptions) Validate() error {
	if fo == nil {
		return nil
	}
	if fo.Limit < 0 {
		return fmt.Errorf("%w: limit cannot be negative", ErrInvalidQuery)
	}
	if fo.Skip < 0 {
		return fmt.Errorf("%w: skip cannot be negative", ErrInvalidQuery)
	}
	for _, sf := range fo.Sort {
		if _, err := SplitPath(sf.Field); err != nil {
			return err
		}
	}
	return nil
}

// ParseSort parses "name:asc,age:desc" (or "age:-1") into sort keys.
// A bare field name sorts ascending.
func ParseSort(s string) ([]SortField, error) {
	var fields []SortField
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, dir, found := strings.Cut(part, ":")
		if _, err := SplitPath(name); err != nil {
			return nil, err
		}
		if !found || dir == "asc" || dir == "1" {
			fields = append(fields, Asc(name))
			continue
		}
		fields = append(fields, Desc(name))
	}
	return fields, nil
}

// UpdateOptions controls update behaviour
type UpdateOptions struct {
	Upsert bool `json:"upsert,omitempty"`
}

// UpdateResult reports the outcome of an update
type UpdateResult struct {
	MatchedCount  int    `json:"matchedCount"`
	ModifiedCount int    `json:"modifiedCount"`
	UpsertedCount int    `json:"upsertedCount,omitempty"`
	UpsertedID    string `json:"upsertedId,omitempty"`
}

// DeleteResult reports the outcome of a delete
type DeleteResult struct {
	DeletedCount int `json:"deletedCount"`
}
