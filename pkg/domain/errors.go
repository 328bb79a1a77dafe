package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrInvalidPath     = errors.New("invalid field path")
	ErrIOFailure       = errors.New("storage i/o failure")
	ErrNotFound        = errors.New("not found")
	ErrNotConnected    = errors.New("store is not connected")
	ErrInvalidName     = errors.New("invalid name")
	ErrInvalidQuery    = errors.New("invalid query")
	ErrInvalidUpdate   = errors.New("invalid update")
	ErrInvalidPipeline = errors.New("invalid aggregation pipeline")
	ErrIndexExists     = errors.New("index already exists")
	ErrInvalidDocument = errors.New("invalid document")
)

// IOError reports a failed snapshot read or write
type IOError struct {
	Op   string // "load", "save" or "remove"
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{ErrIOFailure, e.Err}
}

// DuplicateKeyError is returned when a unique index rejects a document
type DuplicateKeyError struct {
	Index string
	Key   string
	ID    string
}

func (e *DuplicateKeyError) Error() string {
	if e.Index == "" {
		return fmt.Sprintf("duplicate key: _id %q already exists", e.ID)
	}
	return fmt.Sprintf("duplicate key: index %s already contains key %s", e.Index, e.Key)
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}
