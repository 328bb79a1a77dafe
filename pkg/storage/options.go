package storage

import "time"

type StorageOption func(*StorageEngine)

// Format selects the snapshot encoding
type Format string

const (
	// FormatJSON writes plain JSON arrays (`<root>/collections/<name>.json`)
	FormatJSON Format = "json"
	// FormatBinary writes MessagePack compressed with LZ4 behind a GODB header
	FormatBinary Format = "binary"
)

// BackendKind selects where snapshots live
type BackendKind string

const (
	// BackendFile stores one file per collection and per index
	BackendFile BackendKind = "file"
	// BackendBolt stores every snapshot in a single bbolt database file
	BackendBolt BackendKind = "bolt"
)

func WithDataDir(dir string) StorageOption {
	return func(engine *StorageEngine) {
		engine.dataDir = dir
	}
}

func WithFormat(format Format) StorageOption {
	return func(engine *StorageEngine) {
		engine.format = format
	}
}

func WithBackend(kind BackendKind) StorageOption {
	return func(engine *StorageEngine) {
		engine.backendKind = kind
	}
}

// WithAtomicWrites writes snapshot files through a temp file and rename
// (file backend only). Off by default.
func WithAtomicWrites(enabled bool) StorageOption {
	return func(engine *StorageEngine) {
		engine.atomicWrites = enabled
	}
}

// WithEventBuffer sets the channel buffer used by Subscribe when the caller
// passes a non-positive size
func WithEventBuffer(size int) StorageOption {
	return func(engine *StorageEngine) {
		engine.eventBuffer = size
	}
}

// WithMatcherCache sets how many compiled queries are kept. Zero disables the cache.
func WithMatcherCache(size int) StorageOption {
	return func(engine *StorageEngine) {
		engine.matcherCacheSize = size
	}
}

// WithIDGenerator replaces the random _id generator
func WithIDGenerator(gen func() string) StorageOption {
	return func(engine *StorageEngine) {
		engine.newID = gen
	}
}

// WithClock replaces the timestamp source used for _createdAt/_updatedAt
func WithClock(now func() time.Time) StorageOption {
	return func(engine *StorageEngine) {
		engine.now = now
	}
}
