package domain

// IndexEngine defines the interface for indexing operations
type IndexEngine interface {
	CreateIndex(collName string, fields []string, options IndexOptions) (string, error)
	DropIndex(collName, indexName string) error
	GetIndexes(collName string) ([]IndexInfo, error)
}

// IndexOptions configures a new index
type IndexOptions struct {
	Name   string `json:"name,omitempty"`
	Unique bool   `json:"unique"`
	Sparse bool   `json:"sparse"`
}

// IndexInfo describes an index bound to a collection
type IndexInfo struct {
	Name    string       `json:"name"`
	Fields  []string     `json:"fields"`
	Options IndexOptions `json:"options"`
}
