package domain

// StorageEngine defines the interface for storage operations
// This is the core business interface that implementations must conform to
type StorageEngine interface {
	ListCollections() ([]string, error)
	CreateCollection(collName string) error
	DropCollection(collName string) error

	Insert(collName string, doc Document) (Document, error)
	InsertMany(collName string, docs []Document) ([]Document, error)
	Find(collName string, query Document, options *FindOptions) ([]Document, error)
	FindStream(collName string, query Document, options *FindOptions) (<-chan Document, error)
	Update(collName string, query, update Document, options *UpdateOptions) (UpdateResult, error)
	Delete(collName string, query Document) (DeleteResult, error)
	Count(collName string, query Document) (int, error)
	Aggregate(collName string, pipeline []Document) ([]Document, error)

	Subscribe(buffer int) (<-chan ChangeEvent, func())
	GetStats() map[string]interface{}
}

// DatabaseEngine combines StorageEngine and IndexEngine interfaces
type DatabaseEngine interface {
	StorageEngine
	IndexEngine
}
