package domain

// EventType identifies a change event variant
type EventType string

const (
	EventDocumentInserted  EventType = "documentInserted"
	EventDocumentsUpdated  EventType = "documentsUpdated"
	EventDocumentsDeleted  EventType = "documentsDeleted"
	EventCollectionDropped EventType = "collectionDropped"
	EventPersistenceFailed EventType = "persistenceFailed"
)

// ChangeEvent is published after a successful mutation, or when a queued
// snapshot write fails. Delivery may precede the durability write.
type ChangeEvent struct {
	Type       EventType `json:"type"`
	Collection string    `json:"collection"`
	Document   Document  `json:"document,omitempty"`
	Query      Document  `json:"query,omitempty"`
	Update     Document  `json:"update,omitempty"`
	Count      int       `json:"count,omitempty"`
	Err        error     `json:"-"`
}
