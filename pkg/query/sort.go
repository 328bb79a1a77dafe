package query

import (
	"sort"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// SortDocuments sorts docs in place by the given keys. The sort is stable, so
// documents that compare equal keep their incoming order.
func SortDocuments(docs []domain.Document, fields []domain.SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, f := range fields {
			a, _ := domain.Lookup(docs[i], f.Field)
			b, _ := domain.Lookup(docs[j], f.Field)
			c := domain.Compare(a, b)
			if c == 0 {
				continue
			}
			if f.Ascending() {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

// Paginate skips the first skip documents and bounds the rest by limit.
// A limit of zero returns everything after the skip.
func Paginate(docs []domain.Document, skip, limit int) []domain.Document {
	if skip >= len(docs) {
		return []domain.Document{}
	}
	if skip > 0 {
		docs = docs[skip:]
	}
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}
