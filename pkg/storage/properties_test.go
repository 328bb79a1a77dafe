package storage

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/adfharrison1/go-docstore/pkg/domain"
)

// openEngine connects a fresh engine for one property evaluation
func openEngine(t *testing.T, dir string, options ...StorageOption) *StorageEngine {
	engine := NewStorageEngine(append([]StorageOption{WithDataDir(dir)}, options...)...)
	require.NoError(t, engine.Connect())
	return engine
}

func docsFrom(ages []int, names []string) []domain.Document {
	docs := make([]domain.Document, len(ages))
	for i, age := range ages {
		doc := domain.Document{"age": age, "rank": i}
		if i < len(names) {
			doc["name"] = names[i]
		}
		if age%3 == 0 {
			doc["tags"] = []interface{}{names, age}
		}
		docs[i] = doc
	}
	return docs
}

func TestProperty_InsertedIDsAreUnique(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	properties.Property("every inserted document gets a distinct _id", prop.ForAll(
		func(n int) bool {
			engine := openEngine(t, t.TempDir())
			defer engine.Disconnect()

			seen := make(map[string]bool, n)
			for i := 0; i < n; i++ {
				doc, err := engine.Insert("items", domain.Document{"i": i})
				if err != nil || seen[doc.ID()] {
					return false
				}
				seen[doc.ID()] = true
			}
			return true
		},
		gen.IntRange(1, 200),
	))

	properties.TestingRun(t)
}

func TestProperty_SnapshotRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 15
	properties := gopter.NewProperties(parameters)

	for _, format := range []Format{FormatJSON, FormatBinary} {
		format := format
		properties.Property(fmt.Sprintf("documents survive a reconnect (%s)", format), prop.ForAll(
			func(ages []int, names []string) bool {
				dir := t.TempDir()
				engine := openEngine(t, dir, WithFormat(format))
				if _, err := engine.InsertMany("people", docsFrom(ages, names)); err != nil {
					return false
				}
				before, err := engine.Find("people", nil, nil)
				if err != nil || engine.Disconnect() != nil {
					return false
				}

				reopened := openEngine(t, dir, WithFormat(format))
				defer reopened.Disconnect()
				after, err := reopened.Find("people", nil, nil)
				if err != nil {
					return false
				}
				return cmp.Diff(before, after, cmpopts.EquateEmpty()) == ""
			},
			gen.SliceOf(gen.IntRange(-1000, 1000)),
			gen.SliceOf(gen.AlphaString()),
		))
	}

	properties.TestingRun(t)
}

func TestProperty_SetIsIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	engine := newTestEngine(t, fixedClock())

	properties.Property("applying the same $set twice equals applying it once", prop.ForAll(
		func(field string, value int, label string) bool {
			doc, err := engine.Insert("docs", domain.Document{"seed": value})
			if err != nil {
				return false
			}
			q := domain.Document{"_id": doc.ID()}
			update := domain.Document{"$set": domain.Document{"f" + field: value, "nested.label": label}}

			if _, err := engine.Update("docs", q, update, nil); err != nil {
				return false
			}
			once, err := engine.FindOne("docs", q)
			if err != nil {
				return false
			}
			if _, err := engine.Update("docs", q, update, nil); err != nil {
				return false
			}
			twice, err := engine.FindOne("docs", q)
			if err != nil {
				return false
			}
			return cmp.Diff(once, twice) == ""
		},
		gen.Identifier(),
		gen.Int(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestProperty_PaginationSlicesSortedResults(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	engine := newTestEngine(t)
	_, err := engine.InsertMany("people", docsFrom([]int{5, 3, 9, 3, 7, 1, 9, 0, 4, 6, 2, 8}, []string{"e", "c", "i"}))
	require.NoError(t, err)

	properties.Property("skip and limit select a window of the full sorted result", prop.ForAll(
		func(skip, limit int, descending bool) bool {
			sort := []domain.SortField{domain.Asc("age")}
			if descending {
				sort = []domain.SortField{domain.Desc("age")}
			}
			all, err := engine.Find("people", nil, &domain.FindOptions{Sort: sort})
			if err != nil {
				return false
			}
			page, err := engine.Find("people", nil, &domain.FindOptions{Sort: sort, Skip: skip, Limit: limit})
			if err != nil {
				return false
			}

			end := len(all)
			if skip > end {
				skip = end
			}
			if limit > 0 && skip+limit < end {
				end = skip + limit
			}
			return cmp.Diff(all[skip:end], page) == ""
		},
		gen.IntRange(0, 15),
		gen.IntRange(0, 15),
		gen.Bool(),
	))

	properties.Property("sorted results are ordered and count matches find", prop.ForAll(
		func(min int) bool {
			q := domain.Document{"age": domain.Document{"$gte": min}}
			docs, err := engine.Find("people", q, &domain.FindOptions{Sort: []domain.SortField{domain.Asc("age")}})
			if err != nil {
				return false
			}
			for i := 1; i < len(docs); i++ {
				if domain.Compare(docs[i-1]["age"], docs[i]["age"]) > 0 {
					return false
				}
			}
			count, err := engine.Count("people", q)
			return err == nil && count == len(docs)
		},
		gen.IntRange(-2, 12),
	))

	properties.TestingRun(t)
}

func TestProperty_UniqueIndexNeverHoldsDuplicates(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30
	properties := gopter.NewProperties(parameters)

	properties.Property("a unique index admits each key at most once", prop.ForAll(
		func(keys []int) bool {
			engine := openEngine(t, t.TempDir())
			defer engine.Disconnect()
			if _, err := engine.CreateIndex("users", []string{"k"}, domain.IndexOptions{Unique: true}); err != nil {
				return false
			}

			distinct := make(map[int]bool)
			for _, k := range keys {
				_, err := engine.Insert("users", domain.Document{"k": k})
				if distinct[k] != (err != nil) {
					return false
				}
				distinct[k] = true
			}
			count, err := engine.Count("users", nil)
			return err == nil && count == len(distinct)
		},
		gen.SliceOf(gen.IntRange(0, 10)),
	))

	properties.TestingRun(t)
}
