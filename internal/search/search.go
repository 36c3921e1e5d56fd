package search

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"launchpad/internal/ordering"
	"launchpad/internal/store"
)

// Result is a single search hit returned to the caller.
type Result struct {
	CategoryID   string     `json:"categoryId"`
	CategoryName string     `json:"categoryName"`
	ItemID       string     `json:"itemId"`
	Label        string     `json:"label"`
	Kind         store.Kind `json:"kind"`
	Snippet      string     `json:"snippet"`
	IsFavorite   bool       `json:"isFavorite"`
}

// Response is the envelope returned by the search endpoint. Source is
// "index" when Meilisearch answered and "local" otherwise.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Source  string   `json:"source"`
}

// ItemRef names one item of the document.
type ItemRef struct {
	CategoryID string
	ItemID     string
}

// Searcher can execute a full-text search over indexed items.
type Searcher interface {
	Search(text string, limit int) ([]ItemRef, error)
	Healthy() bool
}

// ItemRecord is the data we index for an item.
type ItemRecord struct {
	ID           string `json:"id"`
	CategoryID   string `json:"categoryId"`
	CategoryName string `json:"categoryName"`
	ItemID       string `json:"itemId"`
	Label        string `json:"label"`
	Body         string `json:"body"`
	Kind         string `json:"kind"`
}

// RecordKey is the index primary key of an item. Item ids are only unique
// within their category, so the key covers both.
func RecordKey(categoryID, itemID string) string {
	sum := sha1.Sum([]byte(categoryID + "\x00" + itemID))
	return hex.EncodeToString(sum[:])
}

// Records flattens the document into index records in display order.
func Records(doc store.AppDocument) []ItemRecord {
	var records []ItemRecord
	walk(doc, func(c store.Category, item store.Item) {
		records = append(records, ItemRecord{
			ID:           RecordKey(c.ID, item.ID),
			CategoryID:   c.ID,
			CategoryName: c.Name,
			ItemID:       item.ID,
			Label:        item.Label,
			Body:         searchableBody(item),
			Kind:         string(item.Kind),
		})
	})
	return records
}

func walk(doc store.AppDocument, fn func(store.Category, store.Item)) {
	for _, c := range ordering.Sorted(doc.Categories) {
		for _, item := range ordering.Sorted(doc.Commands[c.ID]) {
			fn(c, item)
		}
	}
}

func searchableBody(item store.Item) string {
	if item.Kind == store.KindWorkflow {
		return strings.Join(item.Steps, "\n")
	}
	return item.Body
}

func toResult(c store.Category, item store.Item) Result {
	return Result{
		CategoryID:   c.ID,
		CategoryName: c.Name,
		ItemID:       item.ID,
		Label:        item.Label,
		Kind:         item.Kind,
		Snippet:      snippet(searchableBody(item)),
		IsFavorite:   item.IsFavorite,
	}
}

func snippet(body string) string {
	const max = 120
	line, _, _ := strings.Cut(body, "\n")
	runes := []rune(line)
	if len(runes) > max {
		return string(runes[:max]) + "…"
	}
	return line
}
