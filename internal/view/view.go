// Package view derives read-only projections of a launchpad document. Nothing
// here changes stored order or writes back to the document.
package view

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"launchpad/internal/ordering"
	"launchpad/internal/store"
)

// FavoritesID addresses the favorites pseudo-category. It is never persisted.
const FavoritesID = "favorites"

var (
	ErrNotWorkflow     = errors.New("item is not a workflow")
	ErrStepOutOfRange  = errors.New("workflow step out of range")
	ErrUnknownCategory = errors.New("unknown category")
)

func FavoritesCategory() store.Category {
	c := store.Category{ID: FavoritesID, Name: "Favorites", Icon: "⭐"}
	c.SetOrder(-1)
	return c
}

// Categories lists the favorites pseudo-category followed by the stored
// categories in display order.
func Categories(doc store.AppDocument) []store.Category {
	sorted := ordering.Sorted(doc.Categories)
	out := make([]store.Category, 0, len(sorted)+1)
	out = append(out, FavoritesCategory())
	return append(out, sorted...)
}

// Items lists one category's items in display order.
func Items(doc store.AppDocument, categoryID string) []store.Item {
	return ordering.Sorted(doc.Commands[categoryID])
}

// Select resolves a sidebar selection, which may be the favorites id.
func Select(doc store.AppDocument, categoryID string) ([]store.Item, error) {
	if categoryID == FavoritesID {
		return Favorites(doc), nil
	}
	if doc.CategoryIndex(categoryID) < 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, categoryID)
	}
	return Items(doc, categoryID), nil
}

// Favorites aggregates favorite items of every list, sorted by label with a
// byte-wise comparison. Equal labels keep category then item display order.
func Favorites(doc store.AppDocument) []store.Item {
	var out []store.Item
	for _, categoryID := range ListOrder(doc) {
		for _, item := range Items(doc, categoryID) {
			if item.IsFavorite {
				out = append(out, item)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Label < out[j].Label
	})
	return out
}

// ListOrder returns list keys for categories in display order, then orphan
// lists sorted by key.
func ListOrder(doc store.AppDocument) []string {
	keys := make([]string, 0, len(doc.Commands))
	known := make(map[string]struct{}, len(doc.Categories))
	for _, c := range ordering.Sorted(doc.Categories) {
		known[c.ID] = struct{}{}
		keys = append(keys, c.ID)
	}
	var orphans []string
	for id := range doc.Commands {
		if _, ok := known[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	sort.Strings(orphans)
	return append(keys, orphans...)
}

// FilterByText keeps items whose label or body contains query, ignoring case.
func FilterByText(items []store.Item, query string) []store.Item {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return items
	}
	out := make([]store.Item, 0, len(items))
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.Label), query) || strings.Contains(strings.ToLower(item.Body), query) {
			out = append(out, item)
		}
	}
	return out
}

func FilterCategories(categories []store.Category, query string) []store.Category {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return categories
	}
	out := make([]store.Category, 0, len(categories))
	for _, c := range categories {
		if strings.Contains(strings.ToLower(c.Name), query) {
			out = append(out, c)
		}
	}
	return out
}

// RenderTemplate returns the text to copy for item. Variables items have every
// {name} of a declared variable replaced, unmapped names by "".
func RenderTemplate(item store.Item, values map[string]string) string {
	switch item.Kind {
	case store.KindVariables:
		pairs := make([]string, 0, 2*len(item.Variables))
		for _, v := range item.Variables {
			pairs = append(pairs, "{"+v.Name+"}", values[v.Name])
		}
		return strings.NewReplacer(pairs...).Replace(item.Body)
	case store.KindWorkflow:
		if len(item.Steps) == 0 {
			return ""
		}
		return item.Steps[0]
	default:
		return item.Body
	}
}

// WorkflowStep returns step n and the step that follows it, wrapping to 0.
func WorkflowStep(item store.Item, n int) (string, int, error) {
	if item.Kind != store.KindWorkflow {
		return "", 0, fmt.Errorf("%w: %s", ErrNotWorkflow, item.ID)
	}
	if n < 0 || n >= len(item.Steps) {
		return "", 0, fmt.Errorf("%w: %d of %d", ErrStepOutOfRange, n, len(item.Steps))
	}
	return item.Steps[n], (n + 1) % len(item.Steps), nil
}
