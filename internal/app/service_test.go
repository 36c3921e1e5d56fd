package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"launchpad/internal/ordering"
	"launchpad/internal/store"
	"launchpad/internal/view"
)

type memoryStore struct {
	mu      sync.Mutex
	doc     *store.AppDocument
	loadErr error
	saveErr error
	saves   int
	notes   []string
}

func newMemoryStore(doc *store.AppDocument) *memoryStore {
	if doc != nil {
		clone := doc.Clone()
		doc = &clone
	}
	return &memoryStore{doc: doc}
}

func (m *memoryStore) Load(ctx context.Context) (store.AppDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return store.AppDocument{}, m.loadErr
	}
	if m.doc == nil {
		return store.AppDocument{}, fmt.Errorf("%w: nothing saved", store.ErrStoreUnavailable)
	}
	return m.doc.Clone(), nil
}

func (m *memoryStore) Save(ctx context.Context, doc store.AppDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	clone := doc.Clone()
	m.doc = &clone
	m.saves++
	m.notes = append(m.notes, store.ChangeNote(ctx))
	return nil
}

func (m *memoryStore) saved() store.AppDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return store.AppDocument{}
	}
	return m.doc.Clone()
}

func intPtr(v int) *int { return &v }

func mustCategory(t *testing.T, svc *Service, name string) store.Category {
	t.Helper()
	category, _, err := svc.UpsertCategory(context.Background(), CategoryInput{Name: name})
	if err != nil {
		t.Fatalf("UpsertCategory(%q) error = %v", name, err)
	}
	return category
}

func mustItem(t *testing.T, svc *Service, categoryID string, input ItemInput) store.Item {
	t.Helper()
	item, _, err := svc.UpsertItem(context.Background(), categoryID, input)
	if err != nil {
		t.Fatalf("UpsertItem(%q) error = %v", input.Label, err)
	}
	return item
}

func assertDense(t *testing.T, doc store.AppDocument) {
	t.Helper()
	if !ordering.Dense(doc.Categories) {
		t.Fatalf("category order not dense: %+v", doc.Categories)
	}
	for id, items := range doc.Commands {
		if !ordering.Dense(items) {
			t.Fatalf("item order of %s not dense: %+v", id, items)
		}
	}
}

func orderOf(t *testing.T, items []store.Item, id string) int {
	t.Helper()
	idx := store.ItemIndex(items, id)
	if idx < 0 {
		t.Fatalf("item %s not found", id)
	}
	return *items[idx].Order
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	docs := newMemoryStore(nil)
	svc := New(docs, Options{})

	shell, _, err := svc.UpsertCategory(ctx, CategoryInput{Name: "Shell", Icon: "$"})
	if err != nil {
		t.Fatalf("UpsertCategory() error = %v", err)
	}
	if shell.Order == nil || *shell.Order != 0 {
		t.Fatalf("expected category order 0, got %v", shell.Order)
	}

	first := mustItem(t, svc, shell.ID, ItemInput{Label: "List files", Kind: "simple", Body: "ls -la"})
	if *first.Order != 0 {
		t.Fatalf("expected first item order 0, got %d", *first.Order)
	}
	second := mustItem(t, svc, shell.ID, ItemInput{Label: "Go home", Kind: "simple", Body: "cd ~"})
	if *second.Order != 1 {
		t.Fatalf("expected second item order 1, got %d", *second.Order)
	}

	moved, doc, err := svc.Reorder(ctx, ReorderInput{List: ListItems, CategoryID: shell.ID, Index: 1, Direction: "up"})
	if err != nil {
		t.Fatalf("Reorder() error = %v", err)
	}
	if !moved {
		t.Fatalf("expected reorder to move the item")
	}
	items := doc.Commands[shell.ID]
	if got := orderOf(t, items, first.ID); got != 1 {
		t.Fatalf("expected %s at order 1, got %d", first.Label, got)
	}
	if got := orderOf(t, items, second.ID); got != 0 {
		t.Fatalf("expected %s at order 0, got %d", second.Label, got)
	}
	if items[store.ItemIndex(items, first.ID)].Label != "List files" {
		t.Fatalf("reorder changed a label: %+v", items)
	}

	doc, err = svc.DeleteItem(ctx, shell.ID, first.ID)
	if err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	remaining := doc.Commands[shell.ID]
	if len(remaining) != 1 || remaining[0].ID != second.ID || *remaining[0].Order != 0 {
		t.Fatalf("expected one item at order 0, got %+v", remaining)
	}
	if diff := cmp.Diff(doc, docs.saved()); diff != "" {
		t.Fatalf("returned document differs from stored (-returned +stored):\n%s", diff)
	}
}

func TestMutationsKeepOrderDense(t *testing.T) {
	ctx := context.Background()
	svc := New(newMemoryStore(nil), Options{})

	var categories []store.Category
	for _, name := range []string{"Shell", "Git", "Docker", "Kubernetes"} {
		categories = append(categories, mustCategory(t, svc, name))
	}
	for i := 0; i < 5; i++ {
		mustItem(t, svc, categories[1].ID, ItemInput{Label: fmt.Sprintf("cmd %d", i), Body: "echo"})
	}
	git, _ := svc.Items(ctx, categories[1].ID, "")

	steps := []func() (store.AppDocument, error){
		func() (store.AppDocument, error) { return svc.DeleteCategory(ctx, categories[0].ID) },
		func() (store.AppDocument, error) { return svc.DeleteItem(ctx, categories[1].ID, git[2].ID) },
		func() (store.AppDocument, error) {
			_, doc, err := svc.DuplicateCategory(ctx, categories[1].ID)
			return doc, err
		},
		func() (store.AppDocument, error) {
			_, doc, err := svc.DuplicateItem(ctx, categories[1].ID, git[0].ID)
			return doc, err
		},
		func() (store.AppDocument, error) {
			_, doc, err := svc.Reorder(ctx, ReorderInput{List: ListCategories, Index: 0, Direction: "down"})
			return doc, err
		},
		func() (store.AppDocument, error) { return svc.DeleteItem(ctx, categories[1].ID, git[4].ID) },
	}
	for i, step := range steps {
		doc, err := step()
		if err != nil {
			t.Fatalf("step %d error = %v", i, err)
		}
		assertDense(t, doc)
	}
}

func TestLoadNormalizedBackfillsOnceAndPersists(t *testing.T) {
	ctx := context.Background()
	docs := newMemoryStore(&store.AppDocument{
		Categories: []store.Category{
			{ID: "b", Name: "B"},
			{ID: "a", Name: "A", Order: intPtr(7)},
		},
		Commands: map[string][]store.Item{
			"a": {
				{ID: "x", Label: "X", Kind: store.KindSimple},
				{ID: "y", Label: "Y", Kind: store.KindSimple},
			},
		},
	})
	svc := New(docs, Options{})

	first, err := svc.LoadNormalized(ctx)
	if err != nil {
		t.Fatalf("LoadNormalized() error = %v", err)
	}
	assertDense(t, first)
	if _, ok := first.Commands["b"]; !ok {
		t.Fatalf("expected an item list for category b")
	}
	if docs.saves != 1 || docs.notes[0] != "Backfill order" {
		t.Fatalf("expected one backfill save, got %d %v", docs.saves, docs.notes)
	}

	second, err := svc.LoadNormalized(ctx)
	if err != nil {
		t.Fatalf("LoadNormalized() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("backfill is not idempotent (-first +second):\n%s", diff)
	}
	if docs.saves != 1 {
		t.Fatalf("expected no save for a normalized document, got %d saves", docs.saves)
	}
}

func TestDeleteCategoryCascades(t *testing.T) {
	ctx := context.Background()
	svc := New(newMemoryStore(nil), Options{})
	shell := mustCategory(t, svc, "Shell")
	git := mustCategory(t, svc, "Git")
	item := mustItem(t, svc, shell.ID, ItemInput{Label: "ls", Body: "ls", IsFavorite: true})
	mustItem(t, svc, git.ID, ItemInput{Label: "status", Body: "git status"})

	doc, err := svc.DeleteCategory(ctx, shell.ID)
	if err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	if _, ok := doc.Commands[shell.ID]; ok {
		t.Fatalf("expected item list to be removed with its category")
	}
	if len(doc.Categories) != 1 || *doc.Categories[0].Order != 0 {
		t.Fatalf("expected remaining category compacted to order 0, got %+v", doc.Categories)
	}
	if favorites := view.Favorites(doc); len(favorites) != 0 {
		t.Fatalf("deleted favorite still visible: %+v", favorites)
	}
	if _, _, err := svc.ToggleFavorite(ctx, item.ID); !isCode(err, CodeNotFound) {
		t.Fatalf("expected NOT_FOUND toggling a deleted item, got %v", err)
	}
	if _, err := svc.DeleteCategory(ctx, shell.ID); !isCode(err, CodeNotFound) {
		t.Fatalf("expected NOT_FOUND deleting twice, got %v", err)
	}
}

func TestDuplicatesAreIndependent(t *testing.T) {
	ctx := context.Background()
	svc := New(newMemoryStore(nil), Options{})
	shell := mustCategory(t, svc, "Shell")
	mustItem(t, svc, shell.ID, ItemInput{Label: "ssh", Kind: "variables", Body: "ssh {user}@{host}",
		Variables: []store.Variable{{Name: "user"}, {Name: "host"}}})
	mustItem(t, svc, shell.ID, ItemInput{Label: "deploy", Kind: "workflow", Steps: []string{"build", "push"}})

	copied, doc, err := svc.DuplicateCategory(ctx, shell.ID)
	if err != nil {
		t.Fatalf("DuplicateCategory() error = %v", err)
	}
	if copied.ID == shell.ID || copied.Name != "Shell (Copy)" || *copied.Order != 1 {
		t.Fatalf("unexpected copy %+v", copied)
	}
	source, clones := doc.Commands[shell.ID], doc.Commands[copied.ID]
	if len(clones) != len(source) {
		t.Fatalf("expected %d cloned items, got %d", len(source), len(clones))
	}
	for i := range clones {
		if clones[i].ID == source[i].ID {
			t.Fatalf("clone %d reuses id %s", i, clones[i].ID)
		}
		if *clones[i].Order != i {
			t.Fatalf("clone %d has order %d", i, *clones[i].Order)
		}
	}

	edited := source[0]
	_, doc, err = svc.UpsertItem(ctx, shell.ID, ItemInput{ID: edited.ID, Label: "ssh root", Kind: "variables",
		Body: "ssh root@{host}", Variables: []store.Variable{{Name: "host"}}})
	if err != nil {
		t.Fatalf("UpsertItem() error = %v", err)
	}
	clone := doc.Commands[copied.ID][0]
	if clone.Label != "ssh" || len(clone.Variables) != 2 {
		t.Fatalf("editing the source changed the copy: %+v", clone)
	}

	dup, doc, err := svc.DuplicateItem(ctx, shell.ID, edited.ID)
	if err != nil {
		t.Fatalf("DuplicateItem() error = %v", err)
	}
	if dup.Label != "ssh root (Copy)" || *dup.Order != 2 || dup.ID == edited.ID {
		t.Fatalf("unexpected duplicated item %+v", dup)
	}
	assertDense(t, doc)
}

func TestReorderAtBoundaryDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	docs := newMemoryStore(nil)
	svc := New(docs, Options{})
	shell := mustCategory(t, svc, "Shell")
	mustItem(t, svc, shell.ID, ItemInput{Label: "a", Body: "a"})
	mustItem(t, svc, shell.ID, ItemInput{Label: "b", Body: "b"})
	before := docs.saves

	cases := []ReorderInput{
		{List: ListItems, CategoryID: shell.ID, Index: 0, Direction: "up"},
		{List: ListItems, CategoryID: shell.ID, Index: 1, Direction: "down"},
		{List: ListCategories, Index: 0, Direction: "up"},
	}
	for _, tc := range cases {
		moved, _, err := svc.Reorder(ctx, tc)
		if err != nil {
			t.Fatalf("Reorder(%+v) error = %v", tc, err)
		}
		if moved {
			t.Fatalf("Reorder(%+v) reported a move", tc)
		}
	}
	if docs.saves != before {
		t.Fatalf("boundary reorder wrote %d times", docs.saves-before)
	}

	if _, _, err := svc.Reorder(ctx, ReorderInput{List: ListItems, CategoryID: shell.ID, Index: 5, Direction: "up"}); !isCode(err, CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for out of range index, got %v", err)
	}
	if _, _, err := svc.Reorder(ctx, ReorderInput{List: ListItems, CategoryID: shell.ID, Index: 0, Direction: "sideways"}); !isCode(err, CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for bad direction, got %v", err)
	}
	if _, _, err := svc.Reorder(ctx, ReorderInput{List: ListItems, CategoryID: "missing", Index: 0, Direction: "up"}); !isCode(err, CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for unknown category, got %v", err)
	}
}

func TestUpsertItemValidation(t *testing.T) {
	ctx := context.Background()
	docs := newMemoryStore(nil)
	svc := New(docs, Options{})
	shell := mustCategory(t, svc, "Shell")
	before := docs.saves

	cases := []struct {
		name       string
		categoryID string
		input      ItemInput
	}{
		{"empty label", shell.ID, ItemInput{Label: "  ", Body: "ls"}},
		{"unknown category", "nope", ItemInput{Label: "ls", Body: "ls"}},
		{"unknown kind", shell.ID, ItemInput{Label: "ls", Kind: "macro"}},
		{"duplicate variables", shell.ID, ItemInput{Label: "ssh", Kind: "variables", Body: "ssh {host}",
			Variables: []store.Variable{{Name: "host"}, {Name: "{host}"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := svc.UpsertItem(ctx, tc.categoryID, tc.input)
			if !isCode(err, CodeValidation) {
				t.Fatalf("expected VALIDATION_ERROR, got %v", err)
			}
		})
	}
	if docs.saves != before {
		t.Fatalf("rejected input was saved")
	}

	if _, _, err := svc.UpsertCategory(ctx, CategoryInput{Name: ""}); !isCode(err, CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for empty category name, got %v", err)
	}
	if _, _, err := svc.UpsertCategory(ctx, CategoryInput{ID: view.FavoritesID, Name: "Mine"}); !isCode(err, CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for reserved id, got %v", err)
	}
}

func TestUpsertItemDropsBlankEntries(t *testing.T) {
	ctx := context.Background()
	svc := New(newMemoryStore(nil), Options{})
	shell := mustCategory(t, svc, "Shell")

	flow, _, err := svc.UpsertItem(ctx, shell.ID, ItemInput{Label: "deploy", Kind: "workflow", Steps: []string{"", " "}})
	if err != nil {
		t.Fatalf("UpsertItem(workflow) error = %v", err)
	}
	if flow.Kind != store.KindWorkflow || len(flow.Steps) != 0 {
		t.Fatalf("expected an empty workflow, got %+v", flow)
	}

	plain, _, err := svc.UpsertItem(ctx, shell.ID, ItemInput{Label: "ssh", Kind: "variables", Body: "ssh {host}",
		Variables: []store.Variable{{Name: " "}}})
	if err != nil {
		t.Fatalf("UpsertItem(variables) error = %v", err)
	}
	if plain.Kind != store.KindSimple || plain.Variables != nil || plain.Body != "ssh {host}" {
		t.Fatalf("expected a simple command, got %+v", plain)
	}
}

func TestReplaceDocumentAcceptsEmptyWorkflows(t *testing.T) {
	ctx := context.Background()
	docs := newMemoryStore(nil)
	svc := New(docs, Options{})

	raw := `{
	  "categories": [{"id": "ops-1700000000000", "name": "Ops", "icon": "🛠", "order": 0}],
	  "commands": {
	    "ops-1700000000000": [
	      {"id": "w1", "label": "Release", "command": "", "type": "workflow", "isFavorite": false, "steps": [], "order": 0},
	      {"id": "c1", "label": "Uptime", "command": "uptime", "type": "command", "isFavorite": true, "variables": [], "order": 1}
	    ]
	  }
	}`
	doc, err := store.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	saved, err := svc.ReplaceDocument(ctx, doc)
	if err != nil {
		t.Fatalf("ReplaceDocument() error = %v", err)
	}
	items := saved.Commands["ops-1700000000000"]
	if len(items) != 2 || items[0].Kind != store.KindWorkflow || items[1].Kind != store.KindSimple {
		t.Fatalf("unexpected items %+v", items)
	}
	if docs.saves != 1 {
		t.Fatalf("expected the document to be saved once, got %d", docs.saves)
	}
}

func TestUpsertItemEditPreservesOrderAndFavorite(t *testing.T) {
	ctx := context.Background()
	svc := New(newMemoryStore(nil), Options{})
	shell := mustCategory(t, svc, "Shell")
	mustItem(t, svc, shell.ID, ItemInput{Label: "first", Body: "a"})
	item := mustItem(t, svc, shell.ID, ItemInput{Label: "ssh", Kind: "variables", Body: "ssh {host}",
		Variables: []store.Variable{{Name: "{host}"}}, IsFavorite: true})

	edited, _, err := svc.UpsertItem(ctx, shell.ID, ItemInput{ID: item.ID, Label: "deploy", Kind: "workflow",
		Body: "ignored", Variables: []store.Variable{{Name: "x"}}, Steps: []string{"build", "", "ship"}})
	if err != nil {
		t.Fatalf("UpsertItem() error = %v", err)
	}
	if *edited.Order != 1 || !edited.IsFavorite {
		t.Fatalf("edit lost order or favorite: %+v", edited)
	}
	if edited.Body != "" || edited.Variables != nil {
		t.Fatalf("fields of the old kind survived: %+v", edited)
	}
	if diff := cmp.Diff([]string{"build", "ship"}, edited.Steps); diff != "" {
		t.Fatalf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderItemSubstitutesVariables(t *testing.T) {
	ctx := context.Background()
	svc := New(newMemoryStore(nil), Options{})
	shell := mustCategory(t, svc, "Shell")
	item := mustItem(t, svc, shell.ID, ItemInput{Label: "ssh", Kind: "variables", Body: "ssh {user}@{host} # {user}",
		Variables: []store.Variable{{Name: "user"}, {Name: "host"}}})

	got, err := svc.RenderItem(ctx, shell.ID, item.ID, map[string]string{"user": "root", "host": "10.0.0.1"})
	if err != nil {
		t.Fatalf("RenderItem() error = %v", err)
	}
	if got != "ssh root@10.0.0.1 # root" {
		t.Fatalf("unexpected render %q", got)
	}

	got, _ = svc.RenderItem(ctx, shell.ID, item.ID, map[string]string{"host": "db"})
	if got != "ssh @db # " {
		t.Fatalf("unmapped variable should render empty, got %q", got)
	}
}

func TestWorkflowStepCycles(t *testing.T) {
	ctx := context.Background()
	svc := New(newMemoryStore(nil), Options{})
	ops := mustCategory(t, svc, "Ops")
	flow := mustItem(t, svc, ops.ID, ItemInput{Label: "release", Kind: "workflow", Steps: []string{"tag", "push"}})
	plain := mustItem(t, svc, ops.ID, ItemInput{Label: "ls", Body: "ls"})

	text, next, err := svc.WorkflowStep(ctx, ops.ID, flow.ID, 1)
	if err != nil {
		t.Fatalf("WorkflowStep() error = %v", err)
	}
	if text != "push" || next != 0 {
		t.Fatalf("expected push then 0, got %q %d", text, next)
	}
	if _, _, err := svc.WorkflowStep(ctx, ops.ID, flow.ID, 2); !isCode(err, CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR out of range, got %v", err)
	}
	if _, _, err := svc.WorkflowStep(ctx, ops.ID, plain.ID, 0); !isCode(err, CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for a simple item, got %v", err)
	}
}

func TestFavoritesSortedByLabel(t *testing.T) {
	ctx := context.Background()
	svc := New(newMemoryStore(nil), Options{})
	first := mustCategory(t, svc, "First")
	second := mustCategory(t, svc, "Second")
	b := mustItem(t, svc, first.ID, ItemInput{Label: "B", Body: "b"})
	a := mustItem(t, svc, second.ID, ItemInput{Label: "A", Body: "a"})
	mustItem(t, svc, second.ID, ItemInput{Label: "C", Body: "c"})

	for _, id := range []string{b.ID, a.ID} {
		if _, _, err := svc.ToggleFavorite(ctx, id); err != nil {
			t.Fatalf("ToggleFavorite(%s) error = %v", id, err)
		}
	}
	favorites, err := svc.Items(ctx, view.FavoritesID, "")
	if err != nil {
		t.Fatalf("Items(favorites) error = %v", err)
	}
	var labels []string
	for _, item := range favorites {
		labels = append(labels, item.Label)
	}
	if diff := cmp.Diff([]string{"A", "B"}, labels); diff != "" {
		t.Fatalf("favorites mismatch (-want +got):\n%s", diff)
	}

	toggled, _, err := svc.ToggleFavorite(ctx, a.ID)
	if err != nil || toggled.IsFavorite {
		t.Fatalf("expected second toggle to clear favorite, got %+v %v", toggled, err)
	}

	categories, err := svc.Categories(ctx, "")
	if err != nil {
		t.Fatalf("Categories() error = %v", err)
	}
	if categories[0].ID != view.FavoritesID || len(categories) != 3 {
		t.Fatalf("expected favorites first then 2 categories, got %+v", categories)
	}
}

func TestStoreFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("write failure", func(t *testing.T) {
		docs := newMemoryStore(nil)
		docs.saveErr = fmt.Errorf("%w: disk full", store.ErrStoreWrite)
		svc := New(docs, Options{})
		_, _, err := svc.UpsertCategory(ctx, CategoryInput{Name: "Shell"})
		if !errors.Is(err, store.ErrStoreWrite) {
			t.Fatalf("expected ErrStoreWrite, got %v", err)
		}
		status, code, _, _ := mapError(err)
		if status != http.StatusServiceUnavailable || code != CodeStoreWriteFailed {
			t.Fatalf("unexpected mapping %d %s", status, code)
		}
	})

	t.Run("corrupt document", func(t *testing.T) {
		docs := newMemoryStore(nil)
		docs.loadErr = fmt.Errorf("%w: unexpected EOF", store.ErrCorruptDocument)
		svc := New(docs, Options{})
		if _, err := svc.LoadNormalized(ctx); !isCode(err, CodeDocumentCorrupt) {
			t.Fatalf("expected DOCUMENT_CORRUPT, got %v", err)
		}
		if _, _, err := svc.UpsertCategory(ctx, CategoryInput{Name: "Shell"}); !errors.Is(err, store.ErrCorruptDocument) {
			t.Fatalf("expected mutation to refuse a corrupt document, got %v", err)
		}
		if docs.saves != 0 {
			t.Fatalf("corrupt document was overwritten")
		}
	})

	t.Run("read failure keeps stored data", func(t *testing.T) {
		docs := newMemoryStore(nil)
		docs.loadErr = fmt.Errorf("%w: connection refused", store.ErrStoreRead)
		svc := New(docs, Options{})
		if _, err := svc.LoadNormalized(ctx); !isCode(err, CodeStoreReadFailed) {
			t.Fatalf("expected STORE_READ_FAILED, got %v", err)
		}
		_, _, err := svc.UpsertCategory(ctx, CategoryInput{Name: "Shell"})
		status, code, _, _ := mapError(err)
		if status != http.StatusServiceUnavailable || code != CodeStoreReadFailed {
			t.Fatalf("unexpected mapping %d %s", status, code)
		}
		if docs.saves != 0 {
			t.Fatalf("document was saved after a failed read")
		}
	})

	t.Run("unavailable store starts empty", func(t *testing.T) {
		svc := New(newMemoryStore(nil), Options{})
		doc, err := svc.LoadNormalized(ctx)
		if err != nil {
			t.Fatalf("LoadNormalized() error = %v", err)
		}
		if len(doc.Categories) != 0 || len(doc.Commands) != 0 {
			t.Fatalf("expected an empty document, got %+v", doc)
		}
	})
}

func TestHistoryUnsupported(t *testing.T) {
	svc := New(newMemoryStore(nil), Options{})
	if _, err := svc.History(context.Background(), 10); !isCode(err, CodeHistoryUnsupported) {
		t.Fatalf("expected HISTORY_UNSUPPORTED, got %v", err)
	}
}

func TestReplaceDocumentNormalizes(t *testing.T) {
	ctx := context.Background()
	docs := newMemoryStore(nil)
	svc := New(docs, Options{})

	saved, err := svc.ReplaceDocument(ctx, store.AppDocument{
		Categories: []store.Category{{ID: "shell", Name: " Shell "}},
		Commands: map[string][]store.Item{
			"shell": {
				{Label: "ls", Kind: store.KindSimple, Body: "ls", Order: intPtr(4)},
				{ID: "cmd-2", Label: "pwd", Kind: store.KindSimple, Body: "pwd", Order: intPtr(9)},
			},
		},
	})
	if err != nil {
		t.Fatalf("ReplaceDocument() error = %v", err)
	}
	assertDense(t, saved)
	items := saved.Commands["shell"]
	if items[0].ID == "" || saved.Categories[0].Name != "Shell" {
		t.Fatalf("document not normalized: %+v", saved)
	}

	_, err = svc.ReplaceDocument(ctx, store.AppDocument{
		Categories: []store.Category{{ID: "a", Name: "A"}, {ID: "a", Name: "Again"}},
	})
	if !isCode(err, CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for duplicate ids, got %v", err)
	}
	if docs.saves != 1 {
		t.Fatalf("invalid document was saved")
	}
}

func TestConcurrentMutationsAreSerialized(t *testing.T) {
	ctx := context.Background()
	docs := newMemoryStore(nil)
	svc := New(docs, Options{})
	shell := mustCategory(t, svc, "Shell")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, _, err := svc.UpsertItem(ctx, shell.ID, ItemInput{Label: fmt.Sprintf("cmd %d", i), Body: "true"}); err != nil {
				t.Errorf("UpsertItem() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	doc := docs.saved()
	if len(doc.Commands[shell.ID]) != 20 {
		t.Fatalf("expected 20 items, got %d", len(doc.Commands[shell.ID]))
	}
	assertDense(t, doc)
}

func isCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}
