package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"launchpad/internal/export"
	"launchpad/internal/gitrepo"
	"launchpad/internal/ordering"
	"launchpad/internal/search"
	"launchpad/internal/store"
	"launchpad/internal/util"
	"launchpad/internal/view"
)

const copySuffix = " (Copy)"

// List names accepted by Reorder.
const (
	ListCategories = "categories"
	ListItems      = "items"
)

type CategoryInput struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

type ItemInput struct {
	ID         string           `json:"id"`
	Label      string           `json:"label"`
	Kind       string           `json:"kind"`
	Body       string           `json:"body"`
	Variables  []store.Variable `json:"variables"`
	Steps      []string         `json:"steps"`
	IsFavorite bool             `json:"isFavorite"`
}

type ReorderInput struct {
	List       string `json:"list"`
	CategoryID string `json:"categoryId"`
	Index      int    `json:"index"`
	Direction  string `json:"direction"`
}

type Options struct {
	Logger  *zap.Logger
	Search  *search.Service
	Export  *export.Service
	Metrics *Metrics
}

// Service is the only writer of the document. Every mutation is one load,
// one transform and at most one save, serialised within the process. Other
// processes sharing the store are not coordinated: the last save wins.
type Service struct {
	store   store.DocumentStore
	logger  *zap.Logger
	search  *search.Service
	export  *export.Service
	metrics *Metrics
	mu      sync.Mutex
}

func New(docs store.DocumentStore, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	searchSvc := opts.Search
	if searchSvc == nil {
		searchSvc = search.NewService(nil, logger)
	}
	exportSvc := opts.Export
	if exportSvc == nil {
		exportSvc = export.NewService("")
	}
	return &Service{
		store:   docs,
		logger:  logger,
		search:  searchSvc,
		export:  exportSvc,
		metrics: opts.Metrics,
	}
}

// errNoChange aborts a mutation that turned out to be a no-op. Nothing is
// saved and the caller sees success.
var errNoChange = errors.New("no change")

// Ping checks the backend when it has a remote to reach.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.store.(store.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *Service) SearchHealthy() bool {
	return s.search.Healthy()
}

// WarmSearch pushes the current document into the search index.
func (s *Service) WarmSearch(ctx context.Context) error {
	doc, err := s.LoadNormalized(ctx)
	if err != nil {
		return err
	}
	s.search.Refresh(doc)
	return nil
}

// LoadNormalized returns the current document with every order backfilled.
// A repaired document is saved straight away.
func (s *Service) LoadNormalized(ctx context.Context) (doc store.AppDocument, err error) {
	defer func(started time.Time) { s.metrics.observe("load", started, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, changed, err := s.load(ctx)
	if err != nil {
		return store.AppDocument{}, err
	}
	if changed {
		if err := s.save(store.WithChangeNote(ctx, "Backfill order"), doc); err != nil {
			return store.AppDocument{}, err
		}
	}
	return doc, nil
}

// load reads the document and repairs it in memory. The caller holds mu.
func (s *Service) load(ctx context.Context) (store.AppDocument, bool, error) {
	doc, err := s.store.Load(ctx)
	if errors.Is(err, store.ErrStoreUnavailable) {
		s.logger.Warn("document store unavailable, starting from an empty document", zap.Error(err))
		doc, err = store.NewDocument(), nil
	}
	if err != nil {
		return store.AppDocument{}, false, asDomainError(err)
	}
	changed := normalize(&doc)
	s.metrics.observeDocument(doc)
	return doc, changed, nil
}

// normalize backfills orders and gives every category an item list.
func normalize(doc *store.AppDocument) bool {
	if doc.Commands == nil {
		doc.Commands = map[string][]store.Item{}
	}
	changed := ordering.Backfill(doc.Categories)
	for _, c := range doc.Categories {
		if _, ok := doc.Commands[c.ID]; !ok {
			doc.Commands[c.ID] = []store.Item{}
			changed = true
		}
	}
	for id, items := range doc.Commands {
		if ordering.Backfill(items) {
			doc.Commands[id] = items
			changed = true
		}
	}
	return changed
}

func (s *Service) save(ctx context.Context, doc store.AppDocument) error {
	if err := checkDensity(doc); err != nil {
		s.logger.Error("refusing to save document", zap.Error(err))
		return err
	}
	if err := s.store.Save(ctx, doc); err != nil {
		s.logger.Error("save document", zap.String("change", store.ChangeNote(ctx)), zap.Error(err))
		return asDomainError(err)
	}
	s.metrics.observeDocument(doc)
	s.search.Refresh(doc)
	return nil
}

func checkDensity(doc store.AppDocument) error {
	if !ordering.Dense(doc.Categories) {
		return domainError(http.StatusInternalServerError, CodeInvariantViolated, "category order is not dense", nil)
	}
	for id, items := range doc.Commands {
		if !ordering.Dense(items) {
			return domainError(http.StatusInternalServerError, CodeInvariantViolated, fmt.Sprintf("item order of %q is not dense", id), nil)
		}
	}
	return nil
}

// mutate runs one load-transform-save cycle.
func (s *Service) mutate(ctx context.Context, operation, note string, fn func(*store.AppDocument) error) (doc store.AppDocument, err error) {
	defer func(started time.Time) { s.metrics.observe(operation, started, err) }(time.Now())

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, _, err = s.load(ctx)
	if err != nil {
		return store.AppDocument{}, err
	}
	if err := fn(&doc); err != nil {
		if errors.Is(err, errNoChange) {
			return doc, nil
		}
		return store.AppDocument{}, asDomainError(err)
	}
	if err := s.save(store.WithChangeNote(ctx, note), doc); err != nil {
		return store.AppDocument{}, err
	}
	s.logger.Info("document updated", zap.String("operation", operation), zap.String("change", note))
	return doc, nil
}

func (s *Service) UpsertCategory(ctx context.Context, input CategoryInput) (store.Category, store.AppDocument, error) {
	name := strings.TrimSpace(input.Name)
	id := strings.TrimSpace(input.ID)
	var result store.Category

	doc, err := s.mutate(ctx, "upsert_category", "Save category "+name, func(doc *store.AppDocument) error {
		if name == "" {
			return validationError("name", "category name is required")
		}
		if id == view.FavoritesID {
			return validationError("id", "category id is reserved")
		}
		if idx := doc.CategoryIndex(id); id != "" && idx >= 0 {
			doc.Categories[idx].Name = name
			doc.Categories[idx].Icon = input.Icon
			result = doc.Categories[idx]
			return nil
		}

		if id == "" {
			id = util.CategoryID(name)
		}
		category := store.Category{ID: id, Name: name, Icon: input.Icon}
		category.SetOrder(ordering.Next(doc.Categories))
		doc.Categories = append(doc.Categories, category)
		doc.Commands[id] = []store.Item{}
		result = category
		return nil
	})
	if err != nil {
		return store.Category{}, store.AppDocument{}, err
	}
	return result, doc, nil
}

func (s *Service) DeleteCategory(ctx context.Context, id string) (store.AppDocument, error) {
	return s.mutate(ctx, "delete_category", "Delete category "+id, func(doc *store.AppDocument) error {
		idx := doc.CategoryIndex(id)
		if idx < 0 {
			return notFound("category", id)
		}
		doc.Categories = append(doc.Categories[:idx], doc.Categories[idx+1:]...)
		delete(doc.Commands, id)
		ordering.Compact(doc.Categories)
		return nil
	})
}

func (s *Service) DuplicateCategory(ctx context.Context, id string) (store.Category, store.AppDocument, error) {
	var result store.Category

	doc, err := s.mutate(ctx, "duplicate_category", "Duplicate category "+id, func(doc *store.AppDocument) error {
		idx := doc.CategoryIndex(id)
		if idx < 0 {
			return notFound("category", id)
		}
		source := doc.Categories[idx]
		copied := store.Category{
			ID:   util.CategoryID(source.Name),
			Name: source.Name + copySuffix,
			Icon: source.Icon,
		}
		copied.SetOrder(ordering.Next(doc.Categories))

		sourceItems := ordering.Sorted(doc.Commands[id])
		items := make([]store.Item, 0, len(sourceItems))
		for i, item := range sourceItems {
			clone := item.Clone()
			clone.ID = util.NewID("cmd")
			clone.SetOrder(i)
			items = append(items, clone)
		}

		doc.Categories = append(doc.Categories, copied)
		doc.Commands[copied.ID] = items
		result = copied
		return nil
	})
	if err != nil {
		return store.Category{}, store.AppDocument{}, err
	}
	return result, doc, nil
}

func (s *Service) UpsertItem(ctx context.Context, categoryID string, input ItemInput) (store.Item, store.AppDocument, error) {
	var result store.Item

	doc, err := s.mutate(ctx, "upsert_item", "Save item "+strings.TrimSpace(input.Label), func(doc *store.AppDocument) error {
		if doc.CategoryIndex(categoryID) < 0 {
			return validationError("categoryId", fmt.Sprintf("category %q does not exist", categoryID))
		}
		kind, err := store.ParseKind(input.Kind)
		if err != nil {
			return validationError("kind", err.Error())
		}
		item := store.Item{
			ID:        strings.TrimSpace(input.ID),
			Label:     input.Label,
			Kind:      kind,
			Body:      input.Body,
			Variables: input.Variables,
			Steps:     input.Steps,
		}
		item.Normalize()
		if err := item.Validate(); err != nil {
			return err
		}

		items := doc.Commands[categoryID]
		if idx := store.ItemIndex(items, item.ID); item.ID != "" && idx >= 0 {
			item.Order = items[idx].Order
			item.IsFavorite = items[idx].IsFavorite
			items[idx] = item
			result = item
			return nil
		}

		if item.ID == "" {
			item.ID = util.NewID("cmd")
		}
		item.IsFavorite = input.IsFavorite
		item.SetOrder(ordering.Next(items))
		doc.Commands[categoryID] = append(items, item)
		result = item
		return nil
	})
	if err != nil {
		return store.Item{}, store.AppDocument{}, err
	}
	return result, doc, nil
}

func (s *Service) DeleteItem(ctx context.Context, categoryID, itemID string) (store.AppDocument, error) {
	return s.mutate(ctx, "delete_item", "Delete item "+itemID, func(doc *store.AppDocument) error {
		items, ok := doc.Commands[categoryID]
		if !ok || doc.CategoryIndex(categoryID) < 0 {
			return notFound("category", categoryID)
		}
		idx := store.ItemIndex(items, itemID)
		if idx < 0 {
			return notFound("item", itemID)
		}
		items = append(items[:idx], items[idx+1:]...)
		ordering.Compact(items)
		doc.Commands[categoryID] = items
		return nil
	})
}

func (s *Service) DuplicateItem(ctx context.Context, categoryID, itemID string) (store.Item, store.AppDocument, error) {
	var result store.Item

	doc, err := s.mutate(ctx, "duplicate_item", "Duplicate item "+itemID, func(doc *store.AppDocument) error {
		items, ok := doc.Commands[categoryID]
		if !ok || doc.CategoryIndex(categoryID) < 0 {
			return notFound("category", categoryID)
		}
		idx := store.ItemIndex(items, itemID)
		if idx < 0 {
			return notFound("item", itemID)
		}
		clone := items[idx].Clone()
		clone.ID = util.NewID("cmd")
		clone.Label += copySuffix
		clone.SetOrder(ordering.Next(items))
		doc.Commands[categoryID] = append(items, clone)
		result = clone
		return nil
	})
	if err != nil {
		return store.Item{}, store.AppDocument{}, err
	}
	return result, doc, nil
}

// Reorder swaps an entity with its neighbour. Moving past either end is a
// successful no-op that does not write.
func (s *Service) Reorder(ctx context.Context, input ReorderInput) (bool, store.AppDocument, error) {
	moved := false
	doc, err := s.mutate(ctx, "reorder", fmt.Sprintf("Move %s %d %s", input.List, input.Index, input.Direction), func(doc *store.AppDocument) error {
		dir, err := ordering.ParseDirection(input.Direction)
		if err != nil {
			return validationError("direction", err.Error())
		}

		switch input.List {
		case ListCategories:
			moved, err = ordering.SwapAdjacent(doc.Categories, input.Index, dir)
		case ListItems:
			items, ok := doc.Commands[input.CategoryID]
			if !ok || doc.CategoryIndex(input.CategoryID) < 0 {
				return notFound("category", input.CategoryID)
			}
			moved, err = ordering.SwapAdjacent(items, input.Index, dir)
		default:
			return validationError("list", "list must be categories or items")
		}
		if errors.Is(err, ordering.ErrIndexOutOfRange) {
			return validationError("index", err.Error())
		}
		if err != nil {
			return err
		}
		if !moved {
			return errNoChange
		}
		return nil
	})
	if err != nil {
		return false, store.AppDocument{}, err
	}
	return moved, doc, nil
}

// ToggleFavorite flips the first item with itemID, scanning lists in display
// order.
func (s *Service) ToggleFavorite(ctx context.Context, itemID string) (store.Item, store.AppDocument, error) {
	var result store.Item

	doc, err := s.mutate(ctx, "toggle_favorite", "Toggle favorite "+itemID, func(doc *store.AppDocument) error {
		for _, categoryID := range view.ListOrder(*doc) {
			items := doc.Commands[categoryID]
			if idx := store.ItemIndex(items, itemID); idx >= 0 {
				items[idx].IsFavorite = !items[idx].IsFavorite
				result = items[idx]
				return nil
			}
		}
		return notFound("item", itemID)
	})
	if err != nil {
		return store.Item{}, store.AppDocument{}, err
	}
	return result, doc, nil
}

// ReplaceDocument writes a whole client-supplied document. Items are
// normalised, missing ids generated and orders repaired before saving.
func (s *Service) ReplaceDocument(ctx context.Context, doc store.AppDocument) (result store.AppDocument, err error) {
	defer func(started time.Time) { s.metrics.observe("replace_document", started, err) }(time.Now())

	doc = doc.Clone()
	if err := prepareReplacement(&doc); err != nil {
		return store.AppDocument{}, asDomainError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(store.WithChangeNote(ctx, "Replace document"), doc); err != nil {
		return store.AppDocument{}, err
	}
	return doc, nil
}

func prepareReplacement(doc *store.AppDocument) error {
	for i := range doc.Categories {
		doc.Categories[i].Name = strings.TrimSpace(doc.Categories[i].Name)
		if doc.Categories[i].ID == view.FavoritesID {
			return validationError("id", "category id is reserved")
		}
	}
	normalize(doc)
	for id, items := range doc.Commands {
		for i := range items {
			items[i].Normalize()
			if strings.TrimSpace(items[i].ID) == "" {
				items[i].ID = util.NewID("cmd")
			}
		}
		doc.Commands[id] = items
	}
	return doc.Validate()
}

func (s *Service) historian() (store.Historian, error) {
	h, ok := s.store.(store.Historian)
	if !ok {
		return nil, domainError(http.StatusNotImplemented, CodeHistoryUnsupported, "The configured store does not keep history", nil)
	}
	return h, nil
}

func (s *Service) History(ctx context.Context, limit int) ([]store.CommitInfo, error) {
	h, err := s.historian()
	if err != nil {
		return nil, err
	}
	return h.History(ctx, limit)
}

// Revision loads a past document with orders backfilled in memory only.
func (s *Service) Revision(ctx context.Context, hash string) (store.AppDocument, error) {
	h, err := s.historian()
	if err != nil {
		return store.AppDocument{}, err
	}
	doc, err := h.Revision(ctx, hash)
	if errors.Is(err, gitrepo.ErrUnknownRevision) {
		return store.AppDocument{}, notFound("revision", hash)
	}
	if err != nil {
		return store.AppDocument{}, asDomainError(err)
	}
	normalize(&doc)
	return doc, nil
}

func (s *Service) Categories(ctx context.Context, query string) ([]store.Category, error) {
	doc, err := s.LoadNormalized(ctx)
	if err != nil {
		return nil, err
	}
	return view.FilterCategories(view.Categories(doc), query), nil
}

// Items lists a category, or the favorites view, filtered by query.
func (s *Service) Items(ctx context.Context, categoryID, query string) ([]store.Item, error) {
	doc, err := s.LoadNormalized(ctx)
	if err != nil {
		return nil, err
	}
	items, err := view.Select(doc, categoryID)
	if errors.Is(err, view.ErrUnknownCategory) {
		return nil, notFound("category", categoryID)
	}
	if err != nil {
		return nil, err
	}
	return view.FilterByText(items, query), nil
}

func (s *Service) findItem(ctx context.Context, categoryID, itemID string) (store.Item, error) {
	doc, err := s.LoadNormalized(ctx)
	if err != nil {
		return store.Item{}, err
	}
	if doc.CategoryIndex(categoryID) < 0 {
		return store.Item{}, notFound("category", categoryID)
	}
	items := doc.Commands[categoryID]
	idx := store.ItemIndex(items, itemID)
	if idx < 0 {
		return store.Item{}, notFound("item", itemID)
	}
	return items[idx], nil
}

func (s *Service) RenderItem(ctx context.Context, categoryID, itemID string, values map[string]string) (string, error) {
	item, err := s.findItem(ctx, categoryID, itemID)
	if err != nil {
		return "", err
	}
	return view.RenderTemplate(item, values), nil
}

// WorkflowStep returns step n of a workflow and the index of the next step.
func (s *Service) WorkflowStep(ctx context.Context, categoryID, itemID string, n int) (string, int, error) {
	item, err := s.findItem(ctx, categoryID, itemID)
	if err != nil {
		return "", 0, err
	}
	text, next, err := view.WorkflowStep(item, n)
	if errors.Is(err, view.ErrNotWorkflow) {
		return "", 0, validationError("kind", err.Error())
	}
	if errors.Is(err, view.ErrStepOutOfRange) {
		return "", 0, validationError("step", err.Error())
	}
	return text, next, err
}

func (s *Service) Search(ctx context.Context, query string) (search.Response, error) {
	doc, err := s.LoadNormalized(ctx)
	if err != nil {
		return search.Response{}, err
	}
	return s.search.Search(doc, strings.TrimSpace(query)), nil
}

func (s *Service) Export(ctx context.Context, format string) (*export.Result, error) {
	f, err := export.ParseFormat(format)
	if err != nil {
		return nil, validationError("format", err.Error())
	}
	doc, err := s.LoadNormalized(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.export.Export(ctx, doc, f)
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		d := domainError(http.StatusServiceUnavailable, CodeExportUnavailable, "PDF export is not available on this server", nil)
		d.Err = err
		return nil, d
	}
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", f, err)
	}
	return result, nil
}
