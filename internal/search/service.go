package search

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"launchpad/internal/store"
	"launchpad/internal/view"
)

const maxIndexHits = 1000

// Service tries Meilisearch first and falls back to filtering the document in
// process. Results always come back in display order.
type Service struct {
	meili  *Meili
	logger *zap.Logger

	// pending holds at most one snapshot. A newer snapshot replaces an
	// unsent one, so the index never moves back to an older document.
	queueMu sync.Mutex
	pending chan []ItemRecord
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once

	mu      sync.Mutex
	indexed map[string]struct{}
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		meili:   meili,
		logger:  logger,
		pending: make(chan []ItemRecord, 1),
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
		indexed: map[string]struct{}{},
	}
	if meili != nil {
		go s.indexLoop()
	} else {
		close(s.stopped)
	}
	return s
}

func (s *Service) Search(doc store.AppDocument, text string) Response {
	if s.meili != nil && s.meili.Healthy() && text != "" {
		refs, err := s.meili.Search(text, maxIndexHits)
		if err == nil {
			return respond(text, "index", matchRefs(doc, refs))
		}
		s.logger.Warn("search: meilisearch error, falling back to local filter", zap.Error(err))
	}
	return respond(text, "local", Local(doc, text))
}

// Local runs the query against the document without an index. It looks at the
// same label and body text the index is fed, workflow steps included.
func Local(doc store.AppDocument, text string) []Result {
	query := strings.ToLower(strings.TrimSpace(text))
	results := make([]Result, 0)
	// index 0 is the favorites pseudo-category
	for _, c := range view.Categories(doc)[1:] {
		for _, item := range view.Items(doc, c.ID) {
			if matches(item, query) {
				results = append(results, toResult(c, item))
			}
		}
	}
	return results
}

func matches(item store.Item, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(item.Label), query) ||
		strings.Contains(strings.ToLower(searchableBody(item)), query)
}

func matchRefs(doc store.AppDocument, refs []ItemRef) []Result {
	wanted := make(map[ItemRef]struct{}, len(refs))
	for _, ref := range refs {
		wanted[ref] = struct{}{}
	}
	results := make([]Result, 0, len(refs))
	walk(doc, func(c store.Category, item store.Item) {
		if _, ok := wanted[ItemRef{CategoryID: c.ID, ItemID: item.ID}]; ok {
			results = append(results, toResult(c, item))
		}
	})
	return results
}

func respond(text, source string, results []Result) Response {
	return Response{Results: results, Total: len(results), Query: text, Source: source}
}

// Refresh queues the document for indexing and returns at once. A single
// worker applies snapshots in the order they were queued; a snapshot still
// waiting when a newer one arrives is dropped.
func (s *Service) Refresh(doc store.AppDocument) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	s.enqueue(Records(doc))
}

func (s *Service) enqueue(records []ItemRecord) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	for {
		select {
		case s.pending <- records:
			return
		default:
		}
		select {
		case <-s.pending:
		default:
		}
	}
}

func (s *Service) indexLoop() {
	defer close(s.stopped)
	for {
		select {
		case <-s.stop:
			return
		case records := <-s.pending:
			if err := s.sync(records); err != nil {
				s.logger.Warn("search: refresh index", zap.Error(err))
			}
		}
	}
}

func (s *Service) sync(records []ItemRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[string]struct{}, len(records))
	for _, r := range records {
		current[r.ID] = struct{}{}
	}
	if err := s.meili.IndexItems(records); err != nil {
		return err
	}
	for id := range s.indexed {
		if _, ok := current[id]; ok {
			continue
		}
		if err := s.meili.DeleteItem(id); err != nil {
			s.logger.Warn("search: delete stale record", zap.String("id", id), zap.Error(err))
			current[id] = struct{}{}
		}
	}
	s.indexed = current
	return nil
}

func (s *Service) Healthy() bool {
	return s.meili != nil && s.meili.Healthy()
}

// Close stops the index worker and the Meilisearch health monitor. A sync in
// flight finishes first; queued snapshots are dropped.
func (s *Service) Close() {
	s.once.Do(func() {
		close(s.stop)
		<-s.stopped
		if s.meili != nil {
			s.meili.Close()
		}
	})
}
