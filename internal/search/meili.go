package search

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

const idxItems = "launchpad_items"

// Meili implements Searcher via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	logger  *zap.Logger
	healthy atomic.Bool
	done    chan struct{}
	once    sync.Once
}

// NewMeili creates a Meilisearch client and configures the items index.
// An unreachable server is not an error: the health loop picks it up later.
func NewMeili(url, apiKey string, logger *zap.Logger) *Meili {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		logger: logger,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		logger.Warn("search: meilisearch unavailable", zap.String("url", url), zap.Error(err))
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxItems,
		PrimaryKey: "id",
	}); err != nil {
		m.logger.Debug("search: create index (may already exist)", zap.String("index", idxItems), zap.Error(err))
	}

	index := m.client.Index(idxItems)
	filterable := []interface{}{"categoryId", "kind"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		m.logger.Warn("search: update filterable attrs", zap.String("index", idxItems), zap.Error(err))
	}
	searchable := []string{"label", "body", "categoryName"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		m.logger.Warn("search: update searchable attrs", zap.String("index", idxItems), zap.Error(err))
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	m.once.Do(func() { close(m.done) })
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search returns the items matching text. Ranking is dropped by the caller.
func (m *Meili) Search(text string, limit int) ([]ItemRef, error) {
	if !m.healthy.Load() {
		return nil, fmt.Errorf("meilisearch unhealthy")
	}
	if limit <= 0 {
		limit = 20
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: []*meili.SearchRequest{{
			IndexUID:             idxItems,
			Query:                text,
			Limit:                int64(limit),
			AttributesToRetrieve: []string{"categoryId", "itemId"},
		}},
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var refs []ItemRef
	for _, sr := range resp.Results {
		for _, hit := range sr.Hits {
			ref := ItemRef{CategoryID: decodeString(hit, "categoryId"), ItemID: decodeString(hit, "itemId")}
			if ref.CategoryID == "" || ref.ItemID == "" {
				continue
			}
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

// IndexItems adds or updates item records.
func (m *Meili) IndexItems(records []ItemRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxItems).AddDocuments(records, nil)
	return err
}

// DeleteItem removes one record by primary key.
func (m *Meili) DeleteItem(id string) error {
	_, err := m.client.Index(idxItems).DeleteDocument(id, nil)
	return err
}
