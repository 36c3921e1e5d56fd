package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"launchpad/internal/store"
)

type HTTPOptions struct {
	CORSOrigin    string
	Logger        *zap.Logger
	Metrics       *Metrics
	MutationRPS   float64
	MutationBurst int
}

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *zap.Logger
	metrics    *Metrics
	limiter    *rate.Limiter
}

func NewHTTPServer(service *Service, opts HTTPOptions) *HTTPServer {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if opts.MutationRPS > 0 {
		limit = rate.Limit(opts.MutationRPS)
	}
	burst := opts.MutationBurst
	if burst <= 0 {
		burst = 1
	}
	return &HTTPServer{
		service:    service,
		corsOrigin: opts.CORSOrigin,
		logger:     logger,
		metrics:    opts.Metrics,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(s.routes())
}

func (s *HTTPServer) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(recordRoute)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/ready", s.handleReady).Methods(http.MethodGet, http.MethodHead)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/commands", s.handleGetDocument).Methods(http.MethodGet)
	api.HandleFunc("/commands", s.limit(s.handleReplaceDocument)).Methods(http.MethodPost)

	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.limit(s.handleUpsertCategory)).Methods(http.MethodPost)
	api.HandleFunc("/categories/{id}", s.limit(s.handleUpsertCategory)).Methods(http.MethodPut)
	api.HandleFunc("/categories/{id}", s.limit(s.handleDeleteCategory)).Methods(http.MethodDelete)
	api.HandleFunc("/categories/{id}/duplicate", s.limit(s.handleDuplicateCategory)).Methods(http.MethodPost)

	api.HandleFunc("/categories/{id}/items", s.handleListItems).Methods(http.MethodGet)
	api.HandleFunc("/categories/{id}/items", s.limit(s.handleUpsertItem)).Methods(http.MethodPost)
	api.HandleFunc("/categories/{id}/items/{itemId}", s.limit(s.handleUpsertItem)).Methods(http.MethodPut)
	api.HandleFunc("/categories/{id}/items/{itemId}", s.limit(s.handleDeleteItem)).Methods(http.MethodDelete)
	api.HandleFunc("/categories/{id}/items/{itemId}/duplicate", s.limit(s.handleDuplicateItem)).Methods(http.MethodPost)
	api.HandleFunc("/categories/{id}/items/{itemId}/render", s.handleRender).Methods(http.MethodPost)
	api.HandleFunc("/categories/{id}/items/{itemId}/steps/{n}", s.handleWorkflowStep).Methods(http.MethodPost)

	api.HandleFunc("/items/{itemId}/favorite", s.limit(s.handleToggleFavorite)).Methods(http.MethodPost)
	api.HandleFunc("/reorder", s.limit(s.handleReorder)).Methods(http.MethodPost)

	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/{hash}", s.handleRevision).Methods(http.MethodGet)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	return r
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"store":  map[string]any{"status": "ok"},
		"search": map[string]any{"status": "ok", "indexed": s.service.SearchHealthy()},
	}

	if err := s.service.Ping(ctx); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
		checks["store"] = map[string]any{
			"status": "error",
			"error":  err.Error(),
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.LoadNormalized(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *HTTPServer) handleReplaceDocument(w http.ResponseWriter, r *http.Request) {
	var doc store.AppDocument
	if err := decodeBody(r, &doc); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if _, err := s.service.ReplaceDocument(r.Context(), doc); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Commands saved successfully!"})
}

func (s *HTTPServer) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.service.Categories(r.Context(), trimmed(r, "q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (s *HTTPServer) handleUpsertCategory(w http.ResponseWriter, r *http.Request) {
	var body CategoryInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	status := http.StatusCreated
	if id, ok := mux.Vars(r)["id"]; ok {
		body.ID = id
		status = http.StatusOK
	}
	category, doc, err := s.service.UpsertCategory(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, map[string]any{"category": category, "document": doc})
}

func (s *HTTPServer) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	doc, err := s.service.DeleteCategory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (s *HTTPServer) handleDuplicateCategory(w http.ResponseWriter, r *http.Request) {
	category, doc, err := s.service.DuplicateCategory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"category": category, "document": doc})
}

func (s *HTTPServer) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.service.Items(r.Context(), mux.Vars(r)["id"], trimmed(r, "q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *HTTPServer) handleUpsertItem(w http.ResponseWriter, r *http.Request) {
	var body ItemInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	vars := mux.Vars(r)
	status := http.StatusCreated
	if itemID, ok := vars["itemId"]; ok {
		body.ID = itemID
		status = http.StatusOK
	}
	item, doc, err := s.service.UpsertItem(r.Context(), vars["id"], body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, status, map[string]any{"item": item, "document": doc})
}

func (s *HTTPServer) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	doc, err := s.service.DeleteItem(r.Context(), vars["id"], vars["itemId"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (s *HTTPServer) handleDuplicateItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	item, doc, err := s.service.DuplicateItem(r.Context(), vars["id"], vars["itemId"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"item": item, "document": doc})
}

func (s *HTTPServer) handleRender(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Values map[string]string `json:"values"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	vars := mux.Vars(r)
	text, err := s.service.RenderItem(r.Context(), vars["id"], vars["itemId"], body.Values)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": text})
}

func (s *HTTPServer) handleWorkflowStep(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	n, err := strconv.Atoi(vars["n"])
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, CodeValidation, "step must be a number", map[string]any{"field": "step"})
		return
	}
	text, next, err := s.service.WorkflowStep(r.Context(), vars["id"], vars["itemId"], n)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"text": text, "step": n, "next": next})
}

func (s *HTTPServer) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	item, doc, err := s.service.ToggleFavorite(r.Context(), mux.Vars(r)["itemId"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item, "document": doc})
}

func (s *HTTPServer) handleReorder(w http.ResponseWriter, r *http.Request) {
	var body ReorderInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	moved, doc, err := s.service.Reorder(r.Context(), body)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": moved, "document": doc})
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	resp, err := s.service.Search(r.Context(), trimmed(r, "q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := trimmed(r, "limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusUnprocessableEntity, CodeValidation, "limit must be a positive number", map[string]any{"field": "limit"})
			return
		}
		limit = parsed
	}
	commits, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commits": commits})
}

func (s *HTTPServer) handleRevision(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]
	doc, err := s.service.Revision(r.Context(), hash)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hash": hash, "document": doc})
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.Export(r.Context(), trimmed(r, "format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// limit guards mutations with the shared token bucket.
func (s *HTTPServer) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, CodeRateLimited, "Too many changes, slow down", nil)
			return
		}
		next(w, r)
	}
}

func (s *HTTPServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", requestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.String("code", code),
			zap.Error(err),
		)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		route := &routeHolder{name: "unmatched"}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx = context.WithValue(ctx, routeKey{}, route)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		if r.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)
		} else {
			next.ServeHTTP(writer, r)
		}

		s.metrics.observeRequest(r.Method, route.name, writer.status)
		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", time.Since(started).Milliseconds()),
		)
	})
}

type requestIDKey struct{}

type routeKey struct{}

type routeHolder struct {
	name string
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// recordRoute reports the matched path template back to withMiddleware so
// metrics are labelled by route instead of raw path.
func recordRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if holder, ok := r.Context().Value(routeKey{}).(*routeHolder); ok {
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					holder.name = tpl
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(asDomainError(err), &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, "TIMEOUT", "Request timed out", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}

func trimmed(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
