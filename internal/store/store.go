// Package store holds the launchpad data model and the backends that persist
// it as a single JSON document.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStoreUnavailable means nothing has been stored yet. Callers treat it
	// as an empty document.
	ErrStoreUnavailable = errors.New("document store unavailable")
	// ErrStoreRead means a stored document exists or may exist but could not
	// be read. It is never treated as an empty document.
	ErrStoreRead = errors.New("document store read failed")
	// ErrStoreWrite means the medium rejected a save.
	ErrStoreWrite = errors.New("document store write failed")
	// ErrCorruptDocument means the stored bytes are not a valid document.
	ErrCorruptDocument = errors.New("stored document is corrupt")
)

// DocumentStore persists the whole AppDocument. Save must replace the stored
// document atomically: readers observe either the old or the new document.
type DocumentStore interface {
	Load(ctx context.Context) (AppDocument, error)
	Save(ctx context.Context, doc AppDocument) error
}

// Pinger is implemented by backends with a reachable remote.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CommitInfo describes one past save of a history-keeping backend.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

// Historian is implemented by backends that keep every saved revision.
type Historian interface {
	History(ctx context.Context, limit int) ([]CommitInfo, error)
	Revision(ctx context.Context, hash string) (AppDocument, error)
}

type changeNoteKey struct{}

// WithChangeNote attaches a one-line description of the mutation being saved.
// Backends that keep history use it as the revision message.
func WithChangeNote(ctx context.Context, note string) context.Context {
	return context.WithValue(ctx, changeNoteKey{}, note)
}

func ChangeNote(ctx context.Context) string {
	note, _ := ctx.Value(changeNoteKey{}).(string)
	return note
}

// Encode renders the document the way the original data file looked.
func Encode(doc AppDocument) ([]byte, error) {
	if doc.Categories == nil {
		doc.Categories = []Category{}
	}
	if doc.Commands == nil {
		doc.Commands = map[string][]Item{}
	}
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return append(payload, '\n'), nil
}

// Decode parses a stored document. Blank input decodes to an empty document.
func Decode(data []byte) (AppDocument, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDocument(), nil
	}
	var doc AppDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return AppDocument{}, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	return doc, nil
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStoreUnavailable, fmt.Sprintf(format, args...))
}

func readFailed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStoreRead, fmt.Sprintf(format, args...))
}

func writeFailed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStoreWrite, fmt.Sprintf(format, args...))
}
