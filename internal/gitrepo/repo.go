// Package gitrepo stores the launchpad document in a local git repository.
// Every save commits commands.json, so past revisions stay readable.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"launchpad/internal/store"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const (
	documentFile = "commands.json"
	branchName   = "main"
)

var ErrUnknownRevision = errors.New("unknown revision")

type Store struct {
	dir    string
	author string
	mu     sync.Mutex
}

func New(dir, author string) *Store {
	if author == "" {
		author = "launchpad"
	}
	return &Store{dir: dir, author: author}
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Load(ctx context.Context) (store.AppDocument, error) {
	if err := ctx.Err(); err != nil {
		return store.AppDocument{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return store.AppDocument{}, fmt.Errorf("%w: no repository at %s", store.ErrStoreUnavailable, s.dir)
	}
	if err != nil {
		return store.AppDocument{}, fmt.Errorf("%w: open repo %s: %v", store.ErrStoreRead, s.dir, err)
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return store.AppDocument{}, fmt.Errorf("%w: no commits yet", store.ErrStoreUnavailable)
	}
	if err != nil {
		return store.AppDocument{}, fmt.Errorf("%w: resolve HEAD: %v", store.ErrStoreRead, err)
	}
	commitObj, err := repo.CommitObject(head.Hash())
	if err != nil {
		return store.AppDocument{}, fmt.Errorf("%w: load commit object: %v", store.ErrStoreRead, err)
	}
	return readDocumentFromCommit(commitObj)
}

// Save commits the document. Saving a document identical to HEAD creates no
// commit.
func (s *Store) Save(ctx context.Context, doc store.AppDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := store.Encode(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreWrite, err)
	}
	message := store.ChangeNote(ctx)
	if message == "" {
		message = "Update launchpad"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	repo, fresh, err := s.openOrInit()
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreWrite, err)
	}
	if err := s.commit(repo, payload, message, fresh); err != nil {
		return fmt.Errorf("%w: %v", store.ErrStoreWrite, err)
	}
	return nil
}

// History lists saves newest first. limit <= 0 returns every commit.
func (s *Store) History(ctx context.Context, limit int) ([]store.CommitInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []store.CommitInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []store.CommitInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.CommitInfo, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Revision loads the document as it was at hash, which may be abbreviated.
func (s *Store) Revision(ctx context.Context, hash string) (store.AppDocument, error) {
	if err := ctx.Err(); err != nil {
		return store.AppDocument{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainOpen(s.dir)
	if err != nil {
		return store.AppDocument{}, fmt.Errorf("open repo: %w", err)
	}
	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return store.AppDocument{}, err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return store.AppDocument{}, fmt.Errorf("%w: read commit %s: %v", ErrUnknownRevision, hash, err)
	}
	return readDocumentFromCommit(commitObj)
}

func (s *Store) openOrInit() (*git.Repository, bool, error) {
	repo, err := git.PlainOpen(s.dir)
	if err == nil {
		return repo, false, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, false, fmt.Errorf("open repo: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, false, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(s.dir, false)
	if err != nil {
		return nil, false, fmt.Errorf("init repo: %w", err)
	}
	return repo, true, nil
}

func (s *Store) commit(repo *git.Repository, payload []byte, message string, fresh bool) error {
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, documentFile), payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", documentFile, err)
	}
	if _, err := worktree.Add(documentFile); err != nil {
		return fmt.Errorf("git add %s: %w", documentFile, err)
	}

	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  s.author,
			Email: fmt.Sprintf("%s@local.launchpad", sanitizeEmail(s.author)),
			When:  time.Now(),
		},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("commit %s: %w", documentFile, err)
	}

	if fresh {
		if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(branchName), hash)); err != nil {
			return fmt.Errorf("set %s branch ref: %w", branchName, err)
		}
		if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branchName))); err != nil {
			return fmt.Errorf("set HEAD to %s: %w", branchName, err)
		}
	}
	return nil
}

func readDocumentFromCommit(commitObj *object.Commit) (store.AppDocument, error) {
	file, err := commitObj.File(documentFile)
	if errors.Is(err, object.ErrFileNotFound) {
		return store.AppDocument{}, fmt.Errorf("%w: %s not in commit", store.ErrStoreUnavailable, documentFile)
	}
	if err != nil {
		return store.AppDocument{}, fmt.Errorf("%w: load %s from commit: %v", store.ErrStoreRead, documentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return store.AppDocument{}, fmt.Errorf("%w: open %s reader: %v", store.ErrStoreRead, documentFile, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return store.AppDocument{}, fmt.Errorf("%w: read %s: %v", store.ErrStoreRead, documentFile, err)
	}
	return store.Decode(data)
}

func toCommitInfo(commitObj *object.Commit) store.CommitInfo {
	return store.CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: resolve hash %s: %v", ErrUnknownRevision, hash, err)
	}
	return *resolved, nil
}
