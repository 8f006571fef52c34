// Package gitrepo keeps the revision history of each launch document in its
// own git repository. Every explicit save is one commit of launch.json on
// the main branch.
package gitrepo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"launchnav/internal/flow"
	"launchnav/internal/util"
)

const (
	contentFile = "launch.json"
	mainBranch  = "main"
)

var ErrNoHistory = errors.New("launch document has no history")

// CommitInfo summarizes one revision.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	Steps     int       `json:"steps"`
	// Diff against the parent revision; nil for the first one.
	Diff *StepDiff `json:"diff,omitempty"`
	// Unchanged is set when a commit was requested for identical content
	// and the existing head was returned instead.
	Unchanged bool `json:"unchanged,omitempty"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Commit records doc as the new head of the document's history, creating
// the repository on first use.
func (s *Service) Commit(name string, doc flow.Document, author, message string) (CommitInfo, error) {
	lock := s.documentLock(name)
	lock.Lock()
	defer lock.Unlock()

	payload, err := flow.Encode(doc)
	if err != nil {
		return CommitInfo{}, err
	}

	repo, err := s.openOrInit(name)
	if err != nil {
		return CommitInfo{}, err
	}

	var previous *flow.Document
	if head, err := headCommit(repo); err == nil {
		existing, err := contentBytes(head)
		if err != nil {
			return CommitInfo{}, err
		}
		current, err := decodeContent(existing)
		if err != nil {
			return CommitInfo{}, err
		}
		if bytes.Equal(existing, payload) {
			info := toCommitInfo(head, current, nil)
			info.Unchanged = true
			return info, nil
		}
		previous = &current
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return CommitInfo{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}
	repoRoot := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(repoRoot, contentFile), payload, 0o644); err != nil {
		return CommitInfo{}, fmt.Errorf("write %s: %w", contentFile, err)
	}
	if _, err := worktree.Add(contentFile); err != nil {
		return CommitInfo{}, fmt.Errorf("git add content: %w", err)
	}

	if strings.TrimSpace(author) == "" {
		author = "launchnav"
	}
	if strings.TrimSpace(message) == "" {
		message = "Save " + name
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: fmt.Sprintf("%s@launchnav.local", sanitizeEmail(author)),
			When:  time.Now(),
		},
	})
	if err != nil {
		return CommitInfo{}, fmt.Errorf("commit content: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	var diff *StepDiff
	if previous != nil {
		d := DiffSteps(*previous, doc)
		diff = &d
	}
	return toCommitInfo(commitObj, doc, diff), nil
}

// History lists revisions newest first. A document that was never
// committed has an empty history.
func (s *Service) History(name string, limit int) ([]CommitInfo, error) {
	lock := s.documentLock(name)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(name))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []CommitInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	head, err := headCommit(repo)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []CommitInfo{}, nil
	}
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]CommitInfo, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		doc, err := readContent(commitObj)
		if err != nil {
			return err
		}
		var diff *StepDiff
		if parent, err := commitObj.Parent(0); err == nil {
			if before, err := readContent(parent); err == nil {
				d := DiffSteps(before, doc)
				diff = &d
			}
		}
		items = append(items, toCommitInfo(commitObj, doc, diff))
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

// Revision loads the document as it was at hash (full or abbreviated).
func (s *Service) Revision(name, hash string) (flow.Document, CommitInfo, error) {
	lock := s.documentLock(name)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(name))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return flow.Document{}, CommitInfo{}, fmt.Errorf("%w: %s", ErrNoHistory, name)
	}
	if err != nil {
		return flow.Document{}, CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}

	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return flow.Document{}, CommitInfo{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return flow.Document{}, CommitInfo{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	doc, err := readContent(commitObj)
	if err != nil {
		return flow.Document{}, CommitInfo{}, err
	}
	return doc, toCommitInfo(commitObj, doc, nil), nil
}

func (s *Service) openOrInit(name string) (*git.Repository, error) {
	path := s.repoPath(name)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(mainBranch))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return repo, nil
}

// repoPath maps a document file name onto a directory: "Wave 1.json" and
// "Wave_1.json" share a history.
func (s *Service) repoPath(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return filepath.Join(s.baseDir, util.Slug(stem))
}

func (s *Service) documentLock(name string) *sync.Mutex {
	key := s.repoPath(name)
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[key]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[key] = lock
	return lock
}

func headCommit(repo *git.Repository) (*object.Commit, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(mainBranch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("resolve branch %s: %w", mainBranch, err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit object: %w", err)
	}
	return commitObj, nil
}

func contentBytes(commitObj *object.Commit) ([]byte, error) {
	file, err := commitObj.File(contentFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", contentFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open content reader: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read content bytes: %w", err)
	}
	return data, nil
}

func readContent(commitObj *object.Commit) (flow.Document, error) {
	data, err := contentBytes(commitObj)
	if err != nil {
		return flow.Document{}, err
	}
	return decodeContent(data)
}

func decodeContent(data []byte) (flow.Document, error) {
	doc, err := flow.Decode(data)
	if err != nil {
		return flow.Document{}, fmt.Errorf("decode commit content: %w", err)
	}
	flow.Normalize(&doc)
	return doc, nil
}

func toCommitInfo(commitObj *object.Commit, doc flow.Document, diff *StepDiff) CommitInfo {
	return CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
		Steps:     len(doc.Steps),
		Diff:      diff,
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
	hash = strings.TrimSpace(hash)
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
