package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"launchnav/internal/attachments"
	"launchnav/internal/auth"
	"launchnav/internal/config"
	"launchnav/internal/export"
	"launchnav/internal/flow"
	"launchnav/internal/gitrepo"
	"launchnav/internal/layout"
	"launchnav/internal/metrics"
	"launchnav/internal/rbac"
	"launchnav/internal/report"
	"launchnav/internal/search"
	"launchnav/internal/session"
	"launchnav/internal/store"
	"launchnav/internal/util"
)

// Session is the caller's view of an editing session.
type Session struct {
	ID           string        `json:"sessionId"`
	Token        string        `json:"token,omitempty"`
	Role         string        `json:"role"`
	DocumentName string        `json:"documentName"`
	Document     flow.Document `json:"document"`
	Dirty        bool          `json:"dirty"`
	FellBack     bool          `json:"fellBack"`
	LoadError    string        `json:"loadError,omitempty"`
	ExpiresAt    time.Time     `json:"expiresAt"`
}

// SaveResult reports where a document was written and the revision taken.
type SaveResult struct {
	DocumentName string             `json:"documentName"`
	Revision     gitrepo.CommitInfo `json:"revision"`
}

// Dependencies are the collaborators wired in by cmd/api. Search, Export
// and Attachments may be nil; the corresponding operations then report
// that the feature is unavailable.
type Dependencies struct {
	Catalog     store.Catalog
	Sessions    session.Store
	Git         *gitrepo.Service
	Search      *search.Service
	Attachments attachments.Store
	Export      *export.Service
	// Checks are reported by /api/ready, keyed by dependency name.
	Checks map[string]func(context.Context) error
}

type Service struct {
	cfg         config.Config
	logger      *zap.Logger
	catalog     store.Catalog
	sessions    session.Store
	git         *gitrepo.Service
	search      *search.Service
	attachments attachments.Store
	export      *export.Service
	checks      map[string]func(context.Context) error
	secret      []byte
	ttl         time.Duration
	now         func() time.Time

	lockMu sync.Mutex
	locks  map[string]*lockEntry
}

// lockEntry serializes work on one session. seen is the last time the
// lock was handed out and is guarded by Service.lockMu.
type lockEntry struct {
	mu   sync.Mutex
	seen time.Time
}

func New(cfg config.Config, deps Dependencies, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	sessions := deps.Sessions
	if sessions == nil {
		sessions = session.NewMemoryStore(cfg.SessionTTL())
	}
	return &Service{
		cfg:         cfg,
		logger:      logger.Named("app"),
		catalog:     deps.Catalog,
		sessions:    sessions,
		git:         deps.Git,
		search:      deps.Search,
		attachments: deps.Attachments,
		export:      deps.Export,
		checks:      deps.Checks,
		secret:      []byte(cfg.TokenSecret),
		ttl:         cfg.SessionTTL(),
		now:         time.Now,
		locks:       make(map[string]*lockEntry),
	}
}

// Bootstrap indexes every stored document so search works before the
// first save of this process.
func (s *Service) Bootstrap(ctx context.Context) error {
	if s.search == nil {
		return nil
	}
	infos, err := s.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("list launch documents: %w", err)
	}
	for _, info := range infos {
		if !info.Valid {
			continue
		}
		loaded, err := s.catalog.Load(ctx, info.Name)
		if err != nil {
			return fmt.Errorf("load %s: %w", info.Name, err)
		}
		if loaded.FellBack {
			continue
		}
		s.search.IndexDocument(ctx, info.Name, loaded.Document)
	}
	s.logger.Info("search index bootstrapped", zap.Int("documents", len(infos)))
	return nil
}

// Ready runs the registered dependency checks. A nil entry means healthy.
func (s *Service) Ready(ctx context.Context) map[string]error {
	results := make(map[string]error, len(s.checks))
	for name, check := range s.checks {
		results[name] = check(ctx)
	}
	return results
}

func (s *Service) ListDocuments(ctx context.Context) ([]store.DocumentInfo, error) {
	infos, err := s.catalog.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list launch documents: %w", err)
	}
	return infos, nil
}

// OpenSession loads documentName (the configured default when blank) into
// a new working copy. A missing or malformed document opens the built-in
// default instead; the session reports that through FellBack.
func (s *Service) OpenSession(ctx context.Context, documentName, role string) (Session, error) {
	if strings.TrimSpace(documentName) == "" {
		documentName = s.cfg.DefaultFile
	}
	name, err := store.CleanName(documentName)
	if err != nil {
		return Session{}, validationError("Invalid document name", map[string]any{"document": documentName})
	}

	loaded, err := s.catalog.Load(ctx, name)
	if err != nil {
		return Session{}, fmt.Errorf("load launch document: %w", err)
	}
	if loaded.FellBack {
		s.logger.Warn("launch document fell back to default",
			zap.String("document", name),
			zap.Error(loaded.Err))
	}

	now := s.now().UTC()
	record := session.Record{
		ID:           util.NewID("ses"),
		DocumentName: name,
		Role:         string(rbac.Normalize(role)),
		Document:     loaded.Document,
		FellBack:     loaded.FellBack,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.sessions.Put(ctx, record); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}

	token, err := auth.IssueSessionToken(s.secret, record.ID, name, record.Role, s.ttl, now)
	if err != nil {
		return Session{}, err
	}

	sess := toSession(record, s.ttl)
	sess.Token = token
	if loaded.Err != nil && loaded.FellBack {
		sess.LoadError = loaded.Err.Error()
	}
	s.logger.Info("session opened",
		zap.String("session", record.ID),
		zap.String("document", name),
		zap.String("role", record.Role))
	return sess, nil
}

// GrantRole decides the role of a new session. Editor sessions need the
// configured editor key; without one every caller may edit. Anything other
// than an editor request is granted viewer.
func (s *Service) GrantRole(requested, editorKey string) (rbac.Role, error) {
	if rbac.Normalize(requested) != rbac.RoleEditor {
		return rbac.RoleViewer, nil
	}
	want := s.cfg.EditorKey
	if want == "" {
		return rbac.RoleEditor, nil
	}
	if subtle.ConstantTimeCompare([]byte(editorKey), []byte(want)) != 1 {
		return "", forbidden("open editor session")
	}
	return rbac.RoleEditor, nil
}

// SessionFromToken verifies a bearer token and returns the live session it
// names.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken(s.secret, token)
	if err != nil {
		return Session{}, err
	}
	record, err := s.record(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}
	return toSession(record, s.ttl), nil
}

func (s *Service) CloseSession(ctx context.Context, sessionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	defer s.dropLock(sessionID)

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.logger.Info("session closed", zap.String("session", sessionID))
	return nil
}

func (s *Service) Document(ctx context.Context, sessionID string) (Session, error) {
	record, err := s.view(ctx, sessionID, rbac.ActionRead)
	if err != nil {
		return Session{}, err
	}
	return toSession(record, s.ttl), nil
}

func (s *Service) Step(ctx context.Context, sessionID, stepID string) (flow.Step, error) {
	record, err := s.view(ctx, sessionID, rbac.ActionRead)
	if err != nil {
		return flow.Step{}, err
	}
	step, ok := record.Document.Step(stepID)
	if !ok {
		return flow.Step{}, stepNotFound(stepID)
	}
	return *step, nil
}

func (s *Service) UpdateStep(ctx context.Context, sessionID, stepID string, patch flow.Patch) (flow.Step, error) {
	var updated flow.Step
	_, err := s.mutate(ctx, sessionID, rbac.ActionEdit, func(doc *flow.Document) error {
		step, err := doc.UpdateStep(stepID, patch)
		if err != nil {
			return err
		}
		updated = step
		return nil
	})
	return updated, err
}

// AddStep appends a new step built from title and phase, then applies the
// optional patch to it.
func (s *Service) AddStep(ctx context.Context, sessionID, title, phase string, patch flow.Patch) (flow.Step, error) {
	var added flow.Step
	_, err := s.mutate(ctx, sessionID, rbac.ActionEdit, func(doc *flow.Document) error {
		step := flow.NewStep(strings.TrimSpace(title), flow.Phase(phase))
		patch.Phase = nil
		patch.Order = nil
		patch.Apply(&step)
		added = doc.AddStep(step)
		return nil
	})
	return added, err
}

func (s *Service) RemoveStep(ctx context.Context, sessionID, stepID string) (Session, error) {
	record, err := s.mutate(ctx, sessionID, rbac.ActionEdit, func(doc *flow.Document) error {
		return doc.RemoveStep(stepID)
	})
	if err != nil {
		return Session{}, err
	}
	return toSession(record, s.ttl), nil
}

// UpdateDocument sets the header fields; nil leaves a field unchanged.
func (s *Service) UpdateDocument(ctx context.Context, sessionID string, name, description *string) (Session, error) {
	record, err := s.mutate(ctx, sessionID, rbac.ActionEdit, func(doc *flow.Document) error {
		if name != nil {
			doc.Name = strings.TrimSpace(*name)
		}
		if description != nil {
			doc.Description = *description
		}
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return toSession(record, s.ttl), nil
}

// Normalize re-sorts and repairs the working copy after a batch of edits.
func (s *Service) Normalize(ctx context.Context, sessionID string) (Session, error) {
	record, err := s.mutate(ctx, sessionID, rbac.ActionEdit, func(doc *flow.Document) error {
		flow.Normalize(doc)
		return nil
	})
	if err != nil {
		return Session{}, err
	}
	return toSession(record, s.ttl), nil
}

// Save writes the working copy to saveAs (the session's own document when
// blank), commits a revision and re-indexes the steps. A failed write keeps
// the working copy and its dirty flag.
func (s *Service) Save(ctx context.Context, sessionID, saveAs, author string) (SaveResult, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.authorize(ctx, sessionID, rbac.ActionSave)
	if err != nil {
		return SaveResult{}, err
	}

	name := record.DocumentName
	if strings.TrimSpace(saveAs) != "" {
		name, err = store.CleanName(saveAs)
		if err != nil {
			return SaveResult{}, validationError("Invalid file name", map[string]any{"saveAs": saveAs})
		}
	}
	if name == store.BackupFile {
		return SaveResult{}, validationError("Reserved file name", map[string]any{"saveAs": name})
	}

	doc := record.Document.Clone()
	flow.Normalize(&doc)
	if err := s.catalog.Save(ctx, name, doc); err != nil {
		s.logger.Error("save launch document failed",
			zap.String("session", sessionID),
			zap.String("document", name),
			zap.Error(err))
		return SaveResult{}, err
	}

	result := SaveResult{DocumentName: name}
	if s.git != nil {
		info, err := s.git.Commit(name, doc, author, "Save "+name)
		if err != nil {
			s.logger.Warn("commit revision failed", zap.String("document", name), zap.Error(err))
		} else {
			result.Revision = info
		}
	}
	if s.search != nil {
		s.search.IndexDocument(ctx, name, doc)
	}

	record.Document = doc
	record.DocumentName = name
	record.Dirty = false
	record.FellBack = false
	record.UpdatedAt = s.now().UTC()
	if err := s.sessions.Put(ctx, record); err != nil {
		return SaveResult{}, fmt.Errorf("store session: %w", err)
	}
	s.logger.Info("launch document saved",
		zap.String("session", sessionID),
		zap.String("document", name),
		zap.Int("steps", len(doc.Steps)),
		zap.String("revision", result.Revision.Hash))
	return result, nil
}

func (s *Service) Metrics(ctx context.Context, sessionID string) (metrics.Summary, error) {
	record, err := s.view(ctx, sessionID, rbac.ActionRead)
	if err != nil {
		return metrics.Summary{}, err
	}
	return metrics.Compute(record.Document), nil
}

func (s *Service) Layout(ctx context.Context, sessionID string, canvas layout.Canvas) (layout.Diagram, error) {
	record, err := s.view(ctx, sessionID, rbac.ActionRead)
	if err != nil {
		return layout.Diagram{}, err
	}
	if canvas.Width <= 0 || canvas.Height <= 0 {
		canvas = layout.DefaultCanvas
	}
	return layout.Compute(record.Document, canvas), nil
}

func (s *Service) Paginate(ctx context.Context, sessionID string, mode report.Mode, spec report.PageSpec) ([]report.Page, error) {
	record, err := s.view(ctx, sessionID, rbac.ActionExport)
	if err != nil {
		return nil, err
	}
	if spec.Height == 0 {
		spec = report.DefaultPageSpec
	}
	return report.Paginate(record.Document, mode, spec), nil
}

func (s *Service) Export(ctx context.Context, sessionID string, req export.Request) (*export.Result, error) {
	record, err := s.view(ctx, sessionID, rbac.ActionExport)
	if err != nil {
		return nil, err
	}
	if s.export == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	return s.export.Export(ctx, record.Document, req)
}

// Attach stores the upload under the step's attachment key and records the
// relative path on the step.
func (s *Service) Attach(ctx context.Context, sessionID, stepID, filename string, body io.Reader, size int64) (string, error) {
	if s.attachments == nil {
		return "", domainError(http.StatusServiceUnavailable, "ATTACHMENTS_UNAVAILABLE", "Attachment storage is not configured", nil)
	}

	var key string
	_, err := s.mutate(ctx, sessionID, rbac.ActionAttach, func(doc *flow.Document) error {
		if _, ok := doc.Step(stepID); !ok {
			return fmt.Errorf("%w: %s", flow.ErrStepNotFound, stepID)
		}
		name := doc.Name
		if strings.TrimSpace(name) == "" {
			name = "untitled"
		}
		var err error
		key, err = attachments.Key(name, stepID, filename)
		if err != nil {
			return err
		}
		if err := s.attachments.Put(ctx, key, body, size, attachments.ContentType(key)); err != nil {
			return fmt.Errorf("store attachment: %w", err)
		}
		return doc.AddAttachment(stepID, key)
	})
	if err != nil {
		return "", err
	}
	s.logger.Info("attachment stored", zap.String("session", sessionID), zap.String("key", key))
	return key, nil
}

func (s *Service) History(ctx context.Context, sessionID string, limit int) ([]gitrepo.CommitInfo, error) {
	record, err := s.view(ctx, sessionID, rbac.ActionRead)
	if err != nil {
		return nil, err
	}
	if s.git == nil {
		return []gitrepo.CommitInfo{}, nil
	}
	return s.git.History(record.DocumentName, limit)
}

// Revision returns the session document as it was at hash. The working copy
// is not touched.
func (s *Service) Revision(ctx context.Context, sessionID, hash string) (flow.Document, gitrepo.CommitInfo, error) {
	record, err := s.view(ctx, sessionID, rbac.ActionRead)
	if err != nil {
		return flow.Document{}, gitrepo.CommitInfo{}, err
	}
	if s.git == nil {
		return flow.Document{}, gitrepo.CommitInfo{}, gitrepo.ErrNoHistory
	}
	return s.git.Revision(record.DocumentName, hash)
}

func (s *Service) Search(_ context.Context, query search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: query.Text, Backend: "none"}, nil
	}
	if strings.TrimSpace(query.Text) == "" {
		return search.Response{}, validationError("Query text is required", nil)
	}
	if query.FilterDocument != "" {
		name, err := store.CleanName(query.FilterDocument)
		if err != nil {
			return search.Response{}, validationError("Invalid document name", map[string]any{"document": query.FilterDocument})
		}
		query.FilterDocument = name
	}
	return s.search.Search(query), nil
}

// mutate runs fn against the working copy under the session lock and
// stores the result as dirty.
func (s *Service) mutate(ctx context.Context, sessionID string, action rbac.Action, fn func(doc *flow.Document) error) (session.Record, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	record, err := s.authorize(ctx, sessionID, action)
	if err != nil {
		return session.Record{}, err
	}
	doc := record.Document.Clone()
	if err := fn(&doc); err != nil {
		return session.Record{}, err
	}
	record.Document = doc
	record.Dirty = true
	record.UpdatedAt = s.now().UTC()
	if err := s.sessions.Put(ctx, record); err != nil {
		return session.Record{}, fmt.Errorf("store session: %w", err)
	}
	return record, nil
}

func (s *Service) view(ctx context.Context, sessionID string, action rbac.Action) (session.Record, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()
	return s.authorize(ctx, sessionID, action)
}

func (s *Service) authorize(ctx context.Context, sessionID string, action rbac.Action) (session.Record, error) {
	record, err := s.record(ctx, sessionID)
	if err != nil {
		return session.Record{}, err
	}
	if !rbac.Can(rbac.Normalize(record.Role), action) {
		return session.Record{}, forbidden(string(action))
	}
	return record, nil
}

func (s *Service) record(ctx context.Context, sessionID string) (session.Record, error) {
	record, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, session.ErrNotFound) {
		s.dropLock(sessionID)
		return session.Record{}, sessionNotFound(sessionID)
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("load session: %w", err)
	}
	return record, nil
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &lockEntry{}
		s.locks[sessionID] = lock
	}
	lock.seen = s.now()
	return &lock.mu
}

func (s *Service) dropLock(sessionID string) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	delete(s.locks, sessionID)
}

// SweepSessions forgets sessions idle for longer than the session TTL:
// their locks are dropped and, when the session store can sweep itself,
// expired working copies are released. Locks currently held are kept.
func (s *Service) SweepSessions() int {
	if sweeper, ok := s.sessions.(interface{ Sweep() int }); ok {
		if removed := sweeper.Sweep(); removed > 0 {
			s.logger.Debug("expired sessions swept", zap.Int("count", removed))
		}
	}

	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	now := s.now()
	dropped := 0
	for id, lock := range s.locks {
		if now.Sub(lock.seen) < s.ttl || !lock.mu.TryLock() {
			continue
		}
		delete(s.locks, id)
		lock.mu.Unlock()
		dropped++
	}
	return dropped
}

// RunSweeper calls SweepSessions every interval until ctx is done.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.SweepSessions()
		}
	}
}

func toSession(record session.Record, ttl time.Duration) Session {
	return Session{
		ID:           record.ID,
		Role:         record.Role,
		DocumentName: record.DocumentName,
		Document:     record.Document,
		Dirty:        record.Dirty,
		FellBack:     record.FellBack,
		ExpiresAt:    record.UpdatedAt.Add(ttl),
	}
}
