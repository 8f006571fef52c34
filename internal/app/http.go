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

	"go.uber.org/zap"

	"launchnav/internal/attachments"
	"launchnav/internal/auth"
	"launchnav/internal/export"
	"launchnav/internal/flow"
	"launchnav/internal/gitrepo"
	"launchnav/internal/layout"
	"launchnav/internal/report"
	"launchnav/internal/search"
	"launchnav/internal/store"
)

// maxAttachmentBytes bounds a single upload.
const maxAttachmentBytes = 32 << 20

type HTTPServer struct {
	service    *Service
	corsOrigin string
	logger     *zap.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, logger: logger.Named("http")}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/documents" {
		infos, err := s.service.ListDocuments(r.Context())
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": infos})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/sessions" {
		var body struct {
			Document  string `json:"document"`
			Role      string `json:"role"`
			EditorKey string `json:"editorKey"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		role, err := s.service.GrantRole(body.Role, body.EditorKey)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		sess, err := s.service.OpenSession(r.Context(), body.Document, string(role))
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		if _, ok := s.requireSession(w, r); !ok {
			return
		}
		query := search.Query{
			Text:           r.URL.Query().Get("q"),
			FilterDocument: r.URL.Query().Get("document"),
			FilterPhase:    phaseFilter(r.URL.Query().Get("phase")),
			Limit:          queryInt(r, "limit", 20),
			Offset:         queryInt(r, "offset", 0),
		}
		response, err := s.service.Search(r.Context(), query)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response)
		return
	}

	if r.URL.Path == "/api/session" || strings.HasPrefix(r.URL.Path, "/api/session/") {
		sess, ok := s.requireSession(w, r)
		if !ok {
			return
		}
		parts := splitPath(strings.TrimPrefix(r.URL.Path, "/api/session"))
		s.handleSession(w, r, sess, parts)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.Ready(ctx) {
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

func (s *HTTPServer) handleSession(w http.ResponseWriter, r *http.Request, sess Session, parts []string) {
	ctx := r.Context()

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, sess)
		return

	case len(parts) == 0 && r.Method == http.MethodDelete:
		if err := s.service.CloseSession(ctx, sess.ID); err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return

	case len(parts) == 1 && parts[0] == "document" && r.Method == http.MethodGet:
		current, err := s.service.Document(ctx, sess.ID)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, current)
		return

	case len(parts) == 1 && parts[0] == "document" && r.Method == http.MethodPatch:
		var body struct {
			Name        *string `json:"name"`
			Description *string `json:"description"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		updated, err := s.service.UpdateDocument(ctx, sess.ID, body.Name, body.Description)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
		return

	case len(parts) == 1 && parts[0] == "normalize" && r.Method == http.MethodPost:
		updated, err := s.service.Normalize(ctx, sess.ID)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
		return

	case len(parts) == 1 && parts[0] == "save" && r.Method == http.MethodPost:
		var body struct {
			SaveAs string `json:"saveAs"`
			Author string `json:"author"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		result, err := s.service.Save(ctx, sess.ID, body.SaveAs, body.Author)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return

	case len(parts) == 1 && parts[0] == "steps" && r.Method == http.MethodPost:
		var body struct {
			Title string `json:"title"`
			Phase string `json:"phase"`
			flow.Patch
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		step, err := s.service.AddStep(ctx, sess.ID, body.Title, body.Phase, body.Patch)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, step)
		return

	case len(parts) == 2 && parts[0] == "steps":
		s.handleStep(w, r, sess, parts[1])
		return

	case len(parts) == 3 && parts[0] == "steps" && parts[2] == "attachments" && r.Method == http.MethodPost:
		filename := r.URL.Query().Get("filename")
		if strings.TrimSpace(filename) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "filename query parameter is required", nil)
			return
		}
		body := http.MaxBytesReader(w, r.Body, maxAttachmentBytes)
		defer body.Close()
		key, err := s.service.Attach(ctx, sess.ID, parts[1], filename, body, r.ContentLength)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "TOO_LARGE", "Attachment too large", map[string]any{"limit": tooLarge.Limit})
				return
			}
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"path": key})
		return

	case len(parts) == 1 && parts[0] == "metrics" && r.Method == http.MethodGet:
		summary, err := s.service.Metrics(ctx, sess.ID)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"metrics":        summary,
			"avgSuccessText": summary.AvgSuccessText(),
		})
		return

	case len(parts) == 1 && parts[0] == "layout" && r.Method == http.MethodGet:
		canvas := layout.Canvas{
			Width:  queryFloat(r, "width", 0),
			Height: queryFloat(r, "height", 0),
			Margin: queryFloat(r, "margin", layout.DefaultCanvas.Margin),
		}
		diagram, err := s.service.Layout(ctx, sess.ID, canvas)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"diagram": diagram, "empty": diagram.Empty()})
		return

	case len(parts) == 1 && parts[0] == "report" && r.Method == http.MethodGet:
		s.handleReport(w, r, sess)
		return

	case len(parts) == 1 && parts[0] == "history" && r.Method == http.MethodGet:
		items, err := s.service.History(ctx, sess.ID, queryInt(r, "limit", 50))
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return

	case len(parts) == 2 && parts[0] == "history" && r.Method == http.MethodGet:
		doc, info, err := s.service.Revision(ctx, sess.ID, parts[1])
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revision": info, "document": doc})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleStep(w http.ResponseWriter, r *http.Request, sess Session, stepID string) {
	ctx := r.Context()
	switch r.Method {
	case http.MethodGet:
		step, err := s.service.Step(ctx, sess.ID, stepID)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, step)
	case http.MethodPatch:
		var patch flow.Patch
		if err := decodeBody(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if patch.Empty() {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Patch changes nothing", nil)
			return
		}
		step, err := s.service.UpdateStep(ctx, sess.ID, stepID, patch)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, step)
	case http.MethodDelete:
		updated, err := s.service.RemoveStep(ctx, sess.ID, stepID)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

// handleReport returns the paginated pages as JSON by default; any other
// format is streamed as a download.
func (s *HTTPServer) handleReport(w http.ResponseWriter, r *http.Request, sess Session) {
	mode := report.ParseMode(r.URL.Query().Get("mode"))
	rawFormat := r.URL.Query().Get("format")
	if rawFormat == "" {
		rawFormat = string(export.FormatJSON)
	}
	format, ok := export.ParseFormat(rawFormat)
	if !ok {
		writeError(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Unsupported export format", map[string]any{"format": rawFormat})
		return
	}

	if format == export.FormatJSON {
		pages, err := s.service.Paginate(r.Context(), sess.ID, mode, report.DefaultPageSpec)
		if err != nil {
			s.writeMappedError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"mode": mode, "pageCount": len(pages), "pages": pages})
		return
	}

	result, err := s.service.Export(r.Context(), sess.ID, export.Request{Mode: mode, Format: format})
	if err != nil {
		s.writeMappedError(w, err)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("X-Report-Pages", strconv.Itoa(result.Pages))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Session{}, false
	}
	sess, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		s.writeMappedError(w, err)
		return Session{}, false
	}
	return sess, true
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("code", code), zap.Error(err))
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

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
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
	header.Set("Access-Control-Expose-Headers", "Content-Disposition, X-Report-Pages")
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
		if errors.Is(err, http.ErrBodyReadAfterClose) || errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	token, _ := auth.BearerToken(r.Header.Get("Authorization"))
	return token
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func queryFloat(r *http.Request, key string, fallback float64) float64 {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func phaseFilter(raw string) flow.Phase {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	return flow.ParsePhase(raw)
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	switch {
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	case errors.Is(err, flow.ErrStepNotFound):
		return http.StatusNotFound, "STEP_NOT_FOUND", "Step not found", nil
	case errors.Is(err, gitrepo.ErrNoHistory):
		return http.StatusNotFound, "NO_HISTORY", "Document has no saved revisions", nil
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, attachments.ErrInvalidFilename):
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil
	case errors.Is(err, flow.ErrWrite):
		return http.StatusInternalServerError, "SAVE_FAILED", "Launch document could not be saved", nil
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Unsupported export format", nil
	case errors.Is(err, export.ErrPDFDependencyMissing), errors.Is(err, export.ErrDOCXDependencyMissing):
		return http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
