package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"launchnav/internal/flow"
)

func newTestServer(t *testing.T) (*HTTPServer, testEnv) {
	t.Helper()
	env := newTestEnv(t, nil)
	return NewHTTPServer(env.svc, "*", nil), env
}

func doRequest(t *testing.T, server *HTTPServer, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload), "body=%s", rr.Body.String())
	return payload
}

func openSession(t *testing.T, server *HTTPServer, role string) string {
	t.Helper()
	rr := doRequest(t, server, http.MethodPost, "/api/sessions", "", strings.NewReader(`{"role":"`+role+`"}`))
	require.Equal(t, http.StatusCreated, rr.Code, "body=%s", rr.Body.String())
	payload := decodeResponse(t, rr)
	token, _ := payload["token"].(string)
	require.NotEmpty(t, token)
	assert.NotEmpty(t, payload["sessionId"])
	assert.NotNil(t, payload["document"])
	return token
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, true, decodeResponse(t, rr)["ok"])
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestReadyEndpointReportsFailingCheck(t *testing.T) {
	env := newTestEnv(t, nil)
	env.svc.checks = map[string]func(context.Context) error{
		"database": func(context.Context) error { return errors.New("connection refused") },
		"sessions": func(context.Context) error { return nil },
	}
	server := NewHTTPServer(env.svc, "*", nil)

	rr := doRequest(t, server, http.MethodGet, "/api/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	payload := decodeResponse(t, rr)
	assert.Equal(t, "not_ready", payload["status"])
	checks := payload["checks"].(map[string]any)
	assert.Equal(t, "error", checks["database"].(map[string]any)["status"])
	assert.Equal(t, "ok", checks["sessions"].(map[string]any)["status"])
}

func TestSessionRoutesRequireToken(t *testing.T) {
	server, _ := newTestServer(t)

	tests := []struct {
		name  string
		token string
		code  int
	}{
		{name: "missing", token: "", code: http.StatusUnauthorized},
		{name: "garbage", token: "not-a-token", code: http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, server, http.MethodGet, "/api/session/document", tc.token, nil)
			require.Equal(t, tc.code, rr.Code, "body=%s", rr.Body.String())
			assert.Equal(t, "UNAUTHORIZED", decodeResponse(t, rr)["code"])
		})
	}
}

func TestClosedSessionIsNotFound(t *testing.T) {
	server, _ := newTestServer(t)
	token := openSession(t, server, "editor")

	rr := doRequest(t, server, http.MethodDelete, "/api/session", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, server, http.MethodGet, "/api/session/document", token, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decodeResponse(t, rr)["code"])
}

func TestPatchStepAndSave(t *testing.T) {
	server, env := newTestServer(t)
	token := openSession(t, server, "editor")

	rr := doRequest(t, server, http.MethodPatch, "/api/session/steps/4", token,
		strings.NewReader(`{"owner":"Infra","success":"91,5","linksText":"https://a.example\n\nhttps://b.example"}`))
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	var step flow.Step
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &step))
	assert.Equal(t, "Infra", step.Owner)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, step.Links)
	value, ok := step.Success.Value()
	require.True(t, ok)
	assert.InDelta(t, 91.5, value, 1e-9)

	rr = doRequest(t, server, http.MethodPatch, "/api/session/steps/missing", token, strings.NewReader(`{"owner":"x"}`))
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "STEP_NOT_FOUND", decodeResponse(t, rr)["code"])

	rr = doRequest(t, server, http.MethodPatch, "/api/session/steps/4", token, strings.NewReader(`{}`))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = doRequest(t, server, http.MethodPost, "/api/session/save", token, strings.NewReader(`{"saveAs":"wave"}`))
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	assert.Equal(t, "wave.json", decodeResponse(t, rr)["documentName"])

	rr = doRequest(t, server, http.MethodGet, "/api/documents", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	items := decodeResponse(t, rr)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "wave.json", items[0].(map[string]any)["name"])

	loaded := flow.LoadFile(env.dataDir + "/wave.json")
	require.False(t, loaded.FellBack)
	saved, ok := loaded.Document.Step("4")
	require.True(t, ok)
	assert.Equal(t, "Infra", saved.Owner)

	rr = doRequest(t, server, http.MethodGet, "/api/session/history", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decodeResponse(t, rr)["items"].([]any), 1)
}

func TestAddAndDeleteStep(t *testing.T) {
	server, _ := newTestServer(t)
	token := openSession(t, server, "editor")

	rr := doRequest(t, server, http.MethodPost, "/api/session/steps", token,
		strings.NewReader(`{"title":"Retrospective","phase":"Close & Sustain","owner":"PMO"}`))
	require.Equal(t, http.StatusCreated, rr.Code, "body=%s", rr.Body.String())
	var step flow.Step
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &step))
	assert.Equal(t, "Retrospective", step.Title)
	assert.Equal(t, "PMO", step.Owner)
	assert.Equal(t, flow.PhaseClose, step.Phase)

	rr = doRequest(t, server, http.MethodDelete, "/api/session/steps/"+step.ID, token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(t, server, http.MethodGet, "/api/session/steps/"+step.ID, token, nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestViewerWriteRoutesAreForbidden(t *testing.T) {
	server, _ := newTestServer(t)
	token := openSession(t, server, "viewer")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "patch step", method: http.MethodPatch, path: "/api/session/steps/1", body: `{"title":"x"}`},
		{name: "add step", method: http.MethodPost, path: "/api/session/steps", body: `{"title":"x"}`},
		{name: "delete step", method: http.MethodDelete, path: "/api/session/steps/1"},
		{name: "patch document", method: http.MethodPatch, path: "/api/session/document", body: `{"name":"x"}`},
		{name: "normalize", method: http.MethodPost, path: "/api/session/normalize"},
		{name: "save", method: http.MethodPost, path: "/api/session/save", body: `{}`},
		{name: "attach", method: http.MethodPost, path: "/api/session/steps/1/attachments?filename=a.txt", body: "hello"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doRequest(t, server, tc.method, tc.path, token, strings.NewReader(tc.body))
			require.Equal(t, http.StatusForbidden, rr.Code, "body=%s", rr.Body.String())
			assert.Equal(t, "FORBIDDEN", decodeResponse(t, rr)["code"])
		})
	}

	rr := doRequest(t, server, http.MethodGet, "/api/session/metrics", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestMetricsAndLayout(t *testing.T) {
	server, _ := newTestServer(t)
	token := openSession(t, server, "viewer")

	rr := doRequest(t, server, http.MethodGet, "/api/session/metrics", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	payload := decodeResponse(t, rr)
	summary := payload["metrics"].(map[string]any)
	assert.EqualValues(t, len(flow.Default().Steps), summary["stepCount"])
	assert.NotEqual(t, "—", payload["avgSuccessText"])

	rr = doRequest(t, server, http.MethodGet, "/api/session/layout?width=800&height=300", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	payload = decodeResponse(t, rr)
	assert.Equal(t, false, payload["empty"])
	diagram := payload["diagram"].(map[string]any)
	assert.Len(t, diagram["nodes"].([]any), len(flow.Default().Steps))
	assert.Len(t, diagram["links"].([]any), len(flow.Default().Steps)-1)
}

func TestReportFormats(t *testing.T) {
	server, _ := newTestServer(t)
	token := openSession(t, server, "viewer")

	rr := doRequest(t, server, http.MethodGet, "/api/session/report?mode=detailed", token, nil)
	require.Equal(t, http.StatusOK, rr.Code, "body=%s", rr.Body.String())
	payload := decodeResponse(t, rr)
	assert.Equal(t, "detailed", payload["mode"])
	assert.NotZero(t, payload["pageCount"])

	rr = doRequest(t, server, http.MethodGet, "/api/session/report?format=text", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), "Global-Launch-summary.txt")
	assert.NotEmpty(t, rr.Header().Get("X-Report-Pages"))

	rr = doRequest(t, server, http.MethodGet, "/api/session/report?format=html", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "<html")

	rr = doRequest(t, server, http.MethodGet, "/api/session/report?format=odt", token, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "UNSUPPORTED_FORMAT", decodeResponse(t, rr)["code"])
}

func TestAttachmentUpload(t *testing.T) {
	server, _ := newTestServer(t)
	token := openSession(t, server, "editor")

	rr := doRequest(t, server, http.MethodPost, "/api/session/steps/2/attachments?filename=brief.txt", token, bytes.NewBufferString("brief"))
	require.Equal(t, http.StatusCreated, rr.Code, "body=%s", rr.Body.String())
	assert.Equal(t, "attachments/launch_Global_Launch/step_2/brief.txt", decodeResponse(t, rr)["path"])

	rr = doRequest(t, server, http.MethodPost, "/api/session/steps/2/attachments", token, bytes.NewBufferString("brief"))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestSearchRequiresQuery(t *testing.T) {
	server, _ := newTestServer(t)
	token := openSession(t, server, "viewer")

	rr := doRequest(t, server, http.MethodGet, "/api/search?q=", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	rr = doRequest(t, server, http.MethodGet, "/api/search?q=anything", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "local", decodeResponse(t, rr)["backend"])
}

func TestUnknownRoute(t *testing.T) {
	server, _ := newTestServer(t)
	rr := doRequest(t, server, http.MethodGet, "/api/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "NOT_FOUND", decodeResponse(t, rr)["code"])
}

func TestEditorSessionRequiresConfiguredKey(t *testing.T) {
	env := newTestEnv(t, nil)
	env.svc.cfg.EditorKey = "launch-room"
	server := NewHTTPServer(env.svc, "*", nil)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantRole string
	}{
		{name: "editor without key", body: `{"role":"editor"}`, wantCode: http.StatusForbidden},
		{name: "editor with wrong key", body: `{"role":"editor","editorKey":"guess"}`, wantCode: http.StatusForbidden},
		{name: "editor with key", body: `{"role":"editor","editorKey":"launch-room"}`, wantCode: http.StatusCreated, wantRole: "editor"},
		{name: "viewer without key", body: `{"role":"viewer"}`, wantCode: http.StatusCreated, wantRole: "viewer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, server, http.MethodPost, "/api/sessions", "", strings.NewReader(tt.body))
			require.Equal(t, tt.wantCode, rr.Code, "body=%s", rr.Body.String())
			if tt.wantRole != "" {
				assert.Equal(t, tt.wantRole, decodeResponse(t, rr)["role"])
			}
		})
	}
}
