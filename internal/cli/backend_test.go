// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory chat backend speaking the REST and SSE
// endpoints the client uses.
type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	sessions []map[string]any
	messages map[string][]map[string]any
	frames   []string
	status   int // non-zero forces every REST call to fail with it
	auth     string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		sessions: []map[string]any{
			{"sessionId": "77", "title": "Trip planning", "status": "ACTIVE", "messageCount": 2, "isPublic": false},
			{"sessionId": "78", "title": "Recipes", "status": "PAUSED", "messageCount": 0, "isPublic": true},
		},
		messages: map[string][]map[string]any{
			"77": {
				{"id": 1, "role": "user", "content": "Where to go?", "timestamp": "2025-03-01T10:00:00"},
				{"id": 2, "role": "assistant", "content": "Lisbon.", "timestamp": "2025-03-01T10:00:05"},
			},
		},
	}
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeBackend) session(id string) map[string]any {
	for _, s := range f.sessions {
		if s["sessionId"] == id {
			return s
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	list := func(w http.ResponseWriter, r *http.Request) {
		f.record("list")
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"sessions":      f.sessions,
			"totalPages":    1,
			"totalElements": len(f.sessions),
			"currentPage":   0,
			"pageSize":      len(f.sessions),
		})
	}
	mux.HandleFunc("GET /api/v1/sessions", list)
	mux.HandleFunc("GET /api/v1/sessions/search", list)
	mux.HandleFunc("GET /api/v1/sessions/public", list)

	mux.HandleFunc("GET /api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record("get " + r.PathValue("id"))
		f.mu.Lock()
		defer f.mu.Unlock()
		if s := f.session(r.PathValue("id")); s != nil {
			writeJSON(w, http.StatusOK, s)
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "session not found"})
	})

	mux.HandleFunc("GET /api/v1/sessions/{id}/messages", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.record("messages " + id)
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"sessionId":     id,
			"totalMessages": len(f.messages[id]),
			"messages":      f.messages[id],
		})
	})

	mux.HandleFunc("PUT /api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.record("rename " + id)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		s := f.session(id)
		if s == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "session not found"})
			return
		}
		s["title"] = body["title"]
		writeJSON(w, http.StatusOK, s)
	})

	mux.HandleFunc("POST /api/v1/sessions/{id}/archive", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.record("archive " + id)
		f.mu.Lock()
		defer f.mu.Unlock()
		s := f.session(id)
		s["status"] = "ARCHIVED"
		writeJSON(w, http.StatusOK, s)
	})

	mux.HandleFunc("DELETE /api/v1/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record("delete " + r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("PUT /api/v1/messages/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		f.record("edit " + id)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		defer f.mu.Unlock()
		msgs := f.messages["77"]
		msgs[0]["content"] = body["content"]
		msgs[1]["content"] = "Porto, then."
		writeJSON(w, http.StatusOK, msgs[0])
	})

	mux.HandleFunc("POST /api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		f.record("chat")
		writeJSON(w, http.StatusOK, map[string]any{
			"sessionId":          "90",
			"userMessageId":      11,
			"assistantMessageId": 12,
			"assistantMessage":   "A blocking reply.",
			"isNewSession":       true,
		})
	})

	mux.HandleFunc("POST /api/v1/chat/stream", func(w http.ResponseWriter, r *http.Request) {
		f.record("stream")
		f.mu.Lock()
		frames := f.frames
		f.mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, fr := range frames {
			fmt.Fprint(w, fr)
			flusher.Flush()
		}
	})

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		status := f.status
		f.auth = r.Header.Get("Authorization")
		f.mu.Unlock()
		if status != 0 {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}
		mux.ServeHTTP(w, r)
	})
}

// testEnv points the CLI at a fake backend and temporary storage.
type testEnv struct {
	t          *testing.T
	backend    *fakeBackend
	srv        *httptest.Server
	dir        string
	configPath string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fb := newFakeBackend()
	srv := httptest.NewServer(fb.handler(t))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("NO_COLOR", "1")
	t.Setenv("G4CHAT_BASE_URL", srv.URL)
	t.Setenv("G4CHAT_STATE_PATH", filepath.Join(dir, "state.json"))
	t.Setenv("G4CHAT_ARCHIVE_PATH", filepath.Join(dir, "archive.db"))
	t.Setenv("G4CHAT_WATCH_STATE", "false")
	t.Setenv("G4CHAT_LOG_LEVEL", "error")

	return &testEnv{
		t:          t,
		backend:    fb,
		srv:        srv,
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
	}
}

// run executes one g4chat invocation in process.
func (e *testEnv) run(stdin string, args ...string) (stdout, stderr string, err error) {
	e.t.Helper()
	root, o := newRoot()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err = root.ExecuteContext(context.Background())
	o.close()
	return out.String(), errOut.String(), err
}

// mustRun is run that fails the test on error.
func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, errOut, err := e.run("", args...)
	require.NoError(e.t, err, "stderr: %s", errOut)
	return out
}

// decodeData unmarshals the data field of a --json envelope.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.True(t, resp.Success)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}
