// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// COMMAND TESTS
// =============================================================================

func withToken(t *testing.T) *testEnv {
	t.Helper()
	e := newTestEnv(t)
	e.mustRun("token", "set", "secret-token")
	return e
}

func TestVersion_JSON(t *testing.T) {
	e := newTestEnv(t)
	out := e.mustRun("--json", "version")

	var info map[string]string
	decodeData(t, out, &info)
	assert.Equal(t, Version, info["version"])
}

func TestToken_SetShowClear(t *testing.T) {
	e := newTestEnv(t)

	_, _, err := e.run("from-stdin\n", "token", "set")
	require.NoError(t, err)

	var shown map[string]any
	decodeData(t, e.mustRun("--json", "token", "show"), &shown)
	assert.Equal(t, true, shown["stored"])
	assert.NotEmpty(t, shown["fingerprint"])

	e.mustRun("token", "clear")
	decodeData(t, e.mustRun("--json", "token", "show"), &shown)
	assert.Equal(t, false, shown["stored"])
}

func TestSend_RequiresToken(t *testing.T) {
	e := newTestEnv(t)
	_, _, err := e.run("", "send", "hello")
	require.Error(t, err)
	assert.Equal(t, ExitAuthError, GetExitCode(err))
	assert.False(t, e.backend.called("stream"))
}

func TestSend_Streams(t *testing.T) {
	e := withToken(t)
	e.backend.frames = []string{
		"event:session\ndata:{\"sessionId\":\"77\",\"userMessageId\":1}\n\n",
		"event:message\ndata:Hello\n\n",
		"event:message\ndata: world\n\n",
		"event:done\ndata:{\"assistantMessageId\":2}\n\n",
	}

	out, errOut, err := e.run("", "send", "hi", "there")
	require.NoError(t, err)
	assert.Equal(t, "Hello world\n", out)
	assert.Contains(t, errOut, "session 77")
	assert.Equal(t, "Bearer secret-token", e.backend.auth)
	assert.True(t, e.backend.called("list"), "a new session refreshes the list")
}

func TestSend_StreamsJSON(t *testing.T) {
	e := withToken(t)
	e.backend.frames = []string{
		"event:session\ndata:{\"sessionId\":\"77\",\"userMessageId\":1}\n\n",
		"event:message\ndata:Hi\n\n",
		"event:done\ndata:{\"assistantMessageId\":2}\n\n",
	}

	out := e.mustRun("--json", "send", "hello")
	var res SendResult
	decodeData(t, out, &res)
	assert.Equal(t, "77", res.SessionID)
	assert.Equal(t, "1", res.UserMessageID)
	assert.Equal(t, "2", res.AssistantMessageID)
	assert.True(t, res.NewSession)
	assert.Equal(t, "SETTLED", res.State)
	assert.Equal(t, 1, res.Deltas)
	assert.Equal(t, "Hi", res.Reply)
}

func TestSend_NoStreamReadsStdin(t *testing.T) {
	e := withToken(t)

	out, _, err := e.run("piped question\n", "send", "--no-stream")
	require.NoError(t, err)
	assert.Contains(t, out, "A blocking reply.")
	assert.True(t, e.backend.called("chat"))
	assert.False(t, e.backend.called("stream"))
}

func TestSend_EmptyMessage(t *testing.T) {
	e := withToken(t)
	_, _, err := e.run("   \n", "send")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestSend_Unauthorized(t *testing.T) {
	e := withToken(t)
	e.backend.status = http.StatusUnauthorized

	_, _, err := e.run("", "send", "--no-stream", "hello")
	require.Error(t, err)
	assert.Equal(t, ExitAuthError, GetExitCode(err))
}

func TestSessionsList_ArchivesForHistory(t *testing.T) {
	e := withToken(t)

	var listed []SessionInfo
	decodeData(t, e.mustRun("--json", "sessions", "list"), &listed)
	require.Len(t, listed, 2)
	assert.Equal(t, "77", listed[0].ID)
	assert.Equal(t, "Trip planning", listed[0].Title)

	var archived []SessionInfo
	decodeData(t, e.mustRun("--json", "history"), &archived)
	assert.Len(t, archived, 2)

	var filtered []SessionInfo
	decodeData(t, e.mustRun("--json", "history", "--filter", "recipe"), &filtered)
	require.Len(t, filtered, 1)
	assert.Equal(t, "78", filtered[0].ID)
}

func TestSessionsShow_ThenHistoryOffline(t *testing.T) {
	e := withToken(t)

	out := e.mustRun("sessions", "show", "77")
	assert.Contains(t, out, "Trip planning")
	assert.Contains(t, out, "Where to go?")
	assert.Contains(t, out, "Lisbon.")

	e.srv.Close()

	var msgs []MessageInfo
	decodeData(t, e.mustRun("--json", "history", "77"), &msgs)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Where to go?", msgs[0].Content)
	assert.Equal(t, "ASSISTANT", msgs[1].Role)
}

func TestHistory_EmptyArchive(t *testing.T) {
	e := newTestEnv(t)
	out := e.mustRun("history")
	assert.Contains(t, out, "The archive is empty")
}

func TestSessionsRename(t *testing.T) {
	e := withToken(t)

	var info SessionInfo
	decodeData(t, e.mustRun("--json", "sessions", "rename", "77", "Lisbon", "trip"), &info)
	assert.Equal(t, "Lisbon trip", info.Title)
	assert.True(t, e.backend.called("rename 77"))
}

func TestSessionsRename_UnknownSession(t *testing.T) {
	e := withToken(t)
	_, _, err := e.run("", "sessions", "rename", "404", "Nope")
	require.Error(t, err)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestSessionsArchive(t *testing.T) {
	e := withToken(t)

	var info SessionInfo
	decodeData(t, e.mustRun("--json", "sessions", "archive", "77"), &info)
	assert.Equal(t, "77", info.ID)
	assert.True(t, e.backend.called("archive 77"))
}

func TestSessionsDelete_NeedsConfirm(t *testing.T) {
	e := withToken(t)
	e.mustRun("project", "link", "77", "travel")

	_, _, err := e.run("", "sessions", "delete", "77")
	require.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.False(t, e.backend.called("delete 77"))

	out := e.mustRun("sessions", "delete", "77", "--confirm")
	assert.Contains(t, out, "Deleted session 77")
	assert.True(t, e.backend.called("delete 77"))

	var projects map[string][]string
	decodeData(t, e.mustRun("--json", "project", "list"), &projects)
	assert.Empty(t, projects, "deleting a session unlinks it")
}

func TestMessagesEdit_Regenerate(t *testing.T) {
	e := withToken(t)

	var msgs []MessageInfo
	decodeData(t, e.mustRun("--json", "messages", "edit", "1", "--session", "77", "--regenerate", "Where", "else?"), &msgs)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Where else?", msgs[0].Content)
	assert.Equal(t, "Porto, then.", msgs[1].Content)
	assert.True(t, e.backend.called("edit 1"))
}

func TestMessagesEdit_RequiresSession(t *testing.T) {
	e := withToken(t)
	_, _, err := e.run("", "messages", "edit", "1", "text")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestProject_LinkAndList(t *testing.T) {
	e := newTestEnv(t)
	e.mustRun("project", "link", "77", "travel")
	e.mustRun("project", "link", "78", "travel")
	e.mustRun("project", "link", "90", "cooking")

	var ids []string
	decodeData(t, e.mustRun("--json", "project", "list", "travel"), &ids)
	assert.ElementsMatch(t, []string{"77", "78"}, ids)

	out := e.mustRun("project", "list")
	assert.Contains(t, out, "cooking")
	assert.Contains(t, out, "travel")

	var unlinked map[string]any
	decodeData(t, e.mustRun("--json", "project", "unlink", "90"), &unlinked)
	assert.Equal(t, true, unlinked["removed"])
}

func TestConfig_SetGet(t *testing.T) {
	e := newTestEnv(t)
	e.mustRun("config", "set", "chat.streaming", "false")

	var got map[string]any
	decodeData(t, e.mustRun("--json", "config", "get", "chat.streaming"), &got)
	assert.Equal(t, false, got["value"])

	_, _, err := e.run("", "config", "get", "no.such.key")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestDoctor_JSON(t *testing.T) {
	e := withToken(t)

	out, _, err := e.run("", "--json", "doctor")
	require.NoError(t, err)

	var report struct {
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	decodeData(t, out, &report)
	require.NotEmpty(t, report.Checks)
	for _, c := range report.Checks {
		assert.NotEqual(t, "fail", c.Status, c.Name)
	}
}

func TestExport_WritesFile(t *testing.T) {
	e := withToken(t)
	outDir := filepath.Join(e.dir, "exports")

	var res map[string]any
	decodeData(t, e.mustRun("--json", "export", "77", "--format", "html", "--output", outDir), &res)
	assert.Equal(t, "77", res["session_id"])
	assert.Equal(t, "html", res["format"])
	assert.EqualValues(t, 2, res["messages"])

	data, err := os.ReadFile(res["path"].(string))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<title>Trip planning</title>")
	assert.Contains(t, string(data), "Lisbon.")
}

func TestExport_OfflineStdout(t *testing.T) {
	e := withToken(t)
	e.mustRun("sessions", "show", "77")
	e.srv.Close()

	out := e.mustRun("export", "77", "--offline", "--stdout", "--no-metadata")
	assert.True(t, strings.HasPrefix(out, "# Trip planning\n"), out)
	assert.Contains(t, out, "Where to go?")

	_, _, err := e.run("", "export", "78", "--offline", "--stdout")
	require.Error(t, err)
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestExport_UnknownFormat(t *testing.T) {
	e := withToken(t)
	_, _, err := e.run("", "export", "77", "--format", "pdf")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.False(t, e.backend.called("get 77"))
}

func TestNewRootCommand_Tree(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"chat", "send", "sessions", "messages", "token", "project", "history", "export", "config", "doctor", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestDoctor_FailureStillReports(t *testing.T) {
	e := withToken(t)
	e.backend.status = http.StatusUnauthorized

	out, _, err := e.run("", "--json", "doctor")
	require.Error(t, err)

	var resp struct {
		Success bool    `json:"success"`
		Error   *string `json:"error"`
		Data    struct {
			Summary DoctorSummary `json:"summary"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, 1, resp.Data.Summary.Failed)
	assert.False(t, resp.Data.Summary.Healthy)
}
