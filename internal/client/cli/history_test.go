package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/uploadvault/internal/client/client"
	"github.com/dmitrijs2005/uploadvault/internal/client/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withHistory(t *testing.T, a *App) *history.Store {
	t.Helper()
	h, err := history.Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	a.history = h
	return h
}

func statuses(t *testing.T, h *history.Store) map[string]string {
	t.Helper()
	entries, err := h.List(context.Background())
	require.NoError(t, err)
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.FileID] = e.Status
	}
	return out
}

func TestHistory_UploadRecordsAndConfirms(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("some notes"), 0o600))

	a := newTestApp(&fakeAPI{uploadURL: ts.URL}, io.Discard)
	h := withHistory(t, a)

	require.NoError(t, a.Run(context.Background(), []string{"upload", path}))

	entries, err := h.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "f-1", entries[0].FileID)
	assert.Equal(t, "notes.txt", entries[0].Filename)
	assert.Equal(t, int64(10), entries[0].SizeBytes)
	assert.Equal(t, path, entries[0].LocalPath)
	assert.Equal(t, "uploaded", entries[0].Status)
}

func TestHistory_FailedTransferStaysPending(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(path, []byte{1}, 0o600))

	a := newTestApp(&fakeAPI{uploadURL: ts.URL}, io.Discard)
	h := withHistory(t, a)

	require.Error(t, a.Run(context.Background(), []string{"upload", path}))
	assert.Equal(t, map[string]string{"f-1": "pending"}, statuses(t, h))
}

func TestHistory_ConfirmUnknownIsQuiet(t *testing.T) {
	var out bytes.Buffer
	a := newTestApp(&fakeAPI{}, &out)
	withHistory(t, a)

	require.NoError(t, a.Run(context.Background(), []string{"confirm", "elsewhere"}))
	assert.NotContains(t, out.String(), "warning")
}

func TestHistory_RemoveForgets(t *testing.T) {
	a := newTestApp(&fakeAPI{}, io.Discard)
	h := withHistory(t, a)
	ctx := context.Background()

	require.NoError(t, h.Record(ctx, history.Entry{FileID: "f-3", Filename: "x", Status: "uploaded"}))
	require.NoError(t, a.Run(ctx, []string{"rm", "f-3"}))
	assert.Empty(t, statuses(t, h))
}

func TestHistory_ListAndRefresh(t *testing.T) {
	var out bytes.Buffer
	f := &fakeAPI{missing: map[string]bool{"f-gone": true}}
	a := newTestApp(f, &out)
	h := withHistory(t, a)
	ctx := context.Background()

	require.NoError(t, h.Record(ctx, history.Entry{FileID: "f-ok", Filename: "a.txt", SizeBytes: 5, Status: "pending"}))
	require.NoError(t, h.Record(ctx, history.Entry{FileID: "f-gone", Filename: "b.txt", Status: "pending"}))

	require.NoError(t, a.Run(ctx, []string{"refresh"}))
	assert.Equal(t, "2 updated\n", out.String())
	assert.Equal(t, map[string]string{"f-ok": "uploaded", "f-gone": history.StatusGone}, statuses(t, h))

	out.Reset()
	require.NoError(t, a.Run(ctx, []string{"ls"}))
	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "ID")
	assert.Contains(t, out.String(), "f-gone")
	assert.Contains(t, out.String(), "a.txt")
}

func TestHistory_RefreshStopsOnServerError(t *testing.T) {
	a := newTestApp(&fakeAPI{metadataErr: client.ErrUnavailable}, io.Discard)
	h := withHistory(t, a)
	ctx := context.Background()

	require.NoError(t, h.Record(ctx, history.Entry{FileID: "f-1", Filename: "a", Status: "pending"}))
	require.ErrorIs(t, a.Run(ctx, []string{"refresh"}), client.ErrUnavailable)
	assert.Equal(t, map[string]string{"f-1": "pending"}, statuses(t, h))
}

func TestHistory_Disabled(t *testing.T) {
	a := newTestApp(&fakeAPI{}, io.Discard)
	require.ErrorIs(t, a.Run(context.Background(), []string{"ls"}), ErrNoHistory)
	require.ErrorIs(t, a.Run(context.Background(), []string{"refresh"}), ErrNoHistory)
}
