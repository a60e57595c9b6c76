package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocontext-indexd/internal/buildindex"
	"github.com/dshills/gocontext-indexd/internal/indexer"
	"github.com/dshills/gocontext-indexd/internal/parser"
	"github.com/dshills/gocontext-indexd/internal/storage"
	"github.com/dshills/gocontext-indexd/internal/worker"
	"github.com/dshills/gocontext-indexd/pkg/types"
)

type fixedSchedule struct {
	expr string
	next time.Time
}

func (f fixedSchedule) CronExpr() string      { return f.expr }
func (f fixedSchedule) NextRunAt() *time.Time { return &f.next }

func newTestIndexer(t *testing.T) *indexer.Indexer {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return indexer.New(store, indexer.Config{
		Workers: 2,
		Tuning: buildindex.Tuning{
			TickInterval:      time.Millisecond,
			BackpressureSleep: time.Millisecond,
			DrainBudget:       20 * time.Millisecond,
			WorkerPoll:        time.Millisecond,
		},
	}, nil, nil)
}

func testProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"go.mod":     "module example.com/api\n\ngo 1.25\n",
		"main.go":    "package main\n\nfunc main() {}\n",
		"a/a.go":     "package a\n\ntype A struct{}\n",
		"a/broke.go": "package a\n\nvar = 1\n",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

func doRequest(t *testing.T, h http.Handler, method, target string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func errorCode(out map[string]interface{}) string {
	e, _ := out["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

func waitIdle(t *testing.T, idx *indexer.Indexer) {
	t.Helper()
	require.Eventually(t, func() bool { return !idx.Running() && idx.LastStatistics() != nil }, 10*time.Second, 5*time.Millisecond)
}

func TestStatus_Idle(t *testing.T) {
	idx := newTestIndexer(t)
	next := time.Date(2030, 1, 6, 2, 0, 0, 0, time.UTC)
	h := NewRouter(context.Background(), idx, fixedSchedule{expr: "0 2 * * 0", next: next}, "v1.2.3", nil)

	rec, out := doRequest(t, h, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "v1.2.3", out["version"])
	assert.Nil(t, out["last_build"])

	indexing := out["indexing"].(map[string]interface{})
	assert.Equal(t, false, indexing["running"])

	schedule := out["schedule"].(map[string]interface{})
	assert.Equal(t, "0 2 * * 0", schedule["cron"])
	assert.Equal(t, next.Format(time.RFC3339), schedule["next_run_at"])
}

func TestIndexThenStatusAndErrors(t *testing.T) {
	idx := newTestIndexer(t)
	root := testProject(t)
	h := NewRouter(context.Background(), idx, nil, "dev", nil)

	rec, out := doRequest(t, h, http.MethodPost, "/api/index", map[string]interface{}{"path": root})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "running", out["status"])
	waitIdle(t, idx)

	rec, out = doRequest(t, h, http.MethodGet, "/api/status?path="+url.QueryEscape(root), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	last := out["last_build"].(map[string]interface{})
	assert.Equal(t, float64(3), last["bundles_merged"])
	assert.Equal(t, false, last["interrupted"])

	project := out["project"].(map[string]interface{})
	assert.Equal(t, true, project["indexed"])
	assert.Equal(t, "example.com/api", project["module_name"])
	assert.Equal(t, float64(3), project["files_count"])
	assert.Equal(t, string(storage.BuildCompleted), project["build_status"])

	rec, out = doRequest(t, h, http.MethodGet, "/api/errors?limit=5&path="+url.QueryEscape(root), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(5), out["limit"])
	items := out["items"].([]interface{})
	require.NotEmpty(t, items)
	first := items[0].(map[string]interface{})
	assert.Equal(t, filepath.Join(root, "a", "broke.go"), first["file_path"])
	assert.Equal(t, false, first["fatal"])
}

func TestStatus_UnknownProject(t *testing.T) {
	idx := newTestIndexer(t)
	h := NewRouter(context.Background(), idx, nil, "dev", nil)

	rec, out := doRequest(t, h, http.MethodGet, "/api/status?path=/never/indexed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	project := out["project"].(map[string]interface{})
	assert.Equal(t, false, project["indexed"])
	assert.Nil(t, out["schedule"])
}

func TestIndex_BadRequests(t *testing.T) {
	idx := newTestIndexer(t)
	h := NewRouter(context.Background(), idx, nil, "dev", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/index", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, path := range []string{"", "relative", filepath.Join(t.TempDir(), "missing")} {
		rec, out := doRequest(t, h, http.MethodPost, "/api/index", map[string]interface{}{"path": path})
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, "INVALID_PATH", errorCode(out), path)
	}
}

func TestIndexConflictAndInterrupt(t *testing.T) {
	idx := newTestIndexer(t)
	root := testProject(t)
	release := make(chan struct{})
	p := parser.New()
	idx.SetExecutor(worker.ExecutorFunc(func(ctx context.Context, unit types.WorkUnit) (*types.ResultBundle, error) {
		<-release
		return p.Index(ctx, unit)
	}))
	h := NewRouter(context.Background(), idx, nil, "dev", nil)

	rec, out := doRequest(t, h, http.MethodPost, "/api/interrupt", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NO_ACTIVE_BUILD", errorCode(out))

	rec, _ = doRequest(t, h, http.MethodPost, "/api/index", map[string]interface{}{"path": root, "include_tests": true})
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool { return idx.Tracker().Indexing() }, time.Second, time.Millisecond)

	rec, out = doRequest(t, h, http.MethodPost, "/api/index", map[string]interface{}{"path": root})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INDEXING_IN_PROGRESS", errorCode(out))

	closeModal := idx.Tracker().OpenModal()
	rec, out = doRequest(t, h, http.MethodPost, "/api/interrupt", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INTERRUPT_IGNORED", errorCode(out))
	closeModal()

	rec, out = doRequest(t, h, http.MethodPost, "/api/interrupt", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "interrupting", out["status"])

	close(release)
	waitIdle(t, idx)
	assert.True(t, idx.LastStatistics().Interrupted)
}

func TestErrors_Validation(t *testing.T) {
	idx := newTestIndexer(t)
	h := NewRouter(context.Background(), idx, nil, "dev", nil)

	rec, out := doRequest(t, h, http.MethodGet, "/api/errors", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PATH", errorCode(out))

	rec, out = doRequest(t, h, http.MethodGet, "/api/errors?path=/never/indexed", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_INDEXED", errorCode(out))
}

func TestServer_ServeAndShutdown(t *testing.T) {
	idx := newTestIndexer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := New(context.Background(), ln.Addr().String(), idx, nil, "dev", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/status")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
