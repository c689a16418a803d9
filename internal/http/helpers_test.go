package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	html "github.com/gofiber/template/html/v2"
	"github.com/jmoiron/sqlx"

	"posbackend/internal/config"
	"posbackend/internal/http/handlers"
	"posbackend/internal/repos"
)

type testEnv struct {
	app  *fiber.App
	db   *sqlx.DB
	deps *handlers.Deps
}

func newTestEnv(t *testing.T, opts handlers.AppOptions) *testEnv {
	t.Helper()
	db, err := repos.OpenDB("sqlite", ":memory:", true)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{DefaultCustomerID: "C001", PurchaseListLimit: 10}
	deps := handlers.NewDeps(db, cfg, nil)
	if opts.Views == nil {
		opts.Views = html.New("../../web/templates", ".html")
	}
	if opts.Origins == nil {
		opts.Origins = []string{"http://localhost:3000"}
	}
	return &testEnv{app: handlers.NewApp(opts, deps), db: db, deps: deps}
}

func (e *testEnv) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func (e *testEnv) get(t *testing.T, target string) (*http.Response, []byte) {
	t.Helper()
	return e.do(t, httptest.NewRequest(http.MethodGet, target, nil))
}

func (e *testEnv) postJSON(t *testing.T, target, body string) (*http.Response, []byte) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return e.do(t, req)
}

func (e *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := e.db.Get(&n, `SELECT COUNT(*) FROM `+table); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// failTotalStore fails the last step of a commit, after header and lines were written.
type failTotalStore struct {
	*repos.PurchaseRepo
}

func (failTotalStore) SetTotalTx(context.Context, *sqlx.Tx, string, int64) error {
	return errors.New("disk I/O error: secret detail")
}

type logEntry struct {
	Level  string         `json:"level"`
	ReqID  string         `json:"req_id"`
	Status int            `json:"status"`
	Action string         `json:"action"`
	Err    string         `json:"err"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var buf lockedBuf
	oldW := log.Writer()
	oldFlags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(oldW)
		log.SetFlags(oldFlags)
	}()

	fn()

	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(buf.b.String()), "\n") {
		var e logEntry
		if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func findAction(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}
