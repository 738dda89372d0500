package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lu-zhengda/knot/internal/domain"
	"github.com/lu-zhengda/knot/internal/store"
	"github.com/lu-zhengda/knot/internal/store/sqlite"
	"github.com/lu-zhengda/knot/internal/workrecord"
)

type fakeMailbox struct {
	connected  bool
	connectErr error
	items      []domain.MailItem
	saved      []string
	lastLimit  int
}

func (f *fakeMailbox) Connect(_ context.Context, conn domain.MailConnection) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeMailbox) Connected() bool { return f.connected }

func (f *fakeMailbox) List(_ context.Context, limit, _ int) ([]domain.MailItem, error) {
	if !f.connected {
		return nil, domain.ErrNotConnected
	}
	f.lastLimit = limit
	return f.items, nil
}

func (f *fakeMailbox) Detail(_ context.Context, id string) (*domain.MailDetail, error) {
	if !f.connected {
		return nil, domain.ErrNotConnected
	}
	if id != "1" {
		return nil, domain.ErrNotFound
	}
	return &domain.MailDetail{Body: "hello", Attachments: []domain.Attachment{}}, nil
}

func (f *fakeMailbox) Attachments(_ context.Context, _ string) ([]domain.Attachment, error) {
	if !f.connected {
		return nil, domain.ErrNotConnected
	}
	return nil, nil
}

func (f *fakeMailbox) SaveAttachments(_ context.Context, _, _ string) ([]string, error) {
	return f.saved, nil
}

func panicHandler(http.ResponseWriter, *http.Request) { panic("boom") }

type testServer struct {
	srv     *Server
	handler http.Handler
	mail    *fakeMailbox
	history *sqlite.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	mail := &fakeMailbox{}
	srv := New(Options{Addr: "127.0.0.1:0"}, mail, db)
	return &testServer{srv: srv, handler: srv.Handler(), mail: mail, history: db}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Errorf("health = %d %s", rec.Code, rec.Body)
	}
}

func TestMailRequiresConnection(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/mail/list", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if decode(t, rec)["detail"] != "请先连接邮件服务器" {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestConnectAndList(t *testing.T) {
	ts := newTestServer(t)
	ts.mail.items = []domain.MailItem{{ID: "3", Subject: "hi"}}

	rec := ts.do(t, http.MethodPost, "/api/mail/connect", domain.MailConnection{Server: "imap.example.com", Port: 993})
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "连接成功" {
		t.Fatalf("connect = %d %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodGet, "/api/mail/list", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d %s", rec.Code, rec.Body)
	}
	data := decode(t, rec)["data"].([]any)
	if len(data) != 1 || ts.mail.lastLimit != 50 {
		t.Errorf("data = %v, limit = %d", data, ts.mail.lastLimit)
	}
}

func TestConnectFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.mail.connectErr = errors.New("bad password")
	rec := ts.do(t, http.MethodPost, "/api/mail/connect", domain.MailConnection{})
	if rec.Code != http.StatusBadRequest || decode(t, rec)["detail"] != "连接失败: bad password" {
		t.Errorf("connect = %d %s", rec.Code, rec.Body)
	}
}

func TestMailDetailNotFound(t *testing.T) {
	ts := newTestServer(t)
	ts.mail.connected = true
	if rec := ts.do(t, http.MethodGet, "/api/mail/9/detail", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/mail/1/detail", nil); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	rec := ts.do(t, http.MethodGet, "/api/mail/1/attachments", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if data, ok := decode(t, rec)["data"].([]any); !ok || len(data) != 0 {
		t.Errorf("attachments = %s", rec.Body)
	}
}

func TestCreateFolderWithAttachmentsRecordsHistory(t *testing.T) {
	ts := newTestServer(t)
	ts.mail.connected = true
	ts.mail.saved = []string{"a.pdf"}
	base := t.TempDir()

	rec := ts.do(t, http.MethodPost, "/api/folder/create-with-attachments", domain.FolderRequest{
		MailID:     "1",
		BasePath:   base,
		FolderName: "2025.01.01_x",
		Department: "Ops",
		Hash:       "abc",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("create = %d %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	if body["success"] != true || body["path"] != filepath.Join(base, "2025.01.01_x") {
		t.Errorf("body = %v", body)
	}
	if body["message"] != "文件夹已创建，已保存 1 个附件" {
		t.Errorf("message = %v", body["message"])
	}

	events, err := ts.history.FindByHash(context.Background(), "abc")
	if err != nil || len(events) != 1 || events[0].Kind != store.EventCreated || events[0].Source != domain.SourceMail {
		t.Errorf("history = %+v, %v", events, err)
	}
}

func TestCreateFolderOmitsDownloadsWithoutAttachments(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/folder/create", domain.FolderRequest{BasePath: t.TempDir(), FolderName: "f"})
	if rec.Code != http.StatusOK {
		t.Fatalf("create = %d %s", rec.Code, rec.Body)
	}
	if _, ok := decode(t, rec)["attachments_downloaded"]; ok {
		t.Error("attachments_downloaded should be omitted")
	}
}

func TestBadJSON(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/archive/move", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/problem+json" {
		t.Errorf("content type = %q", rec.Header().Get("Content-Type"))
	}
}

func writeFolder(t *testing.T, root, name, dept, hash string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := workrecord.Write(dir, workrecord.New(dept, "", hash, time.Now())); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestScanMoveAndCollision(t *testing.T) {
	ts := newTestServer(t)
	work := t.TempDir()
	arch := t.TempDir()
	src := writeFolder(t, work, "2025.03.01_plan", "Ops", "h1")

	rec := ts.do(t, http.MethodGet, "/api/archive/scan?scan_path="+work, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("scan = %d %s", rec.Code, rec.Body)
	}
	if body := decode(t, rec); body["count"] != float64(1) {
		t.Errorf("scan body = %v", body)
	}

	rec = ts.do(t, http.MethodPost, "/api/archive/move", domain.MoveItem{FolderPath: src, ArchivePath: arch})
	if rec.Code != http.StatusOK {
		t.Fatalf("move = %d %s", rec.Code, rec.Body)
	}
	dest := filepath.Join(arch, "2025", "2025.03.01_plan")
	if body := decode(t, rec); body["destination"] != dest || body["message"] != "已归档到: "+dest {
		t.Errorf("move body = %v", body)
	}

	events, _ := ts.history.ListEvents(context.Background(), store.EventArchived, 0)
	if len(events) != 1 || events[0].Hash != "h1" || events[0].Destination != dest {
		t.Errorf("history = %+v", events)
	}

	writeFolder(t, work, "2025.03.01_plan", "Ops", "h1")
	rec = ts.do(t, http.MethodPost, "/api/archive/move", domain.MoveItem{FolderPath: src, ArchivePath: arch})
	if rec.Code != http.StatusConflict {
		t.Errorf("collision status = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/archive/scan?recursive=true&scan_path="+arch, nil)
	if body := decode(t, rec); body["count"] != float64(1) {
		t.Errorf("recursive scan body = %v", body)
	}
}

func TestScanUnreadableDirectory(t *testing.T) {
	ts := newTestServer(t)
	file := filepath.Join(t.TempDir(), "file")
	os.WriteFile(file, []byte("x"), 0o644)
	rec := ts.do(t, http.MethodGet, "/api/archive/scan?scan_path="+file, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d %s", rec.Code, rec.Body)
	}
}

func TestScanMissingRootLeavesFilesystemAlone(t *testing.T) {
	ts := newTestServer(t)
	missing := filepath.Join(t.TempDir(), "archive", "sales")

	rec := ts.do(t, http.MethodGet, "/api/archive/scan?recursive=true&scan_path="+missing, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d %s", rec.Code, rec.Body)
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Errorf("scan created %s (stat err = %v)", missing, err)
	}
	if _, err := os.Stat(filepath.Dir(missing)); !os.IsNotExist(err) {
		t.Errorf("scan created %s", filepath.Dir(missing))
	}
}

func TestBatchMove(t *testing.T) {
	ts := newTestServer(t)
	work := t.TempDir()
	arch := t.TempDir()
	a := writeFolder(t, work, "a", "", "")

	rec := ts.do(t, http.MethodPost, "/api/archive/batch-move", map[string]any{
		"items": []domain.MoveItem{
			{FolderPath: a, ArchivePath: arch},
			{FolderPath: filepath.Join(work, "nope"), ArchivePath: arch},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("batch = %d %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	if body["total"] != float64(2) || body["success_count"] != float64(1) || body["fail_count"] != float64(1) {
		t.Errorf("body = %v", body)
	}
	if _, err := os.Stat(filepath.Join(arch, "其他", "a")); err != nil {
		t.Errorf("moved folder missing: %v", err)
	}
}

func TestUpdateWorkRecord(t *testing.T) {
	ts := newTestServer(t)
	dir := writeFolder(t, t.TempDir(), "task", "Ops", "h")

	rec := ts.do(t, http.MethodPost, "/api/archive/update-work-record", domain.WorkRecordUpdate{FolderPath: dir, Content: "done"})
	if rec.Code != http.StatusOK || decode(t, rec)["message"] != "工作记录已更新" {
		t.Fatalf("update = %d %s", rec.Code, rec.Body)
	}
	got, _ := workrecord.Read(dir)
	if got.Content != "done" || got.Department != "Ops" {
		t.Errorf("record = %+v", got)
	}

	rec = ts.do(t, http.MethodPost, "/api/archive/update-work-record", domain.WorkRecordUpdate{FolderPath: t.TempDir()})
	if rec.Code != http.StatusNotFound || decode(t, rec)["detail"] != "工作记录.md 不存在" {
		t.Errorf("missing = %d %s", rec.Code, rec.Body)
	}
}

func TestCheckHash(t *testing.T) {
	ts := newTestServer(t)
	work := t.TempDir()
	arch := t.TempDir()
	writeFolder(t, work, "w", "", "h1")
	writeFolder(t, filepath.Join(arch, "2025"), "a", "", "h1")

	rec := ts.do(t, http.MethodPost, "/api/folder/check-hash", domain.CheckHashRequest{
		Hash: "h1", ScanPath: work, ArchivePaths: []string{arch, filepath.Join(arch, "missing")},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("check = %d %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	matches := body["matches"].([]any)
	if body["found"] != true || len(matches) != 2 {
		t.Fatalf("body = %v", body)
	}
	if matches[0].(map[string]any)["status"] != "working" || matches[1].(map[string]any)["status"] != "archived" {
		t.Errorf("matches = %v", matches)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	ts := newTestServer(t)
	h := Recovery(ts.srv.log)(http.HandlerFunc(panicHandler))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/archive/move", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Errorf("missing CORS header, got %v", rec.Header())
	}
}
