package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"github.com/dharsanguruparan/billsync/internal/config"
	"github.com/dharsanguruparan/billsync/internal/ingest"
	"github.com/dharsanguruparan/billsync/internal/model"
	"github.com/dharsanguruparan/billsync/internal/normalize"
	"github.com/dharsanguruparan/billsync/internal/oracle"
	"github.com/dharsanguruparan/billsync/internal/queue"
	"github.com/dharsanguruparan/billsync/internal/repository"
	"github.com/dharsanguruparan/billsync/internal/signing"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeQueue struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (f *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type()}, nil
}

type fakeObjects struct {
	objects map[string][]byte
}

func (f *fakeObjects) PutStatement(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = b
	return nil
}

type fixture struct {
	router  *gin.Engine
	store   *repository.MemoryStore
	queue   *fakeQueue
	objects *fakeObjects
	auth    *fakeAuth
	signer  *signing.Signer
}

type fakeAuth struct {
	exchanged map[string]string
}

func (f *fakeAuth) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (f *fakeAuth) Exchange(_ context.Context, userID, code string) error {
	if f.exchanged == nil {
		f.exchanged = map[string]string{}
	}
	f.exchanged[userID] = code
	return nil
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	m := oracle.ModelFunc(func(context.Context, string, string) (string, error) { return "[]", nil })
	svc, err := ingest.New(store, oracle.NewClient(m, 0), normalize.New(nil, 0), nil, ingest.Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	q := &fakeQueue{}
	objs := &fakeObjects{objects: map[string][]byte{}}
	auth := &fakeAuth{}
	srv := New(&config.Config{MaxFileSize: 1 << 10, SigningSecret: []byte("test")}, svc, objs, q, auth)
	return fixture{router: srv.Router(), store: store, queue: q, objects: objs, auth: auth, signer: srv.signer}
}

func (f fixture) do(t *testing.T, method, path string, body io.Reader, contentType string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	var resp Response
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec, resp := f.do(t, http.MethodGet, "/healthz", nil, "")
	if rec.Code != http.StatusOK || resp.Code != 0 {
		t.Fatalf("unexpected %d %+v", rec.Code, resp)
	}
}

func TestScanEnqueues(t *testing.T) {
	f := newFixture(t)
	rec, _ := f.do(t, http.MethodPost, "/users/alice/scan", strings.NewReader(`{"query":"invoice","maxMessages":5}`), "application/json")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var p queue.ScanPayload
	_ = json.Unmarshal(f.queue.tasks[0].Payload(), &p)
	if f.queue.tasks[0].Type() != queue.ScanBillsTask || p.UserID != "alice" || p.Query != "invoice" || p.MaxMessages != 5 {
		t.Fatalf("unexpected task %+v", p)
	}

	rec, _ = f.do(t, http.MethodPost, "/users/alice/scan", nil, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected empty body to be accepted, got %d", rec.Code)
	}
}

func multipartBody(t *testing.T, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, data := range files {
		part, err := w.CreateFormFile("file", name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write(data)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestStatementsUpload(t *testing.T) {
	f := newFixture(t)
	body, ct := multipartBody(t, map[string][]byte{"july.csv": []byte("2024-07-01,AGL,80.50")})
	rec, resp := f.do(t, http.MethodPost, "/users/alice/statements", body, ct)
	if rec.Code != http.StatusAccepted || resp.Code != 0 {
		t.Fatalf("unexpected %d %+v", rec.Code, resp)
	}
	var p queue.StatementsPayload
	_ = json.Unmarshal(f.queue.tasks[0].Payload(), &p)
	if p.UserID != "alice" || len(p.Statements) != 1 || p.Statements[0].ContentType != "text/plain" {
		t.Fatalf("unexpected payload %+v", p)
	}
	if string(f.objects.objects[p.Statements[0].ObjectKey]) != "2024-07-01,AGL,80.50" {
		t.Fatalf("statement not stored under %s", p.Statements[0].ObjectKey)
	}
}

func TestStatementsUploadRejects(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name  string
		files map[string][]byte
		want  int
	}{
		{"image", map[string][]byte{"x.png": {0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}}, http.StatusUnsupportedMediaType},
		{"too large", map[string][]byte{"big.txt": bytes.Repeat([]byte("a"), 2<<10)}, http.StatusRequestEntityTooLarge},
		{"no files", map[string][]byte{}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, ct := multipartBody(t, tc.files)
			rec, resp := f.do(t, http.MethodPost, "/users/alice/statements", body, ct)
			if rec.Code != tc.want || resp.Code != -1 {
				t.Fatalf("expected %d failure, got %d %+v", tc.want, rec.Code, resp)
			}
		})
	}
	if len(f.queue.tasks) != 0 {
		t.Fatalf("nothing should be enqueued")
	}
}

func TestBillsAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	amount, company := 80.0, "AGL"
	saved, _ := f.store.SaveBills(ctx, "alice", []model.BillRecord{{
		SourceDocumentID: "m1", IsBill: true, Company: &company, Amount: &amount, Status: model.BillStatusUnpaid, Confidence: 90,
	}})
	_ = f.store.SaveTransactions(ctx, "alice", "s1", []model.Transaction{{Date: "2024-07-01", Description: "AGL BPAY", Amount: 80, Type: model.TransactionDebit}})

	rec, resp := f.do(t, http.MethodGet, "/users/alice/bills", nil, "")
	if rec.Code != http.StatusOK || len(resp.Data.([]any)) != 1 {
		t.Fatalf("unexpected bills response %d %+v", rec.Code, resp)
	}

	rec, resp = f.do(t, http.MethodGet, "/users/alice/matches", nil, "")
	if rec.Code != http.StatusOK || len(resp.Data.([]any)) != 1 {
		t.Fatalf("unexpected matches response %d %+v", rec.Code, resp)
	}

	path := "/users/alice/bills/" + saved[0].ID
	if rec, _ := f.do(t, http.MethodPatch, path, strings.NewReader(`{"status":"settled"}`), "application/json"); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodPatch, "/users/alice/bills/nope", strings.NewReader(`{"status":"paid"}`), "application/json"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodPatch, path, strings.NewReader(`{"status":"paid"}`), "application/json"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec, resp = f.do(t, http.MethodGet, "/users/alice/matches", nil, "")
	if rec.Code != http.StatusOK || len(resp.Data.([]any)) != 0 {
		t.Fatalf("paid bill should no longer match: %+v", resp)
	}
}

func TestConnectFlow(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/users/alice/connect", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	state := loc.Query().Get("state")

	callback := "/oauth/callback?state=" + url.QueryEscape(state) + "&code=abc"
	if rec, _ := f.do(t, http.MethodGet, callback, nil, ""); rec.Code != http.StatusOK {
		t.Fatalf("expected callback success, got %d", rec.Code)
	}
	if f.auth.exchanged["alice"] != "abc" {
		t.Fatalf("expected code exchanged for alice, got %v", f.auth.exchanged)
	}

	forged := f.signer.State("alice", time.Minute) + "0"
	if rec, _ := f.do(t, http.MethodGet, "/oauth/callback?state="+url.QueryEscape(forged)+"&code=x", nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected forged state rejected, got %d", rec.Code)
	}
	if rec, _ := f.do(t, http.MethodGet, "/oauth/callback?state="+url.QueryEscape(state), nil, ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected missing code rejected, got %d", rec.Code)
	}
}
