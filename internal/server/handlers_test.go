package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/kanoon/internal/backend"
	"github.com/hyperjump/kanoon/internal/cache"
	"github.com/hyperjump/kanoon/internal/config"
	"github.com/hyperjump/kanoon/internal/embedding"
	"github.com/hyperjump/kanoon/internal/indexer"
	"github.com/hyperjump/kanoon/internal/keyword"
	"github.com/hyperjump/kanoon/internal/models"
	"github.com/hyperjump/kanoon/internal/orchestrator"
	"github.com/hyperjump/kanoon/internal/search"
	"github.com/hyperjump/kanoon/internal/storage"
	"github.com/hyperjump/kanoon/internal/vector"
)

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, prompt string, _ int) ([]string, error) {
	return []string{prompt + " The tenant may approach the Rent Controller for relief."}, nil
}

func (echoGenerator) Close() error { return nil }

type stubTranslator struct{ err error }

func (s stubTranslator) Translate(_ context.Context, text, target string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "[" + target + "] " + text, nil
}

type testServer struct {
	srv  *Server
	reg  *backend.Registry
	orch *orchestrator.Orchestrator
	h    http.Handler
}

func newTestServer(t *testing.T, translator orchestrator.Translator) *testServer {
	t.Helper()
	ts := newStartingServer(t, translator)
	ts.reg.MarkReady()
	return ts
}

// newStartingServer returns a server whose registry has not been marked ready.
func newStartingServer(t *testing.T, translator orchestrator.Translator) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(dir, "db", "corpus.db")
	config.ApplyDefaults(cfg)
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	kw, err := keyword.NewMemoryIndex()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	reg := backend.NewRegistry(backend.WithInvokeTimeout(time.Second))
	err = reg.Load(context.Background(), backend.RoleGenerator, []backend.Candidate{{
		Name: "echo",
		Load: func(context.Context) (backend.Instance, error) { return echoGenerator{}, nil },
	}})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	vectors := vector.NewStore(embedding.NewHashEmbedder(256))
	var opts []orchestrator.Option
	if translator != nil {
		opts = append(opts, orchestrator.WithTranslator(translator))
	}
	orch := orchestrator.New(reg, cache.New(cfg.Cache.Capacity), vectors, orchestrator.NewConfig(cfg), opts...)
	idx := indexer.New(store, vectors, kw, cfg.Corpus, indexer.WithOnChange(func() { orch.CorpusChanged() }))
	library := search.NewEngine(store, kw, vectors, cfg.Library, nil)

	srv := NewServer(orch, idx, library, nil, cfg, nil)
	return &testServer{srv: srv, reg: reg, orch: orch, h: srv.Handler()}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.h.ServeHTTP(w, r)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	ts := newStartingServer(t, nil)

	w := ts.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("before ready: status %d", w.Code)
	}
	if got := decodeBody[healthResponse](t, w); got.Status != "starting" {
		t.Errorf("before ready: %+v", got)
	}

	ts.reg.MarkReady()
	w = ts.do(t, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("after ready: status %d", w.Code)
	}
	got := decodeBody[healthResponse](t, w)
	if got.Status != "healthy" || !got.ModelsLoaded["generator"] || got.ModelsLoaded["qa"] {
		t.Errorf("after ready: %+v", got)
	}
}

func TestHandleChat(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, path := range []string{"/api/v1/chat", "/chat/"} {
		w := ts.do(t, http.MethodPost, path, map[string]string{"question": "Can my landlord evict me without notice?"})
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d, body %s", path, w.Code, w.Body.String())
		}
		got := decodeBody[models.ChatResponse](t, w)
		if got.Response != "The tenant may approach the Rent Controller for relief." {
			t.Errorf("%s: response %q", path, got.Response)
		}
	}
}

func TestHandleChat_badRequests(t *testing.T) {
	ts := newTestServer(t, nil)

	if w := ts.do(t, http.MethodPost, "/api/v1/chat", map[string]string{"question": "  "}); w.Code != http.StatusBadRequest {
		t.Errorf("blank question: status %d", w.Code)
	}
	if w := ts.do(t, http.MethodPost, "/api/v1/chat", "{not json"); w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status %d", w.Code)
	}
}

func TestHandleNoticeAndRoadmap(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/notice", map[string]string{
		"your_name":         "Asha Rao",
		"recipient_name":    "Vikram Shah",
		"recipient_address": "12 MG Road, Bengaluru",
		"subject":           "Unpaid security deposit",
		"case_details":      "The deposit of Rs. 50,000 was not returned after the lease ended.",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("notice: status %d, body %s", w.Code, w.Body.String())
	}
	notice := decodeBody[models.NoticeResponse](t, w)
	if !strings.Contains(strings.ToUpper(notice.Notice), "NOTICE") {
		t.Errorf("notice = %q", notice.Notice)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/roadmap", map[string]string{"issue_type": "tenant eviction"})
	if w.Code != http.StatusOK {
		t.Fatalf("roadmap: status %d, body %s", w.Code, w.Body.String())
	}
	roadmap := decodeBody[models.RoadmapResponse](t, w)
	if len(roadmap.Steps) < 3 || roadmap.Jurisdiction != models.DefaultJurisdiction {
		t.Errorf("roadmap = %+v", roadmap)
	}
}

func TestDocumentsLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/documents", map[string]string{
		"id":      "rent-act",
		"title":   "Rent Control Act",
		"content": "A landlord shall not evict a tenant except by an order of the Rent Controller.",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("index: status %d, body %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/v1/documents/rent-act", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
	if doc := decodeBody[models.Document](t, w); doc.Title != "Rent Control Act" {
		t.Errorf("doc = %+v", doc)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/library/search?q=evict+tenant&limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search: status %d, body %s", w.Code, w.Body.String())
	}
	hits := decodeBody[models.LibrarySearchResponse](t, w)
	if len(hits.Hits) == 0 || hits.Hits[0].DocumentID != "rent-act" {
		t.Errorf("search = %+v", hits)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/ask", map[string]string{"question": "Can a landlord evict a tenant?"})
	if w.Code != http.StatusOK {
		t.Fatalf("ask: status %d, body %s", w.Code, w.Body.String())
	}
	ask := decodeBody[models.AskResponse](t, w)
	if len(ask.Sources) == 0 || !strings.HasPrefix(ask.Sources[0].ID, "rent-act#") {
		t.Errorf("ask sources = %+v", ask.Sources)
	}

	if w = ts.do(t, http.MethodDelete, "/api/v1/documents/rent-act", nil); w.Code != http.StatusOK {
		t.Errorf("delete: status %d", w.Code)
	}
	if w = ts.do(t, http.MethodDelete, "/api/v1/documents/rent-act", nil); w.Code != http.StatusNotFound {
		t.Errorf("second delete: status %d", w.Code)
	}
	if w = ts.do(t, http.MethodGet, "/api/v1/documents/rent-act", nil); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d", w.Code)
	}
}

func TestHandleLibrarySearch_badParams(t *testing.T) {
	ts := newTestServer(t, nil)

	if w := ts.do(t, http.MethodGet, "/api/v1/library/search?q=", nil); w.Code != http.StatusBadRequest {
		t.Errorf("empty q: status %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/v1/library/search?q=bail&limit=ten", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit: status %d", w.Code)
	}
}

func TestHandleTranslate(t *testing.T) {
	ok := newTestServer(t, stubTranslator{})
	w := ok.do(t, http.MethodPost, "/api/v1/translate", map[string]string{"text": "bail", "dest_lang": "hi"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	if got := decodeBody[models.TranslationResponse](t, w); got.TranslatedText != "[hi] bail" {
		t.Errorf("translation = %+v", got)
	}

	failing := newTestServer(t, stubTranslator{err: errors.New("service down")})
	if w := failing.do(t, http.MethodPost, "/api/v1/translate", map[string]string{"text": "bail"}); w.Code != http.StatusBadGateway {
		t.Errorf("failing translator: status %d", w.Code)
	}

	none := newTestServer(t, nil)
	if w := none.do(t, http.MethodPost, "/api/v1/translate", map[string]string{"text": "bail"}); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no translator: status %d", w.Code)
	}
}

func multipartRequest(t *testing.T, path, filename string, content []byte, query string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if query != "" {
		if err := mw.WriteField("query", query); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, path, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestHandleAnalyze(t *testing.T) {
	ts := newTestServer(t, nil)
	text := "Lease Term: 12 months. Monthly rent: Rs. 25,000."

	w := ts.do(t, http.MethodPost, "/api/v1/analyze", map[string]string{"document_text": text})
	if w.Code != http.StatusOK {
		t.Fatalf("json: status %d, body %s", w.Code, w.Body.String())
	}
	got := decodeBody[models.AnalysisResponse](t, w)
	if got.DocumentLength != len([]rune(text)) || got.Message == nil {
		t.Errorf("json analysis = %+v", got)
	}

	for _, path := range []string{"/api/v1/analyze", "/analyze_document/"} {
		w = httptest.NewRecorder()
		ts.h.ServeHTTP(w, multipartRequest(t, path, "lease.txt", []byte(text), "What is the rent?"))
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d, body %s", path, w.Code, w.Body.String())
		}
		if got := decodeBody[models.AnalysisResponse](t, w); got.DocumentLength != len([]rune(text)) {
			t.Errorf("%s: document length %d", path, got.DocumentLength)
		}
	}
}

func TestHandleAnalyze_badUploads(t *testing.T) {
	ts := newTestServer(t, nil)

	if w := ts.do(t, http.MethodPost, "/api/v1/analyze", map[string]string{"document_text": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("empty text: status %d", w.Code)
	}

	w := httptest.NewRecorder()
	ts.h.ServeHTTP(w, multipartRequest(t, "/api/v1/analyze", "scan.bin", []byte{0x00, 0xff, 0x10, 0x00}, ""))
	if w.Code != http.StatusBadRequest {
		t.Errorf("binary upload: status %d", w.Code)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("query", "rent?")
	_ = mw.Close()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w = httptest.NewRecorder()
	ts.h.ServeHTTP(w, r)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file: status %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"id": "d1", "content": "Bail is the rule, jail the exception."})

	w := ts.do(t, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	var got struct {
		Ready  bool          `json:"ready"`
		Corpus indexer.Stats `json:"corpus"`
		Config struct {
			TopK int `json:"top_k"`
		} `json:"config"`
		DiskUsageBytes int64 `json:"disk_usage_bytes"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Corpus.Documents != 1 || got.Corpus.Passages == 0 || got.Config.TopK != 3 {
		t.Errorf("status = %+v", got)
	}
	if got.DiskUsageBytes <= 0 {
		t.Errorf("disk usage = %d", got.DiskUsageBytes)
	}
}

func TestAPIRejectsRequestsWhileStarting(t *testing.T) {
	ts := newStartingServer(t, nil)

	for _, path := range []string{"/api/v1/chat", "/chat/"} {
		w := ts.do(t, http.MethodPost, path, models.ChatRequest{Question: "What is an affidavit?"})
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s before ready: status %d", path, w.Code)
		}
	}
	if w := ts.do(t, http.MethodGet, "/api/v1/status", nil); w.Code != http.StatusOK {
		t.Errorf("status before ready: %d", w.Code)
	}
	if got := ts.orch.Health().Cache; got.Entries != 0 || got.Misses != 0 {
		t.Errorf("cache touched before ready: %+v", got)
	}

	ts.reg.MarkReady()
	w := ts.do(t, http.MethodPost, "/api/v1/chat", models.ChatRequest{Question: "What is an affidavit?"})
	if w.Code != http.StatusOK {
		t.Errorf("after ready: status %d", w.Code)
	}
}
