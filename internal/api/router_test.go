package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/dvloznov/statement-converter/internal/domain"
	"github.com/dvloznov/statement-converter/internal/jobs"
	"github.com/dvloznov/statement-converter/internal/metrics"
	"github.com/dvloznov/statement-converter/internal/session"
	"github.com/dvloznov/statement-converter/internal/store/inmemory"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	ExtractFunc func(ctx context.Context, file domain.Upload, contextHint string) ([]domain.Transaction, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, file domain.Upload, contextHint string) ([]domain.Transaction, error) {
	return f.ExtractFunc(ctx, file, contextHint)
}

// syncPublisher runs every job before PublishExtract returns.
type syncPublisher struct {
	handle jobs.JobHandler
}

func (p *syncPublisher) PublishExtract(ctx context.Context, job *jobs.ExtractJob) error {
	return p.handle(ctx, job)
}

func (p *syncPublisher) Close() error { return nil }

type testServer struct {
	handler http.Handler
	session *session.Session

	mu       sync.Mutex
	received []int // bytes the extractor saw, per call
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWithLimits(t, 1<<20, 1<<20)
}

// newTestServerWithLimits builds a server whose session and HTTP layer use the given
// per-file limits. Zero means each layer's default.
func newTestServerWithLimits(t *testing.T, sessionLimit, routerLimit int64) *testServer {
	t.Helper()

	s := &testServer{}
	ex := &fakeExtractor{
		ExtractFunc: func(ctx context.Context, file domain.Upload, contextHint string) ([]domain.Transaction, error) {
			s.mu.Lock()
			s.received = append(s.received, len(file.Data))
			s.mu.Unlock()

			debit := decimal.NewFromInt(100)
			credit := decimal.NewFromInt(60)
			return []domain.Transaction{
				{ID: file.FileName + "-1", Date: "01/02/2024", Label: "CB", Debit: &debit, IsValid: true},
				{ID: file.FileName + "-2", Date: "03/02/2024", Label: "VIR", Credit: &credit, IsValid: true},
			}, nil
		},
	}
	pub := &syncPublisher{}
	m := metrics.New()
	sess := session.New(inmemory.NewStore(), ex, pub, m, zerolog.Nop(), session.Config{MaxUploadBytes: sessionLimit})
	pub.handle = func(ctx context.Context, job *jobs.ExtractJob) error {
		_ = sess.HandleJob(ctx, job)
		return nil
	}

	s.handler = NewRouter(sess, Options{MaxUploadBytes: routerLimit, Metrics: m.Handler(), Requests: m}, zerolog.Nop())
	s.session = sess
	return s
}

func (s *testServer) extractedSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.received...)
}

type part struct {
	name        string
	contentType string
	data        string
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for _, p := range parts {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, p.name))
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("context", "Relevé test"))
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func (s *testServer) do(t *testing.T, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(t *testing.T, parts ...part) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, parts...)
	return s.do(t, http.MethodPost, "/api/documents", body, ct)
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func TestUploadDocuments(t *testing.T) {
	s := newTestServer(t)

	rec := s.upload(t,
		part{name: "janvier.pdf", contentType: "application/pdf", data: "%PDF-1.4"},
		part{name: "photo.png", contentType: "image/png", data: "png"},
		part{name: "fevrier.pdf", data: "%PDF-1.4"},
	)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp session.UploadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Documents, 2)
	assert.Equal(t, "janvier.pdf", resp.Documents[0].FileName)
	assert.Equal(t, "fevrier.pdf", resp.Documents[1].FileName)
	assert.Equal(t, domain.StatusReady, resp.Documents[0].Status)
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, "photo.png", resp.Rejected[0].FileName)
	assert.NotEmpty(t, resp.Notice)

	rec = s.do(t, http.MethodGet, "/api/documents", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
}

func TestUploadDocuments_NothingAccepted(t *testing.T) {
	s := newTestServer(t)

	rec := s.upload(t, part{name: "notes.txt", contentType: "text/plain", data: "hello"})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "notes.txt")
	assert.Empty(t, s.session.Documents(context.Background()))

	rec = s.do(t, http.MethodPost, "/api/documents", bytes.NewBufferString("{}"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadDocuments_TooLarge(t *testing.T) {
	s := newTestServerWithLimits(t, 100, 100)
	big := "%PDF-1.4" + strings.Repeat("x", 500)

	rec := s.upload(t, part{name: "annuel.pdf", contentType: "application/pdf", data: big})

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var resp struct {
		Rejected []session.Rejection `json:"rejected"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, "annuel.pdf", resp.Rejected[0].FileName)
	assert.Equal(t, session.ReasonTooLarge, resp.Rejected[0].Reason)
	assert.Empty(t, s.session.Documents(context.Background()))
	assert.Empty(t, s.extractedSizes())
}

func TestUploadDocuments_DefaultLimitKeepsWholeFile(t *testing.T) {
	s := newTestServerWithLimits(t, 0, 0)
	data := "%PDF-1.4" + strings.Repeat("x", 492)

	rec := s.upload(t, part{name: "mars.pdf", contentType: "application/pdf", data: data})

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, []int{500}, s.extractedSizes())
}

func TestGetDocument(t *testing.T) {
	s := newTestServer(t)
	s.upload(t, part{name: "mars.pdf", contentType: "application/pdf", data: "%PDF"})
	doc := s.session.Documents(context.Background())[0]

	rec := s.do(t, http.MethodGet, "/api/documents/"+doc.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fileName":"mars.pdf"`)

	rec = s.do(t, http.MethodGet, "/api/documents/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteDocument(t *testing.T) {
	s := newTestServer(t)
	s.upload(t, part{name: "mars.pdf", contentType: "application/pdf", data: "%PDF"})
	doc := s.session.Documents(context.Background())[0]

	rec := s.do(t, http.MethodDelete, "/api/documents/"+doc.ID, nil, "")
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/documents/"+doc.ID+"?confirm=true", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, s.session.Documents(context.Background()))

	rec = s.do(t, http.MethodDelete, "/api/documents/"+doc.ID+"?confirm=true", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateTransaction(t *testing.T) {
	s := newTestServer(t)
	s.upload(t, part{name: "mars.pdf", contentType: "application/pdf", data: "%PDF"})

	tests := []struct {
		name   string
		id     string
		body   interface{}
		status int
	}{
		{name: "debit clears credit", id: "mars.pdf-2", body: map[string]interface{}{"field": "debit", "value": 75.5}, status: http.StatusOK},
		{name: "amount as text", id: "mars.pdf-1", body: map[string]interface{}{"field": "credit", "value": "12,30"}, status: http.StatusOK},
		{name: "clear amount", id: "mars.pdf-1", body: map[string]interface{}{"field": "debit", "value": nil}, status: http.StatusOK},
		{name: "date", id: "mars.pdf-1", body: map[string]interface{}{"field": "date", "value": "2024-02-01"}, status: http.StatusOK},
		{name: "not a number", id: "mars.pdf-1", body: map[string]interface{}{"field": "debit", "value": "abc"}, status: http.StatusBadRequest},
		{name: "unknown field", id: "mars.pdf-1", body: map[string]interface{}{"field": "isValid", "value": true}, status: http.StatusBadRequest},
		{name: "unknown transaction", id: "nope", body: map[string]interface{}{"field": "label", "value": "x"}, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPatch, "/api/transactions/"+tt.id, jsonBody(t, tt.body), "application/json")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	doc := s.session.Documents(context.Background())[0]
	first, second := doc.Transactions[0], doc.Transactions[1]

	assert.Nil(t, first.Debit)
	assert.True(t, first.Credit.Equal(decimal.RequireFromString("12.30")))
	assert.Equal(t, "2024-02-01", first.Date)
	assert.False(t, first.IsValid)

	assert.True(t, second.Debit.Equal(decimal.RequireFromString("75.5")))
	assert.Nil(t, second.Credit)
}

func TestDeleteTransaction(t *testing.T) {
	s := newTestServer(t)
	s.upload(t, part{name: "mars.pdf", contentType: "application/pdf", data: "%PDF"})

	rec := s.do(t, http.MethodDelete, "/api/transactions/mars.pdf-1", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/transactions/unknown", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	assert.Len(t, s.session.Documents(context.Background())[0].Transactions, 1)
}

func TestView(t *testing.T) {
	s := newTestServer(t)
	s.upload(t,
		part{name: "a.pdf", contentType: "application/pdf", data: "%PDF"},
		part{name: "b.pdf", contentType: "application/pdf", data: "%PDF"},
	)

	rec := s.do(t, http.MethodGet, "/api/view?sort=date&dir=desc", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap struct {
		Selector     string `json:"selector"`
		Transactions []struct {
			ID string `json:"id"`
		} `json:"transactions"`
		Stats struct {
			TotalTransactions int `json:"totalTransactions"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "ALL", snap.Selector)
	assert.Equal(t, 4, snap.Stats.TotalTransactions)
	require.Len(t, snap.Transactions, 4)
	assert.True(t, strings.HasSuffix(snap.Transactions[0].ID, "-2"))

	rec = s.do(t, http.MethodGet, "/api/view?sort=balance", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSelectView(t *testing.T) {
	s := newTestServer(t)
	s.upload(t,
		part{name: "a.pdf", contentType: "application/pdf", data: "%PDF"},
		part{name: "b.pdf", contentType: "application/pdf", data: "%PDF"},
	)
	doc := s.session.Documents(context.Background())[1]

	rec := s.do(t, http.MethodPut, "/api/view", jsonBody(t, map[string]string{"selector": doc.ID}), "application/json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"selector":"`+doc.ID+`"`)

	rec = s.do(t, http.MethodPut, "/api/view", jsonBody(t, map[string]string{"selector": "missing"}), "application/json")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/view", jsonBody(t, map[string]string{}), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExport(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/export", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, rec.Body.Len())

	s.upload(t, part{name: "releve_mars.pdf", contentType: "application/pdf", data: "%PDF"})

	rec = s.do(t, http.MethodGet, "/api/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "releve_mars.xlsx")
	assert.NotZero(t, rec.Body.Len())
}

func TestClearNotice(t *testing.T) {
	s := newTestServer(t)
	s.upload(t,
		part{name: "a.pdf", contentType: "application/pdf", data: "%PDF"},
		part{name: "b.txt", contentType: "text/plain", data: "x"},
	)
	require.NotEmpty(t, s.session.Notice())

	rec := s.do(t, http.MethodDelete, "/api/notice", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, s.session.Notice())
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	s.upload(t, part{name: "a.pdf", contentType: "application/pdf", data: "%PDF"})
	rec = s.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "statement_documents_accepted_total 1")

	rec = s.do(t, http.MethodPost, "/api/view", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
