package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.RecordUpload(3, 1)
	m.RecordUpload(1, 0)
	m.RecordExtraction(OutcomeReady, 2*time.Second, 12)
	m.RecordExtraction(OutcomeError, time.Second, 0)
	m.RecordExport("all")

	assert.Equal(t, 4.0, testutil.ToFloat64(m.documentsAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.filesRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractions.WithLabelValues(OutcomeReady)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.extractions.WithLabelValues(OutcomeError)))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.transactions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exports.WithLabelValues("all")))
}

func TestRecordRequest(t *testing.T) {
	m := New()

	m.RecordRequest("/api/documents/{id}", http.MethodGet, http.StatusOK, 10*time.Millisecond)
	m.RecordRequest("/api/documents/{id}", http.MethodGet, http.StatusOK, 20*time.Millisecond)
	m.RecordRequest("/api/documents/{id}", http.MethodGet, http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.httpRequests))
}

func TestNew_Independent(t *testing.T) {
	a, b := New(), New()
	a.RecordUpload(2, 0)

	assert.Equal(t, 0.0, testutil.ToFloat64(b.documentsAccepted))
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordUpload(1, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "statement_documents_accepted_total 1"))
}
