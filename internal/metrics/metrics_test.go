package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ShareIssued("simple")
	m.ShareIssued("scheduled")
	m.AccessChecked("allowed")
	m.AccessChecked("expired")
	m.DownloadCompleted()
	m.RequestObserved("GET", "200")

	body := scrape(t, m)
	assert.Contains(t, body, `ftpshare_shares_issued_total{kind="simple"} 1`)
	assert.Contains(t, body, `ftpshare_shares_issued_total{kind="scheduled"} 1`)
	assert.Contains(t, body, `ftpshare_access_checks_total{decision="expired"} 1`)
	assert.Contains(t, body, `ftpshare_downloads_total 1`)
	assert.Contains(t, body, `ftpshare_http_requests_total{method="GET",status="200"} 1`)
}

func TestSystemTracker_Snapshot(t *testing.T) {
	tracker := NewSystemTracker()

	snapshot := tracker.Snapshot()
	assert.GreaterOrEqual(t, snapshot.UptimeSeconds, int64(0))
	assert.Greater(t, snapshot.MemoryTotalBytes, uint64(0))
}
