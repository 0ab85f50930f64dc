package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordLedgerOp(t *testing.T) {
	before := testutil.ToFloat64(ledgerOps.WithLabelValues("borrow", "ok"))
	RecordLedgerOp("borrow", "ok", 3*time.Millisecond)
	after := testutil.ToFloat64(ledgerOps.WithLabelValues("borrow", "ok"))
	if after-before != 1 {
		t.Fatalf("counter delta = %v, want 1", after-before)
	}
}

func TestHandler_ExposesLibraryMetrics(t *testing.T) {
	RecordTxRetry("return")
	RecordAvailabilityCapHit()
	RecordNotification("borrowed", "sent")
	RecordHTTPRequest("POST", "/loans", 201, time.Millisecond)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	res, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)

	for _, name := range []string{
		"library_ledger_tx_retries_total",
		"library_ledger_availability_cap_hits_total",
		"library_notifier_events_total",
		"library_http_requests_total",
	} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("metric %s missing from exposition", name)
		}
	}
}
