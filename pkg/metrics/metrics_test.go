package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	r := New()
	r.MatchesByPhase.WithLabelValues("completed").Inc()
	r.InvalidationReasons.WithLabelValues("commitment_mismatch").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "manastr_validator_matches_total") {
		t.Fatalf("expected matches_total metric in output, got:\n%s", body)
	}
	if !strings.Contains(body, "manastr_validator_match_invalidations_total") {
		t.Fatalf("expected match_invalidations_total metric in output")
	}
}
