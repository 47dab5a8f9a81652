package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Intents.WithLabelValues("new_signup").Inc()
	m.Intents.WithLabelValues("new_signup").Inc()
	m.StorageFailures.WithLabelValues("commit_subscriber").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`sportsreport_intents_total{kind="new_signup"} 2`,
		`sportsreport_storage_failures_total{op="commit_subscriber"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
