package scraper

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func gathered(t *testing.T, m *Metrics, name string) []*dto.Metric {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f.GetMetric()
		}
	}
	return nil
}

func labelled(metrics []*dto.Metric, value string) float64 {
	for _, m := range metrics {
		for _, l := range m.GetLabel() {
			if l.GetValue() == value {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.SessionStarted()
	m.SessionStarted()
	m.SessionFinished("completed")
	m.ObserveListing(250 * time.Millisecond)
	m.IncScroll("ok")
	m.IncScroll("failed")
	m.IncScroll("ok")
	m.IncFault(TierListing)

	if got := gathered(t, m, "mapscraper_active_sessions"); len(got) != 1 || got[0].GetGauge().GetValue() != 1 {
		t.Fatalf("active sessions = %v", got)
	}
	if got := labelled(gathered(t, m, "mapscraper_sessions_total"), "completed"); got != 1 {
		t.Fatalf("completed sessions = %v", got)
	}
	if got := labelled(gathered(t, m, "mapscraper_scrolls_total"), "ok"); got != 2 {
		t.Fatalf("ok scrolls = %v", got)
	}
	if got := labelled(gathered(t, m, "mapscraper_faults_total"), TierListing); got != 1 {
		t.Fatalf("listing faults = %v", got)
	}
	if got := gathered(t, m, "mapscraper_listing_duration_seconds"); len(got) != 1 || got[0].GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("listing duration = %v", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.SessionStarted()
	m.SessionFinished("error")
	m.ObserveListing(time.Second)
	m.IncScroll("ok")
	m.IncFault(TierField)
}
