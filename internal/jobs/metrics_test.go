package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	_ "github.com/meridian-erp/meridian/testing"
)

func TestTrackerRecordsSuccessAndFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("sweep").End(nil))

	wantErr := errors.New("boom")
	require.ErrorIs(t, m.Track("sweep").End(wantErr), wantErr)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["meridian_jobs_total"])
	require.True(t, names["meridian_jobs_failures_total"])
	require.True(t, names["meridian_job_duration_seconds"])
}

func TestNilTrackerPassesErrorThrough(t *testing.T) {
	var m *Metrics
	wantErr := errors.New("boom")
	require.ErrorIs(t, m.Track("sweep").End(wantErr), wantErr)
}
