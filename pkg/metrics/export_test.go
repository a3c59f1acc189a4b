package metrics

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPopulatedRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()

	registry := prometheus.NewRegistry()

	recorder, err := NewPrometheus(registry, "", "export")
	require.NoError(t, err)

	recorder.EntryQueued(10)
	recorder.EntryQueued(10)
	recorder.EntryEvicted(10)
	recorder.QueueState(1, 10)
	recorder.FileRotated()

	return registry
}

func TestHandler(t *testing.T) {
	registry := newPopulatedRegistry(t)

	rec := httptest.NewRecorder()
	Handler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, metric := range []string{
		`netlog_observer_entries_queued_total{session="export"} 2`,
		`netlog_observer_entries_evicted_total{session="export"} 1`,
		`netlog_observer_queue_length{session="export"} 1`,
		`netlog_observer_file_rotations_total{session="export"} 1`,
	} {
		assert.Contains(t, body, metric)
	}
}

func TestWriteText(t *testing.T) {
	registry := newPopulatedRegistry(t)

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, registry))

	assert.Contains(t, buf.String(), "# TYPE netlog_observer_entries_queued_total counter")
	assert.Contains(t, buf.String(), `netlog_observer_queue_bytes{session="export"} 10`)
}
