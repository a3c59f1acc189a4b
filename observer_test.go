package netlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyp3rd/netlog/pkg/metrics"
)

var errUnrenderable = errors.New("unrenderable")

// idRenderer renders {"id":N} from the source ID so that sizes are predictable:
// ids 1 to 9 render to 8 bytes.
var idRenderer = RendererFunc(func(entry Entry) ([]byte, error) {
	if entry.Type == "bad" {
		return nil, errUnrenderable
	}

	return fmt.Appendf(nil, `{"id":%d}`, entry.Source.ID), nil
})

type artifact struct {
	Constants map[string]any `json:"constants"`
	Events    []struct {
		ID int `json:"id"`
	} `json:"events"`
	PolledData map[string]any `json:"polledData"`
}

func (a artifact) ids() []int {
	ids := make([]int, 0, len(a.Events))
	for _, e := range a.Events {
		ids = append(ids, e.ID)
	}

	return ids
}

func readArtifact(t *testing.T, path string) artifact {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var out artifact
	require.NoError(t, json.Unmarshal(data, &out), string(data))

	return out
}

func testConfig(t *testing.T) Config {
	t.Helper()

	cfg := DefaultConfig(filepath.Join(t.TempDir(), "netlog.json"))
	cfg.Constants = map[string]any{"a": 1}
	cfg.Renderer = idRenderer

	return cfg
}

func startObserver(t *testing.T, cfg Config) (*FileObserver, *Bus) {
	t.Helper()

	observer, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(observer.Close)

	bus := NewBus()
	require.NoError(t, observer.Start(bus))

	return observer, bus
}

func publish(bus *Bus, ids ...int) {
	for _, id := range ids {
		bus.AddEntry(Entry{Type: "EVENT", Source: EntrySource{ID: uint64(id)}})
	}
}

func stop(t *testing.T, observer *FileObserver, polledData any) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, observer.Stop(ctx, polledData))
}

func TestUnboundedSession(t *testing.T) {
	cfg := testConfig(t)
	observer, bus := startObserver(t, cfg)

	ids := make([]int, 0, 40)
	for i := 1; i <= 40; i++ {
		ids = append(ids, i)
	}

	publish(bus, ids...)
	stop(t, observer, map[string]any{"p": true})

	out := readArtifact(t, cfg.Path)
	assert.Equal(t, map[string]any{"a": float64(1)}, out.Constants)
	assert.Equal(t, ids, out.ids())
	assert.Equal(t, map[string]any{"p": true}, out.PolledData)
	assert.Zero(t, bus.Observers())

	stats := observer.Stats()
	assert.Equal(t, uint64(40), stats.Queued)
	assert.Equal(t, uint64(40), stats.FlushedEvents)
	assert.Zero(t, stats.Evicted)
	assert.Zero(t, stats.QueueLength)
}

func TestFlushThresholdSchedulesFlush(t *testing.T) {
	cfg := testConfig(t)
	cfg.FlushThreshold = 3

	observer, bus := startObserver(t, cfg)

	publish(bus, 1, 2)
	assert.Never(t, func() bool { return observer.Stats().Flushes > 0 }, 50*time.Millisecond, 5*time.Millisecond)

	publish(bus, 3)
	require.Eventually(t, func() bool { return observer.Stats().FlushedEvents == 3 }, 2*time.Second, 5*time.Millisecond)

	data, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "{\"id\":3},\n")

	stop(t, observer, nil)
}

func TestBoundedSessionKeepsNewestEvents(t *testing.T) {
	cfg := testConfig(t)
	// Two files of 20 bytes: each holds two events.
	cfg.MaxTotalSize = 40
	cfg.NumEventFiles = 2

	observer, bus := startObserver(t, cfg)

	publish(bus, 1, 2, 3, 4, 5)
	stop(t, observer, nil)

	data, err := os.ReadFile(cfg.Path)
	require.NoError(t, err)
	assert.Equal(t, "{\"constants\":{\"a\":1},\n\"events\": [\n{\"id\":3},\n{\"id\":4},\n{\"id\":5}]}\n", string(data))

	assert.Equal(t, uint64(3), observer.Stats().Rotations)

	_, err = os.Stat(cfg.Path + ".inprogress")
	require.True(t, os.IsNotExist(err))
}

func TestQueueCeilingEvictsOldest(t *testing.T) {
	cfg := testConfig(t)
	// The queue ceiling is 2 * 20 = 40 bytes: five 8-byte events.
	cfg.MaxTotalSize = 20
	cfg.NumEventFiles = 1
	cfg.FlushThreshold = 1000

	observer, bus := startObserver(t, cfg)

	publish(bus, 1, 2, 3, 4, 5, 6, 7)

	stats := observer.Stats()
	assert.Equal(t, uint64(2), stats.Evicted)
	assert.Equal(t, 5, stats.QueueLength)
	assert.Equal(t, int64(40), stats.QueueBytes)

	stop(t, observer, nil)

	// Events 3 to 7 survive the queue. With a single 20-byte slot only the
	// lines written since the last rotation remain on disk.
	assert.Equal(t, []int{7}, readArtifact(t, cfg.Path).ids())
}

func TestCloseWithoutStopDeletesFiles(t *testing.T) {
	for _, bounded := range []bool{false, true} {
		t.Run(fmt.Sprintf("bounded=%v", bounded), func(t *testing.T) {
			cfg := testConfig(t)
			cfg.FlushThreshold = 1

			if bounded {
				cfg.MaxTotalSize = 1 << 20
			}

			observer, err := New(cfg)
			require.NoError(t, err)

			bus := NewBus()
			require.NoError(t, observer.StartObserving(bus, CaptureModeDefault))

			publish(bus, 1, 2, 3)
			require.Eventually(t, func() bool { return observer.Stats().Flushes > 0 }, 2*time.Second, 5*time.Millisecond)

			observer.Close()
			observer.Close()

			assert.Zero(t, bus.Observers())

			_, err = os.Stat(cfg.Path)
			require.True(t, os.IsNotExist(err))

			_, err = os.Stat(cfg.Path + ".inprogress")
			require.True(t, os.IsNotExist(err))
		})
	}
}

func TestCloseAfterStopKeepsLog(t *testing.T) {
	cfg := testConfig(t)

	observer, err := New(cfg)
	require.NoError(t, err)

	bus := NewBus()
	require.NoError(t, observer.StartObserving(bus, CaptureModeDefault))
	publish(bus, 1)

	done := make(chan struct{})

	observer.StopObserving(nil, func() { close(done) })
	observer.Close()

	// The stop ran before Close returned; only its callback may still be in flight.
	assert.Equal(t, []int{1}, readArtifact(t, cfg.Path).ids())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop callback not delivered")
	}
}

func TestCloseFromStopCallback(t *testing.T) {
	cfg := testConfig(t)

	observer, err := New(cfg)
	require.NoError(t, err)

	bus := NewBus()
	require.NoError(t, observer.Start(bus))
	publish(bus, 1, 2)

	finished := make(chan struct{})

	observer.StopObserving(nil, func() {
		observer.Close()
		close(finished)
	})

	select {
	case <-finished:
	case <-time.After(3 * time.Second):
		t.Fatal("Close called from the stop callback never returned")
	}

	assert.Equal(t, []int{1, 2}, readArtifact(t, cfg.Path).ids())
	require.ErrorIs(t, observer.StartObserving(bus, CaptureModeDefault), ErrObserverClosed)
}

func TestStartUsesConfiguredCaptureMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Constants = nil
	cfg.CaptureMode = CaptureModeEverything

	observer, bus := startObserver(t, cfg)

	bus.AddEntry(Entry{Type: "EVENT", Source: EntrySource{ID: 4}, Mode: CaptureModeEverything})
	stop(t, observer, nil)

	out := readArtifact(t, cfg.Path)
	assert.Equal(t, "everything", out.Constants["logCaptureMode"])
	assert.Equal(t, []int{4}, out.ids())
}

func TestRenderFailureDropsEntry(t *testing.T) {
	cfg := testConfig(t)
	observer, bus := startObserver(t, cfg)

	publish(bus, 1)
	bus.AddEntry(Entry{Type: "bad"})
	publish(bus, 2)

	stop(t, observer, nil)

	assert.Equal(t, []int{1, 2}, readArtifact(t, cfg.Path).ids())
	assert.Equal(t, uint64(1), observer.Stats().RenderDropped)
}

func TestCaptureModeFiltersEntries(t *testing.T) {
	cfg := testConfig(t)
	observer, bus := startObserver(t, cfg)

	publish(bus, 1)
	bus.AddEntry(Entry{Type: "EVENT", Source: EntrySource{ID: 2}, Mode: CaptureModeEverything})

	stop(t, observer, nil)

	assert.Equal(t, []int{1}, readArtifact(t, cfg.Path).ids())
}

func TestDefaultConstantsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netlog.json")

	observer, err := NewUnbounded(path, nil)
	require.NoError(t, err)
	t.Cleanup(observer.Close)

	require.NoError(t, observer.StartObserving(NewBus(), CaptureModeIncludeSensitive))
	stop(t, observer, nil)

	out := readArtifact(t, path)
	assert.Equal(t, "include_sensitive", out.Constants["logCaptureMode"])
	assert.NotEmpty(t, out.Constants["sessionId"])
	assert.Empty(t, out.Events)
	assert.Nil(t, out.PolledData)
}

func TestNewBoundedUsesDefaultFileCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netlog.json")

	observer, err := NewBounded(path, 1000, map[string]any{})
	require.NoError(t, err)
	t.Cleanup(observer.Close)

	assert.Equal(t, path, observer.Path())
	assert.Equal(t, int64(2000), observer.queue.MaxBytes())
	assert.True(t, observer.writer.IsBounded())

	_, err = NewBounded(path, 0, nil)
	require.ErrorIs(t, err, ErrInvalidMaxTotalSize)
}

func TestStartObservingErrors(t *testing.T) {
	cfg := testConfig(t)

	observer, err := New(cfg)
	require.NoError(t, err)

	require.ErrorIs(t, observer.StartObserving(nil, CaptureModeDefault), ErrNilSource)

	bus := NewBus()
	require.NoError(t, observer.StartObserving(bus, CaptureModeDefault))
	require.ErrorIs(t, observer.StartObserving(bus, CaptureModeDefault), ErrAlreadyStarted)

	observer.Close()
	require.ErrorIs(t, observer.StartObserving(NewBus(), CaptureModeDefault), ErrObserverClosed)
}

func TestStartObservingRegistrationFailure(t *testing.T) {
	cfg := testConfig(t)

	observer, err := New(cfg)
	require.NoError(t, err)

	err = observer.StartObserving(NewBus(), CaptureMode(9))
	require.ErrorIs(t, err, ErrInvalidCaptureMode)

	observer.Close()

	_, err = os.Stat(cfg.Path)
	require.True(t, os.IsNotExist(err))
}

func TestStopWithoutStartCallsDone(t *testing.T) {
	observer, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(observer.Close)

	called := false

	observer.StopObserving(nil, func() { called = true })
	require.True(t, called)
}

func TestStopHonorsContext(t *testing.T) {
	cfg := testConfig(t)
	observer, _ := startObserver(t, cfg)

	release := make(chan struct{})
	require.NoError(t, observer.runner.Post(func() { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := observer.Stop(ctx, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	observer.Close()

	assert.Empty(t, readArtifact(t, cfg.Path).Events)
}

func TestConcurrentProducers(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxTotalSize = 4096
	cfg.NumEventFiles = 4

	observer, bus := startObserver(t, cfg)

	var wg sync.WaitGroup

	for range 8 {
		wg.Go(func() {
			for i := 1; i <= 200; i++ {
				publish(bus, i%9+1)
			}
		})
	}

	wg.Wait()
	stop(t, observer, map[string]any{"producers": 8})

	out := readArtifact(t, cfg.Path)
	assert.NotEmpty(t, out.Events)

	stats := observer.Stats()
	assert.Equal(t, uint64(1600), stats.Queued)
	assert.Equal(t, stats.Queued, stats.Evicted+stats.FlushedEvents)
}

func TestPrometheusRecorderReceivesCounters(t *testing.T) {
	registry := prometheus.NewRegistry()

	recorder, err := metrics.NewPrometheus(registry, "", "test")
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.Metrics = recorder
	cfg.MaxTotalSize = 40
	cfg.NumEventFiles = 2

	observer, bus := startObserver(t, cfg)

	publish(bus, 1, 2, 3, 4, 5)
	bus.AddEntry(Entry{Type: "bad"})
	stop(t, observer, nil)

	count, err := testutil.GatherAndCount(registry, "netlog_observer_entries_queued_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stats := observer.Stats()
	assert.Equal(t, uint64(5), stats.Queued)
	assert.Equal(t, uint64(1), stats.RenderDropped)
	assert.Equal(t, uint64(3), stats.Rotations)
}
