// Package netlog persists a high-rate stream of diagnostic events to a single
// JSON document on local disk.
//
// The package is built around three pieces:
// - a FileObserver, registered on an event Source, that renders every entry
// and appends it to a memory-capped queue without ever touching the disk
// - a bounded queue that evicts its oldest events once the configured ceiling
// is exceeded, so memory stays flat under unbounded event volume
// - a file writer, running on a single background goroutine, that streams the
// drained events into the final file or rotates them across a fixed ring of
// numbered files and stitches them back together on stop
//
// The produced artifact has the shape
//
//	{"constants": {...},
//	"events": [
//	{...},
//	{...}],
//	"polledData": {...}
//	}
//
// Basic usage:
//
//	bus := netlog.NewBus()
//
//	observer, err := netlog.NewBounded("/tmp/session.json", 10<<20, nil)
//	if err != nil {
//		return err
//	}
//	defer observer.Close()
//
//	err = observer.StartObserving(bus, netlog.CaptureModeDefault)
//	if err != nil {
//		return err
//	}
//
//	bus.AddEntry(netlog.Entry{Type: "REQUEST_ALIVE", Phase: netlog.PhaseBegin})
//
//	observer.StopObserving(nil, nil)
//
// Nothing written by the background goroutine is reported back to callers as
// an error: failures are logged through the configured log.Logger and
// counted in Stats.
package netlog
