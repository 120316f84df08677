package launchcore

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
)

// Task names the operation a ProgressEvent was emitted from, per spec §3.
type Task string

const (
	TaskCheckingAssets       Task = "checking_assets"
	TaskDownloadingAssets    Task = "downloading_assets"
	TaskCheckingLibraries    Task = "checking_libraries"
	TaskDownloadingLibraries Task = "downloading_libraries"
	TaskCheckingNatives      Task = "checking_natives"
	TaskExtractingNatives    Task = "extracting_natives"
	TaskPostProcessing       Task = "post_processing"
)

// ProgressEvent is one tick of an install operation's progress, per spec §3.
type ProgressEvent struct {
	Task    Task
	File    string
	Total   uint64
	Current uint64
}

// String renders an event as a log-friendly line with humanized byte
// counts, e.g. "downloading_assets: objects/ab/abcdef... (3.2 MB/10 MB)".
func (e ProgressEvent) String() string {
	if e.Total == 0 {
		return fmt.Sprintf("%s: %s", e.Task, e.File)
	}
	return fmt.Sprintf("%s: %s (%s/%s)", e.Task, e.File,
		humanize.Bytes(e.Current), humanize.Bytes(e.Total))
}

// ProgressSubscription is a read-only handle onto future ProgressEvents. A
// subscriber created after events have already been emitted sees only
// events emitted from this point forward, mirroring the resubscribe()
// semantics of a broadcast channel.
type ProgressSubscription struct {
	Events <-chan ProgressEvent
}

// ProgressBus fans out ProgressEvents to every live subscriber, per spec
// §4.11. Delivery is best-effort: a subscriber whose buffer is full simply
// misses the event rather than stalling the installer (spec §5 requires
// that progress.current still advance monotonically even so; it is the
// caller's job to read current off the events it does receive, not to
// count them).
type ProgressBus struct {
	mu   sync.Mutex
	subs []chan ProgressEvent
}

// NewProgressBus returns an empty bus.
func NewProgressBus() *ProgressBus {
	return &ProgressBus{}
}

// Subscribe registers a new buffered channel and returns a read-only view
// of it.
func (b *ProgressBus) Subscribe() ProgressSubscription {
	ch := make(chan ProgressEvent, 64)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ProgressSubscription{Events: ch}
}

// publish delivers ev to every subscriber without blocking on a full
// channel.
func (b *ProgressBus) publish(ev ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
