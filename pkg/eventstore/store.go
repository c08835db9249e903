package eventstore

import (
	"sort"
	"sync"
	"time"

	"github.com/lingocore/engine/internal/logging"
	"github.com/lingocore/engine/internal/metrics"
)

// ListenerKey identifies a registered listener, returned by RegisterListener
// and used both to unregister and as an optional "modifier" on a mutation to
// suppress self-notification.
type ListenerKey uint64

// Listener is invoked once per affected stream per notification batch. It
// runs inline on the mutation's goroutine but never while any store mutex is
// held — see notificationQueue below.
type Listener func(stream StreamID)

// Clock is a per-tier snapshot of event counts, keyed stream then device.
type Clock map[StreamID]map[DeviceID]uint64

// Clone returns a deep copy so callers cannot mutate the store's internal
// state through a returned Clock.
func (c Clock) Clone() Clock {
	out := make(Clock, len(c))
	for stream, devices := range c {
		inner := make(map[DeviceID]uint64, len(devices))
		for device, count := range devices {
			inner[device] = count
		}
		out[stream] = inner
	}
	return out
}

// SyncState tracks the last sync attempt against one remote target.
type SyncState struct {
	LastStarted  time.Time
	LastFinished time.Time
	LastError    error
	RemoteClock  Clock
}

// deviceLog is the ordered, contiguous-from-zero envelope sequence for one
// device within one stream.
type deviceLog struct {
	envelopes []Envelope
}

func (d *deviceLog) count() uint64 { return uint64(len(d.envelopes)) }

// notificationQueue buffers listener deliveries collected under a mutation's
// lock so they can be flushed after the lock is released. Listener callbacks
// must never run while a store mutex is held.
type notificationQueue struct {
	pending []pendingNotification
}

type pendingNotification struct {
	stream   StreamID
	modifier ListenerKey
}

func (q *notificationQueue) push(stream StreamID, modifier ListenerKey) {
	q.pending = append(q.pending, pendingNotification{stream: stream, modifier: modifier})
}

// Store is the per-user event store: an in-memory map of streams, each a map
// of devices, each a contiguous envelope log, plus registered listeners and
// per-target sync bookkeeping. All mutation happens under mu; listener
// callbacks are queued and only ever invoked by drain, after mu is
// released.
type Store struct {
	mu sync.Mutex

	user      UserID
	streams   map[StreamID]map[DeviceID]*deviceLog
	listeners map[ListenerKey]Listener
	nextKey   ListenerKey
	syncState map[string]SyncState

	log *logging.Logger
}

// New constructs an empty Store for the given user.
func New(user UserID) *Store {
	return &Store{
		user:      user,
		streams:   make(map[StreamID]map[DeviceID]*deviceLog),
		listeners: make(map[ListenerKey]Listener),
		syncState: make(map[string]SyncState),
		log:       logging.L().With(logging.String("component", "eventstore"), logging.String("user", string(user))),
	}
}

// RegisterListener adds cb to the notification fan-out and returns a key
// usable to unregister it, or to pass as a mutation's modifier to suppress
// self-notification.
func (s *Store) RegisterListener(cb Listener) ListenerKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextKey++
	key := s.nextKey
	s.listeners[key] = cb
	return key
}

// UnregisterListener removes a previously registered listener.
func (s *Store) UnregisterListener(key ListenerKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, key)
}

// InsertLocal appends payload at the next index for the local device within
// stream, notifying listeners (other than modifier, if set) once the lock is
// released.
func (s *Store) InsertLocal(stream StreamID, device DeviceID, now time.Time, payload Payload, modifier ListenerKey) Envelope {
	var queue notificationQueue
	s.mu.Lock()
	log := s.deviceLogLocked(stream, device)
	env := Envelope{
		DeviceID:          device,
		Timestamp:         now,
		WithinDeviceIndex: log.count(),
		Payload:           payload,
	}
	log.envelopes = append(log.envelopes, env)
	queue.push(stream, modifier)
	s.mu.Unlock()

	metrics.EnvelopesAppendedTotal.WithLabelValues("local").Inc()
	s.drain(&queue)
	return env
}

// InsertRemote appends env for device within stream if and only if its index
// equals the device's current count (idempotent on duplicates, refuses to
// create a gap). Returns whether the envelope was newly applied.
func (s *Store) InsertRemote(stream StreamID, device DeviceID, env Envelope, modifier ListenerKey) bool {
	var queue notificationQueue
	s.mu.Lock()
	log := s.deviceLogLocked(stream, device)
	count := log.count()
	applied := false
	switch {
	case env.WithinDeviceIndex < count:
		// Already applied; idempotent no-op.
		metrics.RemoteEnvelopesSkippedTotal.WithLabelValues("duplicate").Inc()
	case env.WithinDeviceIndex > count:
		// Out-of-order remote: dropped, not buffered; it applies only if
		// delivered again once its predecessors are in place. The caller
		// (persistent store / remote sync) is expected to deliver
		// contiguous ranges, so this should not occur in practice; it is
		// not a hard invariant violation here because the in-memory tier
		// tolerates a late retry, unlike a corrupted on-disk tree.
		metrics.RemoteEnvelopesSkippedTotal.WithLabelValues("gap").Inc()
		s.log.Warn("insert_remote: out-of-order index, dropping",
			logging.String("stream", string(stream)),
			logging.String("device", string(device)),
			logging.Uint64("want", count),
			logging.Uint64("got", env.WithinDeviceIndex))
	default:
		env.DeviceID = device
		log.envelopes = append(log.envelopes, env)
		queue.push(stream, modifier)
		applied = true
	}
	s.mu.Unlock()

	if applied {
		metrics.EnvelopesAppendedTotal.WithLabelValues("remote").Inc()
		s.drain(&queue)
	}
	return applied
}

// Iter returns every envelope in stream across all devices, merged and
// sorted by (timestamp, device, index) — the order the deck fold requires.
func (s *Store) Iter(stream StreamID) []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	devices := s.streams[stream]
	out := make([]Envelope, 0)
	for _, log := range devices {
		out = append(out, log.envelopes...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// DeviceEnvelopesFrom returns device's envelopes in stream at index >= from,
// used by the persistent store's save pass and the remote sync client's
// upload step.
func (s *Store) DeviceEnvelopesFrom(stream StreamID, device DeviceID, from uint64) []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.streams[stream][device]
	if !ok || from >= log.count() {
		return nil
	}
	out := make([]Envelope, log.count()-from)
	copy(out, log.envelopes[from:])
	return out
}

// VectorClock returns the current in-memory clock across every stream and
// device.
func (s *Store) VectorClock() Clock {
	s.mu.Lock()
	defer s.mu.Unlock()
	clock := make(Clock, len(s.streams))
	for stream, devices := range s.streams {
		inner := make(map[DeviceID]uint64, len(devices))
		for device, log := range devices {
			inner[device] = log.count()
		}
		clock[stream] = inner
	}
	return clock
}

// SyncStateOf returns the last-known sync state for target.
func (s *Store) SyncStateOf(target string) SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.syncState[target]
}

// MarkSyncStarted records the start of a sync pass against target.
func (s *Store) MarkSyncStarted(target string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.syncState[target]
	state.LastStarted = now
	s.syncState[target] = state
}

// MarkSyncFinished records the end of a sync pass; err is nil on success. A
// failed pass leaves the remote clock snapshot untouched.
func (s *Store) MarkSyncFinished(target string, now time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.syncState[target]
	state.LastFinished = now
	state.LastError = err
	s.syncState[target] = state
}

// UpdateSyncClock records the remote's authoritative clock after a
// successful sync.
func (s *Store) UpdateSyncClock(target string, clock Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.syncState[target]
	state.RemoteClock = clock.Clone()
	s.syncState[target] = state
}

// DrainDueNotifications is a no-op placeholder retained for API symmetry
// with the spec's explicit "drain" entry point; in this implementation every
// public mutation already drains its own queue before returning. It
// exists so a host integrating multiple stores can call a single drain point
// defensively without needing to know which store last mutated.
func (s *Store) DrainDueNotifications() {}

func (s *Store) deviceLogLocked(stream StreamID, device DeviceID) *deviceLog {
	devices, ok := s.streams[stream]
	if !ok {
		devices = make(map[DeviceID]*deviceLog)
		s.streams[stream] = devices
	}
	log, ok := devices[device]
	if !ok {
		log = &deviceLog{}
		devices[device] = log
	}
	return log
}

func (s *Store) drain(queue *notificationQueue) {
	for _, n := range queue.pending {
		for key, cb := range s.snapshotListeners() {
			if key == n.modifier {
				continue
			}
			cb(n.stream)
		}
	}
}

func (s *Store) snapshotListeners() map[ListenerKey]Listener {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[ListenerKey]Listener, len(s.listeners))
	for k, v := range s.listeners {
		out[k] = v
	}
	return out
}
