// Package filestore is the persistent tier: a directory tree
// that materializes one eventstore.Store's streams on disk, one JSON file
// per envelope, append-only: each save reads the on-disk count and writes
// only what's new. The sqlite side-index (index.go) and fsnotify disk-watch
// (watch.go) are optional accelerators; the JSON tree stays authoritative.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/lingocore/engine/internal/logging"
	"github.com/lingocore/engine/internal/metrics"
	"github.com/lingocore/engine/pkg/broadcast"
	"github.com/lingocore/engine/pkg/eventstore"
)

const indexWidth = 10

// saveLockName is the advisory lock file guarding one save pass over a
// user's tree; saveLockStale is how old a leftover lock must be before it is
// treated as abandoned by a crashed saver and broken.
const (
	saveLockName  = "save.lock"
	saveLockStale = 30 * time.Second
)

var indexFilePattern = regexp.MustCompile(`^\d{10}\.json$`)

// Store materializes one user's event log on disk under
// root/user/<user>/stream/<stream>/device/<device>/NNNNNNNNNN.json.
type Store struct {
	Root    string
	Events  *eventstore.Store
	User    eventstore.UserID
	Index   *Index           // optional sqlite side-index; nil disables it
	Channel broadcast.Channel // optional multi-tab notification sink

	log *logging.Logger
}

// New constructs a Store rooted at root for the given in-memory event store.
func New(root string, events *eventstore.Store, user eventstore.UserID, index *Index, channel broadcast.Channel) *Store {
	return &Store{
		Root:    root,
		Events:  events,
		User:    user,
		Index:   index,
		Channel: channel,
		log:     logging.L().With(logging.String("component", "filestore"), logging.String("user", string(user))),
	}
}

func userDir(root string, user eventstore.UserID) string {
	return filepath.Join(root, "user", string(user))
}

func streamDir(root string, user eventstore.UserID, stream eventstore.StreamID) string {
	return filepath.Join(userDir(root, user), "stream", string(stream))
}

func deviceDir(root string, user eventstore.UserID, stream eventstore.StreamID, device eventstore.DeviceID) string {
	return filepath.Join(streamDir(root, user, stream), "device", string(device))
}

func envelopeFile(dir string, index uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%0*d.json", indexWidth, index))
}

// Save writes stream to disk and reports how many envelopes it wrote: for each device the
// in-memory store knows about, it writes every envelope at an index at or
// beyond the on-disk count, then (if anything was written) publishes a
// {"type":"written"} notification so other tabs/processes reload the
// stream.
func (s *Store) Save(stream eventstore.StreamID) (count int, err error) {
	outcome := "ok"
	start := time.Now()
	defer func() {
		metrics.FilestoreSaveDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	release, locked := s.tryLockSave()
	if !locked {
		// Another tab/process is mid-save; it will publish the written
		// notification when it finishes, so skipping here loses nothing.
		outcome = "skipped"
		return 0, nil
	}
	defer release()

	written := 0
	clock := s.Events.VectorClock()
	for device := range clock[stream] {
		dir := deviceDir(s.Root, s.User, stream, device)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			outcome = "error"
			return written, fmt.Errorf("filestore: mkdir %s: %w", dir, err)
		}
		onDisk, err := diskCount(dir)
		if err != nil {
			outcome = "error"
			return written, fmt.Errorf("filestore: count %s: %w", dir, err)
		}
		envs := s.Events.DeviceEnvelopesFrom(stream, device, onDisk)
		for _, env := range envs {
			data, err := eventstore.MarshalEnvelopeJSON(env)
			if err != nil {
				outcome = "error"
				return written, fmt.Errorf("filestore: encode envelope: %w", err)
			}
			path := envelopeFile(dir, env.WithinDeviceIndex)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				outcome = "error"
				return written, fmt.Errorf("filestore: write %s: %w", path, err)
			}
			written++
			if s.Index != nil {
				if err := s.Index.RecordWrite(s.User, stream, device, env.WithinDeviceIndex+1); err != nil {
					s.log.Warn("filestore: side-index update failed", logging.Error(err))
				}
			}
		}
	}
	if written > 0 && s.Channel != nil {
		s.Channel.Publish(string(stream))
	}
	return written, nil
}

// tryLockSave takes a best-effort advisory lock over the user's tree for one
// save pass, so two tabs don't write the same index simultaneously. The lock
// is a plain O_EXCL file; one left behind by a crashed saver is broken once
// stale.
func (s *Store) tryLockSave() (release func(), ok bool) {
	dir := userDir(s.Root, s.User)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, false
	}
	path := filepath.Join(dir, saveLockName)
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_ = f.Close()
			return func() { _ = os.Remove(path) }, true
		}
		info, statErr := os.Stat(path)
		if statErr != nil {
			// The holder released between our open and stat; try again.
			continue
		}
		if time.Since(info.ModTime()) < saveLockStale {
			return nil, false
		}
		s.log.Warn("breaking stale save lock", logging.String("path", path))
		_ = os.Remove(path)
	}
	return nil, false
}

// Load is Save's inverse: for each device folder on disk, it
// reads envelopes at indices ≥ the in-memory count and hands each to
// insert_remote, using modifier to suppress self-notification the way a
// sync pass does.
func (s *Store) Load(stream eventstore.StreamID, modifier eventstore.ListenerKey) error {
	dir := streamDir(s.Root, s.User, stream)
	deviceDirs, err := os.ReadDir(filepath.Join(dir, "device"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("filestore: list devices for %s: %w", stream, err)
	}
	clock := s.Events.VectorClock()
	for _, entry := range deviceDirs {
		if !entry.IsDir() {
			continue
		}
		device := eventstore.DeviceID(entry.Name())
		inMemory := clock[stream][device]
		ddir := filepath.Join(dir, "device", entry.Name())
		indices, err := sortedIndices(ddir)
		if err != nil {
			return fmt.Errorf("filestore: enumerate %s: %w", ddir, err)
		}
		for _, idx := range indices {
			if idx < inMemory {
				continue
			}
			path := envelopeFile(ddir, idx)
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("filestore: read %s: %w", path, err)
			}
			env, ok := eventstore.UnmarshalEnvelopeJSON(data, s.log)
			if !ok {
				// Malformed envelope; skipped with a log entry, never fatal.
				continue
			}
			s.Events.InsertRemote(stream, device, env, modifier)
		}
	}
	return nil
}

// Clock enumerates the on-disk tree and asserts contiguity per device. A
// gap is a hard invariant violation and panics — the caller must treat the
// on-disk store as corrupted and clear the affected tree.
func (s *Store) Clock() (eventstore.Clock, error) {
	out := make(eventstore.Clock)
	streamsDir := filepath.Join(userDir(s.Root, s.User), "stream")
	streamEntries, err := os.ReadDir(streamsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("filestore: list streams: %w", err)
	}
	for _, se := range streamEntries {
		if !se.IsDir() {
			continue
		}
		stream := eventstore.StreamID(se.Name())
		deviceEntries, err := os.ReadDir(filepath.Join(streamsDir, se.Name(), "device"))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("filestore: list devices for %s: %w", stream, err)
		}
		devices := make(map[eventstore.DeviceID]uint64, len(deviceEntries))
		for _, de := range deviceEntries {
			if !de.IsDir() {
				continue
			}
			device := eventstore.DeviceID(de.Name())
			ddir := filepath.Join(streamsDir, se.Name(), "device", de.Name())
			indices, err := sortedIndices(ddir)
			if err != nil {
				return nil, fmt.Errorf("filestore: enumerate %s: %w", ddir, err)
			}
			for i, idx := range indices {
				if idx != uint64(i) {
					panic(fmt.Sprintf("filestore: corrupted on-disk log at %s: expected contiguous index %d, found %d", ddir, i, idx))
				}
			}
			devices[device] = uint64(len(indices))
		}
		out[stream] = devices
	}
	return out, nil
}

// ImportAnonymousInto migrates a pre-login log: on
// first login, it moves the anonymous user's tree into the named user's
// tree, but only if the target tree is empty, then removes the anonymous
// tree.
func ImportAnonymousInto(root string, anonymous, user eventstore.UserID) error {
	src := userDir(root, anonymous)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	dst := userDir(root, user)
	empty, err := dirEmptyOrMissing(dst)
	if err != nil {
		return fmt.Errorf("filestore: stat target tree: %w", err)
	}
	if !empty {
		return os.RemoveAll(src)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("filestore: move anonymous tree: %w", err)
	}
	return nil
}

func dirEmptyOrMissing(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

// diskCount returns the contiguous count of envelopes already on disk for a
// device directory, i.e. the next expected index.
func diskCount(dir string) (uint64, error) {
	indices, err := sortedIndices(dir)
	if err != nil {
		return 0, err
	}
	return uint64(len(indices)), nil
}

func sortedIndices(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]uint64, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !indexFilePattern.MatchString(name) {
			continue
		}
		n, err := strconv.ParseUint(name[:indexWidth], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
