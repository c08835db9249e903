package eventstore

import (
	"testing"
	"time"
)

const (
	testStream  = StreamID("vocab")
	deviceA     = DeviceID("device-a")
	deviceB     = DeviceID("device-b")
)

func TestInsertLocalAssignsContiguousIndices(t *testing.T) {
	s := New(UserID("u1"))
	now := time.Now().UTC()

	e0 := s.InsertLocal(testStream, deviceA, now, AddCards{}, 0)
	e1 := s.InsertLocal(testStream, deviceA, now.Add(time.Second), AddCards{}, 0)

	if e0.WithinDeviceIndex != 0 || e1.WithinDeviceIndex != 1 {
		t.Fatalf("expected contiguous indices 0,1; got %d,%d", e0.WithinDeviceIndex, e1.WithinDeviceIndex)
	}
	if got := s.VectorClock()[testStream][deviceA]; got != 2 {
		t.Fatalf("expected clock count 2, got %d", got)
	}
}

func TestInsertRemoteDuplicateIsIdempotentNoOp(t *testing.T) {
	s := New(UserID("u1"))
	now := time.Now().UTC()
	env := Envelope{DeviceID: deviceA, Timestamp: now, WithinDeviceIndex: 0, Payload: AddCards{}}

	if !s.InsertRemote(testStream, deviceA, env, 0) {
		t.Fatal("expected first insert to apply")
	}
	if s.InsertRemote(testStream, deviceA, env, 0) {
		t.Fatal("expected duplicate insert to be a no-op")
	}
	if got := s.VectorClock()[testStream][deviceA]; got != 1 {
		t.Fatalf("expected clock count 1 after duplicate, got %d", got)
	}
}

func TestInsertRemoteOutOfOrderIsDroppedNotApplied(t *testing.T) {
	s := New(UserID("u1"))
	now := time.Now().UTC()
	// Index 1 arrives before index 0 exists; the gap must be rejected rather
	// than silently creating a hole in the device log.
	gap := Envelope{DeviceID: deviceA, Timestamp: now, WithinDeviceIndex: 1, Payload: AddCards{}}

	if s.InsertRemote(testStream, deviceA, gap, 0) {
		t.Fatal("expected out-of-order index to be rejected")
	}
	if got := s.VectorClock()[testStream][deviceA]; got != 0 {
		t.Fatalf("expected clock count 0, got %d", got)
	}
}

func TestListenerNotifiedAfterMutationLockReleased(t *testing.T) {
	s := New(UserID("u1"))
	notified := make(chan StreamID, 1)
	s.RegisterListener(func(stream StreamID) {
		// If this callback ran while the mutation lock were still held, any
		// store method called from here would deadlock. Calling VectorClock
		// from inside the callback is the test for that invariant.
		s.VectorClock()
		notified <- stream
	})

	s.InsertLocal(testStream, deviceA, time.Now().UTC(), AddCards{}, 0)

	select {
	case stream := <-notified:
		if stream != testStream {
			t.Fatalf("expected notification for %q, got %q", testStream, stream)
		}
	case <-time.After(time.Second):
		t.Fatal("listener was never notified")
	}
}

func TestListenerSuppressedForMatchingModifier(t *testing.T) {
	s := New(UserID("u1"))
	key := s.RegisterListener(func(StreamID) {
		t.Fatal("listener should not fire for its own modifier key")
	})
	s.InsertLocal(testStream, deviceA, time.Now().UTC(), AddCards{}, key)
}

func TestTwoDeviceMergeIsOrderCommutative(t *testing.T) {
	now := time.Now().UTC()
	a := Envelope{DeviceID: deviceA, Timestamp: now, WithinDeviceIndex: 0, Payload: AddCards{}}
	b := Envelope{DeviceID: deviceB, Timestamp: now.Add(time.Second), WithinDeviceIndex: 0, Payload: AddCards{}}

	forward := New(UserID("u1"))
	forward.InsertRemote(testStream, deviceA, a, 0)
	forward.InsertRemote(testStream, deviceB, b, 0)

	backward := New(UserID("u1"))
	backward.InsertRemote(testStream, deviceB, b, 0)
	backward.InsertRemote(testStream, deviceA, a, 0)

	fIter := forward.Iter(testStream)
	bIter := backward.Iter(testStream)
	if len(fIter) != len(bIter) {
		t.Fatalf("expected equal envelope counts, got %d vs %d", len(fIter), len(bIter))
	}
	for i := range fIter {
		if fIter[i].DeviceID != bIter[i].DeviceID || fIter[i].WithinDeviceIndex != bIter[i].WithinDeviceIndex {
			t.Fatalf("merge order diverged at position %d: %+v vs %+v", i, fIter[i], bIter[i])
		}
	}
}

func TestSyncStateTracksStartFinishAndClock(t *testing.T) {
	s := New(UserID("u1"))
	target := "remote-1"
	t0 := time.Now().UTC()

	s.MarkSyncStarted(target, t0)
	s.UpdateSyncClock(target, Clock{testStream: {deviceA: 3}})
	s.MarkSyncFinished(target, t0.Add(time.Second), nil)

	state := s.SyncStateOf(target)
	if !state.LastStarted.Equal(t0) {
		t.Fatalf("expected LastStarted %v, got %v", t0, state.LastStarted)
	}
	if state.LastError != nil {
		t.Fatalf("expected no error, got %v", state.LastError)
	}
	if state.RemoteClock[testStream][deviceA] != 3 {
		t.Fatalf("expected remote clock to record device count 3, got %d", state.RemoteClock[testStream][deviceA])
	}
}

func TestDeviceEnvelopesFromReturnsOnlyNewEnvelopes(t *testing.T) {
	s := New(UserID("u1"))
	now := time.Now().UTC()
	s.InsertLocal(testStream, deviceA, now, AddCards{}, 0)
	s.InsertLocal(testStream, deviceA, now.Add(time.Second), AddCards{}, 0)
	s.InsertLocal(testStream, deviceA, now.Add(2*time.Second), AddCards{}, 0)

	envs := s.DeviceEnvelopesFrom(testStream, deviceA, 1)
	if len(envs) != 2 {
		t.Fatalf("expected 2 envelopes from index 1, got %d", len(envs))
	}
	if envs[0].WithinDeviceIndex != 1 || envs[1].WithinDeviceIndex != 2 {
		t.Fatalf("expected indices 1,2; got %d,%d", envs[0].WithinDeviceIndex, envs[1].WithinDeviceIndex)
	}
}
