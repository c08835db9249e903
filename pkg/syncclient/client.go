// Package syncclient drives reconciliation against a hosted remote store:
// the RPC contract (sync_events/get_clock/upload), the single-target sync
// loop, and cancellation semantics. The wire itself belongs to the host;
// Transport is the injected collaborator wired to its actual network stack.
// Store state is always snapshotted before any network call and reacquired
// after — nothing holds a store lock across I/O.
package syncclient

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lingocore/engine/internal/logging"
	"github.com/lingocore/engine/internal/metrics"
	"github.com/lingocore/engine/pkg/eventstore"
)

// SyncEventsRequest is the body of the sync_events RPC: per stream, the
// last-known count per device.
type SyncEventsRequest struct {
	SyncRequest map[eventstore.StreamID]StreamCursor `json:"sync_request"`
}

// StreamCursor names the last-synced count per device for one stream.
type StreamCursor struct {
	LastSyncedIDs map[eventstore.DeviceID]uint64 `json:"last_synced_ids"`
}

// SyncEventsResponse returns, per stream and device, every envelope with
// index >= the requested count.
type SyncEventsResponse map[eventstore.StreamID]map[eventstore.DeviceID][]eventstore.Envelope

// GetClockRequest is the body of the get_clock RPC.
type GetClockRequest struct {
	UserID eventstore.UserID `json:"p_user_id"`
}

// UploadEvent is one element of the upload RPC's body array. The
// server enforces uniqueness on (UserID, StreamID, DeviceID, Index) and
// treats duplicates as idempotent no-ops.
type UploadEvent struct {
	UserID    eventstore.UserID   `json:"user_id"`
	DeviceID  eventstore.DeviceID `json:"device_id"`
	StreamID  eventstore.StreamID `json:"stream_id"`
	Index     uint64              `json:"within_device_events_index"`
	CreatedAt time.Time           `json:"created_at"`
	Event     eventstore.Envelope `json:"event"`
}

// Transport performs the three RPCs over whatever wire the host chooses.
// The network transport to the remote backend belongs to the host; only
// this interface is part of the module.
type Transport interface {
	SyncEvents(ctx context.Context, req SyncEventsRequest) (SyncEventsResponse, error)
	GetClock(ctx context.Context, user eventstore.UserID) (eventstore.Clock, error)
	Upload(ctx context.Context, events []UploadEvent) error
}

// Client drives one target's sync loop against a Store.
type Client struct {
	Transport Transport
	Store     *eventstore.Store
	User      eventstore.UserID
	Target    string // sync-state bookkeeping key, e.g. "remote:default"

	log *logging.Logger
}

// New constructs a Client for the given target, store, and transport.
func New(transport Transport, store *eventstore.Store, user eventstore.UserID, target string) *Client {
	return &Client{
		Transport: transport,
		Store:     store,
		User:      user,
		Target:    target,
		log:       logging.L().With(logging.String("component", "syncclient"), logging.String("target", target)),
	}
}

// Sync runs one full pass: mark started, pull deltas
// using the local clock, merge them in, collect and upload local-only
// events, refresh the remote clock, and mark finished. modifier is passed to
// every InsertRemote call so the caller's own sync-driven listener doesn't
// self-notify. Any transient failure finalizes the sync with an
// error and leaves the prior clock snapshot untouched; ctx
// cancellation at any await point unwinds the same way.
func (c *Client) Sync(ctx context.Context, now time.Time, modifier eventstore.ListenerKey) error {
	c.Store.MarkSyncStarted(c.Target, now)
	timer := prometheus.NewTimer(metrics.SyncDuration.WithLabelValues(c.Target))
	defer timer.ObserveDuration()

	if err := ctx.Err(); err != nil {
		metrics.SyncPassesTotal.WithLabelValues(c.Target, "error").Inc()
		c.Store.MarkSyncFinished(c.Target, now, err)
		return err
	}

	localClock := c.Store.VectorClock()
	req := SyncEventsRequest{SyncRequest: make(map[eventstore.StreamID]StreamCursor, len(localClock))}
	for stream, devices := range localClock {
		req.SyncRequest[stream] = StreamCursor{LastSyncedIDs: devices}
	}

	deltas, err := c.Transport.SyncEvents(ctx, req)
	if err != nil {
		c.log.Warn("sync_events failed", logging.Error(err))
		metrics.SyncPassesTotal.WithLabelValues(c.Target, "error").Inc()
		c.Store.MarkSyncFinished(c.Target, now, err)
		return fmt.Errorf("syncclient: sync_events: %w", err)
	}
	downloaded := 0
	for stream, devices := range deltas {
		for device, envs := range devices {
			for _, env := range envs {
				c.Store.InsertRemote(stream, device, env, modifier)
				downloaded++
			}
		}
	}
	metrics.SyncEventsDownloadedTotal.WithLabelValues(c.Target).Add(float64(downloaded))

	if err := ctx.Err(); err != nil {
		metrics.SyncPassesTotal.WithLabelValues(c.Target, "error").Inc()
		c.Store.MarkSyncFinished(c.Target, now, err)
		return err
	}

	upload := c.collectOutgoing(localClock)
	if len(upload) > 0 {
		if err := c.Transport.Upload(ctx, upload); err != nil {
			c.log.Warn("upload failed", logging.Error(err))
			metrics.SyncPassesTotal.WithLabelValues(c.Target, "error").Inc()
			c.Store.MarkSyncFinished(c.Target, now, err)
			return fmt.Errorf("syncclient: upload: %w", err)
		}
		metrics.SyncEventsUploadedTotal.WithLabelValues(c.Target).Add(float64(len(upload)))
	}

	remoteClock, err := c.Transport.GetClock(ctx, c.User)
	if err != nil {
		c.log.Warn("get_clock failed", logging.Error(err))
		metrics.SyncPassesTotal.WithLabelValues(c.Target, "error").Inc()
		c.Store.MarkSyncFinished(c.Target, now, err)
		return fmt.Errorf("syncclient: get_clock: %w", err)
	}

	c.Store.UpdateSyncClock(c.Target, remoteClock)
	c.Store.MarkSyncFinished(c.Target, now, nil)
	metrics.SyncPassesTotal.WithLabelValues(c.Target, "ok").Inc()
	return nil
}

// collectOutgoing gathers every local event whose index is at or beyond
// what the remote is known to have, per (stream, device). The count used is the
// clock snapshot recorded after the last successful sync against this
// target (zero for any stream/device never seen before, so a first-ever
// sync uploads the full local log). This makes a second sync with no
// intervening change upload nothing: the prior sync's GetClock result
// already reflects every event just uploaded.
func (c *Client) collectOutgoing(localClock eventstore.Clock) []UploadEvent {
	remoteClock := c.Store.SyncStateOf(c.Target).RemoteClock
	var out []UploadEvent
	for stream, devices := range localClock {
		for device := range devices {
			remoteCount := remoteClock[stream][device]
			for _, env := range c.Store.DeviceEnvelopesFrom(stream, device, remoteCount) {
				out = append(out, UploadEvent{
					UserID:    c.User,
					DeviceID:  device,
					StreamID:  stream,
					Index:     env.WithinDeviceIndex,
					CreatedAt: env.Timestamp,
					Event:     env,
				})
			}
		}
	}
	return out
}
