package syncclient

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/golang/snappy"

	"github.com/lingocore/engine/pkg/eventstore"
)

// echoRaw records the last body it saw and replies with a canned response.
type echoRaw struct {
	lastPath string
	lastBody []byte
	reply    []byte
}

func (e *echoRaw) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	e.lastPath = path
	e.lastBody = body
	return e.reply, nil
}

func TestJSONTransportEncodesSyncEventsBody(t *testing.T) {
	raw := &echoRaw{reply: []byte(`{}`)}
	transport := JSONTransport{Raw: raw}

	req := SyncEventsRequest{SyncRequest: map[eventstore.StreamID]StreamCursor{
		"vocab": {LastSyncedIDs: map[eventstore.DeviceID]uint64{"device-a": 3}},
	}}
	if _, err := transport.SyncEvents(context.Background(), req); err != nil {
		t.Fatalf("SyncEvents() returned error: %v", err)
	}
	if raw.lastPath != "sync_events" {
		t.Fatalf("expected POST to sync_events, got %q", raw.lastPath)
	}

	var decoded struct {
		SyncRequest map[string]struct {
			LastSyncedIDs map[string]uint64 `json:"last_synced_ids"`
		} `json:"sync_request"`
	}
	if err := json.Unmarshal(raw.lastBody, &decoded); err != nil {
		t.Fatalf("request body is not the documented JSON shape: %v", err)
	}
	if decoded.SyncRequest["vocab"].LastSyncedIDs["device-a"] != 3 {
		t.Fatalf("unexpected request body %s", raw.lastBody)
	}
}

func TestSnappyRawTransportRoundTrips(t *testing.T) {
	inner := &echoRaw{reply: snappy.Encode(nil, []byte(`{"ok":true}`))}
	transport := SnappyRawTransport{Inner: inner}

	resp, err := transport.Post(context.Background(), "get_clock", []byte(`{"p_user_id":"u1"}`))
	if err != nil {
		t.Fatalf("Post() returned error: %v", err)
	}
	if string(resp) != `{"ok":true}` {
		t.Fatalf("expected decompressed response, got %s", resp)
	}

	decompressed, err := snappy.Decode(nil, inner.lastBody)
	if err != nil {
		t.Fatalf("request body was not snappy-compressed: %v", err)
	}
	if string(decompressed) != `{"p_user_id":"u1"}` {
		t.Fatalf("unexpected request body %s", decompressed)
	}
}
