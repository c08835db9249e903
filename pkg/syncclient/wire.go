package syncclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"

	"github.com/lingocore/engine/pkg/eventstore"
)

// RawTransport is the byte-level collaborator a host wires to its actual
// HTTP/websocket/whatever stack: POST a path with a JSON body, get a JSON
// body back. JSONTransport adapts it to the structured Transport interface;
// SnappyRawTransport decorates it to compress large delta payloads —
// a first-login sync_events response can carry the user's whole backlog.
type RawTransport interface {
	Post(ctx context.Context, path string, body []byte) ([]byte, error)
}

// JSONTransport implements Transport by JSON-encoding/decoding over a
// RawTransport, producing the documented wire bodies for sync_events,
// get_clock, and upload.
type JSONTransport struct {
	Raw RawTransport
}

func (t JSONTransport) SyncEvents(ctx context.Context, req SyncEventsRequest) (SyncEventsResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("syncclient: encode sync_events request: %w", err)
	}
	resp, err := t.Raw.Post(ctx, "sync_events", body)
	if err != nil {
		return nil, err
	}
	var out SyncEventsResponse
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("syncclient: decode sync_events response: %w", err)
	}
	return out, nil
}

func (t JSONTransport) GetClock(ctx context.Context, user eventstore.UserID) (eventstore.Clock, error) {
	body, err := json.Marshal(GetClockRequest{UserID: user})
	if err != nil {
		return nil, fmt.Errorf("syncclient: encode get_clock request: %w", err)
	}
	resp, err := t.Raw.Post(ctx, "get_clock", body)
	if err != nil {
		return nil, err
	}
	var out eventstore.Clock
	if err := json.Unmarshal(resp, &out); err != nil {
		return nil, fmt.Errorf("syncclient: decode get_clock response: %w", err)
	}
	return out, nil
}

// Upload implements Transport.Upload over the raw byte transport.
func (t JSONTransport) Upload(ctx context.Context, events []UploadEvent) error {
	body, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("syncclient: encode upload body: %w", err)
	}
	_, err = t.Raw.Post(ctx, "upload", body)
	return err
}

// SnappyRawTransport wraps a RawTransport, snappy-compressing the request
// body and decompressing the response body transparently.
type SnappyRawTransport struct {
	Inner RawTransport
}

func (t SnappyRawTransport) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	compressed := snappy.Encode(nil, body)
	resp, err := t.Inner.Post(ctx, path, compressed)
	if err != nil {
		return nil, err
	}
	decoded, err := snappy.Decode(nil, resp)
	if err != nil {
		return nil, fmt.Errorf("syncclient: decompress response: %w", err)
	}
	return decoded, nil
}
