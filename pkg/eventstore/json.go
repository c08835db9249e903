package eventstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lingocore/engine/internal/logging"
)

// wireEnvelope is the on-disk/wire shape:
// {"timestamp":"<RFC3339>","within_device_events_index":N,"event":{"version":"V1","payload":<tagged-union>}}.
type wireEnvelope struct {
	Timestamp         string          `json:"timestamp"`
	WithinDeviceIndex uint64          `json:"within_device_events_index"`
	Event             wireEventVesion `json:"event"`
}

type wireEventVesion struct {
	Version string          `json:"version"`
	Payload json.RawMessage `json:"payload"`
}

// MarshalEnvelopeJSON encodes env in the versioned wire format. The
// DeviceID is not part of the payload: it is implied by the file's location
// in the persistent store's directory tree.
func MarshalEnvelopeJSON(env Envelope) ([]byte, error) {
	payload, tag, err := encodePayload(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("eventstore: encode envelope: %w", err)
	}
	inner := struct {
		Tag     PayloadTag      `json:"tag"`
		Payload json.RawMessage `json:"payload_body"`
	}{Tag: tag, Payload: payload}
	innerRaw, err := json.Marshal(inner)
	if err != nil {
		return nil, fmt.Errorf("eventstore: encode envelope body: %w", err)
	}
	wire := wireEnvelope{
		Timestamp:         env.Timestamp.UTC().Format(time.RFC3339Nano),
		WithinDeviceIndex: env.WithinDeviceIndex,
		Event: wireEventVesion{
			Version: "V1",
			Payload: innerRaw,
		},
	}
	return json.Marshal(wire)
}

// UnmarshalEnvelopeJSON decodes the wire format produced by
// MarshalEnvelopeJSON. A malformed envelope or an unrecognized payload tag or
// event version is reported via ok=false with a logged warning rather than
// an error; a log replay skips the envelope and keeps going.
func UnmarshalEnvelopeJSON(data []byte, log *logging.Logger) (env Envelope, ok bool) {
	if log == nil {
		log = logging.L()
	}
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		log.Warn("eventstore: skipping malformed envelope", logging.Error(err))
		return Envelope{}, false
	}
	if wire.Event.Version != "V1" {
		log.Warn("eventstore: skipping envelope with unknown version", logging.String("version", wire.Event.Version))
		return Envelope{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, wire.Timestamp)
	if err != nil {
		log.Warn("eventstore: skipping envelope with unparsable timestamp", logging.Error(err))
		return Envelope{}, false
	}
	payload, ok := decodePayload(wire.Event.Payload, log)
	if !ok {
		return Envelope{}, false
	}
	return Envelope{
		Timestamp:         ts,
		WithinDeviceIndex: wire.WithinDeviceIndex,
		Payload:           payload,
	}, true
}

func encodePayload(p Payload) (json.RawMessage, PayloadTag, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, "", err
	}
	return raw, p.payloadTag(), nil
}

func decodePayload(raw json.RawMessage, log *logging.Logger) (Payload, bool) {
	var shell struct {
		Tag     PayloadTag      `json:"tag"`
		Payload json.RawMessage `json:"payload_body"`
	}
	if err := json.Unmarshal(raw, &shell); err != nil {
		log.Warn("eventstore: skipping envelope with malformed payload shell", logging.Error(err))
		return nil, false
	}
	tag := normalizeTag(shell.Tag)
	switch tag {
	case TagAddCards:
		var p AddCards
		if err := json.Unmarshal(shell.Payload, &p); err != nil {
			log.Warn("eventstore: skipping malformed AddCards", logging.Error(err))
			return nil, false
		}
		return p, true
	case TagReviewCard:
		var p ReviewCard
		if err := json.Unmarshal(shell.Payload, &p); err != nil {
			log.Warn("eventstore: skipping malformed ReviewCard", logging.Error(err))
			return nil, false
		}
		return p, true
	case TagTranslationChallenge:
		var p TranslationChallenge
		if err := json.Unmarshal(shell.Payload, &p); err != nil {
			log.Warn("eventstore: skipping malformed TranslationChallenge", logging.Error(err))
			return nil, false
		}
		return p, true
	case TagTranscriptionChallenge:
		var p TranscriptionChallenge
		if err := json.Unmarshal(shell.Payload, &p); err != nil {
			log.Warn("eventstore: skipping malformed TranscriptionChallenge", logging.Error(err))
			return nil, false
		}
		return p, true
	default:
		log.Warn("eventstore: skipping envelope with unknown payload tag", logging.String("tag", string(shell.Tag)))
		return nil, false
	}
}

// normalizeTag honors the legacy alias ReviewSentence for
// TranslationChallenge.
func normalizeTag(tag PayloadTag) PayloadTag {
	if tag == "ReviewSentence" {
		return TagTranslationChallenge
	}
	return tag
}
