package fabric

import (
	"encoding/json"
	"fmt"
)

// Serialization helpers for the values stored in Redis lists.
//
// Queue messages are JSON arrays of frames so a multi-frame message is
// pushed and popped atomically. Service traffic is wrapped in small JSON
// envelopes carrying the correlation id.

// request is the envelope a Service caller pushes on the requests list.
type request struct {
	ID      string `json:"id"`
	ReplyTo string `json:"reply_to"`
	Body    string `json:"body"`
}

// reply is the envelope a Service pushes on the caller's reply list.
type reply struct {
	ID    string `json:"id"`
	Body  string `json:"body"`
	Error string `json:"error,omitempty"`
}

// EncodeFrames converts message frames to their list representation.
func EncodeFrames(frames []string) (string, error) {
	if len(frames) == 0 {
		return "", ErrEmptyMessage
	}
	buf, err := json.Marshal(frames)
	if err != nil {
		return "", fmt.Errorf("failed to marshal frames: %w", err)
	}
	return string(buf), nil
}

// DecodeFrames converts a list value back to message frames.
func DecodeFrames(raw string) ([]string, error) {
	var frames []string
	if err := json.Unmarshal([]byte(raw), &frames); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames", ErrMalformedEnvelope)
	}
	return frames, nil
}

func encodeRequest(r *request) (string, error) {
	buf, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	return string(buf), nil
}

func decodeRequest(raw string) (*request, error) {
	var r request
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if r.ID == "" || r.ReplyTo == "" {
		return nil, fmt.Errorf("%w: request without id or reply_to", ErrMalformedEnvelope)
	}
	return &r, nil
}

func encodeReply(r *reply) (string, error) {
	buf, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal reply: %w", err)
	}
	return string(buf), nil
}

func decodeReply(raw string) (*reply, error) {
	var r reply
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return &r, nil
}
