package codec

import (
	"encoding/json"
	"fmt"
)

// Codec maps structured payloads to and from the text format the queue
// backend transports. Implementations must round-trip: Decode(Encode(x))
// yields x for every payload representable in the wire format.
type Codec interface {
	Encode(v any) (string, error)
	Decode(body string) (any, error)
}

// JSON encodes payloads as JSON text. This is the default codec; every
// message body on the wire is a JSON document.
type JSON struct{}

func (JSON) Encode(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return string(b), nil
}

func (JSON) Decode(body string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}
