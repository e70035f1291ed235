package satori

import (
	"encoding/json"
	"fmt"
)

// Opcode identifies the kind of one gateway frame.
type Opcode int

const (
	OpEvent Opcode = iota
	OpPing
	OpPong
	OpIdentify
	OpReady
	OpMeta
)

func (o Opcode) String() string {
	switch o {
	case OpEvent:
		return "event"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	case OpIdentify:
		return "identify"
	case OpReady:
		return "ready"
	case OpMeta:
		return "meta"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Payload is the framing envelope of every gateway frame: a numeric
// opcode plus an opcode-specific body.
type Payload struct {
	Op   Opcode          `json:"op"`
	Body json.RawMessage `json:"body,omitempty"`
}

// Identify is the body of the first client frame. SN, when nonzero,
// asks the gateway to resume the event stream after that sequence
// number.
type Identify struct {
	Token string `json:"token,omitempty"`
	SN    int64  `json:"sn,omitempty"`
}

// Ready is the body answering a successful identify.
type Ready struct {
	Logins    []*Login `json:"logins"`
	ProxyURLs []string `json:"proxy_urls,omitempty"`
}

// Meta is the body of a proxy-set update.
type Meta struct {
	ProxyURLs []string `json:"proxy_urls,omitempty"`
}

// ParsePayload decodes one frame's envelope. The body stays raw until
// the caller picks the decoder matching the opcode.
func ParsePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return &p, nil
}

// EncodePayload marshals a frame with the given opcode and body. A nil
// body produces a bare envelope, as used by ping and pong.
func EncodePayload(op Opcode, body any) ([]byte, error) {
	p := Payload{Op: op}
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", op, err)
		}
		p.Body = raw
	}
	return json.Marshal(p)
}

// DecodeEvent decodes an op 0 body into a normalized event.
func (p *Payload) DecodeEvent() (*Event, error) {
	var ev Event
	if err := json.Unmarshal(p.Body, &ev); err != nil {
		return nil, fmt.Errorf("%w: event body: %v", ErrMalformedFrame, err)
	}
	ev.Normalize()
	return &ev, nil
}

// DecodeReady decodes an op 4 body with its logins normalized.
func (p *Payload) DecodeReady() (*Ready, error) {
	var r Ready
	if err := json.Unmarshal(p.Body, &r); err != nil {
		return nil, fmt.Errorf("%w: ready body: %v", ErrMalformedFrame, err)
	}
	for _, l := range r.Logins {
		l.Normalize()
	}
	return &r, nil
}

// DecodeMeta decodes an op 5 body.
func (p *Payload) DecodeMeta() (*Meta, error) {
	var m Meta
	if err := json.Unmarshal(p.Body, &m); err != nil {
		return nil, fmt.Errorf("%w: meta body: %v", ErrMalformedFrame, err)
	}
	return &m, nil
}
