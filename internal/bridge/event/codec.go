package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is the wire form of every event: a discriminant plus its payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeError describes why a raw payload could not become an event.
type DecodeError struct {
	Type   string // envelope type, empty if the envelope itself was unreadable
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := "decode event"
	if e.Type != "" {
		msg += " " + e.Type
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ErrMissingType is wrapped by a DecodeError when the envelope has no type.
var ErrMissingType = errors.New("missing type")

// EncodeClient serializes a client event into its envelope.
func EncodeClient(ev ClientEvent) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("encode client event: nil event")
	}
	if err := validateClient(ev); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	return encode(ev.Type(), ev)
}

// DecodeClient parses a client event envelope. The backend side of a
// transport (and tests) use it to read what the front-end sent.
func DecodeClient(data []byte) (ClientEvent, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	var ev ClientEvent
	switch env.Type {
	case TypeSessionStart:
		var p SessionStart
		err = unmarshalPayload(env, &p)
		ev = p
	case TypeSessionContinue:
		var p SessionContinue
		err = unmarshalPayload(env, &p)
		ev = p
	case TypeSessionStop:
		var p SessionStop
		err = unmarshalPayload(env, &p)
		ev = p
	default:
		return nil, &DecodeError{Type: env.Type, Reason: "unknown client event type"}
	}
	if err != nil {
		return nil, err
	}
	if err := validateClient(ev); err != nil {
		return nil, &DecodeError{Type: env.Type, Reason: "invalid payload", Err: err}
	}
	return ev, nil
}

// EncodeServer serializes a server event into its envelope.
func EncodeServer(ev ServerEvent) ([]byte, error) {
	if ev == nil {
		return nil, errors.New("encode server event: nil event")
	}
	if u, ok := ev.(Unrecognized); ok {
		return json.Marshal(Envelope{Type: u.Kind, Payload: u.Payload})
	}
	return encode(ev.Type(), ev)
}

// DecodeServer parses a server event envelope. Unknown types decode to
// Unrecognized; malformed JSON, a missing type, missing ids and unknown
// statuses are reported as *DecodeError.
func DecodeServer(data []byte) (ServerEvent, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case TypeSessionStatus:
		var p SessionStatus
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		if err := requireID(env.Type, "sessionId", p.SessionID); err != nil {
			return nil, err
		}
		if err := requireStatus(env.Type, p.Status); err != nil {
			return nil, err
		}
		return p, nil

	case TypeSessionList:
		var p SessionList
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		for _, s := range p.Sessions {
			if err := requireID(env.Type, "id", s.ID); err != nil {
				return nil, err
			}
			if err := requireStatus(env.Type, s.Status); err != nil {
				return nil, err
			}
		}
		return p, nil

	case TypeSessionHistory:
		var p SessionHistory
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		if err := requireID(env.Type, "sessionId", p.SessionID); err != nil {
			return nil, err
		}
		if err := requireStatus(env.Type, p.Status); err != nil {
			return nil, err
		}
		return p, nil

	case TypeStreamMessage:
		var p StreamMessage
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		if err := requireID(env.Type, "sessionId", p.SessionID); err != nil {
			return nil, err
		}
		return p, nil

	case TypeStreamUserPrompt:
		var p StreamUserPrompt
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		if err := requireID(env.Type, "sessionId", p.SessionID); err != nil {
			return nil, err
		}
		return p, nil

	case TypeRunnerError:
		var p RunnerError
		if err := unmarshalPayload(env, &p); err != nil {
			return nil, err
		}
		return p, nil

	default:
		return Unrecognized{Kind: env.Type, Payload: env.Payload}, nil
	}
}

func encode(typ string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return json.Marshal(Envelope{Type: typ, Payload: raw})
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, &DecodeError{Reason: "invalid envelope", Err: err}
	}
	if env.Type == "" {
		return Envelope{}, &DecodeError{Reason: "invalid envelope", Err: ErrMissingType}
	}
	return env, nil
}

func unmarshalPayload(env Envelope, v any) error {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return &DecodeError{Type: env.Type, Reason: "missing payload"}
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return &DecodeError{Type: env.Type, Reason: "invalid payload", Err: err}
	}
	return nil
}

func requireID(typ, field, v string) error {
	if v == "" {
		return &DecodeError{Type: typ, Reason: "missing " + field}
	}
	return nil
}

func requireStatus(typ string, s Status) error {
	if !s.Valid() {
		return &DecodeError{Type: typ, Reason: fmt.Sprintf("unknown status %q", s)}
	}
	return nil
}

func validateClient(ev ClientEvent) error {
	switch e := ev.(type) {
	case SessionStart:
		if e.Title == "" {
			return errors.New("missing title")
		}
		if e.AllowedTools == "" {
			return errors.New("missing allowedTools")
		}
	case SessionContinue:
		if e.SessionID == "" {
			return errors.New("missing sessionId")
		}
	case SessionStop:
		if e.SessionID == "" {
			return errors.New("missing sessionId")
		}
	}
	return nil
}
