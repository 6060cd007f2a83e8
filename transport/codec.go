package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"
)

var (
	ErrUnknownType = errors.New("transport: unknown message type")
	ErrBadEnvelope = errors.New("transport: malformed envelope")
)

// Envelope is the wire form of a message.
type Envelope struct {
	Type    string          `json:"type"`
	To      string          `json:"to,omitempty"`
	SentAt  time.Time       `json:"sent_at"`
	Payload json.RawMessage `json:"payload"`
}

// Codec encodes messages as JSON envelopes tagged with a registered type
// name.
type Codec struct {
	mu     sync.RWMutex
	byName map[string]reflect.Type
	byType map[reflect.Type]string
}

// NewCodec returns a codec with no registered types.
func NewCodec() *Codec {
	return &Codec{
		byName: make(map[string]reflect.Type),
		byType: make(map[reflect.Type]string),
	}
}

// Register associates name with the type of prototype. Pointer and value
// forms of the type share the name.
func (c *Codec) Register(name string, prototype any) {
	t := baseType(reflect.TypeOf(prototype))
	c.mu.Lock()
	c.byName[name] = t
	c.byType[t] = name
	c.mu.Unlock()
}

// Name returns the registered name of msg's type.
func (c *Codec) Name(msg any) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.byType[baseType(reflect.TypeOf(msg))]
	if !ok {
		return "", fmt.Errorf("%w: %T", ErrUnknownType, msg)
	}
	return name, nil
}

// Encode wraps msg in an envelope addressed to to, which is empty for a
// broadcast.
func (c *Codec) Encode(to string, msg any, at time.Time) ([]byte, error) {
	name, err := c.Name(msg)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("transport: encode %s: %w", name, err)
	}
	return json.Marshal(Envelope{Type: name, To: to, SentAt: at.UTC(), Payload: payload})
}

// Decode parses an envelope and returns a pointer to a new value of the
// registered type.
func (c *Codec) Decode(data []byte) (Envelope, any, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return env, nil, fmt.Errorf("%w: %w", ErrBadEnvelope, err)
	}
	c.mu.RLock()
	t, ok := c.byName[env.Type]
	c.mu.RUnlock()
	if !ok {
		return env, nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	v := reflect.New(t)
	if err := json.Unmarshal(env.Payload, v.Interface()); err != nil {
		return env, nil, fmt.Errorf("transport: decode %s: %w", env.Type, err)
	}
	return env, v.Interface(), nil
}

func baseType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
