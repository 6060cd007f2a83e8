// Package id holds the identifiers of market entities.
//
// Every identifier is a TypeID: a short entity prefix followed by a
// UUIDv7 suffix, for example "trf_01h2xcejqtf2nbrexx3vqjhp41". Identifiers
// sort by creation time and carry no process-wide counter, so independent
// simulation runs never share id state.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix names the kind of entity an ID belongs to.
type Prefix string

const (
	PrefixTariff       Prefix = "trf"  // tariff and the specification it was built from
	PrefixRate         Prefix = "rate" // rate inside a tariff specification
	PrefixSubscription Prefix = "tsub" // customer subscription to a tariff
	PrefixTransaction  Prefix = "ttx"  // journal transaction
	PrefixOrder        Prefix = "bord" // balancing order
	PrefixControl      Prefix = "ctl"  // economic or balancing control event
	PrefixMessage      Prefix = "msg"  // broker update message (expire, revoke, VRU)
)

// ID identifies a market entity. The zero value is Nil and marshals to an
// empty string.
//
//nolint:recvcheck // UnmarshalText and Scan need pointer receivers.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the absent ID.
var Nil ID

// Aliases document which entity a field refers to. They all share ID.
type (
	TariffID       = ID
	RateID         = ID
	SubscriptionID = ID
	TransactionID  = ID
	OrderID        = ID
	ControlID      = ID
	MessageID      = ID
)

// New returns a fresh ID under prefix. An invalid prefix is a programming
// error and panics.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: bad prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

func NewTariffID() ID       { return New(PrefixTariff) }
func NewRateID() ID         { return New(PrefixRate) }
func NewSubscriptionID() ID { return New(PrefixSubscription) }
func NewTransactionID() ID  { return New(PrefixTransaction) }
func NewOrderID() ID        { return New(PrefixOrder) }
func NewControlID() ID      { return New(PrefixControl) }
func NewMessageID() ID      { return New(PrefixMessage) }

// Parse reads any prefixed TypeID.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix is Parse plus a check that the ID belongs to the
// expected entity kind.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if got := parsed.Prefix(); got != expected {
		return Nil, fmt.Errorf("id: want prefix %q, have %q", expected, got)
	}
	return parsed, nil
}

// MustParse panics when s is not a valid ID. Meant for fixtures.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

func ParseTariffID(s string) (ID, error)       { return ParseWithPrefix(s, PrefixTariff) }
func ParseRateID(s string) (ID, error)         { return ParseWithPrefix(s, PrefixRate) }
func ParseSubscriptionID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSubscription) }
func ParseTransactionID(s string) (ID, error)  { return ParseWithPrefix(s, PrefixTransaction) }
func ParseOrderID(s string) (ID, error)        { return ParseWithPrefix(s, PrefixOrder) }

// String renders "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the entity prefix, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

func (i ID) IsNil() bool { return !i.valid }

// Equal compares by rendered value. IDs decoded from a store or the wire
// are not guaranteed to be == to the ID they were encoded from.
func (i ID) Equal(other ID) bool { return i.String() == other.String() }

func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value stores Nil as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // NULL column
	}
	return i.inner.String(), nil
}

// Scan accepts NULL, string and []byte columns.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T", src)
	}
}
