package transport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/tariffmarket/transport"
)

type ping struct {
	Seq int `json:"seq"`
}

func TestOutbox(t *testing.T) {
	ctx := context.Background()
	o := transport.NewOutbox()
	_ = o.SendTo(ctx, "b1", ping{1})
	_ = o.Broadcast(ctx, ping{2})
	_ = o.SendTo(ctx, "b2", ping{3})

	if got := o.SentTo("b1"); len(got) != 1 || got[0].(ping).Seq != 1 {
		t.Errorf("SentTo(b1) = %v", got)
	}
	if got := o.Broadcasts(); len(got) != 1 || got[0].(ping).Seq != 2 {
		t.Errorf("Broadcasts() = %v", got)
	}
	o.Reset()
	if len(o.Deliveries()) != 0 {
		t.Error("Reset should drop deliveries")
	}
}

func TestFanout(t *testing.T) {
	a, b := transport.NewOutbox(), transport.NewOutbox()
	f := transport.Fanout{a, transport.Discard{}, b}
	if err := f.Broadcast(context.Background(), ping{7}); err != nil {
		t.Fatal(err)
	}
	if len(a.Broadcasts()) != 1 || len(b.Broadcasts()) != 1 {
		t.Error("fanout should reach every transport")
	}
}

func TestCodec(t *testing.T) {
	c := transport.NewCodec()
	c.Register("Ping", ping{})

	at := time.Date(2026, 3, 2, 5, 0, 0, 0, time.UTC)
	data, err := c.Encode("b1", &ping{Seq: 9}, at)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	env, msg, err := c.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Type != "Ping" || env.To != "b1" || !env.SentAt.Equal(at) {
		t.Errorf("envelope = %+v", env)
	}
	if p, ok := msg.(*ping); !ok || p.Seq != 9 {
		t.Errorf("decoded %#v", msg)
	}

	if _, err := c.Encode("", struct{}{}, at); !errors.Is(err, transport.ErrUnknownType) {
		t.Errorf("unregistered type: got %v", err)
	}
	if _, _, err := c.Decode([]byte(`{"type":"Nope","payload":{}}`)); !errors.Is(err, transport.ErrUnknownType) {
		t.Errorf("unknown name: got %v", err)
	}
	if _, _, err := c.Decode([]byte(`not json`)); !errors.Is(err, transport.ErrBadEnvelope) {
		t.Errorf("bad json: got %v", err)
	}
}
