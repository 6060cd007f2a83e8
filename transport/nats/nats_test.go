package nats

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/xraph/tariffmarket/transport"
)

type ping struct {
	Seq int `json:"seq"`
}

func TestSubjects(t *testing.T) {
	tr := New(nil, transport.NewCodec(), WithPrefix("sim"))
	tests := []struct {
		got, want string
	}{
		{tr.BrokerSubject("b1"), "sim.broker.b1"},
		{tr.BrokerSubject("acme.energy co"), "sim.broker.acme_energy_co"},
		{tr.BrokerSubject("a*>"), "sim.broker.a__"},
		{tr.BroadcastSubject(), "sim.broadcast"},
		{tr.MarketSubject(), "sim.market"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("subject = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestCloseWithoutConnection(t *testing.T) {
	if err := New(nil, transport.NewCodec()).Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

// TestRoundTripIntegration runs against TARIFFMARKET_NATS_URL when set.
func TestRoundTripIntegration(t *testing.T) {
	url := os.Getenv("TARIFFMARKET_NATS_URL")
	if url == "" {
		t.Skip("TARIFFMARKET_NATS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	codec := transport.NewCodec()
	codec.Register("ping", ping{})
	tr, err := Connect(ctx, url, codec, WithPrefix("it"+time.Now().Format("150405")))
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	sub, err := tr.Conn().SubscribeSync(tr.BrokerSubject("b1"))
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.SendTo(ctx, "b1", ping{Seq: 7}); err != nil {
		t.Fatal(err)
	}
	m, err := sub.NextMsg(5 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	env, msg, err := codec.Decode(m.Data)
	if err != nil {
		t.Fatal(err)
	}
	if env.To != "b1" || msg.(*ping).Seq != 7 {
		t.Errorf("got %+v %+v", env, msg)
	}

	got := make(chan any, 1)
	if _, err := tr.Inbound(ctx, func(_ context.Context, msg any) error {
		got <- msg
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	data, _ := codec.Encode("", ping{Seq: 9}, time.Now())
	if err := tr.Conn().Publish(tr.MarketSubject(), data); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-got:
		if msg.(*ping).Seq != 9 {
			t.Errorf("inbound = %+v", msg)
		}
	case <-ctx.Done():
		t.Fatal("no inbound message")
	}
}
