package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/tariffmarket/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"TariffID", id.NewTariffID, "trf_"},
		{"RateID", id.NewRateID, "rate_"},
		{"SubscriptionID", id.NewSubscriptionID, "tsub_"},
		{"TransactionID", id.NewTransactionID, "ttx_"},
		{"OrderID", id.NewOrderID, "bord_"},
		{"ControlID", id.NewControlID, "ctl_"},
		{"MessageID", id.NewMessageID, "msg_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseTariffID rejects rate_", id.NewRateID().String(), id.ParseTariffID},
		{"ParseRateID rejects tsub_", id.NewSubscriptionID().String(), id.ParseRateID},
		{"ParseSubscriptionID rejects ttx_", id.NewTransactionID().String(), id.ParseSubscriptionID},
		{"ParseTransactionID rejects bord_", id.NewOrderID().String(), id.ParseTransactionID},
		{"ParseOrderID rejects trf_", id.NewTariffID().String(), id.ParseOrderID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.parseFn(tt.input); err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestValueScan(t *testing.T) {
	original := id.NewTransactionID()
	val, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var scanned id.ID
	if scanErr := scanned.Scan(val); scanErr != nil {
		t.Fatalf("Scan failed: %v", scanErr)
	}
	if scanned.String() != original.String() {
		t.Errorf("mismatch: %q != %q", scanned.String(), original.String())
	}

	var nilID id.ID
	val, err = nilID.Value()
	if err != nil {
		t.Fatalf("Value(nil) failed: %v", err)
	}
	if val != nil {
		t.Errorf("expected nil value for nil ID, got %v", val)
	}

	var scanned2 id.ID
	if err := scanned2.Scan([]byte{}); err != nil {
		t.Fatalf("Scan(empty) failed: %v", err)
	}
	if !scanned2.IsNil() {
		t.Error("expected nil after scan of empty bytes")
	}

	if err := scanned2.Scan(42); err == nil {
		t.Error("expected error scanning an int")
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		s := id.NewTariffID().String()
		if seen[s] {
			t.Fatalf("duplicate tariff id %q", s)
		}
		seen[s] = true
	}
}

func TestEqualAfterTextRoundTrip(t *testing.T) {
	original := id.NewTariffID()
	text, err := original.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var decoded id.ID
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if !decoded.Equal(original) {
		t.Errorf("decoded %q not equal to %q", decoded, original)
	}
	if decoded.Equal(id.NewTariffID()) {
		t.Error("distinct ids compare equal")
	}
	if !id.Nil.Equal(id.ID{}) {
		t.Error("nil ids should compare equal")
	}
}
