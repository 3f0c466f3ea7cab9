package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/metered/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"UserID", id.NewUserID, "user_"},
		{"TransactionID", id.NewTransactionID, "txn_"},
		{"PlanID", id.NewPlanID, "plan_"},
		{"SubscriptionID", id.NewSubscriptionID, "sub_"},
		{"ChatID", id.NewChatID, "chat_"},
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

func TestNew(t *testing.T) {
	i := id.New(id.PrefixUser)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixUser {
		t.Errorf("expected prefix %q, got %q", id.PrefixUser, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"UserID", id.NewUserID, id.ParseUserID},
		{"TransactionID", id.NewTransactionID, id.ParseTransactionID},
		{"PlanID", id.NewPlanID, id.ParsePlanID},
		{"SubscriptionID", id.NewSubscriptionID, id.ParseSubscriptionID},
		{"ChatID", id.NewChatID, id.ParseChatID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
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
		{"ParseUserID rejects txn_", id.NewTransactionID().String(), id.ParseUserID},
		{"ParseTransactionID rejects plan_", id.NewPlanID().String(), id.ParseTransactionID},
		{"ParsePlanID rejects sub_", id.NewSubscriptionID().String(), id.ParsePlanID},
		{"ParseSubscriptionID rejects chat_", id.NewChatID().String(), id.ParseSubscriptionID},
		{"ParseChatID rejects user_", id.NewUserID().String(), id.ParseChatID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parseFn(tt.input)
			if err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "user", "not a typeid", "user_!!!"} {
		if _, err := id.Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error", in)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	original := id.NewChatID()

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatal(err)
	}

	var back id.ID
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.String() != original.String() {
		t.Errorf("round-trip mismatch: %q != %q", back.String(), original.String())
	}

	// Nil marshals to the empty string and unmarshals back to Nil.
	data, err = json.Marshal(id.Nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if !back.IsNil() {
		t.Error("expected Nil after round trip")
	}
}
