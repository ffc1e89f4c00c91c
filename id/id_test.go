package id_test

import (
	"strings"
	"testing"

	"github.com/mkucukkoc/aiorealbackend/id"
)

func TestNewWalletID(t *testing.T) {
	got := id.NewWalletID()
	if got.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if !strings.HasPrefix(got.String(), "wlt_") {
		t.Errorf("expected prefix \"wlt_\", got %q", got.String())
	}
	if got.Prefix() != id.PrefixWallet {
		t.Errorf("expected prefix %q, got %q", id.PrefixWallet, got.Prefix())
	}
}

func TestParseWalletIDRoundTrip(t *testing.T) {
	want := id.NewWalletID()
	got, err := id.ParseWalletID(want.String())
	if err != nil {
		t.Fatalf("ParseWalletID: %v", err)
	}
	if got.String() != want.String() {
		t.Errorf("roundtrip mismatch: got %q, want %q", got.String(), want.String())
	}
}

func TestParseWalletIDRejectsWrongPrefix(t *testing.T) {
	other, err := id.ParseWalletID("usr_01h2xcejqtf2nbrexx3vqjhp41")
	if err == nil {
		t.Fatalf("expected error for wrong prefix, got ID %q", other.String())
	}
}

func TestParseWalletIDRejectsEmpty(t *testing.T) {
	if _, err := id.ParseWalletID(""); err == nil {
		t.Fatal("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Fatal("expected id.Nil to be nil")
	}
	if id.Nil.String() != "" {
		t.Errorf("expected empty string, got %q", id.Nil.String())
	}
	if id.Nil.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", id.Nil.Prefix())
	}
}

func TestMarshalUnmarshalText(t *testing.T) {
	want := id.NewWalletID()
	data, err := want.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var got id.ID
	if err := got.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if got.String() != want.String() {
		t.Errorf("roundtrip mismatch: got %q, want %q", got.String(), want.String())
	}
}

func TestMarshalUnmarshalTextNil(t *testing.T) {
	data, err := id.Nil.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var got id.ID
	if err := got.UnmarshalText(data); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if !got.IsNil() {
		t.Errorf("expected nil ID after unmarshaling empty text, got %q", got.String())
	}
}

func TestValueScanRoundTrip(t *testing.T) {
	want := id.NewWalletID()
	v, err := want.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var got id.ID
	if err := got.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got.String() != want.String() {
		t.Errorf("roundtrip mismatch: got %q, want %q", got.String(), want.String())
	}
}

func TestScanNil(t *testing.T) {
	var got id.ID
	if err := got.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if !got.IsNil() {
		t.Error("expected nil ID after scanning nil")
	}
}
