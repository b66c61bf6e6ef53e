package crypto

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := New(testKey)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sealed, err := box.Seal("## Review for Dana")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if !strings.HasPrefix(sealed, sealedPrefix) || strings.Contains(sealed, "Dana") {
		t.Fatalf("expected opaque sealed value, got %q", sealed)
	}
	plain, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if plain != "## Review for Dana" {
		t.Fatalf("unexpected plaintext %q", plain)
	}
}

func TestUnconfiguredBoxPassesThrough(t *testing.T) {
	box, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sealed, _ := box.Seal("plain")
	if sealed != "plain" {
		t.Fatalf("expected passthrough, got %q", sealed)
	}
	if _, err := box.Open(sealedPrefix + "AAAA"); !errors.Is(err, ErrKeyRequired) {
		t.Fatalf("expected ErrKeyRequired, got %v", err)
	}
}

func TestOpenLegacyPlaintext(t *testing.T) {
	box, _ := New(testKey)
	plain, err := box.Open("written before encryption")
	if err != nil || plain != "written before encryption" {
		t.Fatalf("expected legacy plaintext, got %q %v", plain, err)
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	if _, err := New("too-short"); err == nil {
		t.Fatal("expected key length error")
	}
}
