package qstash

import (
	"errors"
	"testing"
	"time"
)

func TestVerifierRotation(t *testing.T) {
	t.Parallel()

	v, err := NewVerifier(Config{CurrentSigningKey: "current", NextSigningKey: "next"})
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	body := []byte(`{"contact":"+1555","message":"hi"}`)
	url := "https://example.com/v1/inbound"

	for _, key := range []string{"current", "next"} {
		sig, err := Sign(key, url, body, time.Now(), time.Minute)
		if err != nil {
			t.Fatalf("Sign() error = %v", err)
		}
		if err := v.Verify(sig, body, url); err != nil {
			t.Fatalf("Verify(%s) error = %v", key, err)
		}
	}
}

func TestVerifierRejects(t *testing.T) {
	t.Parallel()

	v := MustNewVerifier(Config{CurrentSigningKey: "current", NextSigningKey: "next"})
	body := []byte("payload")
	url := "https://example.com/v1/no-show"
	good, _ := Sign("current", url, body, time.Now(), time.Minute)
	foreign, _ := Sign("someone-else", url, body, time.Now(), time.Minute)
	expired, _ := Sign("current", url, body, time.Now().Add(-time.Hour), time.Minute)

	tests := []struct {
		name string
		sig  string
		body []byte
		url  string
		want error
	}{
		{name: "missing", sig: "", body: body, url: url, want: ErrMissingSignature},
		{name: "wrong key", sig: foreign, body: body, url: url, want: ErrInvalidSignature},
		{name: "tampered body", sig: good, body: []byte("other"), url: url, want: ErrInvalidSignature},
		{name: "wrong url", sig: good, body: body, url: "https://evil.example/", want: ErrInvalidSignature},
		{name: "expired", sig: expired, body: body, url: url, want: ErrInvalidSignature},
	}
	for _, tt := range tests {
		if err := v.Verify(tt.sig, tt.body, tt.url); !errors.Is(err, tt.want) {
			t.Fatalf("%s: got %v, want %v", tt.name, err, tt.want)
		}
	}
}
