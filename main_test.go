package main

import (
	"context"
	"errors"
	"testing"

	contractx "github.com/tanpawarit/frontdesk-agent/agent/contract"
	schedulex "github.com/tanpawarit/frontdesk-agent/agent/schedule"
)

func TestRunReturnsStartupErrors(t *testing.T) {
	tests := []struct {
		name     string
		backend  string
		provider string
	}{
		{name: "unknown backend", backend: "carrier-pigeon", provider: "keyword"},
		{name: "unknown provider after store opened", backend: "memory", provider: "oracle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SCHEDULE_BACKEND", tt.backend)
			t.Setenv("NLU_PROVIDER", tt.provider)
			t.Setenv("OTEL_ENABLED", "false")
			t.Setenv("KAFKA_ENABLED", "false")

			if err := run(); !errors.Is(err, contractx.ErrValidation) {
				t.Fatalf("run() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestOpenStoreMemory(t *testing.T) {
	t.Parallel()

	store, closeStore, err := openStore(context.Background(), "", schedulex.DefaultPolicy())
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer closeStore()
	if store == nil {
		t.Fatal("expected a store")
	}
}
