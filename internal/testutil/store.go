package testutil

import (
	"context"
	"testing"

	"github.com/Nexus-Digital-Automations/iterm-mcp/internal/state"
)

func NewStore(t *testing.T) (*state.Store, context.Context) {
	t.Helper()
	ctx := context.Background()
	store, err := state.Open(ctx)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	if err := state.ApplyMigrations(ctx, store.DB()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return store, ctx
}
