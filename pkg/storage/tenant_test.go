package storage

import (
	"context"
	"testing"
)

func TestGetTenant(t *testing.T) {
	// No tenant set means single-tenant mode.
	if got := GetTenant(context.Background()); got != "" {
		t.Errorf("unset tenant = %q, want empty", got)
	}

	ctx := SetTenant(context.Background(), "acme")
	if got := GetTenant(ctx); got != "acme" {
		t.Errorf("tenant = %q, want acme", got)
	}
}
