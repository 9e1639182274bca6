package userctx

import (
	"context"
	"testing"
)

func TestOwnerOrDefault(t *testing.T) {
	if got := OwnerOrDefault(context.Background()); got != DefaultUserID {
		t.Fatalf("expected %q, got %q", DefaultUserID, got)
	}
	if got := OwnerOrDefault(WithUserID(context.Background(), "  ")); got != DefaultUserID {
		t.Fatalf("expected %q for blank user, got %q", DefaultUserID, got)
	}
	if got := OwnerOrDefault(WithUserID(context.Background(), " userA ")); got != "userA" {
		t.Fatalf("expected userA, got %q", got)
	}
}
