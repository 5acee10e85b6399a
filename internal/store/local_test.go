package store

import (
	"context"
	"testing"
)

func TestLocal_SaveLoadClear(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := Local{Dir: t.TempDir()}

	// Missing db => nothing saved.
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil before save, got %+v", got)
	}

	if err := s.Save(ctx, Saved{Username: "manager", Auth: "bWFuYWdlcjpwdw=="}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || got.Username != "manager" || got.Auth != "bWFuYWdlcjpwdw==" {
		t.Fatalf("unexpected saved pair: %+v", got)
	}

	// Overwrite keeps one row per key.
	if err := s.Save(ctx, Saved{Username: "admin", Auth: "YWRtaW46cHc="}); err != nil {
		t.Fatalf("Save again: %v", err)
	}
	got, _ = s.Load(ctx)
	if got == nil || got.Username != "admin" {
		t.Fatalf("expected overwrite, got %+v", got)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load after clear: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nothing after clear, got %+v", got)
	}
}

func TestLocal_ClearWithoutDBIsNoop(t *testing.T) {
	t.Parallel()

	if err := (Local{Dir: t.TempDir()}).Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
}

func TestLocal_SaveRequiresBothKeys(t *testing.T) {
	t.Parallel()

	s := Local{Dir: t.TempDir()}
	if err := s.Save(context.Background(), Saved{Username: "x"}); err == nil {
		t.Fatalf("expected error when auth is missing")
	}
}
