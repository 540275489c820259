package company

import (
	"context"
	"errors"
	"testing"
)

func TestProvisionAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	co, err := svc.Provision(ctx, "acme")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if co.APIKey == "" || !co.CanRegenReports {
		t.Fatalf("unexpected company defaults: %+v", co)
	}

	got, err := svc.Authenticate(ctx, co.APIKey)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != co.ID {
		t.Fatalf("authenticated wrong company: %s", got.ID)
	}
}

func TestAuthenticate_UnknownKey(t *testing.T) {
	svc := NewService(NewMemoryStore())
	if _, err := svc.Authenticate(context.Background(), "nope"); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), ""); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed for empty key, got %v", err)
	}
}

func TestAuthenticate_DisabledCompany(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	co, err := svc.Provision(ctx, "acme")
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := svc.Disable(ctx, co.ID); err != nil {
		t.Fatalf("disable: %v", err)
	}
	// Disabled keys fail identically to unknown keys.
	if _, err := svc.Authenticate(ctx, co.APIKey); !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestSetRegenReports(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	co, _ := svc.Provision(ctx, "acme")
	if err := svc.SetRegenReports(ctx, co.ID, false); err != nil {
		t.Fatalf("set regen: %v", err)
	}
	got, err := svc.Get(ctx, co.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.CanRegenReports {
		t.Fatalf("regen flag not persisted")
	}
	if err := svc.SetRegenReports(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProvision_RequiresName(t *testing.T) {
	svc := NewService(NewMemoryStore())
	if _, err := svc.Provision(context.Background(), ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
