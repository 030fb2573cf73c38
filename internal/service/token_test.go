package service

import (
	"context"
	"strings"
	"testing"
)

func TestTokenLifecycleWithoutRedis(t *testing.T) {
	svc := NewTokenService(nil)
	ctx := context.Background()

	token, err := svc.GenerateToken(ctx, "dashboard")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.HasPrefix(token, TokenPrefix) {
		t.Fatalf("token missing prefix: %q", token)
	}

	session, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if session.Subject != "dashboard" {
		t.Fatalf("expected subject dashboard, got %q", session.Subject)
	}

	if _, err := svc.ValidateToken(ctx, "bogus"); err == nil {
		t.Fatal("expected invalid format error")
	}
	if _, err := svc.ValidateToken(ctx, TokenPrefix+"deadbeef"); err == nil {
		t.Fatal("expected unknown token error")
	}

	if err := svc.RevokeToken(ctx, token); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, token); err == nil {
		t.Fatal("revoked token still validates")
	}
}
