package main

import (
	"context"
	"testing"
	"time"

	"gestorpro/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short", AdminPassword: "pw"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:    "0123456789abcdef0123456789abcdef",
		AdminPassword: "a-long-admin-password",
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestBuildRemoteNoneAndUnknown(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	remoteStore, closer, err := buildRemote(ctx, config.Config{RemoteBackend: "none"})
	if err != nil || remoteStore != nil || closer != nil {
		t.Fatalf("backend none should yield nothing, got %v %p %v", remoteStore, closer, err)
	}

	if _, _, err := buildRemote(ctx, config.Config{RemoteBackend: "carrier-pigeon"}); err == nil {
		t.Fatalf("unknown backend must be rejected")
	}

	if _, _, err := buildRemote(ctx, config.Config{RemoteBackend: "redis"}); err == nil {
		t.Fatalf("redis backend without REDIS_ADDR must be rejected")
	}

	if _, _, err := buildRemote(ctx, config.Config{RemoteBackend: "postgres"}); err == nil {
		t.Fatalf("postgres backend without DATABASE_URL must be rejected")
	}
}
