package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("ADMIN_PASSWORD", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.AdminPassword != "" {
		t.Fatalf("expected empty ADMIN_PASSWORD when unset, got %q", cfg.AdminPassword)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("REMOTE_BACKEND", "")
	t.Setenv("BACKUP_OBJECT_NAME", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.RemoteBackend != "none" {
		t.Fatalf("expected default backend none, got %q", cfg.RemoteBackend)
	}
	if cfg.BackupObjectName != "gestor_pro_backup.json" {
		t.Fatalf("unexpected default object name %q", cfg.BackupObjectName)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestRemoteBackendIsLowercased(t *testing.T) {
	t.Setenv("REMOTE_BACKEND", "GCS")

	cfg := Load()
	if cfg.RemoteBackend != "gcs" {
		t.Fatalf("expected lowercased backend, got %q", cfg.RemoteBackend)
	}
}
