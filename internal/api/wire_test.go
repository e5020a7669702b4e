package api

import (
	"errors"
	"testing"

	"reelkeep/internal/logging"
	"reelkeep/internal/services"
	"reelkeep/internal/testsupport"
)

func TestNewServiceFromConfigWiresClients(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	svc, err := NewServiceFromConfig(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("NewServiceFromConfig: %v", err)
	}
	if svc.server == nil || svc.provider == nil || svc.Runner() == nil {
		t.Fatalf("expected server, provider and runner to be wired")
	}
	if svc.reconcile.BatchSize != cfg.Reconcile.BatchSize {
		t.Fatalf("batch size not carried over: %d", svc.reconcile.BatchSize)
	}
	if _, err := svc.ReconcileTask(false); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("reconcile without emby.libraries should be a configuration error, got %v", err)
	}

	cfg.Emby.Libraries = []string{"lib1"}
	svc, err = NewServiceFromConfig(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("NewServiceFromConfig: %v", err)
	}
	if _, err := svc.ReconcileTask(false); err != nil {
		t.Fatalf("ReconcileTask with libraries: %v", err)
	}
}

func TestNewServiceFromConfigToleratesMissingCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTMDBKey(""), testsupport.WithEmby("", ""))
	st := testsupport.MustOpenStore(t, cfg)

	svc, err := NewServiceFromConfig(cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("NewServiceFromConfig: %v", err)
	}
	if svc.server != nil || svc.provider != nil {
		t.Fatal("expected unconfigured clients to stay unset")
	}
	if _, err := svc.ReconcileTask(false); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if _, err := svc.ExecuteTask([]int64{1}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNewServiceFromConfigRequiresStore(t *testing.T) {
	if _, err := NewServiceFromConfig(testsupport.NewConfig(t), nil, nil); err == nil {
		t.Fatal("expected error without store")
	}
}
