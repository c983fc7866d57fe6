package cli

import (
	"context"
	"fmt"
	"testing"

	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/store"
)

func TestLoadConfigUsesFlagPath(t *testing.T) {
	h := NewTestHelper(t)
	old := configPath
	defer func() { configPath = old }()
	configPath = "/etc/tsm/config.yaml"

	if _, err := loadConfig(); err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if len(h.MockConfig.LoadPaths) != 1 || h.MockConfig.LoadPaths[0] != "/etc/tsm/config.yaml" {
		t.Errorf("unexpected load paths %v", h.MockConfig.LoadPaths)
	}

	h.MockConfig.LoadErr = fmt.Errorf("permission denied")
	_, err := loadConfig()
	if errors.CodeOf(err) != errors.ErrCodeConfig {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestOpenStoreError(t *testing.T) {
	h := NewTestHelper(t)
	h.Deps.StoreOpener = &MockStoreOpener{Err: fmt.Errorf("disk full")}

	_, err := openStore(context.Background(), h.Config)
	if !errors.Is(err, errors.ErrStore) {
		t.Errorf("expected store error, got %v", err)
	}
}

func TestFindUser(t *testing.T) {
	h := NewTestHelper(t)
	ctx := context.Background()
	u, err := h.Store.CreateUser(ctx, store.NewUser{Email: "dev@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		{"by email", "dev@example.com", false},
		{"by email any case", "Dev@Example.com", false},
		{"by public id", u.PublicID, false},
		{"unknown email", "ghost@example.com", true},
		{"unknown id", "00000000-0000-0000-0000-000000000000", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := findUser(ctx, h.Store, tt.ref)
			if (err != nil) != tt.wantErr {
				t.Fatalf("findUser(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, errors.ErrNotFound) {
					t.Errorf("expected not found, got %v", err)
				}
				return
			}
			if got.PublicID != u.PublicID {
				t.Errorf("found %s, want %s", got.PublicID, u.PublicID)
			}
		})
	}
}

func TestTestAndReload(t *testing.T) {
	tests := []struct {
		name           string
		reload         bool
		testErr        error
		reloadErr      error
		wantErr        bool
		wantRollback   bool
		wantReloadCall int
	}{
		{name: "test and reload", reload: true, wantReloadCall: 1},
		{name: "test only", reload: false},
		{name: "test fails", reload: true, testErr: fmt.Errorf("bad"), wantErr: true, wantRollback: true},
		{name: "reload fails", reload: true, reloadErr: fmt.Errorf("down"), wantErr: true, wantReloadCall: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTestHelper(t)
			if tt.testErr != nil {
				h.MockDriver.TestFunc = func() error { return tt.testErr }
			}
			if tt.reloadErr != nil {
				h.MockDriver.ReloadFunc = func() error { return tt.reloadErr }
			}

			rolledBack := false
			err := testAndReload(context.Background(), h.MockDriver, tt.reload, func() error {
				rolledBack = true
				return nil
			})
			if (err != nil) != tt.wantErr {
				t.Fatalf("testAndReload() error = %v, wantErr %v", err, tt.wantErr)
			}
			if rolledBack != tt.wantRollback {
				t.Errorf("rollback = %v, want %v", rolledBack, tt.wantRollback)
			}
			if h.MockDriver.ReloadCalls != tt.wantReloadCall {
				t.Errorf("expected %d reloads, got %d", tt.wantReloadCall, h.MockDriver.ReloadCalls)
			}
		})
	}
}

func TestConfirmReadsStdin(t *testing.T) {
	h := NewTestHelper(t)

	h.SetStdinInput("YES\n")
	ok, err := confirm("Proceed?")
	if err != nil || !ok {
		t.Errorf("expected yes, got %v (%v)", ok, err)
	}

	h.SetStdinInput("\n")
	ok, err = confirm("Proceed?")
	if err != nil || ok {
		t.Errorf("expected no on empty answer, got %v (%v)", ok, err)
	}
}
