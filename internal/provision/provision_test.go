package provision

import (
	"path/filepath"
	"testing"
)

func TestMemStoreProvisioned(t *testing.T) {
	m := NewMemStore()
	if m.Provisioned() {
		t.Error("Provisioned() true before ssid set")
	}
	m.Set("ssid", "home-network")
	m.Set("password", "hunter2")
	m.Set("ws_url", "ws://server/ws")
	if !m.Provisioned() {
		t.Error("Provisioned() false after ssid set")
	}
	v, ok := m.Get("ws_url")
	if !ok || v != "ws://server/ws" {
		t.Errorf("Get(ws_url) = (%q, %v)", v, ok)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kv.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	defer store.Close()

	if store.Provisioned() {
		t.Error("Provisioned() true on a fresh store")
	}

	if err := store.Set("ssid", "office-wifi"); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if !store.Provisioned() {
		t.Error("Provisioned() false after ssid set")
	}

	if err := store.Set("ssid", "new-ssid"); err != nil {
		t.Fatalf("Set() overwrite error: %v", err)
	}
	v, ok := store.Get("ssid")
	if !ok || v != "new-ssid" {
		t.Errorf("Get(ssid) = (%q, %v), want (%q, true)", v, ok, "new-ssid")
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kv.db")

	store, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}
	store.Set("ssid", "persisted-ssid")
	store.Close()

	reopened, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen NewSQLiteStore() error: %v", err)
	}
	defer reopened.Close()

	if !reopened.Provisioned() {
		t.Error("Provisioned() false after reopening a provisioned store")
	}
}
