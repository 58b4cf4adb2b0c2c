package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMemStore_GetSetDelete(t *testing.T) {
	ms := NewMemStore(nil, nil)

	// Test Set
	if err := ms.Set("default", "auth_token", "tok-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Test Get
	got, err := ms.Get("default", "auth_token")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "tok-1" {
		t.Errorf("Expected tok-1, got %v", got)
	}

	// Test Get non-existent
	if _, err := ms.Get("default", "user"); err != ErrKeyNotFound {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
	if _, err := ms.Get("other", "user"); err != ErrKeyNotFound {
		t.Errorf("Expected ErrKeyNotFound for unknown profile, got %v", err)
	}

	// Test Delete
	if err := ms.Delete("default", "auth_token"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := ms.Get("default", "auth_token"); err != ErrKeyNotFound {
		t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestMemStore_DeleteIsIdempotent(t *testing.T) {
	ms := NewMemStore(nil, nil)
	ms.Set("default", "user", "{}")

	for i := 0; i < 3; i++ {
		if err := ms.Delete("default", "user", "auth_token", "isAuthenticated"); err != nil {
			t.Fatalf("Delete #%d failed: %v", i, err)
		}
	}
	if err := ms.Delete("never-written", "user"); err != nil {
		t.Fatalf("Delete on unknown profile failed: %v", err)
	}
}

func TestMemStore_ProfilesAndDump(t *testing.T) {
	ms := NewMemStore(nil, nil)
	ms.Set("work", "k1", "v1")
	ms.Set("default", "k2", "v2")

	profiles, _ := ms.Profiles()
	if len(profiles) != 2 || profiles[0] != "default" || profiles[1] != "work" {
		t.Errorf("Expected [default work], got %v", profiles)
	}

	dump, err := ms.Dump("work")
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	dump["k1"] = "mutated"
	if v, _ := ms.Get("work", "k1"); v != "v1" {
		t.Errorf("Dump must return a copy, store now holds %q", v)
	}

	if _, err := ms.Dump("missing"); err != ErrProfileNotFound {
		t.Errorf("Expected ErrProfileNotFound, got %v", err)
	}
}

func TestPersistence(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "intern-connect-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	p, err := NewPersistence(tmpDir)
	if err != nil {
		t.Fatalf("NewPersistence failed: %v", err)
	}

	if err := p.SaveProfile("default", map[string]string{"theme": "dark"}); err != nil {
		t.Fatalf("SaveProfile failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(tmpDir, "default.json"))
	if err != nil {
		t.Fatalf("Profile file was not created: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}

	allData, err := p.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if allData["default"]["theme"] != "dark" {
		t.Errorf("Loaded data mismatch: %v", allData)
	}

	missing, err := p.LoadProfile("nobody")
	if err != nil || len(missing) != 0 {
		t.Errorf("Expected empty profile for missing file, got %v, %v", missing, err)
	}
}

func TestPersistence_SkipsCorruptFiles(t *testing.T) {
	tmpDir := t.TempDir()
	p, _ := NewPersistence(tmpDir)

	os.WriteFile(filepath.Join(tmpDir, "broken.json"), []byte("{not json"), 0600)
	p.SaveProfile("good", map[string]string{"k": "v"})

	allData, err := p.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if _, ok := allData["broken"]; ok {
		t.Error("Corrupt profile should have been skipped")
	}
	if allData["good"]["k"] != "v" {
		t.Errorf("Expected good profile to load, got %v", allData)
	}
}

func TestMemStore_WritesThrough(t *testing.T) {
	tmpDir := t.TempDir()

	p, _ := NewPersistence(tmpDir)
	ms := NewMemStore(nil, p)

	if err := ms.Set("default", "auth_token", "tok"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Create new MemStore and load data
	allData, _ := p.LoadAll()
	ms2 := NewMemStore(allData, p)

	val, err := ms2.Get("default", "auth_token")
	if err != nil {
		t.Fatalf("Get on new store failed: %v", err)
	}
	if val != "tok" {
		t.Errorf("Expected tok, got %v", val)
	}

	ms.Delete("default", "auth_token")
	reloaded, _ := p.LoadProfile("default")
	if _, ok := reloaded["auth_token"]; ok {
		t.Error("Delete should be persisted before returning")
	}
}

func TestMemStore_Concurrent(t *testing.T) {
	ms := NewMemStore(nil, nil)
	const (
		numGoroutines = 10
		numOps        = 100
	)
	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*numOps)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				key := fmt.Sprintf("key-%d-%d", id, j)
				want := fmt.Sprint(j)
				ms.Set("default", key, want)
				if val, err := ms.Get("default", key); err != nil || val != want {
					errs <- fmt.Errorf("expected %s, got %v, err %v", want, val, err)
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestScope(t *testing.T) {
	ms := NewMemStore(nil, nil)
	scope := NewScope(ms, "")

	if scope.Profile() != DefaultProfile {
		t.Errorf("Expected default profile, got %s", scope.Profile())
	}
	scope.Set("user", `{"full_name":"Asha K"}`)
	if v, _ := ms.Get(DefaultProfile, "user"); v != `{"full_name":"Asha K"}` {
		t.Errorf("Scope did not write to pinned profile: %q", v)
	}
	if err := scope.Watch(context.Background(), func() {}); err != ErrWatchUnsupported {
		t.Errorf("Expected ErrWatchUnsupported for memory store, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	for _, driver := range []string{DriverFile, DriverSQLite, DriverMemory} {
		b, err := Open(driver, dir)
		if err != nil {
			t.Fatalf("Open(%s) failed: %v", driver, err)
		}
		if err := b.Set("default", "k", "v"); err != nil {
			t.Errorf("%s Set failed: %v", driver, err)
		}
		b.Close()
	}

	if _, err := Open("redis", dir); err == nil {
		t.Error("Expected error for unknown driver")
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "session.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer s.Close()

	if err := s.Set("default", "auth_token", "a"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("default", "auth_token", "b"); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if v, _ := s.Get("default", "auth_token"); v != "b" {
		t.Errorf("Expected b, got %q", v)
	}

	s.Set("work", "theme", "dark")
	profiles, _ := s.Profiles()
	if len(profiles) != 2 {
		t.Errorf("Expected 2 profiles, got %v", profiles)
	}

	if err := s.Delete("default", "auth_token", "user"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get("default", "auth_token"); err != ErrKeyNotFound {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
	if _, err := s.Dump("default"); err != ErrProfileNotFound {
		t.Errorf("Expected ErrProfileNotFound, got %v", err)
	}
}

func TestMigrate(t *testing.T) {
	src := NewMemStore(nil, nil)
	src.Set("default", "auth_token", "tok")
	src.Set("default", "theme", "dark")
	src.Set("work", "user", "{}")

	dst, err := OpenSQLite(filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer dst.Close()

	n, err := Migrate(src, dst)
	if err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 keys copied, got %d", n)
	}
	if v, _ := dst.Get("work", "user"); v != "{}" {
		t.Errorf("Expected migrated user, got %q", v)
	}
}

func TestMemStore_WatchExternalWrite(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	p, _ := NewPersistence(dir)
	ms := NewMemStore(nil, p)
	ms.Set("default", "user", `{"intern_id":"INT-04"}`)

	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan struct{}, 4)
	if err := NewScope(ms, "default").Watch(ctx, func() { changed <- struct{}{} }); err != nil {
		cancel()
		t.Fatalf("Watch failed: %v", err)
	}

	// Another process clears the session file.
	other, _ := NewPersistence(dir)
	if err := other.SaveProfile("default", map[string]string{}); err != nil {
		cancel()
		t.Fatalf("external save failed: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("Watcher did not report external change")
	}
	cancel()

	if _, err := ms.Get("default", "user"); err != ErrKeyNotFound {
		t.Errorf("Expected user to be gone after reload, got %v", err)
	}
}

func TestOpen_CorruptProfileLogged(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	core, logs := observer.New(zap.WarnLevel)
	b, err := Open(DriverFile, dir, WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer b.Close()

	entries := logs.FilterMessage("skipping corrupt profile file").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 corrupt profile warning, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["file"]; got != "broken.json" {
		t.Errorf("Expected file field broken.json, got %v", got)
	}
}

func TestMemStore_WatchReloadFailureLogged(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	core, logs := observer.New(zap.WarnLevel)
	b, err := Open(DriverFile, dir, WithLogger(zap.New(core)))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ms := b.(*MemStore)
	ms.Set("default", "user", `{"intern_id":"INT-04"}`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ms.Watch(ctx, "default", nil); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	// Another process leaves a truncated file behind.
	if err := os.WriteFile(ms.persister.Path("default"), []byte(`{"user":`), 0600); err != nil {
		t.Fatalf("external write failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for logs.FilterMessage("profile reload failed").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected a reload warning")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := logs.FilterMessage("profile reload failed").All()[0].ContextMap()["profile"]; got != "default" {
		t.Errorf("Expected profile field default, got %v", got)
	}

	// Memory keeps the last good copy.
	if v, _ := ms.Get("default", "user"); v != `{"intern_id":"INT-04"}` {
		t.Errorf("Expected user to survive a failed reload, got %q", v)
	}
}
