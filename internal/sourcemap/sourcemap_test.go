package sourcemap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalMap = `{"version":3,"sources":["src/app.ts"],"names":[],"mappings":"AAAA"}`

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	root := t.TempDir()

	scriptPath := filepath.Join(root, "app.js")
	if err := os.WriteFile(scriptPath+".map", []byte(minimalMap), 0644); err != nil {
		t.Fatalf("we should be able to write the map: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "broken.js.map"), []byte("not a map"), 0644); err != nil {
		t.Fatalf("we should be able to write the map: %v", err)
	}

	store, err := NewStore([]string{root})
	if err != nil {
		t.Fatalf("we should be able to index the root: %v", err)
	}
	return store, scriptPath
}

func TestStoreResolve(t *testing.T) {
	store, scriptPath := newTestStore(t)

	pos, ok := store.Resolve(scriptPath, 1, 1)
	if !ok {
		t.Fatal("expected the position to resolve")
	}
	if !strings.HasSuffix(pos.Path, "app.ts") {
		t.Fatalf("expected an original source path, got %q", pos.Path)
	}
	if pos.Line <= 0 {
		t.Fatalf("expected a positive line, got %d", pos.Line)
	}
}

func TestStoreResolveUnknownScript(t *testing.T) {
	store, _ := newTestStore(t)

	if _, ok := store.Resolve("no-such-script.js", 1, 1); ok {
		t.Fatal("a script without a map should not resolve")
	}
}

func TestStoreResolveBrokenMap(t *testing.T) {
	store, scriptPath := newTestStore(t)
	brokenScript := filepath.Join(filepath.Dir(scriptPath), "broken.js")

	// The first lookup fails to parse the map; the second must fail the
	// same way without reloading it.
	for i := 0; i < 2; i++ {
		if _, ok := store.Resolve(brokenScript, 1, 1); ok {
			t.Fatalf("lookup %d: a broken map should not resolve", i)
		}
	}
	store.mu.RLock()
	consumer, cached := store.consumers[brokenScript]
	store.mu.RUnlock()
	if !cached || consumer != nil {
		t.Fatal("the failed load should be remembered as nil")
	}
}

func TestIdentityNeverResolves(t *testing.T) {
	if _, ok := (Identity{}).Resolve("app.js", 1, 1); ok {
		t.Fatal("the identity resolver should never resolve")
	}
}
