package engine_test

import (
	"testing"

	"github.com/gantry/gantry/internal/engine"
)

func TestNamedLock_TryLock(t *testing.T) {
	lock := engine.NewNamedLock("db")

	if !lock.TryLock() {
		t.Fatal("first acquisition must succeed")
	}
	if lock.TryLock() {
		t.Fatal("second acquisition must fail while held")
	}
	lock.Unlock()
	if !lock.TryLock() {
		t.Fatal("acquisition after release must succeed")
	}
	lock.Unlock()

	if lock.DisplayName() != "db" {
		t.Errorf("expected display name db, got %s", lock.DisplayName())
	}
}

func TestLockRegistry_SharesLocksByName(t *testing.T) {
	registry := engine.NewLockRegistry()

	first := registry.Lock("db")
	second := registry.Lock("db")
	other := registry.Lock("network")

	if first != second {
		t.Error("the same name must map to the same lock")
	}
	if first == other {
		t.Error("different names must map to different locks")
	}
}
