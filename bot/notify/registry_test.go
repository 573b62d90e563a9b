package notify

import "testing"

func TestRegistryReplaceRunsPreviousCleanup(t *testing.T) {
	r := NewRegistry()

	var firstTorn, secondTorn bool
	r.Replace(1, func() { firstTorn = true })
	r.Replace(1, func() { secondTorn = true })

	if !firstTorn {
		t.Error("previous cleanup not run on replace")
	}
	if secondTorn {
		t.Error("new cleanup ran prematurely")
	}
	if !r.Active(1) {
		t.Error("chat should still hold a subscription")
	}
}

func TestRegistryRemove(t *testing.T) {
	r := NewRegistry()

	torn := false
	r.Replace(1, func() { torn = true })
	r.Remove(1)

	if !torn {
		t.Error("cleanup not run on remove")
	}
	if r.Active(1) {
		t.Error("entry survived remove")
	}

	// Removing again is harmless.
	r.Remove(1)
}

func TestRegistryDropSkipsCleanup(t *testing.T) {
	r := NewRegistry()

	torn := false
	r.Replace(1, func() { torn = true })
	r.Drop(1)

	if torn {
		t.Error("Drop must not run the cleanup")
	}
	if r.Active(1) {
		t.Error("entry survived drop")
	}
}

func TestRegistryCloseTearsDownAll(t *testing.T) {
	r := NewRegistry()

	count := 0
	r.Replace(1, func() { count++ })
	r.Replace(2, func() { count++ })
	r.Replace(3, func() { count++ })
	r.Close()

	if count != 3 {
		t.Errorf("Close ran %d cleanups, want 3", count)
	}
	if r.Active(1) || r.Active(2) || r.Active(3) {
		t.Error("entries survived Close")
	}
}
