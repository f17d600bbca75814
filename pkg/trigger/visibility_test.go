package trigger_test

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/lazyload/internal/testutil"
	"github.com/Sternrassler/lazyload/pkg/trigger"
)

func TestObserveFiresOnceWhenVisible(t *testing.T) {
	sentinel := testutil.NewFakeSentinel()
	fired := 0

	reg := trigger.Observe(sentinel, func() { fired++ }, false)
	if fired != 0 {
		t.Fatalf("fired = %d before sentinel visible, want 0", fired)
	}

	sentinel.SetVisible(true)
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
	if !reg.Done() {
		t.Error("registration should be done after firing")
	}
	if got := sentinel.Subscribers(); got != 0 {
		t.Errorf("Subscribers() = %d after firing, want 0", got)
	}

	sentinel.SetVisible(false)
	sentinel.SetVisible(true)
	if fired != 1 {
		t.Errorf("fired = %d after second visibility edge, want 1", fired)
	}
}

func TestObserveAlreadyVisible(t *testing.T) {
	sentinel := testutil.NewFakeSentinel()
	sentinel.SetVisible(true)
	fired := 0

	reg := trigger.Observe(sentinel, func() { fired++ }, false)

	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
	if !reg.Done() {
		t.Error("registration should be done")
	}
	if got := sentinel.Subscribers(); got != 0 {
		t.Errorf("Subscribers() = %d, want 0", got)
	}
}

func TestObserveDisabled(t *testing.T) {
	sentinel := testutil.NewFakeSentinel()
	sentinel.SetVisible(true)
	fired := 0

	reg := trigger.Observe(sentinel, func() { fired++ }, true)
	sentinel.SetVisible(false)
	sentinel.SetVisible(true)

	if fired != 0 {
		t.Errorf("disabled registration fired %d times", fired)
	}
	if reg.Done() {
		t.Error("disabled registration should stay in place")
	}

	reg.Stop()
	if got := sentinel.Subscribers(); got != 0 {
		t.Errorf("Subscribers() = %d after Stop, want 0", got)
	}
}

func TestRegistrationStop(t *testing.T) {
	sentinel := testutil.NewFakeSentinel()
	fired := 0

	reg := trigger.Observe(sentinel, func() { fired++ }, false)
	reg.Stop()
	reg.Stop()
	sentinel.SetVisible(true)

	if fired != 0 {
		t.Errorf("fired = %d after Stop, want 0", fired)
	}
	if got := sentinel.Subscribers(); got != 0 {
		t.Errorf("Subscribers() = %d, want 0", got)
	}
}

func TestVisibilityTriggerRearm(t *testing.T) {
	sentinel := testutil.NewFakeSentinel()
	vt := trigger.NewVisibilityTrigger(sentinel, zerolog.Nop())
	defer vt.Close()

	var calls []string
	vt.Arm(func() { calls = append(calls, "first") }, true)
	vt.Arm(func() { calls = append(calls, "second") }, false)

	if got := sentinel.Subscribers(); got != 1 {
		t.Fatalf("Subscribers() = %d, want 1", got)
	}

	sentinel.SetVisible(true)
	if len(calls) != 1 || calls[0] != "second" {
		t.Fatalf("calls = %v, want [second]", calls)
	}

	// Spent until re-armed.
	sentinel.SetVisible(false)
	sentinel.SetVisible(true)
	if len(calls) != 1 {
		t.Fatalf("calls = %v, want one call before re-arm", calls)
	}

	// Re-arming while visible fires immediately.
	vt.Arm(func() { calls = append(calls, "third") }, false)
	if len(calls) != 2 || calls[1] != "third" {
		t.Errorf("calls = %v, want [second third]", calls)
	}
}

func TestVisibilityTriggerClose(t *testing.T) {
	sentinel := testutil.NewFakeSentinel()
	vt := trigger.NewVisibilityTrigger(sentinel, zerolog.Nop())
	fired := 0

	vt.Arm(func() { fired++ }, false)
	vt.Close()
	sentinel.SetVisible(true)
	vt.Arm(func() { fired++ }, false)

	if fired != 0 {
		t.Errorf("fired = %d after Close, want 0", fired)
	}
	if got := sentinel.Subscribers(); got != 0 {
		t.Errorf("Subscribers() = %d after Close, want 0", got)
	}
}
