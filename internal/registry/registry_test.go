package registry

import (
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestRegistry_SingleActive(t *testing.T) {
	r := New(zap.NewNop())

	a := uuid.New()
	b := uuid.New()
	var aStopped, bStopped int
	r.Register(a, func() { aStopped++ })
	r.Register(b, func() { bStopped++ })

	if _, ok := r.Active(); ok {
		t.Fatal("registry should start empty")
	}

	r.Claim(a)
	if h, ok := r.Active(); !ok || h != a {
		t.Fatalf("expected a active, got %v (ok=%v)", h, ok)
	}
	if aStopped != 0 {
		t.Errorf("claiming an empty slot must not stop anyone")
	}

	r.Claim(b)
	if h, _ := r.Active(); h != b {
		t.Fatalf("expected b active after supersede, got %v", h)
	}
	if aStopped != 1 {
		t.Errorf("expected a stopped once, got %d", aStopped)
	}
	if bStopped != 0 {
		t.Errorf("b must not be stopped by its own claim")
	}

	r.Claim(a)
	if h, _ := r.Active(); h != a {
		t.Fatalf("expected a active again, got %v", h)
	}
	if bStopped != 1 {
		t.Errorf("expected b stopped once, got %d", bStopped)
	}
}

func TestRegistry_ClaimIdempotent(t *testing.T) {
	r := New(zap.NewNop())

	a := uuid.New()
	var stopped int
	r.Register(a, func() { stopped++ })

	r.Claim(a)
	r.Claim(a)

	if stopped != 0 {
		t.Errorf("re-claiming the active handle must not invoke its stop callback")
	}
	if h, _ := r.Active(); h != a {
		t.Errorf("expected a still active, got %v", h)
	}
}

func TestRegistry_StaleReleaseIsNoop(t *testing.T) {
	r := New(zap.NewNop())

	a := uuid.New()
	b := uuid.New()
	r.Register(a, func() {})
	r.Register(b, func() {})

	r.Claim(a)
	r.Claim(b)

	// a's delayed pause handler fires after b already claimed playback
	r.Release(a)

	if h, ok := r.Active(); !ok || h != b {
		t.Fatalf("stale release cleared a newer claim: active=%v ok=%v", h, ok)
	}
}

func TestRegistry_ReleaseOwnClaim(t *testing.T) {
	r := New(zap.NewNop())

	a := uuid.New()
	r.Register(a, func() {})
	r.Claim(a)
	r.Release(a)

	if _, ok := r.Active(); ok {
		t.Fatal("expected empty registry after releasing own claim")
	}
}

func TestRegistry_DeregisterActiveClearsSlot(t *testing.T) {
	r := New(zap.NewNop())

	a := uuid.New()
	r.Register(a, func() {})
	r.Claim(a)
	r.Deregister(a)

	if _, ok := r.Active(); ok {
		t.Fatal("deregistering the active handle must clear the slot")
	}

	// A claim after deregistration must not call the forgotten callback
	b := uuid.New()
	r.Register(b, func() {})
	r.Claim(b)
	if h, _ := r.Active(); h != b {
		t.Fatalf("expected b active, got %v", h)
	}
}

func TestRegistry_ArbitrarySequenceKeepsInvariant(t *testing.T) {
	r := New(zap.NewNop())

	handles := make([]uuid.UUID, 5)
	for i := range handles {
		handles[i] = uuid.New()
		r.Register(handles[i], func() {})
	}

	ops := []struct {
		claim   bool
		idx     int
		release int
	}{
		{claim: true, idx: 0},
		{claim: true, idx: 1},
		{claim: false, release: 0}, // stale
		{claim: true, idx: 2},
		{claim: false, release: 2},
		{claim: true, idx: 3},
		{claim: true, idx: 4},
		{claim: false, release: 1}, // stale
	}
	for _, op := range ops {
		if op.claim {
			r.Claim(handles[op.idx])
		} else {
			r.Release(handles[op.release])
		}
	}

	if h, ok := r.Active(); !ok || h != handles[4] {
		t.Fatalf("expected handle 4 active after sequence, got %v (ok=%v)", h, ok)
	}
}
