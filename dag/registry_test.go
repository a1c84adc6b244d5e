package dag

import "testing"

func TestReplyRegistryRegisterAndResolve(t *testing.T) {
	r := NewReplyRegistry()
	ch := r.Register(1)

	if ok := r.Resolve(1, []float64{1, 2, 3}); !ok {
		t.Fatal("expected Resolve to find a pending entry")
	}

	got := <-ch
	if len(got) != 3 || got[0] != 1 {
		t.Errorf("unexpected data delivered: %v", got)
	}
}

func TestReplyRegistryResolveMissingReturnsFalse(t *testing.T) {
	r := NewReplyRegistry()
	if ok := r.Resolve(999, []float64{1}); ok {
		t.Error("expected Resolve on an unregistered id to return false")
	}
}

func TestReplyRegistryForgetRemovesEntry(t *testing.T) {
	r := NewReplyRegistry()
	r.Register(5)
	r.Forget(5)

	if ok := r.Resolve(5, []float64{1}); ok {
		t.Error("expected Resolve after Forget to find nothing pending")
	}
}

func TestReplyRegistryResolveOnlyOnce(t *testing.T) {
	r := NewReplyRegistry()
	r.Register(2)

	if ok := r.Resolve(2, []float64{1}); !ok {
		t.Fatal("expected first Resolve to succeed")
	}
	if ok := r.Resolve(2, []float64{2}); ok {
		t.Error("expected second Resolve for the same id to find nothing pending")
	}
}
