package bridge

import (
	"fmt"
	"sync"
	"testing"
)

func newRegistryHandler(id string) *Handler {
	return NewHandler(HandlerConfig{SessionID: id})
}

func TestRegistry_AddGetRemove(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	h := newRegistryHandler("sess-1")

	reg.Add("sess-1", h)
	if got := reg.Get("sess-1"); got != h {
		t.Errorf("Get = %p, want %p", got, h)
	}
	if got := reg.Len(); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}

	reg.Remove("sess-1")
	if got := reg.Get("sess-1"); got != nil {
		t.Errorf("Get after Remove = %p, want nil", got)
	}
	if got := reg.Len(); got != 0 {
		t.Errorf("Len after Remove = %d, want 0", got)
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	if got := reg.Get("missing"); got != nil {
		t.Errorf("Get = %p, want nil", got)
	}
}

func TestRegistry_RemoveAbsentIsNoop(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.Remove("missing")
	if got := reg.Len(); got != 0 {
		t.Errorf("Len = %d, want 0", got)
	}
}

func TestRegistry_AddOverwrites(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	first := newRegistryHandler("sess-1")
	second := newRegistryHandler("sess-1")

	reg.Add("sess-1", first)
	reg.Add("sess-1", second)

	if got := reg.Get("sess-1"); got != second {
		t.Errorf("Get = %p, want the replacement handler", got)
	}
	if got := reg.Len(); got != 1 {
		t.Errorf("Len = %d, want 1", got)
	}
}

func TestRegistry_RecentContext(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	h := newRegistryHandler("sess-1")
	h.sess.appendMessage(RoleUser, "hello", 0)
	reg.Add("sess-1", h)

	got := reg.RecentContext("sess-1", 5)
	if len(got) != 1 || got[0].Content != "hello" {
		t.Errorf("RecentContext = %v", got)
	}

	if got := reg.RecentContext("missing", 5); got != nil {
		t.Errorf("RecentContext for missing session = %v, want nil", got)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("sess-%d", i)
			reg.Add(id, newRegistryHandler(id))
			reg.Get(id)
			reg.RecentContext(id, 3)
			reg.Remove(id)
		}()
	}
	wg.Wait()

	if got := reg.Len(); got != 0 {
		t.Errorf("Len = %d, want 0", got)
	}
}
