package recorder

import (
	"testing"
	"time"

	"github.com/hirebench/hirebench/internal/domain"
)

func keyFor(question string) domain.SessionKey {
	k := testKey()
	k.QuestionID = question
	return k
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	sink := &fakeSink{}

	rec := New(keyFor("q-1"), sink, Config{FlushInterval: time.Hour}, nil)
	defer rec.Close()
	reg.Register(rec)

	if got := reg.Get(keyFor("q-1")); got != rec {
		t.Errorf("Get returned %p, want %p", got, rec)
	}
	if got := reg.Get(keyFor("q-other")); got != nil {
		t.Errorf("Get for unknown session = %p, want nil", got)
	}
}

func TestRegistryReplaceClosesPrevious(t *testing.T) {
	reg := NewRegistry()
	sink := &fakeSink{}

	first := New(keyFor("q-1"), sink, Config{FlushInterval: time.Hour}, nil)
	first.RecordChange(col(1), "a", 0)
	reg.Register(first)

	second := New(keyFor("q-1"), sink, Config{FlushInterval: time.Hour}, nil)
	defer second.Close()
	reg.Register(second)

	if got := reg.Get(keyFor("q-1")); got != second {
		t.Fatalf("Current recorder is %p, want replacement %p", got, second)
	}
	// The replaced recorder's buffer was flushed on close, not dropped.
	if got := len(sink.delivered()); got != 1 {
		t.Errorf("Delivered %d events from replaced recorder, want 1", got)
	}
}

func TestRegistryStaleUnregisterIsNoop(t *testing.T) {
	reg := NewRegistry()
	sink := &fakeSink{}

	old := New(keyFor("q-1"), sink, Config{FlushInterval: time.Hour}, nil)
	reg.Register(old)

	current := New(keyFor("q-1"), sink, Config{FlushInterval: time.Hour}, nil)
	defer current.Close()
	reg.Register(current)

	// The old connection tears down after the replacement was installed.
	reg.Unregister(old)

	if got := reg.Get(keyFor("q-1")); got != current {
		t.Errorf("Stale unregister removed the current recorder")
	}

	reg.Unregister(current)
	if got := reg.Get(keyFor("q-1")); got != nil {
		t.Errorf("Unregister left %p registered", got)
	}
}

func TestRegistryCloseIdle(t *testing.T) {
	reg := NewRegistry()
	sink := &fakeSink{}

	idle := New(keyFor("q-idle"), sink, Config{FlushInterval: time.Hour}, nil)
	idle.mu.Lock()
	idle.lastActivity = time.Now().Add(-time.Hour)
	idle.mu.Unlock()
	reg.Register(idle)

	fresh := New(keyFor("q-fresh"), sink, Config{FlushInterval: time.Hour}, nil)
	defer fresh.Close()
	fresh.RecordChange(col(1), "a", 0)
	reg.Register(fresh)

	if n := reg.CloseIdle(30 * time.Minute); n != 1 {
		t.Fatalf("CloseIdle = %d, want 1", n)
	}
	if got := reg.Get(keyFor("q-idle")); got != nil {
		t.Errorf("Idle recorder still registered")
	}
	if got := reg.Get(keyFor("q-fresh")); got != fresh {
		t.Errorf("Active recorder was swept")
	}
}

func TestRegistryCloseAll(t *testing.T) {
	reg := NewRegistry()
	sink := &fakeSink{}

	for _, q := range []string{"q-1", "q-2"} {
		rec := New(keyFor(q), sink, Config{FlushInterval: time.Hour}, nil)
		rec.RecordChange(col(1), "a", 0)
		reg.Register(rec)
	}

	reg.CloseAll()

	if got := len(sink.delivered()); got != 2 {
		t.Errorf("Delivered %d events at shutdown, want 2", got)
	}
	if got := reg.Get(keyFor("q-1")); got != nil {
		t.Errorf("Registry not emptied")
	}
}
