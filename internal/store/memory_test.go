package store

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func errPtr(s string) *string { return &s }

func succeeded(backend string, at time.Time, ids ...string) Snapshot {
	channels := make([]Channel, len(ids))
	for i, id := range ids {
		channels[i] = Channel{ID: id, Name: id, Server: backend}
	}
	return Snapshot{Backend: backend, Channels: channels, RefreshedAt: at}
}

func failed(backend string, at time.Time, msg string) Snapshot {
	return Snapshot{Backend: backend, RefreshedAt: at, Error: errPtr(msg)}
}

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() = nil")
	}
	if len(store.GetAll()) != 0 {
		t.Errorf("GetAll() = %v items, want 0", len(store.GetAll()))
	}
}

func TestMemoryStore_Seed(t *testing.T) {
	store := NewMemoryStore()

	store.Seed("prod", "https://prod:8443", map[string]string{"env": "prod"})

	all := store.GetAll()
	if len(all) != 1 {
		t.Fatalf("GetAll() = %v items, want 1", len(all))
	}
	if !all[0].Pending {
		t.Error("seeded snapshot should be pending")
	}
	if all[0].HasData() {
		t.Error("seeded snapshot should have no data")
	}
	if all[0].URL != "https://prod:8443" || all[0].Labels["env"] != "prod" {
		t.Errorf("seeded snapshot = %+v", all[0])
	}
}

func TestMemoryStore_Version(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	steps := []struct {
		name    string
		apply   func()
		changed bool
	}{
		{"seed", func() { store.Seed("prod", "https://prod:8443", nil) }, true},
		{"seed known backend", func() { store.Seed("prod", "https://other:8443", nil) }, false},
		{"update", func() { store.Update(succeeded("prod", now, "c1")) }, true},
		{"failed update", func() { store.Update(failed("prod", now, "refused")) }, true},
		{"read", func() { _ = store.GetAll() }, false},
	}

	prev := store.Version()
	for _, step := range steps {
		step.apply()
		got := store.Version()
		if changed := got != prev; changed != step.changed {
			t.Errorf("%s: version changed = %v, want %v", step.name, changed, step.changed)
		}
		prev = got
	}
}

func TestMemoryStore_SeedDoesNotOverwrite(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	store.Update(succeeded("prod", now, "c1"))
	store.Seed("prod", "https://prod:8443", nil)

	all := store.GetAll()
	if all[0].Pending {
		t.Error("Seed() should not reset a refreshed backend to pending")
	}
	if len(all[0].Channels) != 1 {
		t.Errorf("len(Channels) = %d, want 1", len(all[0].Channels))
	}
}

func TestMemoryStore_UpdateSuccess(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	store.Seed("prod", "", nil)
	store.Update(succeeded("prod", now, "c1", "c2"))

	s := store.GetAll()[0]
	if s.Pending || s.Stale || s.Error != nil {
		t.Errorf("snapshot flags = pending %v stale %v error %v", s.Pending, s.Stale, s.Error)
	}
	if !s.SucceededAt.Equal(now) {
		t.Errorf("SucceededAt = %v, want %v", s.SucceededAt, now)
	}
	if len(s.Channels) != 2 {
		t.Errorf("len(Channels) = %d, want 2", len(s.Channels))
	}
}

func TestMemoryStore_UpdateSuccessWithNoChannels(t *testing.T) {
	store := NewMemoryStore()
	store.Update(Snapshot{Backend: "empty", RefreshedAt: time.Now()})

	s := store.GetAll()[0]
	if s.Channels == nil {
		t.Error("Channels should be an empty, non-nil slice after a successful refresh")
	}
	if !s.HasData() {
		t.Error("HasData() = false after a successful refresh")
	}
}

func TestMemoryStore_FailureKeepsLastGoodChannels(t *testing.T) {
	store := NewMemoryStore()
	first := time.Now()
	second := first.Add(time.Minute)

	store.Update(succeeded("prod", first, "c1"))
	store.Update(failed("prod", second, "failed to load channels: 500"))

	s := store.GetAll()[0]
	if !s.Stale {
		t.Error("Stale = false, want true after a failed refresh")
	}
	if len(s.Channels) != 1 || s.Channels[0].ID != "c1" {
		t.Errorf("Channels = %+v, want last good list", s.Channels)
	}
	if !s.SucceededAt.Equal(first) {
		t.Errorf("SucceededAt = %v, want %v", s.SucceededAt, first)
	}
	if !s.RefreshedAt.Equal(second) {
		t.Errorf("RefreshedAt = %v, want %v", s.RefreshedAt, second)
	}
	if s.Error == nil || *s.Error != "failed to load channels: 500" {
		t.Errorf("Error = %v", s.Error)
	}

	// recovery clears the stale flag
	store.Update(succeeded("prod", second.Add(time.Minute), "c1", "c2"))
	s = store.GetAll()[0]
	if s.Stale || s.Error != nil || len(s.Channels) != 2 {
		t.Errorf("after recovery: stale %v error %v channels %d", s.Stale, s.Error, len(s.Channels))
	}
}

func TestMemoryStore_FailureWithoutPriorData(t *testing.T) {
	store := NewMemoryStore()

	store.Seed("prod", "", nil)
	store.Update(failed("prod", time.Now(), "connection refused"))

	s := store.GetAll()[0]
	if s.Pending {
		t.Error("Pending = true after a completed refresh")
	}
	if s.Stale {
		t.Error("Stale = true without earlier data")
	}
	if s.HasData() || s.Channels != nil {
		t.Errorf("snapshot should have no data, got %+v", s.Channels)
	}
}

func TestMemoryStore_GetAllSortedByBackend(t *testing.T) {
	store := NewMemoryStore()
	for _, name := range []string{"staging", "dev", "prod", "canary"} {
		store.Seed(name, "", nil)
	}

	all := store.GetAll()
	want := []string{"canary", "dev", "prod", "staging"}
	for i, s := range all {
		if s.Backend != want[i] {
			t.Errorf("GetAll()[%d].Backend = %q, want %q", i, s.Backend, want[i])
		}
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	if ch == nil {
		t.Fatal("Subscribe() = nil")
	}

	go func() {
		store.Update(succeeded("prod", time.Now(), "c1"))
	}()

	select {
	case s := <-ch:
		if s.Backend != "prod" {
			t.Errorf("received Backend = %v, want prod", s.Backend)
		}
	case <-time.After(1 * time.Second):
		t.Error("Subscribe() channel did not receive update")
	}
}

func TestMemoryStore_SubscribersReceiveMergedSnapshot(t *testing.T) {
	store := NewMemoryStore()
	store.Update(succeeded("prod", time.Now(), "c1"))

	ch := store.Subscribe()
	defer store.Unsubscribe(ch)

	store.Update(failed("prod", time.Now(), "boom"))

	select {
	case s := <-ch:
		if !s.Stale || len(s.Channels) != 1 {
			t.Errorf("published snapshot stale %v channels %d, want merged", s.Stale, len(s.Channels))
		}
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestMemoryStore_MultipleSubscribers(t *testing.T) {
	store := NewMemoryStore()

	ch1 := store.Subscribe()
	ch2 := store.Subscribe()
	ch3 := store.Subscribe()

	go func() {
		store.Update(succeeded("prod", time.Now()))
	}()

	received := 0
	timeout := time.After(1 * time.Second)

	for received < 3 {
		select {
		case <-ch1:
			received++
		case <-ch2:
			received++
		case <-ch3:
			received++
		case <-timeout:
			t.Fatalf("Only received %d/3 updates", received)
		}
	}
}

func TestMemoryStore_Unsubscribe(t *testing.T) {
	store := NewMemoryStore()

	ch := store.Subscribe()
	store.Unsubscribe(ch)
	store.Unsubscribe(ch)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("Unsubscribe() channel should be closed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Unsubscribe() channel should be closed immediately")
	}
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	store := NewMemoryStore()

	// never read
	_ = store.Subscribe()

	ch2 := store.Subscribe()
	go func() {
		for range ch2 {
		}
	}()

	done := make(chan bool)
	go func() {
		for i := 0; i < 200; i++ {
			store.Update(succeeded("prod", time.Now()))
		}
		done <- true
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Error("Update() blocked on slow subscriber")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()

	var wg sync.WaitGroup
	numGoroutines := 10
	numUpdates := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := fmt.Sprintf("b%d", id%3)
			for j := 0; j < numUpdates; j++ {
				if j%4 == 0 {
					store.Update(failed(name, time.Now(), "boom"))
				} else {
					store.Update(succeeded(name, time.Now(), "c1"))
				}
			}
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				_ = store.GetAll()
			}
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := store.Subscribe()
			time.Sleep(10 * time.Millisecond)
			store.Unsubscribe(ch)
		}()
	}

	wg.Wait()

	if got := len(store.GetAll()); got != 3 {
		t.Errorf("GetAll() = %d items, want 3", got)
	}
}
