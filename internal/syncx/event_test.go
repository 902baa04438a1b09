package syncx

import (
	"testing"
	"time"
)

func TestEventSetClear(t *testing.T) {
	e := NewEvent()
	if e.IsSet() {
		t.Fatal("new event is set")
	}

	done := e.Done()
	e.Set()
	e.Set()
	select {
	case <-done:
	default:
		t.Fatal("Set did not release the waiter")
	}
	if !e.IsSet() {
		t.Fatal("IsSet after Set = false")
	}

	e.Clear()
	if e.IsSet() {
		t.Fatal("IsSet after Clear = true")
	}
	select {
	case <-e.Done():
		t.Fatal("Done closed after Clear")
	default:
	}
}

func TestEventSetReleasesBlockedWaiter(t *testing.T) {
	e := NewEvent()
	released := make(chan struct{})
	go func() {
		<-e.Done()
		close(released)
	}()

	select {
	case <-released:
		t.Fatal("waiter released before Set")
	case <-time.After(20 * time.Millisecond):
	}
	e.Set()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("Set did not release the waiter")
	}
}
