package observability

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestShutdownManager_ReverseOrder(t *testing.T) {
	sm := NewShutdownManager(NopLogger(), time.Second)

	var order []string
	for _, name := range []string{"otel", "registry", "http"} {
		name := name
		sm.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	if err := sm.Shutdown(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if want := []string{"http", "registry", "otel"}; !reflect.DeepEqual(order, want) {
		t.Errorf("Expected order %v, got %v", want, order)
	}

	// functions run once
	order = nil
	if err := sm.Shutdown(context.Background()); err != nil || len(order) != 0 {
		t.Errorf("Expected second shutdown to be a no-op, got %v / %v", order, err)
	}
}

func TestShutdownManager_JoinsErrors(t *testing.T) {
	sm := NewShutdownManager(NopLogger(), time.Second)
	ran := false
	sm.Register("a", func(context.Context) error { ran = true; return nil })
	sm.Register("b", func(context.Context) error { return errors.New("flush failed") })

	err := sm.Shutdown(context.Background())
	if err == nil || err.Error() != "b: flush failed" {
		t.Errorf("Expected joined error, got %v", err)
	}
	if !ran {
		t.Error("Expected remaining functions to run after a failure")
	}
}

func TestShutdownManager_Timeout(t *testing.T) {
	sm := NewShutdownManager(NopLogger(), 10*time.Millisecond)
	sm.Register("late", func(context.Context) error { return nil })
	sm.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := sm.Shutdown(context.Background())
	if err == nil || !strings.Contains(err.Error(), "late: shutdown timeout reached") {
		t.Errorf("Expected timeout error, got %v", err)
	}
}

func TestShutdownManager_Wait(t *testing.T) {
	sm := NewShutdownManager(NopLogger(), time.Second)
	done := make(chan struct{})
	sm.Register("x", func(context.Context) error { close(done); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- sm.Wait(ctx) }()
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
	<-done
}

func TestRecoverPanic(t *testing.T) {
	called := false
	func() {
		defer RecoverPanicWithCallback(NopLogger(), "test", func() { called = true })
		panic("boom")
	}()
	if !called {
		t.Error("Expected callback after panic")
	}

	called = false
	func() {
		defer RecoverPanicWithCallback(NopLogger(), "test", func() { called = true })
	}()
	if called {
		t.Error("Callback should not run without a panic")
	}

	func() {
		defer RecoverPanic(NopLogger(), "test")
		panic(errors.New("boom"))
	}()
}

func TestPanicError(t *testing.T) {
	if PanicError(nil) != nil {
		t.Error("Expected nil for nil recover value")
	}
	sentinel := errors.New("boom")
	if err := PanicError(sentinel); !errors.Is(err, sentinel) {
		t.Errorf("Expected wrapped error, got %v", err)
	}
	if err := PanicError(42); err.Error() != "panic: 42" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
