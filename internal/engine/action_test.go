// ABOUTME: Unit tests for the action registry and dispatch: unknown types, handler errors,
// ABOUTME: panic isolation, and the dry-run stub registry.
package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestDispatch_Success(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	var gotParams map[string]string
	reg.Register("send_email", func(_ context.Context, params map[string]string, _ TriggerContext) error {
		gotParams = params
		return nil
	})

	res := reg.Dispatch(context.Background(),
		Action{Type: "send_email", Params: map[string]string{"template": "overdue_reminder"}},
		TriggerContext{})
	if !res.Success {
		t.Fatalf("dispatch failed: %s", res.Message)
	}
	if gotParams["template"] != "overdue_reminder" {
		t.Errorf("handler params = %v, want template=overdue_reminder", gotParams)
	}
}

func TestDispatch_UnknownType(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	res := reg.Dispatch(context.Background(), Action{Type: "does_not_exist"}, TriggerContext{})
	if res.Success {
		t.Error("unknown action type must fail")
	}
	if res.Message != "unknown action type" {
		t.Errorf("message = %q, want \"unknown action type\"", res.Message)
	}
}

func TestDispatch_HandlerError(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.Register("change_status", func(context.Context, map[string]string, TriggerContext) error {
		return errors.New("status transition not allowed")
	})
	res := reg.Dispatch(context.Background(), Action{Type: "change_status"}, TriggerContext{})
	if res.Success {
		t.Error("handler error must produce a failed result")
	}
	if res.Message != "status transition not allowed" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestDispatch_PanicIsolated(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.Register("explode", func(context.Context, map[string]string, TriggerContext) error {
		panic("boom")
	})
	res := reg.Dispatch(context.Background(), Action{Type: "explode"}, TriggerContext{})
	if res.Success {
		t.Error("panicking handler must produce a failed result")
	}
	if !strings.Contains(res.Message, "boom") {
		t.Errorf("message should carry the panic value, got %q", res.Message)
	}
}

func TestRegistry_Types(t *testing.T) {
	t.Parallel()
	reg := NewRegistry()
	reg.Register("b_action", NoopHandler)
	reg.Register("a_action", NoopHandler)
	types := reg.Types()
	if len(types) != 2 || types[0] != "a_action" || types[1] != "b_action" {
		t.Errorf("Types() = %v, want sorted [a_action b_action]", types)
	}
}

func TestDryRunRegistry(t *testing.T) {
	t.Parallel()
	invoked := false
	real := NewRegistry()
	real.Register("send_email", func(context.Context, map[string]string, TriggerContext) error {
		invoked = true
		return nil
	})

	stub := DryRunRegistry(real)

	res := stub.Dispatch(context.Background(), Action{Type: "send_email"}, TriggerContext{})
	if !res.Success {
		t.Fatalf("dry-run dispatch of known type failed: %s", res.Message)
	}
	if invoked {
		t.Error("dry run must never invoke the real handler")
	}

	// Unknown-type detection is shared with the live path.
	res = stub.Dispatch(context.Background(), Action{Type: "missing"}, TriggerContext{})
	if res.Success {
		t.Error("dry-run dispatch of unknown type must fail")
	}
}
