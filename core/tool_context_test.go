package core

import (
	"context"
	"testing"
)

func TestToolContext_BasicFunctionality(t *testing.T) {
	rc, _ := newRunContextForTest()
	tc := NewToolContext(rc, "test-call-id")
	if !tc.IsValid() {
		t.Fatal("expected valid tool context")
	}
	if tc.SessionID() != "sess-x" {
		t.Errorf("session id mismatch")
	}
	if tc.RunID() != "run-x" {
		t.Errorf("run id mismatch")
	}
	if tc.FunctionCallID() != "test-call-id" {
		t.Errorf("function call id mismatch")
	}
	if tc.AgentName() != "Agent1" {
		t.Errorf("agent name mismatch")
	}
	if tc.Logger() == nil {
		t.Errorf("expected logger")
	}
	if tc.Backend() == nil {
		t.Errorf("expected backend")
	}
}

func TestToolContext_StateManagement(t *testing.T) {
	tc := NewToolContext(NewRunContext(
		context.Background(), "test-session", "test-run", AgentInfo{Name: "Test Agent", Type: "test"},
		Content{}, 0, nil, nil, nil, nil, nil, nil,
	), "test-call-id")
	tc.SetState("test_key", "test_value")
	actions := tc.Actions()
	if actions.StateDelta == nil {
		t.Fatal("missing state delta")
	}
	if v, ok := actions.StateDelta["test_key"]; !ok || v != "test_value" {
		t.Errorf("unexpected state delta: %+v", actions.StateDelta)
	}
}

func TestToolContext_FlowControl(t *testing.T) {
	rc, _ := newRunContextForTest()
	tc := NewToolContext(rc, "test-call-id")
	tc.SkipSummarization()
	tc.Escalate()
	actions := tc.Actions()
	if actions.SkipSummarization == nil || !*actions.SkipSummarization {
		t.Error("skip summarization not set")
	}
	if actions.Escalate == nil || !*actions.Escalate {
		t.Error("escalate not set")
	}
}

func TestToolContext_InternalApplyActions(t *testing.T) {
	rc, _ := newRunContextForTest()
	tc := NewToolContext(rc, "test-call-id")
	tc.SetState("todos", []any{"x"})
	tc.Escalate()

	ev := NewEvent(rc.RunID, "agent")
	tc.InternalApplyActions(&ev)

	if ev.Actions.StateDelta == nil || ev.Actions.StateDelta["todos"] == nil {
		t.Fatalf("state delta not applied to event: %+v", ev.Actions)
	}
	if ev.Actions.Escalate == nil || !*ev.Actions.Escalate {
		t.Error("escalate not applied to event")
	}
}

func TestToolContext_Validation(t *testing.T) {
	if (&ToolContext{}).IsValid() {
		t.Error("invalid context should not be valid")
	}
	rc, _ := newRunContextForTest()
	tc := NewToolContext(rc, "test-call-id")
	if !tc.IsValid() {
		t.Error("expected valid tool context")
	}
	if err := tc.Validate(); err != nil {
		t.Errorf("validate error: %v", err)
	}
}
