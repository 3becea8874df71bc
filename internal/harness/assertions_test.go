package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventstate/internal/replay"
)

// userTaskScenario creates task 10 and job 20 and leaves the task
// assigned to alice.
func userTaskScenario(assertions ...Assertion) *Scenario {
	task := map[string]any{
		"user_task_key":        10,
		"assignee":             "alice",
		"element_id":           "review",
		"element_instance_key": 5,
		"tenant_id":            "<default>",
	}
	return &Scenario{
		Name:        "assertions",
		Description: "Assertion evaluation",
		Events: []replay.YAMLEvent{
			{Key: 10, Intent: "USER_TASK:CREATING", Version: 2, Value: task},
			{Key: 10, Intent: "USER_TASK:CREATED", Version: 2, Value: map[string]any{"user_task_key": 10}},
			{Key: 20, Intent: "JOB:CREATED", Version: 1, Value: map[string]any{"type": "ship", "retries": 3}},
		},
		Assertions: assertions,
	}
}

func runAssertions(t *testing.T, assertions ...Assertion) *Result {
	t.Helper()
	result, err := Run(context.Background(), userTaskScenario(assertions...))
	require.NoError(t, err)
	return result
}

func TestAssertUserTask(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"lifecycle matches", Assertion{Type: AssertUserTask, Key: 10, State: "CREATED"}, ""},
		{"assignee put aside on creation", Assertion{Type: AssertUserTask, Key: 10, Expect: map[string]any{"assignee": ""}}, ""},
		{"nested subset", Assertion{Type: AssertUserTask, Key: 10, Expect: map[string]any{"element_id": "review", "element_instance_key": 5}}, ""},
		{"wrong lifecycle", Assertion{Type: AssertUserTask, Key: 10, State: "ASSIGNING"}, "state CREATED"},
		{"wrong field", Assertion{Type: AssertUserTask, Key: 10, Expect: map[string]any{"element_id": "approve"}}, "element_id = review"},
		{"missing task", Assertion{Type: AssertUserTask, Key: 11}, "not found"},
		{"absent task", Assertion{Type: AssertUserTask, Key: 11, Absent: true}, ""},
		{"present but expected absent", Assertion{Type: AssertUserTask, Key: 10, Absent: true}, "to be absent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := runAssertions(t, tt.assertion)
			if tt.wantErr == "" {
				assert.True(t, result.Pass, "errors: %v", result.Errors)
				return
			}
			require.Len(t, result.Errors, 1)
			assert.Contains(t, result.Errors[0], tt.wantErr)
		})
	}
}

func TestAssertJob(t *testing.T) {
	result := runAssertions(t,
		Assertion{Type: AssertJob, Key: 20, State: "ACTIVATABLE", Expect: map[string]any{"type": "ship", "retries": 3}},
		Assertion{Type: AssertJob, Key: 20, State: "FAILED"},
	)

	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "job 20 in state FAILED")
	assert.Contains(t, result.Errors[0], "state ACTIVATABLE")
}

func TestAssertLastPositionAndDeterminism(t *testing.T) {
	result := runAssertions(t,
		Assertion{Type: AssertLastPosition, Position: 3},
		Assertion{Type: AssertDeterministic},
	)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	result = runAssertions(t, Assertion{Type: AssertLastPosition, Position: 2})
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "last position 3")
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertForm, Expected: "latest form invoice", Actual: "not found"}
	assert.Equal(t, "Assertion failed: form\n  Expected: latest form invoice\n  Actual: not found", err.Error())
}

func TestMatchValue(t *testing.T) {
	actual := map[string]any{
		"form_key": float64(2),
		"nested":   map[string]any{"a": "x", "b": float64(1)},
	}

	tests := []struct {
		name     string
		expected map[string]any
		wantPath string
		wantOK   bool
	}{
		{"empty expectation", map[string]any{}, "", true},
		{"scalar", map[string]any{"form_key": float64(2)}, "", true},
		{"nested subset", map[string]any{"nested": map[string]any{"a": "x"}}, "", true},
		{"missing field matches zero", map[string]any{"assignee": ""}, "", true},
		{"missing field does not match value", map[string]any{"assignee": "bob"}, "assignee", false},
		{"nested mismatch", map[string]any{"nested": map[string]any{"b": float64(2)}}, "nested.b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := matchValue("", actual, map[string]any(tt.expected))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}
