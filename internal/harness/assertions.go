package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/eventstate/internal/protocol"
	"github.com/roach88/eventstate/internal/replay"
	"github.com/roach88/eventstate/internal/state"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext is what assertions are evaluated against.
type AssertionContext struct {
	Ctx      context.Context
	Scenario *Scenario
	State    *state.ProcessingState
	Events   replay.Events

	// Digest is the digest of the state after the replay.
	Digest string
}

// EvaluateAssertions evaluates all assertions against the state.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertForm:
			err = assertForm(actx, assertion)
		case AssertUserTask:
			err = assertUserTask(actx, assertion)
		case AssertElementInstance:
			err = assertElementInstance(actx, assertion)
		case AssertJob:
			err = assertJob(actx, assertion)
		case AssertIncident:
			err = assertIncident(actx, assertion)
		case AssertUsageBucket:
			err = assertUsageBucket(actx, assertion)
		case AssertLastPosition:
			err = assertLastPosition(actx, assertion)
		case AssertDeterministic:
			err = assertDeterministic(actx)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertForm(actx *AssertionContext, a Assertion) error {
	tenant := a.TenantID
	if tenant == "" {
		tenant = protocol.DefaultTenantID
	}

	var (
		form  *protocol.FormRecord
		found bool
		err   error
		what  string
	)
	switch {
	case a.Key != 0:
		what = fmt.Sprintf("form with key %d", a.Key)
		form, found, err = actx.State.Forms.FindByKey(actx.Ctx, a.Key)
	case a.Version != 0:
		what = fmt.Sprintf("form %s version %d of tenant %s", a.ID, a.Version, tenant)
		form, found, err = actx.State.Forms.FindByIDAndVersion(actx.Ctx, a.ID, a.Version, tenant)
	default:
		what = fmt.Sprintf("latest form %s of tenant %s", a.ID, tenant)
		form, found, err = actx.State.Forms.FindLatestByID(actx.Ctx, a.ID, tenant)
	}
	return checkEntity(a, what, form, found, err)
}

func assertUserTask(actx *AssertionContext, a Assertion) error {
	what := fmt.Sprintf("user task %d", a.Key)
	task, found, err := actx.State.UserTasks.Get(actx.Ctx, a.Key)
	if err := checkEntity(a, what, task, found, err); err != nil || a.State == "" {
		return err
	}

	lifecycle, err := actx.State.UserTasks.LifecycleState(actx.Ctx, a.Key)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Type, err)
	}
	if string(lifecycle) != a.State {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s in state %s", what, a.State),
			Actual:   fmt.Sprintf("state %s", lifecycle),
		}
	}
	return nil
}

func assertElementInstance(actx *AssertionContext, a Assertion) error {
	what := fmt.Sprintf("element instance %d", a.Key)
	inst, found, err := actx.State.ElementInstances.Get(actx.Ctx, a.Key)
	if err := checkEntity(a, what, inst, found, err); err != nil || a.State == "" {
		return err
	}

	// Accept both ELEMENT_ACTIVATED and PROCESS_INSTANCE:ELEMENT_ACTIVATED.
	if a.State != inst.State.Name() && a.State != inst.State.String() {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s in state %s", what, a.State),
			Actual:   fmt.Sprintf("state %s", inst.State.Name()),
		}
	}
	return nil
}

func assertJob(actx *AssertionContext, a Assertion) error {
	what := fmt.Sprintf("job %d", a.Key)
	job, found, err := actx.State.Jobs.Get(actx.Ctx, a.Key)
	if err := checkEntity(a, what, job, found, err); err != nil || a.State == "" {
		return err
	}

	jobState, err := actx.State.Jobs.State(actx.Ctx, a.Key)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Type, err)
	}
	if string(jobState) != a.State {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s in state %s", what, a.State),
			Actual:   fmt.Sprintf("state %s", jobState),
		}
	}
	return nil
}

func assertIncident(actx *AssertionContext, a Assertion) error {
	incident, found, err := actx.State.Incidents.Get(actx.Ctx, a.Key)
	return checkEntity(a, fmt.Sprintf("incident %d", a.Key), incident, found, err)
}

func assertUsageBucket(actx *AssertionContext, a Assertion) error {
	bucket, found, err := actx.State.UsageMetrics.ActiveBucket(actx.Ctx)
	return checkEntity(a, "active usage bucket", bucket, found, err)
}

func assertLastPosition(actx *AssertionContext, a Assertion) error {
	pos, err := actx.State.DB.LastPosition(actx.Ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", a.Type, err)
	}
	if pos != a.Position {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("last position %d", a.Position),
			Actual:   fmt.Sprintf("last position %d", pos),
		}
	}
	return nil
}

// assertDeterministic replays the same events into a second store.
func assertDeterministic(actx *AssertionContext) error {
	second, err := replayDigest(actx.Ctx, actx.Scenario, actx.Events)
	if err != nil {
		return fmt.Errorf("%s: %w", AssertDeterministic, err)
	}
	if second != actx.Digest {
		return &AssertionError{
			Type:     AssertDeterministic,
			Expected: fmt.Sprintf("digest %s on every replay", actx.Digest),
			Actual:   fmt.Sprintf("digest %s on the second replay", second),
		}
	}
	return nil
}

// checkEntity applies the absent flag and the expect map to the result
// of a lookup.
func checkEntity(a Assertion, what string, value any, found bool, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", a.Type, err)
	}
	if a.Absent {
		if found {
			return &AssertionError{Type: a.Type, Expected: what + " to be absent", Actual: "found"}
		}
		return nil
	}
	if !found {
		return &AssertionError{Type: a.Type, Expected: what, Actual: "not found"}
	}
	return matchFields(a.Type, what, value, a.Expect)
}

// matchFields compares expect with the JSON encoding of actual using
// subset semantics. Both sides go through JSON so YAML integers and
// record int64 fields compare equal.
func matchFields(assertType, what string, actual any, expect map[string]any) error {
	if len(expect) == 0 {
		return nil
	}

	got, err := toJSONValue(actual)
	if err != nil {
		return fmt.Errorf("%s: encode %s: %w", assertType, what, err)
	}
	want, err := toJSONValue(expect)
	if err != nil {
		return fmt.Errorf("%s: encode expectation: %w", assertType, err)
	}

	if path, ok := matchValue("", got, want); !ok {
		return &AssertionError{
			Type:     assertType,
			Expected: fmt.Sprintf("%s with %s = %v", what, path, lookupPath(want, path)),
			Actual:   fmt.Sprintf("%s = %v", path, lookupPath(got, path)),
		}
	}
	return nil
}

func toJSONValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// matchValue reports whether actual contains expected. Maps match as
// subsets; a field missing from actual matches an expected zero value,
// since records omit empty fields. On mismatch it returns the dotted path
// of the first differing field.
func matchValue(path string, actual, expected any) (string, bool) {
	expMap, ok := expected.(map[string]any)
	if !ok {
		if actual == nil && isZero(expected) {
			return "", true
		}
		return path, reflect.DeepEqual(actual, expected)
	}

	actMap, _ := actual.(map[string]any)
	keys := make([]string, 0, len(expMap))
	for k := range expMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sub := k
		if path != "" {
			sub = path + "." + k
		}
		if p, ok := matchValue(sub, actMap[k], expMap[k]); !ok {
			return p, false
		}
	}
	return "", true
}

func isZero(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case float64:
		return val == 0
	case bool:
		return !val
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	}
	return false
}

func lookupPath(v any, path string) any {
	if path == "" {
		return v
	}
	for _, part := range strings.Split(path, ".") {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[part]
	}
	return v
}
