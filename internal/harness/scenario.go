package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/eventstate/internal/replay"
)

// Scenario is an event log together with the state it must produce.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// BucketDurationMS overrides the usage metric bucket width.
	BucketDurationMS int64 `yaml:"bucket_duration_ms,omitempty"`

	// Events are replayed in order into a fresh store.
	Events []replay.YAMLEvent `yaml:"events"`

	// ExpectError is the replay error code the run must stop with. Empty
	// means the whole log must apply.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions are checked against the state left by the replay, also
	// when it stopped with the expected error.
	Assertions []Assertion `yaml:"assertions"`
}

// BucketDuration returns the configured usage bucket width, or zero for
// the default.
func (s *Scenario) BucketDuration() time.Duration {
	return time.Duration(s.BucketDurationMS) * time.Millisecond
}

// Assertion checks one piece of state after the replay.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Key selects the entity by key.
	Key int64 `yaml:"key,omitempty"`

	// ID, Version and TenantID select a form by id. Version zero means
	// the latest version.
	ID       string `yaml:"id,omitempty"`
	Version  int32  `yaml:"version,omitempty"`
	TenantID string `yaml:"tenant_id,omitempty"`

	// State is the expected lifecycle state (user_task, element_instance)
	// or scheduling state (job).
	State string `yaml:"state,omitempty"`

	// Position is the expected last-applied position (last_position).
	Position int64 `yaml:"position,omitempty"`

	// Absent asserts that the entity does not exist.
	Absent bool `yaml:"absent,omitempty"`

	// Expect contains expected field values under their JSON names.
	// Subset match - only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertForm            = "form"
	AssertUserTask        = "user_task"
	AssertElementInstance = "element_instance"
	AssertJob             = "job"
	AssertIncident        = "incident"
	AssertUsageBucket     = "usage_bucket"
	AssertLastPosition    = "last_position"
	AssertDeterministic   = "deterministic"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// ScenarioPaths returns the scenario files under path. A file path is
// returned as is; a directory yields its *.yaml and *.yml files in name
// order.
func ScenarioPaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(path, pattern))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	sort.Strings(paths)
	return paths, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Events) == 0 {
		return fmt.Errorf("events list is required and must be non-empty")
	}

	if s.BucketDurationMS < 0 {
		return fmt.Errorf("bucket_duration_ms must be non-negative")
	}

	switch replay.ReplayErrorCode(s.ExpectError) {
	case "", replay.ErrCodeNoApplier, replay.ErrCodeInconsistentState, replay.ErrCodeApplyFailed:
	default:
		return fmt.Errorf("expect_error: unknown error code %q", s.ExpectError)
	}

	if len(s.Assertions) == 0 && s.ExpectError == "" {
		return fmt.Errorf("assertions list is required unless expect_error is set")
	}

	for i, step := range s.Events {
		if step.Intent == "" {
			return fmt.Errorf("events[%d]: intent is required", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertForm:
		if a.Key == 0 && a.ID == "" {
			return fmt.Errorf("assertions[%d]: key or id is required for form", index)
		}
	case AssertUserTask, AssertElementInstance, AssertJob, AssertIncident:
		if a.Key == 0 {
			return fmt.Errorf("assertions[%d]: key is required for %s", index, a.Type)
		}
	case AssertUsageBucket:
	case AssertLastPosition:
		if a.Position < 0 {
			return fmt.Errorf("assertions[%d]: position must be non-negative for last_position", index)
		}
	case AssertDeterministic:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.State != "" {
		switch a.Type {
		case AssertUserTask, AssertElementInstance, AssertJob:
		default:
			return fmt.Errorf("assertions[%d]: state is not supported for %s", index, a.Type)
		}
	}

	if a.Absent && len(a.Expect) > 0 {
		return fmt.Errorf("assertions[%d]: absent and expect are mutually exclusive", index)
	}

	return nil
}
