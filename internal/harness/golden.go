package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden record of a scenario run. The digest is left out
// so that golden files survive changes to the storage layout; the
// deterministic assertion covers it.
type Snapshot struct {
	ScenarioName string   `json:"scenario_name"`
	Pass         bool     `json:"pass"`
	Applied      int      `json:"applied"`
	Skipped      int      `json:"skipped"`
	LastPosition int64    `json:"last_position"`
	ErrorCode    string   `json:"error_code,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

// NewSnapshot builds the snapshot of a result.
func NewSnapshot(scenarioName string, result *Result) Snapshot {
	return Snapshot{
		ScenarioName: scenarioName,
		Pass:         result.Pass,
		Applied:      result.Applied,
		Skipped:      result.Skipped,
		LastPosition: result.LastPosition,
		ErrorCode:    result.ErrorCode,
		Errors:       result.Errors,
	}
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s Snapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
