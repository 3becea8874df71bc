package harness

import (
	"context"
)

// SuiteResult summarizes a run over several scenario files.
type SuiteResult struct {
	Total     int              `json:"total"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Scenarios []ScenarioResult `json:"scenarios"`
}

// ScenarioResult is the outcome of one scenario file. Scenario is empty if
// the file could not be loaded.
type ScenarioResult struct {
	Scenario string   `json:"scenario,omitempty"`
	Path     string   `json:"path"`
	Pass     bool     `json:"pass"`
	Errors   []string `json:"errors,omitempty"`
}

// Check is an extra verdict on a finished run, such as a golden file
// comparison. A non-nil error fails the scenario.
type Check func(path string, scenario *Scenario, result *Result) error

// Pass reports whether every scenario passed.
func (r *SuiteResult) Pass() bool {
	return r.Failed == 0
}

// Failures returns the scenarios that did not pass.
func (r *SuiteResult) Failures() []ScenarioResult {
	var out []ScenarioResult
	for _, s := range r.Scenarios {
		if !s.Pass {
			out = append(out, s)
		}
	}
	return out
}

// RunSuite loads and runs each scenario file, then applies checks to
// every run that passed. A file that cannot be loaded or run counts as a
// failure; only a canceled ctx stops the suite early.
func RunSuite(ctx context.Context, paths []string, checks ...Check) (*SuiteResult, error) {
	suite := &SuiteResult{Scenarios: []ScenarioResult{}}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return suite, err
		}
		suite.add(runOne(ctx, path, checks))
	}

	return suite, nil
}

func runOne(ctx context.Context, path string, checks []Check) ScenarioResult {
	scenario, err := LoadScenario(path)
	if err != nil {
		return ScenarioResult{Path: path, Errors: []string{err.Error()}}
	}

	out := ScenarioResult{Scenario: scenario.Name, Path: path}
	result, err := Run(ctx, scenario)
	if err != nil {
		out.Errors = []string{err.Error()}
		return out
	}
	if !result.Pass {
		out.Errors = result.Errors
		return out
	}

	for _, check := range checks {
		if err := check(path, scenario, result); err != nil {
			out.Errors = append(out.Errors, err.Error())
		}
	}
	out.Pass = len(out.Errors) == 0
	return out
}

func (r *SuiteResult) add(s ScenarioResult) {
	r.Total++
	if s.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
	r.Scenarios = append(r.Scenarios, s)
}
