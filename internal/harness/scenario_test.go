package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	path := writeScenario(t, `
name: forms
description: "Creates a form"
bucket_duration_ms: 60000
events:
  - key: 1
    intent: FORM:CREATED
    version: 2
    value: {form_id: invoice, form_key: 1, version: 1}
assertions:
  - type: form
    id: invoice
    expect: {form_key: 1}
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "forms", scenario.Name)
	require.Len(t, scenario.Events, 1)
	assert.Equal(t, "FORM:CREATED", scenario.Events[0].Intent)
	assert.Equal(t, int32(2), scenario.Events[0].Version)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertForm, scenario.Assertions[0].Type)
	assert.Equal(t, 1, scenario.Assertions[0].Expect["form_key"])
	assert.Equal(t, int64(60000), scenario.BucketDuration().Milliseconds())
}

func TestLoadScenario_CheckedInScenariosAreValid(t *testing.T) {
	paths, err := ScenarioPaths("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		_, err := LoadScenario(path)
		assert.NoError(t, err, path)
	}
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: "Misspelled assertions key"
events:
  - {key: 1, intent: FORM:CREATED, version: 2}
assertion:
  - type: deterministic
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestValidateScenario_Errors(t *testing.T) {
	events := "events:\n  - {key: 1, intent: FORM:CREATED, version: 2}\n"

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "missing name",
			content: "description: d\n" + events + "assertions:\n  - type: deterministic\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\n" + events + "assertions:\n  - type: deterministic\n",
			wantErr: "description is required",
		},
		{
			name:    "no events",
			content: "name: n\ndescription: d\nassertions:\n  - type: deterministic\n",
			wantErr: "events list is required",
		},
		{
			name:    "no assertions and no expected error",
			content: "name: n\ndescription: d\n" + events,
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown error code",
			content: "name: n\ndescription: d\n" + events + "expect_error: BOOM\n",
			wantErr: "unknown error code",
		},
		{
			name:    "event without intent",
			content: "name: n\ndescription: d\nevents:\n  - {key: 1}\nassertions:\n  - type: deterministic\n",
			wantErr: "events[0]: intent is required",
		},
		{
			name:    "unknown assertion type",
			content: "name: n\ndescription: d\n" + events + "assertions:\n  - type: trace_contains\n",
			wantErr: "unknown assertion type",
		},
		{
			name:    "form without key or id",
			content: "name: n\ndescription: d\n" + events + "assertions:\n  - type: form\n",
			wantErr: "key or id is required",
		},
		{
			name:    "job without key",
			content: "name: n\ndescription: d\n" + events + "assertions:\n  - type: job\n",
			wantErr: "key is required for job",
		},
		{
			name:    "state on incident",
			content: "name: n\ndescription: d\n" + events + "assertions:\n  - {type: incident, key: 1, state: CREATED}\n",
			wantErr: "state is not supported for incident",
		},
		{
			name:    "absent with expect",
			content: "name: n\ndescription: d\n" + events + "assertions:\n  - {type: job, key: 1, absent: true, expect: {retries: 1}}\n",
			wantErr: "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScenarioPaths(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}

	paths, err := ScenarioPaths(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yml"), filepath.Join(dir, "b.yaml")}, paths)

	single, err := ScenarioPaths(filepath.Join(dir, "b.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yaml")}, single)

	_, err = ScenarioPaths(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
