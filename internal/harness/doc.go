// Package harness runs YAML replay scenarios against a fresh state store
// and checks the resulting state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	events:
//	  - key: 1
//	    intent: FORM:CREATED
//	    version: 2
//	    value: {form_id: invoice, form_key: 1, version: 1, tenant_id: <default>}
//	expect_error: INCONSISTENT_STATE   # optional
//	assertions:
//	  - type: form
//	    id: invoice
//	    expect: {form_key: 1}
//	  - type: user_task
//	    key: 10
//	    state: CREATED
//	  - type: deterministic
//
// Events use the same shape as replay event files; positions may be
// omitted and are then numbered from 1.
//
// # Assertion Types
//
//   - form: a form by key, or by id (latest, or a given version)
//   - user_task: a user task record and its lifecycle state
//   - element_instance: an element instance and its state
//   - job: a job record and its scheduling state
//   - incident: an incident record
//   - usage_bucket: the active usage metric bucket
//   - last_position: the persisted last-applied position
//   - deterministic: replaying the events into a second store yields the
//     same digest
//
// Expect maps are matched as a subset against the JSON encoding of the
// found value. Set absent to assert that nothing is found.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/forms.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
