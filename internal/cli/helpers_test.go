package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const formEvents = `events:
  - key: 1
    intent: FORM:CREATED
    version: 2
    timestamp: 1000
    value: {form_id: invoice, form_key: 1, version: 1, version_tag: v1, deployment_key: 101, tenant_id: "<default>"}
  - key: 9
    intent: ROLE:CREATE
    version: 1
    timestamp: 2000
    value: {role_id: admin}
  - key: 2
    intent: FORM:CREATED
    version: 2
    timestamp: 3000
    value: {form_id: invoice, form_key: 2, version: 2, version_tag: v2, deployment_key: 102, tenant_id: "<default>"}
`

const moreFormEvents = `events:
  - position: 4
    key: 2
    intent: FORM:DELETED
    version: 1
    timestamp: 4000
    value: {form_id: invoice, form_key: 2, version: 2, version_tag: v2, deployment_key: 102, tenant_id: "<default>"}
`

const unknownVersionEvents = `events:
  - key: 1
    intent: FORM:CREATED
    version: 2
    value: {form_id: invoice, form_key: 1, version: 1, tenant_id: "<default>"}
  - key: 2
    intent: FORM:CREATED
    version: 9
    value: {form_id: invoice, form_key: 2, version: 2, tenant_id: "<default>"}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// executeRoot runs the full command tree without picking up a .env file
// from the working directory.
func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	envFile := filepath.Join(t.TempDir(), "missing.env")
	return execute(t, NewRootCommand(), append([]string{"--env-file", envFile}, args...)...)
}
