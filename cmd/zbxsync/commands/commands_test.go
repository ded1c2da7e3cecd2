package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/zbxsync/internal/testing/zbxfake"
	"github.com/openfroyo/zbxsync/pkg/config"
	"github.com/openfroyo/zbxsync/pkg/engine"
)

func withEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	prev := lookupEnv
	lookupEnv = func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = prev })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand("test", "none", "today")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func labEnv(url string) map[string]string {
	return map[string]string{
		config.EnvAPIURL:       url,
		config.EnvUser:         "Admin",
		config.EnvPassword:     "zabbix",
		config.EnvSNMPAuthPass: "auth-secret",
		config.EnvSNMPPrivPass: "priv-secret",
	}
}

func TestValidate_BuiltinCatalog(t *testing.T) {
	withEnv(t, map[string]string{config.EnvSNMPAuthPass: "a", config.EnvSNMPPrivPass: "p"})

	out, err := run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Catalog is valid")
}

func TestValidate_MissingSNMPSecrets(t *testing.T) {
	withEnv(t, map[string]string{})

	_, err := run(t, "validate")
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

func TestValidate_PolicyDenial(t *testing.T) {
	withEnv(t, map[string]string{})
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hostgroups:
  - name: web
`), 0o644))
	rego := filepath.Join(dir, "no-web.rego")
	require.NoError(t, os.WriteFile(rego, []byte(`package site.groups

deny contains msg if {
	some g in input.hostgroups
	g.name == "web"
	msg := "host group web is reserved"
}
`), 0o644))

	_, err := run(t, "validate", "--catalog", path)
	require.NoError(t, err)

	_, err = run(t, "validate", "--catalog", path, "--policy", rego)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host group web is reserved")
}

func TestPlan_DOT(t *testing.T) {
	withEnv(t, map[string]string{config.EnvSNMPAuthPass: "a", config.EnvSNMPPrivPass: "p"})

	out, err := run(t, "plan", "--dot")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph Reconcile")
	assert.Contains(t, out, `"host/webserver1" -> "interface/webserver1/agent"`)

	out, err = run(t, "plan")
	require.NoError(t, err)
	assert.Contains(t, out, "webserver4")
	assert.NotContains(t, out, "mediatype")
}

func TestApply_ThenHistory(t *testing.T) {
	srv := zbxfake.New(t)
	withEnv(t, labEnv(srv.APIURL()))
	journal := filepath.Join(t.TempDir(), "runs.db")

	out, err := run(t, "apply", "--skip-wait", "--journal", journal)
	require.NoError(t, err)
	assert.Contains(t, out, "webserver1")

	_, ok := srv.Find("host", "host", "monitoring-plugins")
	assert.True(t, ok)

	srv.ResetCalls()
	_, err = run(t, "apply", "--skip-wait", "--journal", journal)
	require.NoError(t, err)
	assert.Empty(t, srv.Mutations())

	out, err = run(t, "history", "--journal", journal)
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded")
}

func TestApply_WritesMetrics(t *testing.T) {
	srv := zbxfake.New(t)
	withEnv(t, labEnv(srv.APIURL()))
	metrics := filepath.Join(t.TempDir(), "zbxsync.prom")

	_, err := run(t, "apply", "--skip-wait", "--metrics-file", metrics)
	require.NoError(t, err)

	raw, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "zbxsync_")
}

func TestApply_RequiresCredentials(t *testing.T) {
	withEnv(t, map[string]string{})

	_, err := run(t, "apply")
	require.Error(t, err)
	assert.True(t, engine.IsValidation(err))
}

func TestApply_WatchNeedsCatalog(t *testing.T) {
	withEnv(t, map[string]string{})

	_, err := run(t, "apply", "--watch")
	assert.ErrorContains(t, err, "--watch needs --catalog")
}
