package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("GESTLY_STORE", "memory")
	t.Setenv("GESTLY_PLANS_FILE", "")
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--env", filepath.Join(t.TempDir(), "none.env")}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestPlansTable(t *testing.T) {
	out, err := run(t, "plans")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "free")
	assert.Contains(t, out, "unlimited")
}

func TestPlansYAML(t *testing.T) {
	out, err := run(t, "plans", "--yaml")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "plans:"), out)
	assert.Contains(t, out, "max_attendants: 5")
}

func TestMigrateRequiresPostgres(t *testing.T) {
	_, err := run(t, "migrate", "up")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GESTLY_STORE=postgres")
}

func TestAPIKeyRequiresBusiness(t *testing.T) {
	_, err := run(t, "apikey", "list")
	require.Error(t, err)

	_, err = run(t, "apikey", "create", "--business", "missing", "--name", "site")
	require.Error(t, err)
}
