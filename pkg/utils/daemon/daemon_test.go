package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnit(t *testing.T) {
	u := Unit("/usr/local/bin/battwatt", "--config", "/etc/battwatt.json")
	assert.Contains(t, u, "ExecStart=/usr/local/bin/battwatt --config /etc/battwatt.json daemon\n")
	assert.NotContains(t, u, "/path/to/battwatt")

	u = Unit("/usr/bin/battwatt")
	assert.Contains(t, u, "ExecStart=/usr/bin/battwatt daemon\n")
}

func fakeSystemctl(t *testing.T, exitCode int) string {
	t.Helper()
	dir := t.TempDir()
	log := filepath.Join(dir, "calls")
	script := filepath.Join(dir, "systemctl")
	body := "#!/bin/sh\necho \"$@\" >> " + log + "\nexit " + strconv.Itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(script, []byte(body), 0o755))

	origCtl, origDir := systemctl, unitDir
	systemctl = script
	unitDir = filepath.Join(dir, "units")
	t.Cleanup(func() {
		systemctl = origCtl
		unitDir = origDir
	})
	return log
}

func TestInstallUninstall(t *testing.T) {
	log := fakeSystemctl(t, 0)

	require.NoError(t, Install())
	b, err := os.ReadFile(unitPath())
	require.NoError(t, err)
	assert.Contains(t, string(b), "ExecStart=")

	require.NoError(t, Uninstall())
	_, err = os.Stat(unitPath())
	assert.True(t, os.IsNotExist(err))

	calls, err := os.ReadFile(log)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"daemon-reload",
		"enable --now battwatt.service",
		"disable --now battwatt.service",
		"daemon-reload",
	}, strings.Split(strings.TrimSpace(string(calls)), "\n"))
}

func TestUninstallFailure(t *testing.T) {
	fakeSystemctl(t, 1)
	assert.Error(t, Uninstall())
}
