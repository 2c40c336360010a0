package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/battwatt/hack"
)

const unitName = "battwatt.service"

var (
	unitDir = "/etc/systemd/system"
	// systemctl is a variable so tests can point it at a fake.
	systemctl = "/bin/systemctl"
)

func unitPath() string {
	return filepath.Join(unitDir, unitName)
}

// Unit renders the systemd unit for the executable at exePath.
func Unit(exePath string, args ...string) string {
	cmd := exePath
	if len(args) > 0 {
		cmd += " " + strings.Join(args, " ")
	}
	return strings.ReplaceAll(hack.SystemdUnitTemplate, "/path/to/battwatt", cmd)
}

// Install writes the systemd unit and starts the daemon. args are appended
// to the daemon command line, before "daemon".
func Install(args ...string) error {
	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}

	err = os.Chmod(exePath, 0755)
	if err != nil {
		return fmt.Errorf("failed to chmod the current executable to 0755: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	logrus.Infof("writing systemd unit to %s", unitDir)

	// mkdir -p
	err = os.MkdirAll(unitDir, 0755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", unitDir, err)
	}

	// warn if the file already exists
	_, err = os.Stat(unitPath())
	if err == nil {
		logrus.Warnf("%s already exists, overwriting", unitPath())
	}

	err = os.WriteFile(unitPath(), []byte(Unit(exePath, args...)), 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", unitPath(), err)
	}

	logrus.Infof("starting battwatt")

	for _, a := range [][]string{
		{"daemon-reload"},
		{"enable", "--now", unitName},
	} {
		if out, err := exec.Command(systemctl, a...).CombinedOutput(); err != nil {
			return fmt.Errorf("systemctl %s failed: %w: %s", strings.Join(a, " "), err, strings.TrimSpace(string(out)))
		}
	}

	return nil
}
