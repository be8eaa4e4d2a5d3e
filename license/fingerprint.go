package license

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/quillworks/quill/api"
)

// machineIDPaths are tried in order; absence of all of them is not fatal,
// the remaining attributes still produce a stable (if weaker) fingerprint.
var machineIDPaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
}

// Fingerprint derives a stable identifier for the current machine from
// hostname, machine id, OS, architecture, and logical CPU count. The same
// machine always produces the same value; a license record carrying a
// different fingerprint is never usable here.
func Fingerprint() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("reading hostname: %w", err)
	}

	parts := []string{
		hostname,
		machineID(),
		runtime.GOOS,
		runtime.GOARCH,
		fmt.Sprintf("%d", runtime.NumCPU()),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])[:16], nil
}

func machineID() string {
	for _, p := range machineIDPaths {
		b, err := os.ReadFile(p)
		if err == nil {
			return strings.TrimSpace(string(b))
		}
	}
	return ""
}

// MachineInfo assembles the host attributes sent alongside license calls so
// the backend can bind activations to one device.
func MachineInfo() (api.MachineInfo, error) {
	fp, err := Fingerprint()
	if err != nil {
		return api.MachineInfo{}, err
	}
	hostname, err := os.Hostname()
	if err != nil {
		return api.MachineInfo{}, fmt.Errorf("reading hostname: %w", err)
	}
	return api.MachineInfo{
		Fingerprint: fp,
		Hostname:    hostname,
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
	}, nil
}
