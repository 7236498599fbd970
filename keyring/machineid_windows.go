//go:build windows

package keyring

import (
	"os"

	"golang.org/x/sys/windows/registry"
)

// machineID returns the installation GUID Windows assigns at setup.
func machineID() string {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE\Microsoft\Cryptography`, registry.QUERY_VALUE|registry.WOW64_64KEY)
	if err == nil {
		defer k.Close()
		if guid, _, err := k.GetStringValue("MachineGuid"); err == nil && guid != "" {
			return guid
		}
	}
	hostname, _ := os.Hostname()
	return hostname
}
