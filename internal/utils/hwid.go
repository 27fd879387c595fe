package utils

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

// HWID is a stable identifier for this machine, scoped to the app so the raw
// machine id never leaves the host. Falls back to a hostname digest on
// platforms where the machine id is unavailable.
var HWID = hwid()

func hwid() string {
	id, err := machineid.ProtectedID("dotsync")
	if err == nil {
		return id
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return ContentHash([]byte("dotsync." + host))
}
