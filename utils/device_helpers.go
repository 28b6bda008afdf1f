package utils

import (
	"fmt"

	"github.com/notargets/gocca"
)

// CreateDevice creates a compute device, preferring parallel backends and
// falling back to Serial so that the device code path always has a home.
func CreateDevice(verbose bool) *gocca.OCCADevice {
	backends := []string{
		`{"mode": "OpenMP"}`,
		`{"mode": "CUDA", "device_id": 0}`,
		`{"mode": "Serial"}`,
	}
	for _, props := range backends {
		device, err := gocca.NewDevice(props)
		if err == nil {
			if verbose {
				fmt.Printf("Created %s device\n", device.Mode())
			}
			return device
		}
	}
	panic("failed to create any compute device")
}
