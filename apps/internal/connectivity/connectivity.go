// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package connectivity answers "is the network worth trying" before token
// refreshes, so an offline device fails fast instead of timing out.
package connectivity

import "net"

// Probe reports device connectivity from the state of the local interfaces.
type Probe struct{}

// New is the constructor for Probe.
func New() Probe {
	return Probe{}
}

// IsAvailable reports whether at least one non-loopback interface is up with
// an address assigned. A true return is no promise the authority is
// reachable, only that a network call is not doomed from the start.
func (Probe) IsAvailable() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		return true
	}
	return false
}
