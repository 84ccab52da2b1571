// Package model defines the declarative network/port/flow shapes the
// reconciliation worker reads from the store and feeds to the planner.
package model

import (
	"strconv"
	"strings"
)

// NetType is the kind of virtual network the worker knows how to program.
type NetType string

const (
	NetPTP  NetType = "ptp"
	NetData NetType = "data"
)

// PortTypeExternal marks the synthetic external port added for
// "openflow:" providers.
const PortTypeExternal = "external"

// Port models, used by the same-VLAN policy validation in the planner.
const (
	ModelPF          = "PF"
	ModelVF          = "VF"
	ModelVFNotShared = "VFnotShared"
)

// Network is a virtual network row plus the ports bound to it.
type Network struct {
	UUID         string
	Type         NetType
	AdminStateUp bool
	VLAN         *int
	Provider     *string
	BindNet      *string
	BindType     *string

	// Ports is populated by the reconciler before the planner runs; it is
	// not part of the stored row.
	Ports []Port
}

// BindVLAN returns the integer tail of a "vlan:<n>" BindType, if present.
func (n Network) BindVLAN() (int, bool) {
	if n.BindType == nil || !strings.HasPrefix(*n.BindType, "vlan:") {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimPrefix(*n.BindType, "vlan:"))
	if err != nil {
		return 0, false
	}
	return v, true
}

// HasOpenflowProvider reports whether Provider begins "openflow:".
func (n Network) HasOpenflowProvider() bool {
	return n.Provider != nil && strings.HasPrefix(*n.Provider, "openflow:")
}

// Port is a participating interface on a Network.
type Port struct {
	UUID       string
	NetID      string
	SwitchPort string
	VLAN       *int
	MAC        *string
	Type       string
	Model      string
}
