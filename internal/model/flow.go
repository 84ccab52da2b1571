package model

import (
	"fmt"
	"strings"
)

// Action is one entry in a Flow's action list. The two concrete
// implementations are VlanSet and Out.
type Action interface {
	isAction()
}

// VlanSet pushes or rewrites the 802.1Q tag. A nil VLAN strips it.
type VlanSet struct {
	VLAN *int
}

func (VlanSet) isAction() {}

// Out forwards the packet out SwitchPort.
type Out struct {
	SwitchPort string
}

func (Out) isAction() {}

// Flow is a single match/action OpenFlow rule, in the worker's in-memory
// representation. Name is assigned by the reconciler, not the planner.
type Flow struct {
	Name        string
	NetID       string
	Priority    int
	IngressPort string
	VLANID      *string // match field; string-typed per the store's textual convention
	DstMAC      *string
	SrcMAC      *string
	Actions     []Action
}

// ExternalPortUUID is the fake uuid assigned to a synthesized external
// port for network net.
func ExternalPortUUID(netUUID string) string {
	return netUUID + ".1"
}

// ParseOpenflowProvider decodes a "provider" string of the grammar
// openflow:<sp>(:vlan)?. ok is false when provider does not carry the
// openflow: prefix at all (i.e. it is not meant to be parsed here).
// A malformed provider that does carry the prefix returns a non-nil error.
func ParseOpenflowProvider(provider string, netVLAN *int) (switchPort string, vlan *int, ok bool, err error) {
	const prefix = "openflow:"
	if !strings.HasPrefix(provider, prefix) {
		return "", nil, false, nil
	}
	rest := strings.TrimPrefix(provider, prefix)
	if rest == "" {
		return "", nil, true, fmt.Errorf("malformed openflow provider %q: missing switch port", provider)
	}
	if strings.HasSuffix(rest, ":vlan") {
		sp := strings.TrimSuffix(rest, ":vlan")
		if sp == "" {
			return "", nil, true, fmt.Errorf("malformed openflow provider %q: missing switch port", provider)
		}
		return sp, netVLAN, true, nil
	}
	if strings.Contains(rest, ":") {
		return "", nil, true, fmt.Errorf("malformed openflow provider %q: unrecognized suffix", provider)
	}
	return rest, nil, true, nil
}

// SyntheticExternalPort builds the synthesized external port for a network
// whose Provider begins "openflow:".
func SyntheticExternalPort(net Network) (Port, error) {
	sp, vlan, ok, err := ParseOpenflowProvider(*net.Provider, net.VLAN)
	if err != nil {
		return Port{}, err
	}
	if !ok {
		return Port{}, fmt.Errorf("network %s has no openflow provider", net.UUID)
	}
	return Port{
		UUID:       ExternalPortUUID(net.UUID),
		NetID:      net.UUID,
		SwitchPort: sp,
		VLAN:       vlan,
		MAC:        nil,
		Type:       PortTypeExternal,
	}, nil
}

// IntPtr is a small convenience constructor used throughout tests and the
// planner where a literal *int is needed.
func IntPtr(v int) *int { return &v }

// StrPtr is the string equivalent of IntPtr.
func StrPtr(v string) *string { return &v }
