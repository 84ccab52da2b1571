// Package planner implements the pure flow-computation algorithm: given a
// set of bound networks (already populated with their participating
// ports), it derives the canonical set of OpenFlow rules needed to realize
// unicast and broadcast forwarding across them.
//
// Compute never touches the store or the OFC driver. It is a pure
// function over its inputs, which is what makes the reconciler's
// idempotence checkable in isolation.
package planner

import (
	"fmt"
	"sort"
	"strconv"

	"ofcd/internal/flowcodec"
	"ofcd/internal/model"
)

// TopologyError reports a structural problem with the requested network
// group that the planner (or the caller, for the checks it delegates) could
// not resolve — an unknown switch port, a ptp net with too many ports, or a
// same-VLAN policy violation.
type TopologyError struct {
	Reason string
}

func (e *TopologyError) Error() string { return e.Reason }

func topologyErrorf(format string, args ...interface{}) error {
	return &TopologyError{Reason: fmt.Sprintf(format, args...)}
}

// Options configures policy-sensitive parts of the algorithm.
type Options struct {
	// SameVLANPolicy enables the same-VLAN constraints: a data
	// network's ports must not mix tagged/untagged kinds, and a broadcast
	// flow must not carry more than one distinct output VLAN.
	SameVLANPolicy bool

	// PortKnown reports whether a switch port name is recognized by the
	// OFC driver. A nil PortKnown skips the pre-check entirely (used by
	// TestMode).
	PortKnown func(switchPort string) bool
}

// Compute derives the canonical flow set for a bound group of networks.
// Every network in nets must already have Ports populated (including any
// synthesized external port).
func Compute(nets []model.Network, opts Options) ([]model.Flow, error) {
	if err := checkPortsKnown(nets, opts.PortKnown); err != nil {
		return nil, err
	}

	nbPorts := 0
	for _, n := range nets {
		nbPorts += len(n.Ports)
	}

	var newFlows []model.Flow
	broadcasts := newBroadcastSet()

	for _, src := range nets {
		netID := src.UUID
		for _, dst := range nets {
			priority, vlanNetIn, vlanNetOut, ok := edgePriority(src, dst)
			if !ok {
				continue
			}

			for _, srcPort := range src.Ports {
				vlanIn, doubleTag := effectiveVLAN(vlanNetIn, srcPort.VLAN)
				if doubleTag {
					continue
				}

				bflow := broadcasts.get(srcPort, vlanIn, netID, priority)

				for _, dstPort := range dst.Ports {
					vlanOut, doubleTag := effectiveVLAN(vlanNetOut, dstPort.VLAN)
					if doubleTag {
						continue
					}
					if srcPort.SwitchPort == dstPort.SwitchPort && intPtrEqual(vlanIn, vlanOut) {
						continue
					}

					flow := unicastFlow(netID, priority, srcPort, dstPort, vlanIn, vlanOut, nbPorts)
					if flowcodec.FindEqual(flow, newFlows) < 0 {
						newFlows = append(newFlows, flow)
					}

					if nbPorts > 2 {
						bflow.add(vlanOut, dstPort.SwitchPort)
					}
				}
			}
		}
	}

	finalized, err := broadcasts.finalize(opts.SameVLANPolicy)
	if err != nil {
		return nil, err
	}
	for _, bf := range finalized {
		if flowcodec.FindEqual(bf, newFlows) < 0 {
			newFlows = append(newFlows, bf)
		}
	}

	unified := unify(newFlows)
	sort.Slice(unified, func(i, j int) bool { return flowSortKey(unified[i]) < flowSortKey(unified[j]) })
	return unified, nil
}

// checkPortsKnown rejects any port whose switch_port name is not recognized
// by the OFC driver. A nil PortKnown (test mode) skips the check.
func checkPortsKnown(nets []model.Network, known func(string) bool) error {
	if known == nil {
		return nil
	}
	for _, n := range nets {
		for _, p := range n.Ports {
			if !known(p.SwitchPort) {
				return topologyErrorf("switch port name %q is not valid for the openflow controller", p.SwitchPort)
			}
		}
	}
	return nil
}

// edgePriority classifies the (src, dst) network pair — same net, src
// binds to dst, or dst binds to src — returning the rule priority and any
// VLAN translation the binding imposes. ok is false when src and dst are
// unrelated.
func edgePriority(src, dst model.Network) (priority int, vlanNetIn, vlanNetOut *int, ok bool) {
	switch {
	case src.UUID == dst.UUID:
		return 1000, nil, nil, true
	case src.BindNet != nil && *src.BindNet == dst.UUID:
		if v, has := src.BindVLAN(); has {
			vlanNetOut = &v
		}
		return 1100, nil, vlanNetOut, true
	case dst.BindNet != nil && *dst.BindNet == src.UUID:
		if v, has := dst.BindVLAN(); has {
			vlanNetIn = &v
		}
		return 1100, vlanNetIn, nil, true
	default:
		return 0, nil, nil, false
	}
}

// effectiveVLAN resolves the VLAN a port sees, combining a binding-imposed
// translation with the port's own tag. double is true when both are set;
// stacked-VLAN rules are not emitted.
func effectiveVLAN(fromBinding, fromPort *int) (vlan *int, double bool) {
	if fromBinding == nil {
		return fromPort, false
	}
	if fromPort != nil {
		return nil, true
	}
	return fromBinding, false
}

// unicastFlow builds the per-(srcPort,dstPort) rule. mac matching is
// dropped — in favor of a lower-priority wildcard — when the destination
// has no MAC or the binding group is a strict point-to-point pair.
func unicastFlow(netID string, priority int, srcPort, dstPort model.Port, vlanIn, vlanOut *int, nbPorts int) model.Flow {
	flow := model.Flow{
		NetID:       netID,
		Priority:    priority,
		IngressPort: srcPort.SwitchPort,
	}
	if vlanIn != nil {
		s := strconv.Itoa(*vlanIn)
		flow.VLANID = &s
	}
	if dstPort.MAC == nil || nbPorts == 2 {
		flow.Priority = priority - 5
	} else {
		mac := *dstPort.MAC
		flow.DstMAC = &mac
	}

	if vlanOut == nil {
		if vlanIn != nil {
			flow.Actions = append(flow.Actions, model.VlanSet{VLAN: nil})
		}
	} else {
		v := *vlanOut
		flow.Actions = append(flow.Actions, model.VlanSet{VLAN: &v})
	}
	flow.Actions = append(flow.Actions, model.Out{SwitchPort: dstPort.SwitchPort})
	return flow
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// flowSortKey gives Compute's output a canonical, input-order-independent
// ordering so equal flow sets compare equal regardless of how the caller
// ordered networks and ports.
func flowSortKey(f model.Flow) string {
	vlan := "-"
	if f.VLANID != nil {
		vlan = *f.VLANID
	}
	mac := "-"
	if f.DstMAC != nil {
		mac = *f.DstMAC
	}
	key := fmt.Sprintf("%s|%05d|%s|%s|%s", f.NetID, f.Priority, f.IngressPort, vlan, mac)
	for _, a := range f.Actions {
		switch v := a.(type) {
		case model.VlanSet:
			if v.VLAN == nil {
				key += "|vlan=None"
			} else {
				key += fmt.Sprintf("|vlan=%d", *v.VLAN)
			}
		case model.Out:
			key += "|out=" + v.SwitchPort
		}
	}
	return key
}
