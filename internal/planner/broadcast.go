package planner

import (
	"sort"
	"strconv"

	"ofcd/internal/model"
)

// broadcastOut is one pending (vlan, switch_port) output collected while
// enumerating edges into a given ingress port.
type broadcastOut struct {
	vlan *int
	port string
}

// pendingBroadcast accumulates the outputs a single ingress port needs to
// flood to while Compute walks the edge list. It is finalized once, after
// all edges have been visited, into a single Flow.
type pendingBroadcast struct {
	netID       string
	priority    int
	ingressPort string
	vlanID      *string // match field, mirrors the unicast flow's VLANID
	vlanIn      *int
	outs        []broadcastOut
	seen        map[string]bool
}

func (b *pendingBroadcast) add(vlanOut *int, port string) {
	key := port + "|"
	if vlanOut != nil {
		key += strconv.Itoa(*vlanOut)
	}
	if b.seen[key] {
		return
	}
	b.seen[key] = true
	b.outs = append(b.outs, broadcastOut{vlan: vlanOut, port: port})
}

// broadcastSet indexes pendingBroadcast accumulators by
// "<src_port_uuid>.<vlan_in>". A port participating in multiple binding
// edges at the same inbound VLAN accumulates into one shared flood flow.
type broadcastSet struct {
	order []string
	byKey map[string]*pendingBroadcast
}

func newBroadcastSet() *broadcastSet {
	return &broadcastSet{byKey: make(map[string]*pendingBroadcast)}
}

func (s *broadcastSet) get(srcPort model.Port, vlanIn *int, netID string, priority int) *pendingBroadcast {
	key := srcPort.UUID + "."
	if vlanIn != nil {
		key += strconv.Itoa(*vlanIn)
	} else {
		key += "None"
	}
	if b, ok := s.byKey[key]; ok {
		return b
	}
	b := &pendingBroadcast{
		netID:       netID,
		priority:    priority,
		ingressPort: srcPort.SwitchPort,
		vlanIn:      vlanIn,
		seen:        make(map[string]bool),
	}
	if vlanIn != nil {
		str := strconv.Itoa(*vlanIn)
		b.vlanID = &str
	}
	s.byKey[key] = b
	s.order = append(s.order, key)
	return b
}

// finalize turns every accumulator with at least one pending output into a
// broadcast Flow: outputs are sorted (untagged first, then by ascending
// VLAN, then by switch port) and adjacent identical VLAN tags are
// compressed into a single vlan-set action.
func (s *broadcastSet) finalize(sameVLANPolicy bool) ([]model.Flow, error) {
	var flows []model.Flow
	for _, key := range s.order {
		b := s.byKey[key]
		if len(b.outs) == 0 {
			continue
		}
		sort.SliceStable(b.outs, func(i, j int) bool {
			oi, oj := b.outs[i], b.outs[j]
			if (oi.vlan == nil) != (oj.vlan == nil) {
				return oi.vlan == nil
			}
			if oi.vlan != nil && *oi.vlan != *oj.vlan {
				return *oi.vlan < *oj.vlan
			}
			return oi.port < oj.port
		})

		var actions []model.Action
		// When the match already carries a VLAN tag, previous starts at the
		// sentinel 0 rather than the inbound tag, so a tagged packet always
		// gets an explicit vlan action before its first output.
		var previous *int
		if b.vlanID != nil {
			zero := 0
			previous = &zero
		}
		distinctVLANs := 0
		for _, out := range b.outs {
			if !intPtrEqual(out.vlan, previous) {
				var v *int
				if out.vlan != nil {
					cp := *out.vlan
					v = &cp
				}
				actions = append(actions, model.VlanSet{VLAN: v})
				previous = out.vlan
				distinctVLANs++
				if sameVLANPolicy && distinctVLANs > 1 {
					return nil, topologyErrorf(
						"broadcast flow on ingress port %q cannot carry more than one output vlan tag", b.ingressPort)
				}
			}
			actions = append(actions, model.Out{SwitchPort: out.port})
		}

		ff := "ff:ff:ff:ff:ff:ff"
		flows = append(flows, model.Flow{
			NetID:       b.netID,
			Priority:    b.priority,
			IngressPort: b.ingressPort,
			VLANID:      b.vlanID,
			DstMAC:      &ff,
			Actions:     actions,
		})
	}
	return flows, nil
}
