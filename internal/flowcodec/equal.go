package flowcodec

import "ofcd/internal/model"

// Equal compares two flows on the projection (priority, vlan, ingress_port,
// actions, dst_mac, src_mac, net_id) — everything except Name. Missing
// fields compare equal across sides.
func Equal(a, b model.Flow) bool {
	if a.Priority != b.Priority {
		return false
	}
	if a.IngressPort != b.IngressPort {
		return false
	}
	if a.NetID != b.NetID {
		return false
	}
	if !strPtrEqual(a.VLANID, b.VLANID) {
		return false
	}
	if !strPtrEqual(a.DstMAC, b.DstMAC) {
		return false
	}
	if !strPtrEqual(a.SrcMAC, b.SrcMAC) {
		return false
	}
	return actionsEqual(a.Actions, b.Actions)
}

// FindEqual returns the index of the first flow in candidates that is
// Equal to f, or -1 if none match.
func FindEqual(f model.Flow, candidates []model.Flow) int {
	for i, c := range candidates {
		if Equal(f, c) {
			return i
		}
	}
	return -1
}

// ActionsEqual reports whether two action lists are identical, including
// order. Used by the planner's unification pass, which compares only the
// action lists, not the other fields Equal also checks.
func ActionsEqual(a, b []model.Action) bool {
	return actionsEqual(a, b)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func actionsEqual(a, b []model.Action) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !actionEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func actionEqual(a, b model.Action) bool {
	switch av := a.(type) {
	case model.VlanSet:
		bv, ok := b.(model.VlanSet)
		return ok && intPtrEqual(av.VLAN, bv.VLAN)
	case model.Out:
		bv, ok := b.(model.Out)
		return ok && av.SwitchPort == bv.SwitchPort
	default:
		return false
	}
}
