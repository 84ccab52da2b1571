package planner

import (
	"ofcd/internal/flowcodec"
	"ofcd/internal/model"
)

// unify collapses groups of flows that share an ingress port and VLAN match
// but differ only in destination MAC into a single dst_mac-omitted,
// priority-minus-5 rule, provided every member's action list is identical.
// This is the pass that turns N per-host rules on one ingress port into a
// single MAC-wildcard rule once every host gets the same actions.
func unify(flows []model.Flow) []model.Flow {
	groups := make(map[string][]int)
	var order []string
	for i, f := range flows {
		key := groupKey(f)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	result := make([]model.Flow, 0, len(flows))
	for _, key := range order {
		idxs := groups[key]
		if len(idxs) < 2 {
			result = append(result, flows[idxs[0]])
			continue
		}
		first := flows[idxs[0]]
		sameActions := true
		for _, i := range idxs[1:] {
			if !flowcodec.ActionsEqual(flows[i].Actions, first.Actions) {
				sameActions = false
				break
			}
		}
		if !sameActions {
			for _, i := range idxs {
				result = append(result, flows[i])
			}
			continue
		}
		collapsed := first
		collapsed.DstMAC = nil
		collapsed.Priority = first.Priority - 5
		result = append(result, collapsed)
	}
	return result
}

func groupKey(f model.Flow) string {
	vlan := "None"
	if f.VLANID != nil {
		vlan = *f.VLANID
	}
	return vlan + ":" + f.IngressPort
}
