package planner

import "ofcd/internal/model"

// ValidateTopology applies the structural checks to a reconciliation
// group: anchor is the net the group is organized around (the bind target,
// or the net itself when unbound); ports is the union of every net's ports
// in the group. skip is true when the group has fewer than two ports —
// informational only, the caller still runs Compute and the diff, which
// will simply produce and keep no flows.
func ValidateTopology(anchor model.Network, ports []model.Port, opts Options) (skip bool, err error) {
	if len(ports) < 2 {
		return true, nil
	}
	switch anchor.Type {
	case model.NetPTP:
		if len(ports) > 2 {
			return false, topologyErrorf("'ptp' type network cannot connect %d interfaces, only 2", len(ports))
		}
	case model.NetData:
		if len(ports) > 2 && opts.SameVLANPolicy {
			if err := ValidatePortMix(ports, anchor.VLAN); err != nil {
				return false, err
			}
		}
	default:
		return false, topologyErrorf("only ptp and data networks are supported for openflow")
	}
	return false, nil
}

// ValidatePortMix enforces the same-VLAN policy's port-kind constraint for
// a data network with more than two ports: every port must agree on
// whether it is "tagged" or "untagged", where the meaning of tagged varies
// by port kind (external ports compare their own vlan against netVLAN;
// PF/VFnotShared ports are untagged by definition; VF ports are tagged by
// definition). The check runs over the full port set of the
// reconciliation group, not any single net's ports.
func ValidatePortMix(ports []model.Port, netVLAN *int) error {
	var tagged *bool
	setTagged := func(v bool, mismatchText string) error {
		if tagged == nil {
			tagged = &v
			return nil
		}
		if *tagged != v {
			return topologyErrorf("%s", mismatchText)
		}
		return nil
	}

	for _, port := range ports {
		switch {
		case port.Type == model.PortTypeExternal:
			if port.VLAN != nil {
				if !intPtrEqual(port.VLAN, netVLAN) {
					return topologyErrorf(
						"External port vlan-tag and net vlan-tag must be the same when flag 'of_controller_nets_with_same_vlan' is True")
				}
				if err := setTagged(true,
					"Passthrough and external port vlan-tagged cannot be connected when flag 'of_controller_nets_with_same_vlan' is True"); err != nil {
					return err
				}
			} else {
				if err := setTagged(false,
					"SR-IOV and external port not vlan-tagged cannot be connected when flag 'of_controller_nets_with_same_vlan' is True"); err != nil {
					return err
				}
			}
		case port.Model == model.ModelPF || port.Model == model.ModelVFNotShared:
			if err := setTagged(false,
				"Passthrough and SR-IOV ports cannot be connected when flag 'of_controller_nets_with_same_vlan' is True"); err != nil {
				return err
			}
		case port.Model == model.ModelVF:
			if err := setTagged(true,
				"Passthrough and SR-IOV ports cannot be connected when flag 'of_controller_nets_with_same_vlan' is True"); err != nil {
				return err
			}
		}
	}
	return nil
}
