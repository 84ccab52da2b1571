// Package flowcodec converts between the worker's structured Flow
// representation and the store's textual "k=v,k=v" encoding of the action
// list, and implements the projection-based flow equality used throughout
// reconciliation.
package flowcodec

import (
	"fmt"
	"strconv"
	"strings"

	"ofcd/internal/model"
)

// ErrBadFormat is returned by Encode/Decode when a flow's actions cannot be
// represented in, or parsed from, the store's textual format.
type ErrBadFormat struct {
	Reason string
}

func (e *ErrBadFormat) Error() string {
	return "bad flow format: " + e.Reason
}

func badFormat(format string, args ...interface{}) error {
	return &ErrBadFormat{Reason: fmt.Sprintf(format, args...)}
}

// StoredFlow is the row shape the store persists: identical to model.Flow
// except Actions has already been collapsed to its comma-joined string.
type StoredFlow struct {
	Name        string
	NetID       string
	Priority    int
	IngressPort string
	VLANID      *string
	DstMAC      *string
	SrcMAC      *string
	Actions     string
}

// Encode renders a Flow's action list as "k=v,k=v,...". A VLAN-strip
// action renders as the literal "None".
func Encode(f model.Flow) (StoredFlow, error) {
	if f.Actions == nil {
		return StoredFlow{}, badFormat("flow has no actions")
	}
	parts := make([]string, 0, len(f.Actions))
	for _, a := range f.Actions {
		switch action := a.(type) {
		case model.VlanSet:
			if action.VLAN == nil {
				parts = append(parts, "vlan=None")
			} else {
				parts = append(parts, fmt.Sprintf("vlan=%d", *action.VLAN))
			}
		case model.Out:
			parts = append(parts, "out="+action.SwitchPort)
		default:
			return StoredFlow{}, badFormat("unexpected action type %T", a)
		}
	}
	return StoredFlow{
		Name:        f.Name,
		NetID:       f.NetID,
		Priority:    f.Priority,
		IngressPort: f.IngressPort,
		VLANID:      f.VLANID,
		DstMAC:      f.DstMAC,
		SrcMAC:      f.SrcMAC,
		Actions:     strings.Join(parts, ","),
	}, nil
}

// Decode parses a StoredFlow's textual Actions back into model.Flow,
// inverting Encode. Malformed input fails with ErrBadFormat.
func Decode(sf StoredFlow) (model.Flow, error) {
	if sf.Actions == "" {
		return model.Flow{}, badFormat("actions field is empty")
	}
	var actions []model.Action
	for _, item := range strings.Split(sf.Actions, ",") {
		kv := strings.SplitN(item, "=", 2)
		if len(kv) != 2 {
			return model.Flow{}, badFormat("expected key=value, got %q", item)
		}
		key := strings.ToLower(strings.TrimSpace(kv[0]))
		val := strings.TrimSpace(kv[1])
		switch key {
		case "vlan":
			lower := strings.ToLower(val)
			if lower == "none" || lower == "strip" {
				actions = append(actions, model.VlanSet{VLAN: nil})
				continue
			}
			n, err := strconv.Atoi(val)
			if err != nil {
				return model.Flow{}, badFormat("expected integer after vlan=, got %q", val)
			}
			actions = append(actions, model.VlanSet{VLAN: &n})
		case "out":
			actions = append(actions, model.Out{SwitchPort: val})
		default:
			return model.Flow{}, badFormat("unexpected key %q in actions", kv[0])
		}
	}
	return model.Flow{
		Name:        sf.Name,
		NetID:       sf.NetID,
		Priority:    sf.Priority,
		IngressPort: sf.IngressPort,
		VLANID:      sf.VLANID,
		DstMAC:      sf.DstMAC,
		SrcMAC:      sf.SrcMAC,
		Actions:     actions,
	}, nil
}
