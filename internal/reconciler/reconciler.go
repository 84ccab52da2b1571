// Package reconciler drives one network (or bound group of networks)
// toward the flow set internal/planner computes for it: it reads the
// declarative nets/ports state from the store, diffs the planner's desired
// flows against what the store and the OFC controller already know, issues
// the minimal set of create/delete calls against the driver, and writes the
// result back to both the store and the OFC's health row.
//
// The shape is: read desired state, read actual state, diff, fix up what's
// missing, log every action taken.
package reconciler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"ofcd/internal/errtext"
	"ofcd/internal/flowcodec"
	"ofcd/internal/model"
	"ofcd/internal/ofcdriver"
	"ofcd/internal/planner"
	"ofcd/internal/store"
)

// Config toggles the policy-sensitive and test-mode behavior of a
// reconciliation pass.
type Config struct {
	// SameVLANPolicy enables the planner's same-VLAN port-mix and
	// single-output-VLAN-per-broadcast-flow constraints.
	SameVLANPolicy bool
	// TestMode short-circuits driver mutations that would otherwise reach
	// a real controller: the port-validity pre-check is skipped and
	// ClearAll does not call the driver.
	TestMode bool
}

// Result reports what a reconciliation pass did, for the worker loop to log,
// broadcast on the event hub, and fold into metrics.
type Result struct {
	Created int
	Deleted int
	// Status is the OFC health value this pass wrote ("" when the pass
	// aborted on a store or encode error before writing any status).
	Status string
}

// Reconciler owns one OFC's store handle, driver handle and policy
// configuration. One instance is created per worker.Worker.
type Reconciler struct {
	DB      *sql.DB
	Driver  ofcdriver.Driver
	OFCUUID string
	Config  Config
	Logger  *log.Logger
}

func (r *Reconciler) logf(format string, args ...interface{}) {
	if r.Logger == nil {
		log.Printf(format, args...)
		return
	}
	r.Logger.Printf(format, args...)
}

// UpdateNet reconciles the bound group a single network belongs to: it
// computes the group's desired flow set, diffs it against what the store
// and the controller hold, and applies the minimal create/delete set.
func (r *Reconciler) UpdateNet(ctx context.Context, netID string) (Result, error) {
	var group []model.Network
	var anchorID string
	net, err := store.LoadNet(r.DB, netID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Net deleted since the task was enqueued. The pass still runs
		// against an empty group so flows orphaned by the delete (net_id
		// set NULL by the foreign key) get purged.
		r.logf("[reconciler %s] net %s no longer exists, purging orphaned flows", r.OFCUUID, netID)
	case err != nil:
		return Result{}, err
	default:
		anchorID = net.UUID
		if net.BindNet != nil {
			anchorID = *net.BindNet
		}
		group, err = store.LoadBindGroup(r.DB, anchorID)
		if err != nil {
			return Result{}, err
		}
	}

	group, totalPorts, err := r.populatePorts(group)
	if err != nil {
		return Result{}, err
	}

	var anchor *model.Network
	for i := range group {
		if group[i].UUID == anchorID {
			anchor = &group[i]
			break
		}
	}

	allPorts := make([]model.Port, 0, totalPorts)
	netIDs := make([]string, 0, len(group))
	for _, n := range group {
		allPorts = append(allPorts, n.Ports...)
		netIDs = append(netIDs, n.UUID)
	}

	opts := planner.Options{SameVLANPolicy: r.Config.SameVLANPolicy}
	if anchor != nil {
		skip, err := planner.ValidateTopology(*anchor, allPorts, opts)
		if err != nil {
			r.setStatus(store.StatusError, err)
			return Result{Status: store.StatusError}, err
		}
		if skip {
			// Under two ports there is nothing to program, but the diff
			// below still runs so flows left over from a larger topology
			// get torn down.
			r.logf("[reconciler %s] net %s: bind group has fewer than two ports, nothing to program", r.OFCUUID, netID)
		}
	}

	var precheckErr error
	if !r.Config.TestMode {
		known := make(map[string]bool)
		opts.PortKnown = func(sp string) bool {
			if precheckErr != nil {
				return false
			}
			if v, ok := known[sp]; ok {
				return v
			}
			ok, err := r.Driver.PortKnown(ctx, sp)
			if err != nil {
				precheckErr = err
				return false
			}
			known[sp] = ok
			return ok
		}
	}

	desired, err := planner.Compute(group, opts)
	if err != nil {
		if precheckErr != nil {
			wrapped := &ofcdriver.OfcError{Op: "port-known", Err: precheckErr}
			r.setStatus(store.StatusError, wrapped)
			return Result{Status: store.StatusError}, wrapped
		}
		r.setStatus(store.StatusError, err)
		return Result{Status: store.StatusError}, err
	}

	storedFlows, err := store.LoadFlowsForGroup(r.DB, netIDs)
	if err != nil {
		return Result{}, err
	}

	ofRules, err := r.Driver.GetOfRules(ctx)
	if err != nil {
		wrapped := fmt.Errorf("get-of-rules: %w", err)
		r.setStatus(store.StatusError, wrapped)
		return Result{Status: store.StatusError}, wrapped
	}

	decoded := make([]model.Flow, len(storedFlows))
	decodeOK := make([]bool, len(storedFlows))
	kept := make([]bool, len(storedFlows))
	usedNames := make(map[string]bool, len(storedFlows)+len(ofRules))
	for i, sf := range storedFlows {
		// Undecodable rows stay delete candidates; their name is still
		// reserved so a fresh flow cannot collide with the row before the
		// delete pass removes it.
		usedNames[sf.Name] = true
		f, err := flowcodec.Decode(sf)
		if err != nil {
			r.logf("[reconciler %s] net %s: undecodable stored flow %q: %v", r.OFCUUID, netID, sf.Name, err)
			continue
		}
		f.Name = sf.Name
		decoded[i] = f
		decodeOK[i] = true
	}
	for name := range ofRules {
		usedNames[name] = true
	}

	result := Result{}

	for _, flow := range desired {
		matched := -1
		for i, d := range decoded {
			if kept[i] || !decodeOK[i] {
				continue
			}
			if flowcodec.Equal(flow, d) {
				matched = i
				break
			}
		}
		if matched >= 0 {
			kept[matched] = true
			continue
		}

		name := nextName(netID, usedNames)
		flow.Name = name
		if err := r.Driver.NewFlow(ctx, name, flow); err != nil {
			wrapped := fmt.Errorf("new-flow %s: %w", name, err)
			r.setStatus(store.StatusError, wrapped)
			result.Status = store.StatusError
			return result, wrapped
		}
		encoded, err := flowcodec.Encode(flow)
		if err != nil {
			return result, err
		}
		if err := store.InsertFlow(r.DB, encoded); err != nil {
			return result, err
		}
		usedNames[name] = true
		result.Created++
	}

	for i, sf := range storedFlows {
		if kept[i] {
			if _, onController := ofRules[sf.Name]; !onController {
				// Controller lost a rule the store still wants: resync by
				// re-pushing it rather than treating it as deleted.
				if err := r.Driver.NewFlow(ctx, sf.Name, decoded[i]); err != nil {
					wrapped := fmt.Errorf("resync flow %s: %w", sf.Name, err)
					r.setStatus(store.StatusError, wrapped)
					result.Status = store.StatusError
					return result, wrapped
				}
			}
			continue
		}
		if _, onController := ofRules[sf.Name]; onController {
			if err := r.Driver.DelFlow(ctx, sf.Name); err != nil {
				r.logf("[reconciler %s] net %s: del_flow %q failed, leaving store row for retry: %v", r.OFCUUID, netID, sf.Name, err)
				continue
			}
		}
		if err := store.DeleteFlowByName(r.DB, sf.Name); err != nil {
			r.logf("[reconciler %s] net %s: store delete of flow %q failed: %v", r.OFCUUID, netID, sf.Name, err)
			continue
		}
		result.Deleted++
	}

	result.Status = store.StatusActive
	r.setStatus(store.StatusActive, nil)
	return result, nil
}

// ClearAll wipes every flow from both the controller (real calls skipped
// in test mode) and the of_flows table.
func (r *Reconciler) ClearAll(ctx context.Context) error {
	if !r.Config.TestMode {
		if err := r.Driver.ClearAllFlows(ctx); err != nil {
			wrapped := fmt.Errorf("clear-all-flows: %w", err)
			r.setStatus(store.StatusError, wrapped)
			return wrapped
		}
	}
	if err := store.DeleteAllFlowsForNets(r.DB, nil); err != nil {
		return err
	}
	r.setStatus(store.StatusActive, nil)
	return nil
}

// populatePorts fills in Ports for every net in group — active ports only,
// plus the synthetic external port for openflow providers — returning the
// updated slice and the group's total port count. Admin-down nets
// contribute no ports.
func (r *Reconciler) populatePorts(group []model.Network) ([]model.Network, int, error) {
	total := 0
	out := make([]model.Network, len(group))
	for i, n := range group {
		if !n.AdminStateUp {
			out[i] = n
			out[i].Ports = nil
			continue
		}
		ports, err := store.LoadActivePorts(r.DB, n.UUID)
		if err != nil {
			return nil, 0, err
		}
		if n.HasOpenflowProvider() {
			ext, err := model.SyntheticExternalPort(n)
			if err != nil {
				return nil, 0, &planner.TopologyError{Reason: err.Error()}
			}
			ports = append(ports, ext)
		}
		n.Ports = ports
		out[i] = n
		total += len(ports)
	}
	return out, total, nil
}

// nextName picks the smallest non-negative k such that "<netID>.<k>" is
// absent from used.
func nextName(netID string, used map[string]bool) string {
	for k := 0; ; k++ {
		name := fmt.Sprintf("%s.%d", netID, k)
		if !used[name] {
			return name
		}
	}
}

func (r *Reconciler) setStatus(status string, err error) {
	msg := ""
	if err != nil {
		msg = errtext.Elide(err.Error(), errtext.DBLimit)
	}
	if setErr := store.SetOFCStatus(r.DB, r.OFCUUID, status, msg); setErr != nil {
		r.logf("[reconciler %s] failed to record OFC status %s: %v", r.OFCUUID, status, setErr)
	}
}
