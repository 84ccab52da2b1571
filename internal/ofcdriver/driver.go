// Package ofcdriver defines the worker's contract with an OpenFlow
// controller backend and a thin HTTP implementation of it. Other backends
// (a different controller's REST dialect) implement the same Driver
// interface; the reconciler never depends on the concrete type.
package ofcdriver

import (
	"context"
	"fmt"

	"ofcd/internal/model"
)

// OfcError wraps any failure the driver surfaces — a non-2xx response, a
// transport error, a malformed payload.
type OfcError struct {
	Op  string
	Err error
}

func (e *OfcError) Error() string { return fmt.Sprintf("ofc: %s: %v", e.Op, e.Err) }
func (e *OfcError) Unwrap() error { return e.Err }

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &OfcError{Op: op, Err: err}
}

// Driver is the interface the worker consumes; it never reaches for a
// concrete controller client.
type Driver interface {
	// PortKnown reports whether switchPort is registered with the
	// controller (the pp2ofi membership check).
	PortKnown(ctx context.Context, switchPort string) (bool, error)

	// GetOfRules returns the names of the controller's currently installed
	// flows, as a set keyed by name.
	GetOfRules(ctx context.Context) (map[string]struct{}, error)

	// NewFlow creates or overwrites a flow by name.
	NewFlow(ctx context.Context, name string, f model.Flow) error

	// DelFlow removes a flow by name. Deleting a name the controller does
	// not have is not an error.
	DelFlow(ctx context.Context, name string) error

	// ClearAllFlows removes every flow the controller knows about.
	ClearAllFlows(ctx context.Context) error
}
