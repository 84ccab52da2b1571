package reconciler

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"ofcd/internal/model"
	"ofcd/internal/ofcdriver"
	"ofcd/internal/store"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := store.EnsureSchema(db); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return db
}

func insertNet(t *testing.T, db *sql.DB, n model.Network) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO nets (uuid, type, admin_state_up, vlan, provider, bind_net, bind_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, n.UUID, n.Type, boolToInt(n.AdminStateUp), n.VLAN, n.Provider, n.BindNet, n.BindType)
	if err != nil {
		t.Fatalf("insert net: %v", err)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func insertPort(t *testing.T, db *sql.DB, p model.Port) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO ports (uuid, net_id, switch_port, vlan, mac, type, model, admin_state_up, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, 'ACTIVE')`, p.UUID, p.NetID, p.SwitchPort, p.VLAN, p.MAC, p.Type, p.Model)
	if err != nil {
		t.Fatalf("insert port: %v", err)
	}
}

// A two-port ptp network converges to two unicast flows, both pushed to
// the driver and persisted in the store, and OFC status goes ACTIVE.
func TestUpdateNetTwoPortPTPCreatesFlows(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	insertNet(t, db, model.Network{UUID: "n1", Type: model.NetPTP, AdminStateUp: true})
	insertPort(t, db, model.Port{UUID: "p1", NetID: "n1", SwitchPort: "s1"})
	insertPort(t, db, model.Port{UUID: "p2", NetID: "n1", SwitchPort: "s2"})

	driver := ofcdriver.NewFake("s1", "s2")
	r := &Reconciler{DB: db, Driver: driver, OFCUUID: "ofc1"}

	res, err := r.UpdateNet(context.Background(), "n1")
	if err != nil {
		t.Fatalf("UpdateNet: %v", err)
	}
	if res.Created != 2 || res.Deleted != 0 {
		t.Fatalf("want 2 created 0 deleted, got %+v", res)
	}
	if res.Status != store.StatusActive {
		t.Fatalf("want ACTIVE status, got %q", res.Status)
	}
	if driver.NewFlowCall != 2 {
		t.Fatalf("want 2 NewFlow calls, got %d", driver.NewFlowCall)
	}

	flows, err := store.LoadFlowsForGroup(db, []string{"n1"})
	if err != nil {
		t.Fatalf("LoadFlowsForGroup: %v", err)
	}
	if len(flows) != 2 {
		t.Fatalf("want 2 stored flows, got %d: %+v", len(flows), flows)
	}
}

// A second reconciliation of unchanged state is a no-op —
// no new driver calls, no store mutations.
func TestUpdateNetIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	insertNet(t, db, model.Network{UUID: "n1", Type: model.NetPTP, AdminStateUp: true})
	insertPort(t, db, model.Port{UUID: "p1", NetID: "n1", SwitchPort: "s1"})
	insertPort(t, db, model.Port{UUID: "p2", NetID: "n1", SwitchPort: "s2"})

	driver := ofcdriver.NewFake("s1", "s2")
	r := &Reconciler{DB: db, Driver: driver, OFCUUID: "ofc1"}

	if _, err := r.UpdateNet(context.Background(), "n1"); err != nil {
		t.Fatalf("first UpdateNet: %v", err)
	}
	callsAfterFirst := driver.NewFlowCall

	res, err := r.UpdateNet(context.Background(), "n1")
	if err != nil {
		t.Fatalf("second UpdateNet: %v", err)
	}
	if res.Created != 0 || res.Deleted != 0 {
		t.Fatalf("want no-op second pass, got %+v", res)
	}
	if driver.NewFlowCall != callsAfterFirst {
		t.Fatalf("want no additional NewFlow calls, had %d now %d", callsAfterFirst, driver.NewFlowCall)
	}
}

// Removing a port causes the flows that referenced it to be deleted
// from both the driver and the store.
func TestUpdateNetDeletesFlowsForRemovedPort(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	insertNet(t, db, model.Network{UUID: "n1", Type: model.NetData, AdminStateUp: true})
	insertPort(t, db, model.Port{UUID: "p1", NetID: "n1", SwitchPort: "s1"})
	insertPort(t, db, model.Port{UUID: "p2", NetID: "n1", SwitchPort: "s2"})
	insertPort(t, db, model.Port{UUID: "p3", NetID: "n1", SwitchPort: "s3"})

	driver := ofcdriver.NewFake("s1", "s2", "s3")
	r := &Reconciler{DB: db, Driver: driver, OFCUUID: "ofc1"}

	if _, err := r.UpdateNet(context.Background(), "n1"); err != nil {
		t.Fatalf("first UpdateNet: %v", err)
	}

	if _, err := db.Exec(`UPDATE ports SET admin_state_up = 0 WHERE uuid = 'p3'`); err != nil {
		t.Fatalf("disable port: %v", err)
	}

	res, err := r.UpdateNet(context.Background(), "n1")
	if err != nil {
		t.Fatalf("second UpdateNet: %v", err)
	}
	if res.Deleted == 0 {
		t.Fatalf("want deletions after removing a port, got %+v", res)
	}

	flows, err := store.LoadFlowsForGroup(db, []string{"n1"})
	if err != nil {
		t.Fatalf("LoadFlowsForGroup: %v", err)
	}
	for _, f := range flows {
		if f.IngressPort == "s3" {
			t.Fatalf("flow for removed port s3 still present: %+v", f)
		}
	}
}

// A bind group with fewer than two total ports is not a TopologyError: the
// pass programs nothing, but still tears down flows left over from a
// previously larger topology.
func TestUpdateNetUnderTwoPortsProgramsNothing(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	insertNet(t, db, model.Network{UUID: "n1", Type: model.NetPTP, AdminStateUp: true})
	insertPort(t, db, model.Port{UUID: "p1", NetID: "n1", SwitchPort: "s1"})
	insertPort(t, db, model.Port{UUID: "p2", NetID: "n1", SwitchPort: "s2"})

	driver := ofcdriver.NewFake("s1", "s2")
	r := &Reconciler{DB: db, Driver: driver, OFCUUID: "ofc1"}

	if _, err := r.UpdateNet(context.Background(), "n1"); err != nil {
		t.Fatalf("first UpdateNet: %v", err)
	}

	if _, err := db.Exec(`UPDATE ports SET admin_state_up = 0 WHERE uuid = 'p2'`); err != nil {
		t.Fatalf("disable port: %v", err)
	}

	res, err := r.UpdateNet(context.Background(), "n1")
	if err != nil {
		t.Fatalf("second UpdateNet: %v", err)
	}
	if res.Created != 0 {
		t.Fatalf("want nothing created for under-populated group, got %+v", res)
	}
	if res.Deleted == 0 {
		t.Fatalf("want stale flows torn down, got %+v", res)
	}
	flows, err := store.LoadFlowsForGroup(db, []string{"n1"})
	if err != nil {
		t.Fatalf("LoadFlowsForGroup: %v", err)
	}
	if len(flows) != 0 {
		t.Fatalf("want no stored flows for a one-port group, got %+v", flows)
	}
}

// A ptp network with three ports is a TopologyError, and the OFC status
// is set to ERROR.
func TestUpdateNetPTPThreePortsIsTopologyError(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	insertNet(t, db, model.Network{UUID: "n1", Type: model.NetPTP, AdminStateUp: true})
	insertPort(t, db, model.Port{UUID: "p1", NetID: "n1", SwitchPort: "s1"})
	insertPort(t, db, model.Port{UUID: "p2", NetID: "n1", SwitchPort: "s2"})
	insertPort(t, db, model.Port{UUID: "p3", NetID: "n1", SwitchPort: "s3"})

	driver := ofcdriver.NewFake("s1", "s2", "s3")
	r := &Reconciler{DB: db, Driver: driver, OFCUUID: "ofc1"}

	_, err := r.UpdateNet(context.Background(), "n1")
	if err == nil {
		t.Fatalf("want TopologyError for 3-port ptp network")
	}

	var status string
	if scanErr := db.QueryRow(`SELECT status FROM ofcs WHERE uuid = 'ofc1'`).Scan(&status); scanErr != nil {
		t.Fatalf("query status: %v", scanErr)
	}
	if status != store.StatusError {
		t.Fatalf("want ERROR status, got %q", status)
	}
}

// When the controller has lost a rule the store believes is live, the
// reconciler re-pushes it via NewFlow rather than treating it as deleted.
func TestUpdateNetResyncsDriftedFlow(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	insertNet(t, db, model.Network{UUID: "n1", Type: model.NetPTP, AdminStateUp: true})
	insertPort(t, db, model.Port{UUID: "p1", NetID: "n1", SwitchPort: "s1"})
	insertPort(t, db, model.Port{UUID: "p2", NetID: "n1", SwitchPort: "s2"})

	driver := ofcdriver.NewFake("s1", "s2")
	r := &Reconciler{DB: db, Driver: driver, OFCUUID: "ofc1"}

	if _, err := r.UpdateNet(context.Background(), "n1"); err != nil {
		t.Fatalf("first UpdateNet: %v", err)
	}

	flows, err := store.LoadFlowsForGroup(db, []string{"n1"})
	if err != nil {
		t.Fatalf("LoadFlowsForGroup: %v", err)
	}
	if len(flows) == 0 {
		t.Fatalf("expected stored flows after first pass")
	}
	lostName := flows[0].Name
	if err := driver.DelFlow(context.Background(), lostName); err != nil {
		t.Fatalf("simulate controller drift: %v", err)
	}

	res, err := r.UpdateNet(context.Background(), "n1")
	if err != nil {
		t.Fatalf("second UpdateNet: %v", err)
	}
	if res.Created != 0 || res.Deleted != 0 {
		t.Fatalf("resync should not count as create or delete, got %+v", res)
	}
	if !driver.HasRule(lostName) {
		t.Fatalf("want drifted flow %q resynced to the controller", lostName)
	}

	flowsAfter, err := store.LoadFlowsForGroup(db, []string{"n1"})
	if err != nil {
		t.Fatalf("LoadFlowsForGroup: %v", err)
	}
	if len(flowsAfter) != len(flows) {
		t.Fatalf("resync should not change stored row count: before %d after %d", len(flows), len(flowsAfter))
	}
}

// An update-net task for a net deleted since enqueue still runs: the flows
// its deletion orphaned (net_id set NULL) are purged from both sides.
func TestUpdateNetPurgesOrphansOfDeletedNet(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	if _, err := db.Exec(`INSERT INTO of_flows (name, net_id, priority, ingress_port, actions)
		VALUES ('gone.0', NULL, 1000, 's1', 'out=s2')`); err != nil {
		t.Fatalf("insert orphan flow: %v", err)
	}

	driver := ofcdriver.NewFake("s1", "s2")
	if err := driver.NewFlow(context.Background(), "gone.0", model.Flow{Name: "gone.0"}); err != nil {
		t.Fatalf("seed controller rule: %v", err)
	}
	r := &Reconciler{DB: db, Driver: driver, OFCUUID: "ofc1"}

	res, err := r.UpdateNet(context.Background(), "gone")
	if err != nil {
		t.Fatalf("UpdateNet: %v", err)
	}
	if res.Deleted != 1 {
		t.Fatalf("want orphan deleted, got %+v", res)
	}
	if driver.HasRule("gone.0") {
		t.Fatalf("want orphan rule removed from controller")
	}
	flows, err := store.LoadFlowsForGroup(db, nil)
	if err != nil {
		t.Fatalf("LoadFlowsForGroup: %v", err)
	}
	if len(flows) != 0 {
		t.Fatalf("want orphan row purged, got %+v", flows)
	}
}

// nextName returns the smallest "<net>.<k>" absent from the used set (the
// names already present in store or controller), filling gaps first.
func TestNextNamePicksSmallestUnused(t *testing.T) {
	used := map[string]bool{"n1.0": true, "n1.1": true, "n1.3": true}
	got := nextName("n1", used)
	if got != "n1.2" {
		t.Fatalf("want n1.2, got %s", got)
	}
}

func TestClearAllRemovesEverything(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	insertNet(t, db, model.Network{UUID: "n1", Type: model.NetData, AdminStateUp: true})
	insertPort(t, db, model.Port{UUID: "p1", NetID: "n1", SwitchPort: "s1"})
	insertPort(t, db, model.Port{UUID: "p2", NetID: "n1", SwitchPort: "s2"})

	driver := ofcdriver.NewFake("s1", "s2")
	r := &Reconciler{DB: db, Driver: driver, OFCUUID: "ofc1"}

	if _, err := r.UpdateNet(context.Background(), "n1"); err != nil {
		t.Fatalf("UpdateNet: %v", err)
	}
	if err := r.ClearAll(context.Background()); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}

	flows, err := store.LoadFlowsForGroup(db, []string{"n1"})
	if err != nil {
		t.Fatalf("LoadFlowsForGroup: %v", err)
	}
	if len(flows) != 0 {
		t.Fatalf("want no stored flows after ClearAll, got %+v", flows)
	}
	rules, err := driver.GetOfRules(context.Background())
	if err != nil {
		t.Fatalf("GetOfRules: %v", err)
	}
	if len(rules) != 0 {
		t.Fatalf("want no controller rules after ClearAll, got %+v", rules)
	}
}

// ClearAll in TestMode must not touch the driver at all.
func TestClearAllTestModeSkipsDriver(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	driver := ofcdriver.NewFake()
	driver.ClearErr = sql.ErrConnDone // would fail if ClearAllFlows were called
	r := &Reconciler{DB: db, Driver: driver, OFCUUID: "ofc1", Config: Config{TestMode: true}}

	if err := r.ClearAll(context.Background()); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
}
