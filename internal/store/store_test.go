package store

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"ofcd/internal/flowcodec"
	"ofcd/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := EnsureSchema(db); err != nil {
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

func TestLoadNetRoundTrip(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	vlan := 100
	provider := "openflow:ext1:vlan"
	insertNet(t, db, model.Network{UUID: "n1", Type: model.NetData, AdminStateUp: true, VLAN: &vlan, Provider: &provider})

	got, err := LoadNet(db, "n1")
	if err != nil {
		t.Fatalf("LoadNet: %v", err)
	}
	if got.UUID != "n1" || got.Type != model.NetData || !got.AdminStateUp {
		t.Fatalf("unexpected net: %+v", got)
	}
	if got.VLAN == nil || *got.VLAN != 100 {
		t.Fatalf("unexpected vlan: %+v", got.VLAN)
	}
	if got.Provider == nil || *got.Provider != provider {
		t.Fatalf("unexpected provider: %+v", got.Provider)
	}
}

func TestLoadBindGroupIncludesBoundNets(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	insertNet(t, db, model.Network{UUID: "anchor", Type: model.NetPTP, AdminStateUp: true})
	bindType := "vlan:5"
	insertNet(t, db, model.Network{UUID: "bound", Type: model.NetPTP, AdminStateUp: true, BindNet: model.StrPtr("anchor"), BindType: &bindType})
	insertNet(t, db, model.Network{UUID: "unrelated", Type: model.NetData, AdminStateUp: true})

	group, err := LoadBindGroup(db, "anchor")
	if err != nil {
		t.Fatalf("LoadBindGroup: %v", err)
	}
	if len(group) != 2 {
		t.Fatalf("want 2 nets in group, got %d: %+v", len(group), group)
	}
}

func TestLoadActivePortsExcludesInactive(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	insertNet(t, db, model.Network{UUID: "n1", Type: model.NetData, AdminStateUp: true})
	insertPort(t, db, model.Port{UUID: "p1", NetID: "n1", SwitchPort: "s1"})
	if _, err := db.Exec(`INSERT INTO ports (uuid, net_id, switch_port, admin_state_up, status)
		VALUES ('p2', 'n1', 's2', 0, 'ACTIVE')`); err != nil {
		t.Fatalf("insert inactive port: %v", err)
	}

	ports, err := LoadActivePorts(db, "n1")
	if err != nil {
		t.Fatalf("LoadActivePorts: %v", err)
	}
	if len(ports) != 1 || ports[0].UUID != "p1" {
		t.Fatalf("want only active port p1, got %+v", ports)
	}
}

func TestFlowInsertLoadAndOrphanUnion(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	insertNet(t, db, model.Network{UUID: "n1", Type: model.NetData, AdminStateUp: true})
	if err := InsertFlow(db, flowcodec.StoredFlow{Name: "n1.1", NetID: "n1", Priority: 1000, IngressPort: "s1", Actions: "out=s2"}); err != nil {
		t.Fatalf("InsertFlow: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO of_flows (name, net_id, priority, ingress_port, actions) VALUES ('orphan.1', NULL, 1000, 's3', 'out=s4')`); err != nil {
		t.Fatalf("insert orphan flow: %v", err)
	}

	flows, err := LoadFlowsForGroup(db, []string{"n1"})
	if err != nil {
		t.Fatalf("LoadFlowsForGroup: %v", err)
	}
	if len(flows) != 2 {
		t.Fatalf("want flow for n1 plus orphan, got %d: %+v", len(flows), flows)
	}
}

func TestDeleteFlowByName(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	insertNet(t, db, model.Network{UUID: "n1", Type: model.NetData, AdminStateUp: true})
	if err := InsertFlow(db, flowcodec.StoredFlow{Name: "n1.1", NetID: "n1", Priority: 1000, IngressPort: "s1", Actions: "out=s2"}); err != nil {
		t.Fatalf("InsertFlow: %v", err)
	}
	if err := DeleteFlowByName(db, "n1.1"); err != nil {
		t.Fatalf("DeleteFlowByName: %v", err)
	}
	flows, err := LoadFlowsForGroup(db, []string{"n1"})
	if err != nil {
		t.Fatalf("LoadFlowsForGroup: %v", err)
	}
	if len(flows) != 0 {
		t.Fatalf("want no flows after delete, got %+v", flows)
	}
}

func TestSetOFCStatusSkipsDefault(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	if err := SetOFCStatus(db, "Default", StatusActive, ""); err != nil {
		t.Fatalf("SetOFCStatus: %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT count(*) FROM ofcs`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("want no row written for Default OFC, got %d", count)
	}

	if err := SetOFCStatus(db, "ofc1", StatusError, "boom"); err != nil {
		t.Fatalf("SetOFCStatus: %v", err)
	}
	var status, lastErr string
	if err := db.QueryRow(`SELECT status, last_error FROM ofcs WHERE uuid = 'ofc1'`).Scan(&status, &lastErr); err != nil {
		t.Fatalf("query: %v", err)
	}
	if status != StatusError || lastErr != "boom" {
		t.Fatalf("unexpected row: status=%q last_error=%q", status, lastErr)
	}
}
