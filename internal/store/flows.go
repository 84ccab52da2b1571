package store

import (
	"database/sql"
	"strings"

	"ofcd/internal/flowcodec"
)

// LoadFlowsForGroup returns every stored flow whose net_id is one of the
// networks in the group, plus orphaned flows (net_id IS NULL) left behind
// by a deleted network.
func LoadFlowsForGroup(db *sql.DB, netIDs []string) ([]flowcodec.StoredFlow, error) {
	placeholders := strings.Repeat("?,", len(netIDs))
	placeholders = strings.TrimSuffix(placeholders, ",")
	query := `SELECT id, name, net_id, priority, vlan, ingress_port, actions, dst_mac, src_mac
		FROM of_flows WHERE net_id IS NULL`
	args := make([]interface{}, 0, len(netIDs))
	if len(netIDs) > 0 {
		query = `SELECT id, name, net_id, priority, vlan, ingress_port, actions, dst_mac, src_mac
			FROM of_flows WHERE net_id IS NULL OR net_id IN (` + placeholders + `)`
		for _, id := range netIDs {
			args = append(args, id)
		}
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, wrap("load-flows", err)
	}
	defer rows.Close()

	var out []flowcodec.StoredFlow
	for rows.Next() {
		var id int64
		var sf flowcodec.StoredFlow
		var netID, vlan, dstMAC, srcMAC sql.NullString
		if err := rows.Scan(&id, &sf.Name, &netID, &sf.Priority, &vlan, &sf.IngressPort, &sf.Actions, &dstMAC, &srcMAC); err != nil {
			return nil, wrap("load-flows", err)
		}
		if netID.Valid {
			sf.NetID = netID.String
		}
		if vlan.Valid {
			sf.VLANID = &vlan.String
		}
		if dstMAC.Valid {
			sf.DstMAC = &dstMAC.String
		}
		if srcMAC.Valid {
			sf.SrcMAC = &srcMAC.String
		}
		out = append(out, sf)
	}
	return out, wrap("load-flows", rows.Err())
}

// InsertFlow persists a newly decided flow.
func InsertFlow(db *sql.DB, sf flowcodec.StoredFlow) error {
	_, err := db.Exec(`INSERT INTO of_flows (name, net_id, priority, vlan, ingress_port, actions, dst_mac, src_mac)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sf.Name, nullableString(&sf.NetID), sf.Priority, sf.VLANID, sf.IngressPort, sf.Actions, sf.DstMAC, sf.SrcMAC)
	return wrap("insert-flow", err)
}

// DeleteFlowByName removes a single flow by its unique name.
func DeleteFlowByName(db *sql.DB, name string) error {
	_, err := db.Exec(`DELETE FROM of_flows WHERE name = ?`, name)
	return wrap("delete-flow", err)
}

// DeleteAllFlowsForNets deletes every flow belonging to the given networks.
// A nil/empty netIDs deletes every flow in the table — the "delete-all"
// task's null-key semantics.
func DeleteAllFlowsForNets(db *sql.DB, netIDs []string) error {
	if len(netIDs) == 0 {
		_, err := db.Exec(`DELETE FROM of_flows`)
		return wrap("delete-all-flows", err)
	}
	placeholders := strings.Repeat("?,", len(netIDs))
	placeholders = strings.TrimSuffix(placeholders, ",")
	args := make([]interface{}, len(netIDs))
	for i, id := range netIDs {
		args[i] = id
	}
	_, err := db.Exec(`DELETE FROM of_flows WHERE net_id IN (`+placeholders+`)`, args...)
	return wrap("delete-all-flows", err)
}

func nullableString(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
