package store

import (
	"database/sql"

	"ofcd/internal/model"
)

// LoadActivePorts returns every port of netID that is admin-up and
// ACTIVE — the only ports that participate in planning.
func LoadActivePorts(db *sql.DB, netID string) ([]model.Port, error) {
	rows, err := db.Query(`SELECT uuid, net_id, switch_port, vlan, mac, type, model
		FROM ports WHERE net_id = ? AND admin_state_up = 1 AND status = 'ACTIVE'`, netID)
	if err != nil {
		return nil, wrap("load-ports", err)
	}
	defer rows.Close()

	var out []model.Port
	for rows.Next() {
		var p model.Port
		var vlan sql.NullInt64
		var mac sql.NullString
		if err := rows.Scan(&p.UUID, &p.NetID, &p.SwitchPort, &vlan, &mac, &p.Type, &p.Model); err != nil {
			return nil, wrap("load-ports", err)
		}
		if vlan.Valid {
			v := int(vlan.Int64)
			p.VLAN = &v
		}
		if mac.Valid {
			p.MAC = &mac.String
		}
		out = append(out, p)
	}
	return out, wrap("load-ports", rows.Err())
}
