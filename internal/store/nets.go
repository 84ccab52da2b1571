package store

import (
	"database/sql"

	"ofcd/internal/model"
)

// LoadNet fetches one network row by uuid. Returns sql.ErrNoRows (wrapped)
// if it does not exist.
func LoadNet(db *sql.DB, uuid string) (model.Network, error) {
	row := db.QueryRow(`SELECT uuid, type, admin_state_up, vlan, provider, bind_net, bind_type
		FROM nets WHERE uuid = ?`, uuid)
	n, err := scanNet(row)
	if err != nil {
		return model.Network{}, wrap("load-net", err)
	}
	return n, nil
}

// LoadBindGroup fetches the anchor network plus every network that binds
// to it — the OR query the reconciler uses to assemble a planning group.
// anchorUUID must already be resolved to the bind target; the reconciler
// decides whether uuid itself or its bind_net is the anchor before calling
// this.
func LoadBindGroup(db *sql.DB, anchorUUID string) ([]model.Network, error) {
	rows, err := db.Query(`SELECT uuid, type, admin_state_up, vlan, provider, bind_net, bind_type
		FROM nets WHERE uuid = ? OR bind_net = ?`, anchorUUID, anchorUUID)
	if err != nil {
		return nil, wrap("load-bind-group", err)
	}
	defer rows.Close()

	var out []model.Network
	for rows.Next() {
		n, err := scanNet(rows)
		if err != nil {
			return nil, wrap("load-bind-group", err)
		}
		out = append(out, n)
	}
	return out, wrap("load-bind-group", rows.Err())
}

// ListNetUUIDs returns every network uuid in the store, for the startup
// bootstrap pass that reconciles every known network once on launch
// rather than waiting for the first external enqueue.
func ListNetUUIDs(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT uuid FROM nets`)
	if err != nil {
		return nil, wrap("list-net-uuids", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, wrap("list-net-uuids", err)
		}
		out = append(out, uuid)
	}
	return out, wrap("list-net-uuids", rows.Err())
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNet(row scanner) (model.Network, error) {
	var n model.Network
	var adminUp int
	var vlan sql.NullInt64
	var provider, bindNet, bindType sql.NullString
	if err := row.Scan(&n.UUID, &n.Type, &adminUp, &vlan, &provider, &bindNet, &bindType); err != nil {
		return model.Network{}, err
	}
	n.AdminStateUp = adminUp != 0
	if vlan.Valid {
		v := int(vlan.Int64)
		n.VLAN = &v
	}
	if provider.Valid {
		n.Provider = &provider.String
	}
	if bindNet.Valid {
		n.BindNet = &bindNet.String
	}
	if bindType.Valid {
		n.BindType = &bindType.String
	}
	return n, nil
}
