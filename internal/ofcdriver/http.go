package ofcdriver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ofcd/internal/model"
)

// HTTPDriver talks to an OFC's REST front end. It is a thin stdlib client
// rather than a generated SDK: the wire surface is five endpoints and the
// dependency cost of a full client generator isn't worth paying for that.
type HTTPDriver struct {
	baseURL string
	http    *http.Client
}

// NewHTTPDriver returns a driver pointed at baseURL (e.g.
// "http://127.0.0.1:8443/ofc/v1").
func NewHTTPDriver(baseURL string, timeout time.Duration) *HTTPDriver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDriver{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDriver) PortKnown(ctx context.Context, switchPort string) (bool, error) {
	resp, err := d.get(ctx, "/ports/"+url.PathEscape(switchPort))
	if err != nil {
		return false, wrap("port-known", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 400 {
		return false, wrap("port-known", statusError(resp))
	}
	return true, nil
}

func (d *HTTPDriver) GetOfRules(ctx context.Context) (map[string]struct{}, error) {
	resp, err := d.get(ctx, "/flows")
	if err != nil {
		return nil, wrap("get-of-rules", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, wrap("get-of-rules", statusError(resp))
	}
	var payload struct {
		Names []string `json:"names"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, wrap("get-of-rules", err)
	}
	rules := make(map[string]struct{}, len(payload.Names))
	for _, name := range payload.Names {
		rules[name] = struct{}{}
	}
	return rules, nil
}

// wireAction is the JSON shape of a single action, matching the store's
// key=value vocabulary so the controller-facing payload and the persisted
// textual form stay in lockstep.
type wireAction struct {
	Vlan *int   `json:"vlan,omitempty"`
	Out  string `json:"out,omitempty"`
}

type wireFlow struct {
	Name        string       `json:"name"`
	NetID       string       `json:"net_id,omitempty"`
	Priority    int          `json:"priority"`
	IngressPort string       `json:"ingress_port"`
	VlanID      *string      `json:"vlan_id,omitempty"`
	DstMAC      *string      `json:"dst_mac,omitempty"`
	SrcMAC      *string      `json:"src_mac,omitempty"`
	Actions     []wireAction `json:"actions"`
}

func toWireFlow(name string, f model.Flow) (wireFlow, error) {
	wf := wireFlow{
		Name:        name,
		NetID:       f.NetID,
		Priority:    f.Priority,
		IngressPort: f.IngressPort,
		VlanID:      f.VLANID,
		DstMAC:      f.DstMAC,
		SrcMAC:      f.SrcMAC,
	}
	for _, a := range f.Actions {
		switch action := a.(type) {
		case model.VlanSet:
			wf.Actions = append(wf.Actions, wireAction{Vlan: action.VLAN})
		case model.Out:
			wf.Actions = append(wf.Actions, wireAction{Out: action.SwitchPort})
		default:
			return wireFlow{}, fmt.Errorf("unexpected action type %T", a)
		}
	}
	return wf, nil
}

func (d *HTTPDriver) NewFlow(ctx context.Context, name string, f model.Flow) error {
	wf, err := toWireFlow(name, f)
	if err != nil {
		return wrap("new-flow", err)
	}
	body, err := json.Marshal(wf)
	if err != nil {
		return wrap("new-flow", err)
	}
	resp, err := d.post(ctx, "/flows/"+url.PathEscape(name), body)
	if err != nil {
		return wrap("new-flow", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return wrap("new-flow", statusError(resp))
	}
	return nil
}

func (d *HTTPDriver) DelFlow(ctx context.Context, name string) error {
	resp, err := d.delete(ctx, "/flows/"+url.PathEscape(name))
	if err != nil {
		return wrap("del-flow", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		return wrap("del-flow", statusError(resp))
	}
	return nil
}

func (d *HTTPDriver) ClearAllFlows(ctx context.Context) error {
	resp, err := d.delete(ctx, "/flows")
	if err != nil {
		return wrap("clear-all-flows", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return wrap("clear-all-flows", statusError(resp))
	}
	return nil
}

func (d *HTTPDriver) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return d.http.Do(req)
}

func (d *HTTPDriver) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return d.http.Do(req)
}

func (d *HTTPDriver) delete(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, d.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return d.http.Do(req)
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("ofc API %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
