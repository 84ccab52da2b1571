package flowcodec

import (
	"testing"

	"ofcd/internal/model"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	vlan := 100
	mac := "aa:bb:cc:dd:ee:ff"
	f := model.Flow{
		Name:        "n1.0",
		NetID:       "n1",
		Priority:    995,
		IngressPort: "s1",
		DstMAC:      &mac,
		Actions:     []model.Action{model.VlanSet{VLAN: &vlan}, model.Out{SwitchPort: "s2"}},
	}

	sf, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if sf.Actions != "vlan=100,out=s2" {
		t.Fatalf("unexpected encoding: %q", sf.Actions)
	}

	got, err := Decode(sf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !Equal(f, got) {
		t.Fatalf("round trip not equal: got %+v want %+v", got, f)
	}
}

func TestEncodeVlanStripRendersNone(t *testing.T) {
	f := model.Flow{
		Actions: []model.Action{model.VlanSet{VLAN: nil}, model.Out{SwitchPort: "s1"}},
	}
	sf, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if sf.Actions != "vlan=None,out=s1" {
		t.Fatalf("unexpected encoding: %q", sf.Actions)
	}
}

func TestDecodeAcceptsStripAlias(t *testing.T) {
	got, err := Decode(StoredFlow{Actions: "vlan=strip,out=s1"})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	vs, ok := got.Actions[0].(model.VlanSet)
	if !ok || vs.VLAN != nil {
		t.Fatalf("want vlan-strip action, got %+v", got.Actions[0])
	}
}

func TestDecodeRejectsMalformedActions(t *testing.T) {
	_, err := Decode(StoredFlow{Actions: "garbage"})
	if _, ok := err.(*ErrBadFormat); !ok {
		t.Fatalf("want *ErrBadFormat, got %T (%v)", err, err)
	}
}

func TestEqualIgnoresName(t *testing.T) {
	a := model.Flow{NetID: "n1", Priority: 995, IngressPort: "s1", Actions: []model.Action{model.Out{SwitchPort: "s2"}}, Name: "n1.0"}
	b := a
	b.Name = "n1.7"
	if !Equal(a, b) {
		t.Fatalf("want flows differing only by name to be Equal")
	}
}

func TestEqualDetectsActionDifference(t *testing.T) {
	a := model.Flow{NetID: "n1", Priority: 995, IngressPort: "s1", Actions: []model.Action{model.Out{SwitchPort: "s2"}}}
	b := model.Flow{NetID: "n1", Priority: 995, IngressPort: "s1", Actions: []model.Action{model.Out{SwitchPort: "s3"}}}
	if Equal(a, b) {
		t.Fatalf("want flows with different out ports to differ")
	}
}
