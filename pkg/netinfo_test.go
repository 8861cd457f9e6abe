package pkg

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakeEthtool struct {
	drivers map[string]string
	closed  bool
}

func (f *fakeEthtool) DriverName(intf string) (string, error) {
	if d, ok := f.drivers[intf]; ok {
		return d, nil
	}
	return "", errors.New("no such device")
}

func (f *fakeEthtool) BusInfo(intf string) (string, error) {
	if _, ok := f.drivers[intf]; ok {
		return "0000:3b:00.0", nil
	}
	return "", errors.New("no such device")
}

func (f *fakeEthtool) Close() { f.closed = true }

func TestNetResolverLookup(t *testing.T) {
	root := t.TempDir()
	for _, ifname := range []string{"ens2f1", "ens2f0"} {
		if err := os.MkdirAll(filepath.Join(root, "0000:3b:00.0", "net", ifname), 0755); err != nil {
			t.Fatalf("failed to create interface dir: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "0000:00:00.0"), 0755); err != nil {
		t.Fatalf("failed to create device dir: %v", err)
	}

	eth := &fakeEthtool{drivers: map[string]string{"ens2f0": "ice"}}
	r := NewNetResolverWith(root, eth)

	info, err := r.Lookup("0000:3b:00.0")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(info.Interfaces) != 2 || info.Interfaces[0] != "ens2f0" {
		t.Errorf("interfaces = %v, want sorted [ens2f0 ens2f1]", info.Interfaces)
	}
	if info.Driver != "ice" || info.BusInfo != "0000:3b:00.0" {
		t.Errorf("unexpected info %+v", info)
	}

	info, err = r.Lookup("0000:00:00.0")
	if err != nil || len(info.Interfaces) != 0 {
		t.Errorf("function without net dir: %+v, %v", info, err)
	}

	r.Close()
	if !eth.closed {
		t.Error("Close did not release the ethtool handle")
	}
}
