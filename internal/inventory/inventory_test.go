package inventory

import (
	"context"
	"io"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"pcicam/pkg"
	"pcicam/pkg/cam"
	"pcicam/pkg/pci"
	"pcicam/pkg/types"
)

const bufSize = 1024 * 1024

func init() {
	pkg.SetOutput(io.Discard)
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestBus() *cam.SimulatedBus {
	bus := cam.NewSimulatedBus()
	// host bridge
	bus.AddFunction(types.Address{Bus: 0, Device: 0, Function: 0}, map[uint8]uint32{
		0x00: 0x29c08086,
		0x08: 0x06000000,
	})
	// ConnectX NIC
	bus.AddFunction(types.Address{Bus: 0, Device: 2, Function: 0}, map[uint8]uint32{
		0x00: 0x101b15b3,
		0x08: 0x02000000,
		0x10: 0xfe000004,
	})
	return bus
}

func newTestInventory(bus *cam.SimulatedBus, match func(types.DiscoveredDevice) bool) *Inventory {
	enum := pci.NewEnumerator(cam.NewPortAccessor(bus), pci.WithBusRange(0, 1), pci.WithLogger(quietLogger()))
	inv := New(enum, match)
	inv.log = quietLogger()
	return inv
}

func dial(t *testing.T, inv *Inventory) *Client {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	s := grpc.NewServer()
	RegisterInventoryServer(s, NewServer(inv))
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Failed to dial bufnet: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func TestRescanStoresSnapshot(t *testing.T) {
	inv := newTestInventory(newTestBus(), nil)

	if got := inv.Last(); len(got.Devices) != 0 || !got.ScannedAt.IsZero() {
		t.Fatalf("fresh inventory should be empty, got %+v", got)
	}

	snap := inv.Rescan()
	if len(snap.Devices) != 2 {
		t.Fatalf("Rescan() found %d functions, want 2", len(snap.Devices))
	}
	if snap.Stats.DevicesProbed != 64 {
		t.Errorf("DevicesProbed = %d, want 64", snap.Stats.DevicesProbed)
	}
	if got := inv.Last(); len(got.Devices) != 2 {
		t.Errorf("Last() holds %d functions, want 2", len(got.Devices))
	}
}

func TestRescanAppliesFilter(t *testing.T) {
	onlyMellanox := func(d types.DiscoveredDevice) bool { return d.Header.VendorID == 0x15b3 }
	inv := newTestInventory(newTestBus(), onlyMellanox)

	snap := inv.Rescan()
	if len(snap.Devices) != 1 || snap.Devices[0].Header.DeviceID != 0x101b {
		t.Fatalf("filtered pass = %+v, want only the ConnectX function", snap.Devices)
	}
}

func TestDiff(t *testing.T) {
	a := types.DiscoveredDevice{Address: types.Address{Bus: 0, Device: 0}, Header: types.FunctionHeader{VendorID: 0x8086, DeviceID: 0x29c0}}
	b := types.DiscoveredDevice{Address: types.Address{Bus: 0, Device: 2}, Header: types.FunctionHeader{VendorID: 0x15b3, DeviceID: 0x101b}}
	// same slot, different card
	c := types.DiscoveredDevice{Address: types.Address{Bus: 0, Device: 2}, Header: types.FunctionHeader{VendorID: 0x8086, DeviceID: 0x1572}}

	added, removed := Diff([]types.DiscoveredDevice{a, b}, []types.DiscoveredDevice{a, c})
	if len(added) != 1 || added[0].Header.DeviceID != 0x1572 {
		t.Errorf("added = %+v", added)
	}
	if len(removed) != 1 || removed[0].Header.DeviceID != 0x101b {
		t.Errorf("removed = %+v", removed)
	}

	added, removed = Diff(nil, nil)
	if added != nil || removed != nil {
		t.Errorf("Diff(nil, nil) = %v, %v", added, removed)
	}
}

func TestListDevicesOverGRPC(t *testing.T) {
	inv := newTestInventory(newTestBus(), nil)
	inv.Rescan()
	client := dial(t, inv)

	records, err := client.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}

	var got []string
	for _, r := range records {
		got = append(got, r.Address)
	}
	want := []string{"0000:00:00.0", "0000:00:02.0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("addresses mismatch (-want +got):\n%s", diff)
	}

	nic := records[1]
	if nic.Kind != types.KindStandard {
		t.Errorf("Kind = %q, want standard", nic.Kind)
	}
	if nic.Header.VendorID != 0x15b3 || nic.Header.ClassCode != 0x02 {
		t.Errorf("unexpected header %+v", nic.Header)
	}
	if len(nic.Variant) == 0 {
		t.Error("variant payload missing")
	}
}

func TestListDevicesBeforeScan(t *testing.T) {
	client := dial(t, newTestInventory(newTestBus(), nil))

	records, err := client.ListDevices(context.Background())
	if err != nil {
		t.Fatalf("ListDevices failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records before the first pass, got %d", len(records))
	}
}

func TestRescanOverGRPC(t *testing.T) {
	bus := newTestBus()
	inv := newTestInventory(bus, nil)
	inv.Rescan()
	client := dial(t, inv)

	bus.RemoveFunction(types.Address{Bus: 0, Device: 2, Function: 0})
	count, err := client.Rescan(context.Background())
	if err != nil {
		t.Fatalf("Rescan failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Rescan() count = %d, want 1", count)
	}
	if got := inv.Last(); len(got.Devices) != 1 {
		t.Errorf("server snapshot holds %d functions, want 1", len(got.Devices))
	}
}
