package cam

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"pcicam/pkg/types"
)

func writeConfig(t *testing.T, root string, addr types.Address, regs map[uint8]uint32, size int) {
	t.Helper()
	dir := filepath.Join(root, addr.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create device dir: %v", err)
	}
	buf := make([]byte, size)
	for off, v := range regs {
		binary.LittleEndian.PutUint32(buf[off:], v)
	}
	if err := os.WriteFile(filepath.Join(dir, "config"), buf, 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestSysfsAccessorRead(t *testing.T) {
	root := t.TempDir()
	addr := types.Address{Bus: 3, Device: 0, Function: 1}
	writeConfig(t, root, addr, map[uint8]uint32{0x00: 0x101e15b3, 0x3c: 0x0000010b}, 64)

	acc := NewSysfsAccessor(root, 0)
	if got := acc.Read(addr.Register(0x00)); got != 0x101e15b3 {
		t.Errorf("Read(0x00) = %#x, want 0x101e15b3", got)
	}
	if got := acc.Read(addr.Register(0x3c)); got != 0x10b {
		t.Errorf("Read(0x3c) = %#x, want 0x10b", got)
	}
	// Unprivileged sysfs readers only get 64 bytes
	if got := acc.Read(addr.Register(0x40)); got != AllOnes {
		t.Errorf("Read past end = %#x, want all-ones", got)
	}
	if got := acc.Read(types.Address{Bus: 9}.Register(0x00)); got != AllOnes {
		t.Errorf("missing device read %#x, want all-ones", got)
	}
}

func TestSysfsAccessorDomain(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, types.Address{Domain: 1, Bus: 0x80}, map[uint8]uint32{0x00: 0x00018086}, 256)

	if got := NewSysfsAccessor(root, 0).Read(types.Address{Bus: 0x80}.Register(0)); got != AllOnes {
		t.Errorf("domain 0 read %#x, want all-ones", got)
	}
	if got := NewSysfsAccessor(root, 1).Read(types.Address{Bus: 0x80}.Register(0)); got != 0x00018086 {
		t.Errorf("domain 1 read %#x, want 0x00018086", got)
	}
}

func TestSysfsAccessorWrite(t *testing.T) {
	root := t.TempDir()
	addr := types.Address{Bus: 1}
	writeConfig(t, root, addr, map[uint8]uint32{0x00: 0x00018086}, 256)

	acc := NewSysfsAccessor(root, 0)
	acc.Write(addr.Register(0x04), 0x00100406)
	if got := acc.Read(addr.Register(0x04)); got != 0x00100406 {
		t.Errorf("read back %#x, want 0x00100406", got)
	}
}

func TestNewSysfsAccessorDefaultRoot(t *testing.T) {
	if got := NewSysfsAccessor("", 0).Root(); got != DefaultSysfsRoot {
		t.Errorf("Root() = %q, want %q", got, DefaultSysfsRoot)
	}
}
