package cam

import (
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"pcicam/pkg"
	"pcicam/pkg/types"
)

// DefaultSysfsRoot is where Linux exposes per-function config files
const DefaultSysfsRoot = "/sys/bus/pci/devices"

// SysfsAccessor reads configuration space through the kernel's
// <root>/<dddd:bb:dd.f>/config files. It needs no I/O privilege, though
// unprivileged readers only see the first 64 bytes. Anything the kernel does
// not expose reads as all-ones, matching an empty slot.
type SysfsAccessor struct {
	root   string
	domain uint16
	log    *logrus.Entry
}

// NewSysfsAccessor returns an accessor rooted at root (DefaultSysfsRoot when
// empty) for the given PCI domain.
func NewSysfsAccessor(root string, domain uint16) *SysfsAccessor {
	if root == "" {
		root = DefaultSysfsRoot
	}
	return &SysfsAccessor{
		root:   root,
		domain: domain,
		log:    pkg.WithComponent("sysfs"),
	}
}

// Root returns the directory the accessor reads from
func (s *SysfsAccessor) Root() string {
	return s.root
}

func (s *SysfsAccessor) configPath(addr types.Address) string {
	addr.Domain = s.domain
	return filepath.Join(s.root, addr.String(), "config")
}

func (s *SysfsAccessor) Read(addr types.ConfigAddress) uint32 {
	f, err := os.Open(s.configPath(addr.Address))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.WithError(err).WithField("address", addr.Address.String()).Warn("failed to open config space")
		}
		return AllOnes
	}
	defer f.Close()

	var buf [4]byte
	n, err := f.ReadAt(buf[:], int64(addr.Register&0xFC))
	if n != len(buf) {
		s.log.WithFields(logrus.Fields{
			"address":  addr.Address.String(),
			"register": addr.Register,
			"read":     n,
			"error":    err,
		}).Debug("short config space read")
		return AllOnes
	}
	return binary.LittleEndian.Uint32(buf[:])
}

func (s *SysfsAccessor) Write(addr types.ConfigAddress, value uint32) {
	f, err := os.OpenFile(s.configPath(addr.Address), os.O_WRONLY, 0)
	if err != nil {
		s.log.WithError(err).WithField("address", addr.Address.String()).Warn("failed to open config space for writing")
		return
	}
	defer f.Close()

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	if _, err := f.WriteAt(buf[:], int64(addr.Register&0xFC)); err != nil {
		s.log.WithError(err).WithField("address", addr.Address.String()).Warn("config space write failed")
	}
}
