package pkg

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"pcicam/pkg/types"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })
	return &buf
}

func TestLogrusIntegration(t *testing.T) {
	buf := captureLog(t)

	Info("scan started on bus %d", 0)
	Warn("short read at %#x", 0x40)
	Error("port I/O unavailable")

	output := buf.String()
	for _, want := range []string{"scan started on bus 0", "short read at 0x40", "port I/O unavailable"} {
		if !strings.Contains(output, want) {
			t.Errorf("%q not found in output %q", want, output)
		}
	}
}

func TestDeviceFields(t *testing.T) {
	buf := captureLog(t)

	d := types.DiscoveredDevice{
		Address: types.Address{Bus: 1, Device: 0, Function: 0},
		Header:  types.FunctionHeader{VendorID: 0x8086, DeviceID: 0x1237},
		Variant: types.StandardHeader{},
	}
	WithFields(DeviceFields(d)).Info("function found")

	output := buf.String()
	if !strings.Contains(output, `address="0000:01:00.0"`) {
		t.Errorf("address field not found in %q", output)
	}
	if !strings.Contains(output, "vendor=8086") || !strings.Contains(output, "device=1237") {
		t.Errorf("id fields not found in %q", output)
	}
	if !strings.Contains(output, "kind=standard") {
		t.Errorf("kind field not found in %q", output)
	}
}

func TestLogLevels(t *testing.T) {
	defer SetLogLevelFromString("info")

	if err := SetLogLevelFromString("debug"); err != nil {
		t.Fatalf("SetLogLevelFromString(debug): %v", err)
	}
	if !IsDebugEnabled() {
		t.Error("debug level should be enabled")
	}

	if err := SetLogLevelFromString("warn"); err != nil {
		t.Fatalf("SetLogLevelFromString(warn): %v", err)
	}
	if IsDebugEnabled() {
		t.Error("debug level should be disabled")
	}
	if Logger().IsLevelEnabled(log.InfoLevel) {
		t.Error("info level should be disabled when set to warn level")
	}

	if err := SetLogLevelFromString("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestErrorLogging(t *testing.T) {
	buf := captureLog(t)

	WithError(errors.New("ioperm: operation not permitted")).Error("cannot open ports")

	if !strings.Contains(buf.String(), "operation not permitted") {
		t.Error("error message not found in log output")
	}
}

func TestSetFormat(t *testing.T) {
	buf := captureLog(t)
	defer SetFormat("text")

	if err := SetFormat("json"); err != nil {
		t.Fatalf("SetFormat(json): %v", err)
	}
	WithComponent("enumerator").Info("pass complete")
	if !strings.Contains(buf.String(), `"component":"enumerator"`) {
		t.Errorf("json output missing component: %q", buf.String())
	}

	if err := SetFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
