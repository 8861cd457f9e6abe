package pkg

import (
	"strings"
	"testing"
)

func TestGRPCLogger(t *testing.T) {
	buf := captureLog(t)
	if err := SetLogLevelFromString("info"); err != nil {
		t.Fatal(err)
	}

	l := GRPCLogger()
	l.Infof("channel %d created", 1)
	l.Warningf("subchannel %s reconnecting", "bufnet")
	l.Errorln("transport closed")

	output := buf.String()
	if strings.Contains(output, "channel 1 created") {
		t.Error("grpc info messages should be demoted to debug")
	}
	for _, want := range []string{"subchannel bufnet reconnecting", "transport closed", "component=grpc"} {
		if !strings.Contains(output, want) {
			t.Errorf("%q not found in output %q", want, output)
		}
	}
	if l.V(2) {
		t.Error("V(2) should be off at info level")
	}

	if err := SetLogLevelFromString("debug"); err != nil {
		t.Fatal(err)
	}
	defer SetLogLevelFromString("info")
	if !l.V(2) {
		t.Error("V(2) should be on at debug level")
	}
}
