package pkg

import (
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/grpclog"
)

// grpcLogger feeds gRPC's internal logging into the shared logger. gRPC
// info messages are demoted to debug.
type grpcLogger struct {
	entry *log.Entry
}

// GRPCLogger returns a grpclog.LoggerV2 backed by Logger()
func GRPCLogger() grpclog.LoggerV2 {
	return grpcLogger{entry: Logger().WithField("component", "grpc")}
}

func (g grpcLogger) Info(args ...interface{}) { g.entry.Debug(args...) }
func (g grpcLogger) Infoln(args ...interface{}) { g.entry.Debugln(args...) }
func (g grpcLogger) Infof(format string, args ...interface{}) { g.entry.Debugf(format, args...) }

func (g grpcLogger) Warning(args ...interface{}) { g.entry.Warn(args...) }
func (g grpcLogger) Warningln(args ...interface{}) { g.entry.Warnln(args...) }
func (g grpcLogger) Warningf(format string, args ...interface{}) { g.entry.Warnf(format, args...) }

func (g grpcLogger) Error(args ...interface{}) { g.entry.Error(args...) }
func (g grpcLogger) Errorln(args ...interface{}) { g.entry.Errorln(args...) }
func (g grpcLogger) Errorf(format string, args ...interface{}) { g.entry.Errorf(format, args...) }

func (g grpcLogger) Fatal(args ...interface{}) { g.entry.Fatal(args...) }
func (g grpcLogger) Fatalln(args ...interface{}) { g.entry.Fatalln(args...) }
func (g grpcLogger) Fatalf(format string, args ...interface{}) { g.entry.Fatalf(format, args...) }

// V reports whether verbosity level l is on; only debug logging enables it
func (g grpcLogger) V(l int) bool {
	return l <= 0 || g.entry.Logger.IsLevelEnabled(log.DebugLevel)
}
