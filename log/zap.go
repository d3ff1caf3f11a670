package log

import "go.uber.org/zap"

type zapLogger struct {
	zlg *zap.SugaredLogger
}

// NewZap adapts a zap logger to Logger. A nil logger yields a no-op Logger.
func NewZap(zlg *zap.Logger) Logger {
	if zlg == nil {
		zlg = zap.NewNop()
	}
	return &zapLogger{zlg: zlg.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return NewZap(zap.NewNop())
}

func (z *zapLogger) Printf(format string, args ...interface{}) {
	z.zlg.Infof(format, args...)
}

func (z *zapLogger) Fatalf(format string, args ...interface{}) {
	z.zlg.Fatalf(format, args...)
}
