package logger

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	initOnce sync.Once
	global   atomic.Pointer[zap.Logger]
	level    = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Init construye el logger global. Sólo la primera llamada tiene efecto.
func Init(cfg Config) {
	initOnce.Do(func() {
		level.SetLevel(parseLevel(cfg.Level))
		global.Store(build(cfg, level))
	})
}

// L devuelve el logger global. Sin Init previo usa desarrollo/info.
func L() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	Init(Config{})
	return global.Load()
}

// SetLevel cambia el nivel en caliente, sin reconstruir el logger.
func SetLevel(lvl string) { level.SetLevel(parseLevel(lvl)) }

// Replace instala l como logger global y devuelve la función que restaura el
// anterior. Pensado para tests que inspeccionan los logs.
func Replace(l *zap.Logger) (restore func()) {
	prev := L()
	global.Store(l)
	return func() { global.Store(prev) }
}

// Sync flushea los buffers del logger global.
func Sync() error {
	if l := global.Load(); l != nil {
		return l.Sync()
	}
	return nil
}
