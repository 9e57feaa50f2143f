package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configura el logger global.
type Config struct {
	// Env: "prod" emite JSON; cualquier otro valor, consola legible.
	Env string
	// Level: debug | info | warn | error. Vacío o desconocido: info.
	Level string
	// Namespace del vendor, campo base de cada línea si no está vacío.
	Namespace string
	// Version del binario (opcional).
	Version string
}

func isProd(env string) bool { return strings.EqualFold(strings.TrimSpace(env), "prod") }

func zapConfig(env string) zap.Config {
	if isProd(env) {
		c := zap.NewProductionConfig()
		c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		// lockdowns y logins rechazados no se muestrean
		c.Sampling = nil
		return c
	}
	c := zap.NewDevelopmentConfig()
	c.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	c.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	c.DisableStacktrace = true
	return c
}

func build(cfg Config, lvl zap.AtomicLevel) *zap.Logger {
	zc := zapConfig(cfg.Env)
	zc.Level = lvl
	zc.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	opts := []zap.Option{zap.AddCaller()}
	if isProd(cfg.Env) {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	l, err := zc.Build(opts...)
	if err != nil {
		// encoder JSON a stderr: nunca quedarse sin logs
		l = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.Lock(os.Stderr), lvl))
	}

	base := []zap.Field{zap.String("service", "trustedlogin")}
	if cfg.Namespace != "" {
		base = append(base, Namespace(cfg.Namespace))
	}
	if cfg.Version != "" {
		base = append(base, zap.String("version", cfg.Version))
	}
	return l.With(base...)
}

func parseLevel(lvl string) zapcore.Level {
	s := strings.ToLower(strings.TrimSpace(lvl))
	if s == "warning" {
		s = "warn"
	}
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}
