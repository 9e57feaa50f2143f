package logger

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/trustedlogin/internal/util"
)

// =================================================================================
// CAMPOS ESTÁNDAR - HTTP
// =================================================================================

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }

// DurationMs crea un campo para la duración en milisegundos.
func DurationMs(v int64) zap.Field { return zap.Int64("duration_ms", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - ACCESO DE SOPORTE
// =================================================================================

// Namespace crea un campo para el namespace del vendor.
func Namespace(v string) zap.Field { return zap.String("namespace", v) }

// PrincipalID crea un campo para el ID del principal del directorio.
func PrincipalID(v string) zap.Field { return zap.String("principal_id", v) }

// Identifier loguea sólo un prefijo del identificador. Nunca el valor completo.
func Identifier(v string) zap.Field { return zap.String("identifier", util.MaskSecret(v)) }

// Endpoint loguea el slug enmascarado.
func Endpoint(v string) zap.Field { return zap.String("endpoint", util.MaskSecret(v)) }

// RemotePath loguea el path de la API remota con el id de sitio enmascarado
// ("sites/{id}" es el endpoint del login público).
func RemotePath(v string) zap.Field {
	parts := strings.Split(strings.Trim(v, "/"), "/")
	for i := 1; i < len(parts); i++ {
		if parts[i-1] == "sites" {
			parts[i] = util.MaskSecret(parts[i])
		}
	}
	return zap.String("remote_path", strings.Join(parts, "/"))
}

// ExpiresAt crea un campo con la expiración del acceso (cero = nunca).
func ExpiresAt(v time.Time) zap.Field {
	if v.IsZero() {
		return zap.String("expires_at", "never")
	}
	return zap.Time("expires_at", v)
}

// Trigger indica qué originó una revocación (manual, scheduled, expired, all).
func Trigger(v string) zap.Field { return zap.String("trigger", v) }

// =================================================================================
// CAMPOS ESTÁNDAR - SISTEMA
// =================================================================================

func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
func Count(v int) zap.Field        { return zap.Int("count", v) }
func String(key, v string) zap.Field {
	return zap.String(key, v)
}
func Int(key string, v int) zap.Field   { return zap.Int(key, v) }
func Bool(key string, v bool) zap.Field { return zap.Bool(key, v) }
func Any(key string, v any) zap.Field   { return zap.Any(key, v) }

// Email loguea el email enmascarado.
func Email(v string) zap.Field { return zap.String("email", util.MaskEmail(v)) }
