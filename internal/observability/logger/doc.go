// Package logger expone un logger Zap singleton con scoping por contexto.
//
// Inicialización (una vez, en el comando serve):
//
//	logger.Init(logger.Config{Env: cfg.Log.Env, Level: cfg.Log.Level, Namespace: cfg.Namespace()})
//	defer logger.Sync()
//
// En services (con contexto):
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("access"))
//	log.Info("support access granted", logger.PrincipalID(id))
//
// Nunca se loguean identificadores crudos, API keys ni claves privadas: usar
// Identifier()/Endpoint(), que enmascaran el valor.
package logger
