package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError define la estructura estándar de errores del core de acceso.
// Code es el código máquina estable (snake_case) que ven los callers privilegiados.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // causa original, sólo para logs
	Data       any    `json:"data,omitempty"`
}

// Error implementa la interfaz error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	if e.Detail != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is compara por Code, así errors.Is(err, ErrNotFound) funciona con copias
// creadas por WithDetail/WithCause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// FromError convierte un error genérico en AppError.
// Si ya hay un AppError en la cadena se devuelve ese; si no, internal_error con la causa.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// CodeOf devuelve el código máquina del error, o "" si err es nil.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	return FromError(err).Code
}

// WithDetail devuelve una COPIA con detalle adicional.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause devuelve una COPIA con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// WithData devuelve una COPIA con datos adjuntos (ej: body crudo de una respuesta remota).
func (e *AppError) WithData(data any) *AppError {
	newErr := *e
	newErr.Data = data
	return &newErr
}

// =================================================================================
// ERRORES PREDEFINIDOS
// =================================================================================

// ---------------------------------------------------------------------------------
// Configuración y permisos
// ---------------------------------------------------------------------------------

var (
	ErrConfigInvalid = &AppError{
		Code:       "config_invalid",
		Message:    "The configuration is invalid.",
		HTTPStatus: http.StatusFailedDependency,
	}

	ErrForbidden = &AppError{
		Code:       "forbidden",
		Message:    "You do not have permission to perform this action.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrInvalidArgument = &AppError{
		Code:       "invalid_argument",
		Message:    "One or more arguments are invalid.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrMissingCapability = &AppError{
		Code:       "missing_capability",
		Message:    "The runtime lacks a required cryptographic primitive.",
		HTTPStatus: http.StatusInternalServerError,
	}
)

// ---------------------------------------------------------------------------------
// Ciclo de vida del acceso
// ---------------------------------------------------------------------------------

var (
	ErrAlreadyExists = &AppError{
		Code:       "username_exists",
		Message:    "A support user already exists.",
		HTTPStatus: http.StatusConflict,
	}

	ErrEmailExists = &AppError{
		Code:       "email_exists",
		Message:    "A user with the vendor email already exists.",
		HTTPStatus: http.StatusConflict,
	}

	ErrSetupFailed = &AppError{
		Code:       "setup_failed",
		Message:    "Support access could not be verified after creation.",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	ErrNotFound = &AppError{
		Code:       "not_found",
		Message:    "Not found.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrExpired = &AppError{
		Code:       "expired",
		Message:    "Support access has expired.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrRevokePartial = &AppError{
		Code:       "revoke_partial",
		Message:    "Access was revoked locally but the trust authority was not notified.",
		HTTPStatus: http.StatusMultiStatus,
	}
)

// ---------------------------------------------------------------------------------
// Seguridad (brute force / lockdown)
// ---------------------------------------------------------------------------------

var (
	ErrInLockdown = &AppError{
		Code:       "in_lockdown",
		Message:    "Support access is temporarily disabled.",
		HTTPStatus: http.StatusLocked,
	}

	ErrBruteForceDetected = &AppError{
		Code:       "brute_force_detected",
		Message:    "Support access is temporarily disabled.",
		HTTPStatus: http.StatusLocked,
	}

	ErrRemoteRejected = &AppError{
		Code:       "remote_rejected",
		Message:    "The trust authority rejected the identifier.",
		HTTPStatus: http.StatusBadGateway,
	}
)

// ---------------------------------------------------------------------------------
// Autoridad remota
// ---------------------------------------------------------------------------------

var (
	ErrSyncFailed = &AppError{
		Code:       "sync_failed",
		Message:    "The site could not be synced with the trust authority.",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrUnavailable = &AppError{
		Code:       "unavailable",
		Message:    "The trust authority is unavailable.",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	ErrUnauthenticated = &AppError{
		Code:       "unauthenticated",
		Message:    "Authentication with the trust authority failed.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidToken = &AppError{
		Code:       "invalid_token",
		Message:    "The API key was rejected by the trust authority.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrMissingResponseBody = &AppError{
		Code:       "missing_response_body",
		Message:    "The trust authority returned an empty response.",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrInvalidResponse = &AppError{
		Code:       "invalid_response",
		Message:    "The trust authority returned an invalid response.",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrMissingRequiredKey = &AppError{
		Code:       "missing_required_key",
		Message:    "The trust authority response is missing a required key.",
		HTTPStatus: http.StatusBadGateway,
	}

	ErrInvalidMethod = &AppError{
		Code:       "invalid_method",
		Message:    "Unsupported HTTP method.",
		HTTPStatus: http.StatusBadRequest,
	}
)

// ---------------------------------------------------------------------------------
// API HTTP
// ---------------------------------------------------------------------------------

var (
	ErrUnauthorized = &AppError{
		Code:       "unauthorized",
		Message:    "Missing admin credentials.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrRateLimited = &AppError{
		Code:       "rate_limited",
		Message:    "Too many requests.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrInvalidJSON = &AppError{
		Code:       "invalid_json",
		Message:    "The request body is not valid JSON.",
		HTTPStatus: http.StatusBadRequest,
	}
)

// ---------------------------------------------------------------------------------
// 500
// ---------------------------------------------------------------------------------

var ErrInternal = &AppError{
	Code:       "internal_error",
	Message:    "Internal error.",
	HTTPStatus: http.StatusInternalServerError,
}
