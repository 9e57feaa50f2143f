// Package controllers contiene los handlers HTTP: API administrativa de
// acceso, login público por endpoint y health.
package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/dropDatabas3/trustedlogin/internal/errors"
)

// maxBodyBytes limita los bodies de entrada.
const maxBodyBytes = 64 << 10

// readStrictJSON decodifica el body en dst rechazando campos desconocidos.
// Un body vacío no es error: dst queda en su valor cero.
func readStrictJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.ErrInvalidJSON.WithCause(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperrors.ErrInvalidJSON.WithDetail("trailing data")
	}
	return nil
}

func isJSON(r *http.Request) bool {
	return strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
