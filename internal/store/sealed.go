package store

import (
	"context"
	"fmt"
	"strings"
)

// sealedPrefix marca los valores cifrados en reposo.
const sealedPrefix = "sb1:"

// Cipher cifra valores de opciones. Implementada por secretbox.Box.
type Cipher interface {
	Seal(plainText string) (string, error)
	Open(cipherText string) (string, error)
}

// Sealed cifra cada valor antes de delegar en inner. Los valores sin prefijo
// (escritos antes de activar el cifrado) se leen tal cual y se cifran en el
// próximo Set.
type Sealed struct {
	inner OptionStore
	box   Cipher
}

// Seal envuelve inner. Con box nil retorna inner sin cambios.
func Seal(inner OptionStore, box Cipher) OptionStore {
	if box == nil {
		return inner
	}
	return &Sealed{inner: inner, box: box}
}

func (s *Sealed) Get(ctx context.Context, name string) (string, error) {
	v, err := s.inner.Get(ctx, name)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(v, sealedPrefix) {
		return v, nil
	}
	pt, err := s.box.Open(strings.TrimPrefix(v, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("store: open %s: %w", name, err)
	}
	return pt, nil
}

func (s *Sealed) Set(ctx context.Context, name, value string) error {
	ct, err := s.box.Seal(value)
	if err != nil {
		return fmt.Errorf("store: seal %s: %w", name, err)
	}
	return s.inner.Set(ctx, name, sealedPrefix+ct)
}

func (s *Sealed) Delete(ctx context.Context, name string) error {
	return s.inner.Delete(ctx, name)
}
