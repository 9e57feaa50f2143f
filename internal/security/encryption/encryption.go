// Package encryption agrupa las primitivas criptográficas del core: keypair
// autenticado (nacl/box), nonce, hash de identificadores (blake2b) y cifrado
// RSA-OAEP de los campos sensibles que viajan a la autoridad remota.
package encryption

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/box"

	apperrors "github.com/dropDatabas3/trustedlogin/internal/errors"
)

const (
	// NonceSize es el largo del nonce de nacl/box.
	NonceSize = 24
	// HashSize en bytes; Hash devuelve el doble en hex.
	HashSize = 16
	// HashedLen es el largo hex de un valor ya hasheado.
	HashedLen = HashSize * 2
)

// randReader es la fuente de aleatoriedad; reemplazable en tests.
var randReader io.Reader = rand.Reader

// GenerateKeypair genera un keypair de nacl/box en hex. Si la fuente segura de
// aleatoriedad falla retorna ErrMissingCapability; no hay fallback.
func GenerateKeypair() (publicKey, privateKey string, err error) {
	pub, priv, err := box.GenerateKey(randReader)
	if err != nil {
		return "", "", apperrors.ErrMissingCapability.WithDetail("keypair").WithCause(err)
	}
	return hex.EncodeToString(pub[:]), hex.EncodeToString(priv[:]), nil
}

// Nonce devuelve NonceSize bytes aleatorios.
func Nonce() ([]byte, error) {
	n := make([]byte, NonceSize)
	if _, err := io.ReadFull(randReader, n); err != nil {
		return nil, apperrors.ErrMissingCapability.WithDetail("nonce").WithCause(err)
	}
	return n, nil
}

// RandomHex devuelve n bytes aleatorios en hex.
func RandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return "", apperrors.ErrMissingCapability.WithDetail("random").WithCause(err)
	}
	return hex.EncodeToString(b), nil
}

// Hash es blake2b de 16 bytes en hex. Determinístico; el resultado aparece en
// URLs, no es secreto.
func Hash(input string) string {
	h, _ := blake2b.New(HashSize, nil) // sin key nunca falla
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeIdentifier hashea valores más largos que un hash; los cortos se
// consideran ya hasheados.
func NormalizeIdentifier(id string) string {
	if len(id) > HashedLen {
		return Hash(id)
	}
	return id
}

// ErrInvalidKey indica un PEM que no contiene una clave RSA utilizable.
var ErrInvalidKey = errors.New("encryption: invalid RSA key")

// ParsePublicKey acepta "PUBLIC KEY" (PKIX) o "RSA PUBLIC KEY" (PKCS#1).
func ParsePublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case "RSA PUBLIC KEY":
		k, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		return k, nil
	default:
		k, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		rk, ok := k.(*rsa.PublicKey)
		if !ok {
			return nil, ErrInvalidKey
		}
		return rk, nil
	}
}

// ParsePrivateKey acepta PKCS#1 o PKCS#8.
func ParsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, ErrInvalidKey
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	rk, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrInvalidKey
	}
	return rk, nil
}

// Encrypt cifra plaintext con RSA-OAEP (SHA-1, compatible con openssl) y
// devuelve base64.
func Encrypt(plaintext, publicKeyPEM string) (string, error) {
	pub, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return "", err
	}
	ct, err := rsa.EncryptOAEP(sha1.New(), randReader, pub, []byte(plaintext), nil)
	if err != nil {
		return "", fmt.Errorf("encryption: encrypt: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt es la inversa de Encrypt. Sólo la usa el lado del vendor (y tests).
func Decrypt(ciphertextB64, privateKeyPEM string) (string, error) {
	priv, err := ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return "", err
	}
	ct, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("encryption: decode: %w", err)
	}
	pt, err := rsa.DecryptOAEP(sha1.New(), nil, priv, ct, nil)
	if err != nil {
		return "", fmt.Errorf("encryption: decrypt: %w", err)
	}
	return string(pt), nil
}
