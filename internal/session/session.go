// Package session implementa la sesión opaca por navegador: un registro
// clave/valor pequeño identificado por un cookie de transporte.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// CookieName es el nombre del cookie de transporte de la sesión.
const CookieName = "knotes_session"

// Store define el contrato del registro de sesión. Los valores son strings
// cortos serializables; el store es dueño de su propia disciplina de
// concurrencia y expiración.
type Store interface {
	Get(ctx context.Context, sid, key string) (string, bool, error)
	Set(ctx context.Context, sid, key, value string) error
	Delete(ctx context.Context, sid string, keys ...string) error
	Destroy(ctx context.Context, sid string) error
}

// NewID genera un identificador de sesión criptográficamente seguro.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// DefaultTTL acota la vida de una sesión sin actividad.
const DefaultTTL = 7 * 24 * time.Hour
