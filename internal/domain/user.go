package domain

import "time"

// User es el ancla de identidad. Subject guarda el identificador estable
// externo: el subject OIDC para cuentas federadas, el email normalizado
// para cuentas locales.
type User struct {
	ID           string    `json:"id"`
	Subject      string    `json:"-"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsLocal indica si la cuenta tiene credenciales de password.
func (u User) IsLocal() bool {
	return u.PasswordHash != ""
}

// Credentials es el par transitorio email/password de un intento de login.
// Nunca se persiste.
type Credentials struct {
	Email    string
	Password string
}
