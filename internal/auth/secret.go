package auth

import "fmt"

// MinSecretLength es el mínimo de bytes exigido a los secretos de firma
// (JWT y sesión) en producción: 256 bits.
const MinSecretLength = 32

// WeakSecretError se devuelve al construir un componente con un secreto
// más corto que el mínimo en modo producción.
type WeakSecretError struct {
	Min    int
	Actual int
}

func (e *WeakSecretError) Error() string {
	return fmt.Sprintf("secret too weak: minimum %d bytes required, got %d", e.Min, e.Actual)
}

// ValidateSecret aplica la política de fuerza de secretos. En producción
// exige MinSecretLength bytes; fuera de producción acepta cualquier secreto
// no vacío (el llamador debe loguear la advertencia).
func ValidateSecret(secret string, production bool) error {
	if production {
		if len(secret) < MinSecretLength {
			return &WeakSecretError{Min: MinSecretLength, Actual: len(secret)}
		}
		return nil
	}
	if secret == "" {
		return fmt.Errorf("secret must not be empty")
	}
	return nil
}
