package entity

import "time"

// IdempotencyKey guarda la respuesta original de una operación con clave del cliente.
// StatusCode 0 significa que la operación sigue en curso.
type IdempotencyKey struct {
	Key          string
	Operation    string
	RequestHash  string
	StatusCode   int
	ResponseBody []byte
	CreatedBy    string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// IsExpired indica si la clave venció en now.
func (k *IdempotencyKey) IsExpired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}

// IsCompleted indica si ya hay una respuesta guardada.
func (k *IdempotencyKey) IsCompleted() bool {
	return k.StatusCode != 0
}
