// Package idempotency garantiza que una operación mutante repetida con la misma clave
// del cliente se aplique una sola vez y devuelva siempre la misma respuesta.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/repository"
)

// DefaultTTL vigencia de una clave si no se configura otra.
const DefaultTTL = 24 * time.Hour

// DefaultLease tiempo tras el cual una reserva sin respuesta se considera abandonada.
// Tiene que superar la duración máxima de una operación, lock_timeout incluido.
const DefaultLease = 2 * time.Minute

// Request identifica una invocación: clave del cliente, operación y payload normalizado.
type Request struct {
	Key       string
	Operation string
	Actor     string
	Payload   any
}

// Response es lo que se guarda y se repite tal cual en cada replay.
type Response struct {
	StatusCode int
	Body       []byte
}

// Guard aplica la disciplina de claves sobre un IdempotencyRepository.
type Guard struct {
	repo  repository.IdempotencyRepository
	ttl   time.Duration
	lease time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

// NewGuard construye el guard. ttl <= 0 usa DefaultTTL; now nil usa time.Now.
func NewGuard(repo repository.IdempotencyRepository, ttl time.Duration, now func() time.Time, log zerolog.Logger) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Guard{repo: repo, ttl: ttl, lease: DefaultLease, now: now, log: log}
}

// WithLease fija cuánto dura una reserva sin respuesta. d <= 0 deja DefaultLease.
func (g *Guard) WithLease(d time.Duration) *Guard {
	if d > 0 {
		g.lease = d
	}
	return g
}

// Execute corre fn una sola vez por clave. Si la clave ya tiene respuesta guardada para la
// misma operación y el mismo payload, la devuelve sin ejecutar fn. Los fallos de negocio se
// guardan igual que los éxitos; los 5xx no, para que el cliente pueda reintentar.
// Una reserva sin respuesta más vieja que el lease se libera y la clave vuelve a estar disponible.
func (g *Guard) Execute(ctx context.Context, req Request, fn func(ctx context.Context) Response) (Response, error) {
	req.Key = strings.TrimSpace(req.Key)
	if req.Key == "" {
		return Response{}, &domain.StockError{Kind: domain.KindMissingIdempotencyKey, Message: "falta el header Idempotency-Key"}
	}
	hash, err := HashRequest(req.Operation, req.Payload)
	if err != nil {
		return Response{}, domain.Validation("payload no serializable: %v", err)
	}

	now := g.now()
	existing, err := g.lookup(ctx, req.Key, now)
	if err != nil {
		return Response{}, err
	}
	if existing != nil {
		return replay(existing, req.Operation, hash)
	}

	claim := &entity.IdempotencyKey{
		Key:         req.Key,
		Operation:   req.Operation,
		RequestHash: hash,
		CreatedBy:   req.Actor,
		CreatedAt:   now,
		ExpiresAt:   now.Add(g.ttl),
	}
	if err := g.repo.Insert(ctx, claim); err != nil {
		if !errors.Is(err, domain.ErrDuplicate) {
			return Response{}, fmt.Errorf("reservar clave de idempotencia: %w", err)
		}
		// Otra solicitud con la misma clave ganó la carrera.
		existing, err := g.repo.Get(ctx, req.Key)
		if err != nil {
			return Response{}, fmt.Errorf("leer clave de idempotencia: %w", err)
		}
		if existing == nil {
			return Response{}, inProgress(req.Key)
		}
		return replay(existing, req.Operation, hash)
	}

	resp := g.run(ctx, req.Key, fn)
	if resp.StatusCode >= 500 {
		g.release(ctx, req.Key)
		return resp, nil
	}
	if err := g.repo.Complete(ctx, req.Key, resp.StatusCode, resp.Body); err != nil {
		// La operación ya se confirmó: se responde igual y la reserva queda hasta que venza el lease.
		g.log.Error().Err(err).Str("key", req.Key).Str("operation", req.Operation).Msg("guardar respuesta idempotente")
	}
	return resp, nil
}

// lookup lee la clave descartando las vencidas y las reservas abandonadas.
func (g *Guard) lookup(ctx context.Context, key string, now time.Time) (*entity.IdempotencyKey, error) {
	existing, err := g.repo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("leer clave de idempotencia: %w", err)
	}
	if existing == nil {
		return nil, nil
	}
	if existing.IsExpired(now) {
		if err := g.repo.Delete(ctx, key); err != nil {
			return nil, fmt.Errorf("borrar clave vencida: %w", err)
		}
		return nil, nil
	}
	staleBefore := now.Add(-g.lease)
	if existing.IsCompleted() || existing.CreatedAt.After(staleBefore) {
		return existing, nil
	}
	released, err := g.repo.ReleaseStale(ctx, key, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("liberar reserva abandonada: %w", err)
	}
	if released {
		g.log.Warn().Str("key", key).Str("operation", existing.Operation).Time("claimed_at", existing.CreatedAt).
			Msg("reserva de idempotencia abandonada, se libera")
		return nil, nil
	}
	// Otra solicitud la completó o la volvió a reservar entre medio.
	existing, err = g.repo.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("leer clave de idempotencia: %w", err)
	}
	return existing, nil
}

// run ejecuta fn y libera la clave si entra en pánico antes de propagarlo.
func (g *Guard) run(ctx context.Context, key string, fn func(ctx context.Context) Response) Response {
	defer func() {
		if r := recover(); r != nil {
			g.release(ctx, key)
			panic(r)
		}
	}()
	return fn(ctx)
}

func (g *Guard) release(ctx context.Context, key string) {
	if err := g.repo.Delete(context.WithoutCancel(ctx), key); err != nil {
		g.log.Error().Err(err).Str("key", key).Msg("liberar clave de idempotencia")
	}
}

func replay(k *entity.IdempotencyKey, operation, hash string) (Response, error) {
	if k.Operation != operation || k.RequestHash != hash {
		return Response{}, &domain.StockError{
			Kind:    domain.KindIdempotency,
			Message: "la clave ya se usó con otra solicitud",
		}
	}
	if !k.IsCompleted() {
		return Response{}, inProgress(k.Key)
	}
	return Response{StatusCode: k.StatusCode, Body: k.ResponseBody}, nil
}

func inProgress(key string) error {
	return &domain.StockError{Kind: domain.KindIdempotency, Message: "hay una solicitud en curso con la clave " + key}
}

// Purge borra las claves vencidas y devuelve cuántas eliminó.
func (g *Guard) Purge(ctx context.Context) (int64, error) {
	n, err := g.repo.PurgeExpired(ctx, g.now())
	if err != nil {
		return 0, fmt.Errorf("purgar claves de idempotencia: %w", err)
	}
	return n, nil
}

// HashRequest resume operación y payload. json.Marshal ordena las claves de los mapas,
// así dos payloads equivalentes producen el mismo hash.
func HashRequest(operation string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(operation))
	h.Write([]byte{0})
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil)), nil
}
