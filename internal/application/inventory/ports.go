package inventory

import (
	"context"
	"time"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/repository"
)

// TxRepos agrupa los repositorios atados a una misma transacción.
type TxRepos struct {
	Lots         repository.LotRepository
	Movements    repository.MovementRepository
	Reservations repository.ReservationRepository
	Overrides    repository.OverrideAuditRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace Rollback; si no, Commit. Garantiza atomicidad para el motor de stock.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos TxRepos) error) error
}

// Observer recibe métricas del núcleo (sumidero de una sola vía).
type Observer interface {
	IncCounter(name string, labels map[string]string)
	ObserveDuration(name string, d time.Duration, labels map[string]string)
}

// EventPublisher publica los movimientos ya confirmados.
type EventPublisher interface {
	PublishMovements(ctx context.Context, movements []*entity.Movement) error
}

// NopObserver descarta todo.
type NopObserver struct{}

func (NopObserver) IncCounter(string, map[string]string)                     {}
func (NopObserver) ObserveDuration(string, time.Duration, map[string]string) {}

// NopPublisher no publica nada.
type NopPublisher struct{}

func (NopPublisher) PublishMovements(context.Context, []*entity.Movement) error { return nil }
