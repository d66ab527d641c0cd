// Package events publica en Kafka los movimientos confirmados para auditoría y reportes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/inventory"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/pkg/config"
)

var _ inventory.EventPublisher = (*KafkaPublisher)(nil)

// Tipos de evento (header event-type).
const (
	EventStockEntry = "StockEntryRecorded"
	EventStockExit  = "StockExitRecorded"
)

// MovementEvent es el cuerpo JSON de cada mensaje.
type MovementEvent struct {
	EventID    string           `json:"event_id"`
	EventType  string           `json:"event_type"`
	MovementID string           `json:"movement_id"`
	ProductID  string           `json:"product_id"`
	LotID      string           `json:"lot_id"`
	LotCode    string           `json:"lot_code"`
	Qty        decimal.Decimal  `json:"qty"`
	UnitCost   *decimal.Decimal `json:"unit_cost,omitempty"`
	Reason     string           `json:"reason"`
	OrderID    string           `json:"order_id,omitempty"`
	Actor      string           `json:"actor"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// KafkaPublisher implementa inventory.EventPublisher sobre un SyncProducer.
// Todos los movimientos de una operación salen en un solo lote, con el producto como clave
// para que un consumidor los reciba en orden por partición.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	log      zerolog.Logger
}

// NewSyncProducer crea un productor idempotente que espera confirmación de todas las réplicas.
func NewSyncProducer(cfg config.KafkaConfig) (sarama.SyncProducer, error) {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.ClientID
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("crear productor Kafka: %w", err)
	}
	return producer, nil
}

// NewKafkaPublisher construye el publicador sobre un productor ya creado.
func NewKafkaPublisher(producer sarama.SyncProducer, topic string, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, log: log}
}

// PublishMovements envía un mensaje por movimiento.
func (p *KafkaPublisher) PublishMovements(ctx context.Context, movements []*entity.Movement) error {
	if len(movements) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("contexto cancelado: %w", err)
	}
	msgs := make([]*sarama.ProducerMessage, 0, len(movements))
	for _, m := range movements {
		msg, err := p.message(m)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := p.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("publicar movimientos: %w", err)
	}
	p.log.Debug().Str("topic", p.topic).Int("messages", len(msgs)).Msg("movimientos publicados")
	return nil
}

func (p *KafkaPublisher) message(m *entity.Movement) (*sarama.ProducerMessage, error) {
	ev := EventFromMovement(m)
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("serializar evento: %w", err)
	}
	return &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(m.ProductID),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event-type"), Value: []byte(ev.EventType)},
			{Key: []byte("event-id"), Value: []byte(ev.EventID)},
			{Key: []byte("timestamp"), Value: []byte(ev.OccurredAt.UTC().Format(time.RFC3339))},
		},
	}, nil
}

// EventFromMovement arma el evento de un movimiento.
func EventFromMovement(m *entity.Movement) MovementEvent {
	eventType := EventStockExit
	if m.Type == entity.MovementTypeEntry {
		eventType = EventStockEntry
	}
	return MovementEvent{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		MovementID: m.ID,
		ProductID:  m.ProductID,
		LotID:      m.LotID,
		LotCode:    m.LotCode,
		Qty:        m.Qty,
		UnitCost:   m.UnitCost,
		Reason:     m.Reason,
		OrderID:    m.OrderID,
		Actor:      m.CreatedBy,
		OccurredAt: m.CreatedAt,
	}
}

// Close cierra el productor.
func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
