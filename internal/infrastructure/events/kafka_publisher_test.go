package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/infrastructure/events"
)

func movement(id, typ, lotID, qty string) *entity.Movement {
	return &entity.Movement{
		ID:        id,
		Type:      typ,
		ProductID: "P",
		LotID:     lotID,
		LotCode:   "L-" + lotID,
		Qty:       decimal.RequireFromString(qty),
		Reason:    entity.ReasonSale,
		OrderID:   "O-1",
		CreatedBy: "u1",
		CreatedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

func expectEvent(lotID, qty string) mocks.ValueChecker {
	return func(val []byte) error {
		var ev events.MovementEvent
		if err := json.Unmarshal(val, &ev); err != nil {
			return err
		}
		if ev.LotID != lotID || !ev.Qty.Equal(decimal.RequireFromString(qty)) {
			return errors.New("evento inesperado: " + string(val))
		}
		if ev.EventType != events.EventStockExit || ev.EventID == "" {
			return errors.New("faltan tipo o id de evento")
		}
		return nil
	}
}

func TestPublishMovements_UnMensajePorMovimientoEnOrden(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(expectEvent("A", "5"))
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(expectEvent("B", "5"))

	pub := events.NewKafkaPublisher(producer, "stock.movements", zerolog.Nop())
	err := pub.PublishMovements(context.Background(), []*entity.Movement{
		movement("m1", entity.MovementTypeExit, "A", "5"),
		movement("m2", entity.MovementTypeExit, "B", "5"),
	})
	require.NoError(t, err)
	require.NoError(t, pub.Close())
}

func TestPublishMovements_ErrorDelBroker(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := events.NewKafkaPublisher(producer, "stock.movements", zerolog.Nop())
	err := pub.PublishMovements(context.Background(), []*entity.Movement{
		movement("m1", entity.MovementTypeExit, "A", "1"),
	})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, pub.Close())
}

func TestPublishMovements_SinMovimientosNoEnvia(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	pub := events.NewKafkaPublisher(producer, "stock.movements", zerolog.Nop())

	assert.NoError(t, pub.PublishMovements(context.Background(), nil))
	require.NoError(t, pub.Close())
}

func TestEventFromMovement_Entrada(t *testing.T) {
	cost := decimal.RequireFromString("9.50")
	m := movement("m1", entity.MovementTypeEntry, "A", "12")
	m.UnitCost = &cost

	ev := events.EventFromMovement(m)
	assert.Equal(t, events.EventStockEntry, ev.EventType)
	assert.Equal(t, "m1", ev.MovementID)
	assert.Equal(t, "u1", ev.Actor)
	require.NotNil(t, ev.UnitCost)
	assert.True(t, ev.UnitCost.Equal(cost))
}
