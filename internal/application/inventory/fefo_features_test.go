package inventory_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/inventory"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/infrastructure/memory"
)

type fefoFeatureContext struct {
	f    *fixture
	movs []*entity.Movement
	err  error
}

func (c *fefoFeatureContext) reset() {
	store := memory.NewStore()
	c.f = buildFixture(store, store)
	c.movs = nil
	c.err = nil
}

func (c *fefoFeatureContext) productHasLot(productID, lotID, qty string, days int) error {
	c.f.store.PutLot(&entity.StockLot{
		ID:          lotID,
		ProductID:   productID,
		WarehouseID: "W1",
		LotCode:     "L-" + lotID,
		ExpiryDate:  time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days),
		QtyOnHand:   dec(qty),
		UnitCost:    dec("10.00"),
	})
	return nil
}

func (c *fefoFeatureContext) setFlag(lotID string, apply func(*entity.StockLot)) error {
	l, err := c.f.store.Lots().GetByID(context.Background(), lotID)
	if err != nil {
		return err
	}
	if l == nil {
		return fmt.Errorf("lote %s no existe", lotID)
	}
	apply(l)
	c.f.store.PutLot(l)
	return nil
}

func (c *fefoFeatureContext) lotIsQuarantined(lotID string) error {
	return c.setFlag(lotID, func(l *entity.StockLot) { l.IsQuarantined = true })
}

func (c *fefoFeatureContext) lotIsHardReserved(lotID string) error {
	return c.setFlag(lotID, func(l *entity.StockLot) { l.IsReserved = true })
}

func (c *fefoFeatureContext) requestExit(qty, productID string) error {
	c.movs, c.err = c.f.svc.RecordExitFEFO(context.Background(), inventory.ExitInput{
		ProductID: productID, Qty: dec(qty), Actor: "bdd",
	})
	return nil
}

func (c *fefoFeatureContext) requestExitWithShelfLife(qty, productID string, days int) error {
	c.movs, c.err = c.f.svc.RecordExitFEFO(context.Background(), inventory.ExitInput{
		ProductID: productID, Qty: dec(qty), Actor: "bdd", MinShelfLifeDays: &days,
	})
	return nil
}

func (c *fefoFeatureContext) requestOverride(qty, productID, lotID, reason string) error {
	c.movs, c.err = c.f.svc.RecordExitWithOverride(context.Background(), inventory.OverrideExitInput{
		ProductID: productID, Qty: dec(qty), LotID: lotID, OverrideReason: reason, Actor: "bdd",
	})
	return nil
}

func (c *fefoFeatureContext) exitProducesMovements(table *godog.Table) error {
	if c.err != nil {
		return fmt.Errorf("se esperaba éxito pero falló: %v", c.err)
	}
	rows := table.Rows[1:]
	if len(rows) != len(c.movs) {
		return fmt.Errorf("se esperaban %d movimientos, hubo %d", len(rows), len(c.movs))
	}
	for i, row := range rows {
		lotID, qty := row.Cells[0].Value, dec(row.Cells[1].Value)
		m := c.movs[i]
		if m.LotID != lotID || !m.Qty.Equal(qty) {
			return fmt.Errorf("movimiento %d: se esperaba %s:%s, hubo %s:%s", i, lotID, qty, m.LotID, m.Qty)
		}
		if m.Type != entity.MovementTypeExit {
			return fmt.Errorf("movimiento %d no es EXIT", i)
		}
	}
	return nil
}

func (c *fefoFeatureContext) lotHasQty(lotID, qty string) error {
	l, err := c.f.store.Lots().GetByID(context.Background(), lotID)
	if err != nil {
		return err
	}
	if l == nil {
		return fmt.Errorf("lote %s no existe", lotID)
	}
	if !l.QtyOnHand.Equal(dec(qty)) {
		return fmt.Errorf("lote %s: se esperaba %s, hay %s", lotID, qty, l.QtyOnHand)
	}
	return nil
}

func (c *fefoFeatureContext) exitFailsWith(kind string) error {
	if c.err == nil {
		return fmt.Errorf("se esperaba %s pero la salida tuvo éxito", kind)
	}
	if got := domain.KindOf(c.err); string(got) != kind {
		return fmt.Errorf("se esperaba %s, hubo %v", kind, c.err)
	}
	return nil
}

func (c *fefoFeatureContext) noMovementsRecorded() error {
	for _, productID := range []string{"P", "Q"} {
		movs, err := c.f.store.Movements().ListByProduct(context.Background(), productID, nil, nil, 0, 0)
		if err != nil {
			return err
		}
		if len(movs) != 0 {
			return fmt.Errorf("hay %d movimientos de %s", len(movs), productID)
		}
	}
	return nil
}

func (c *fefoFeatureContext) oneOverrideAuditReferences(productID, lotID string) error {
	audits, err := c.f.query.ListOverrides(context.Background(), productID, 0, 0)
	if err != nil {
		return err
	}
	if len(audits) != 1 {
		return fmt.Errorf("se esperaba una traza de override, hay %d", len(audits))
	}
	if audits[0].LotID != lotID {
		return fmt.Errorf("la traza referencia %s, no %s", audits[0].LotID, lotID)
	}
	return nil
}

func InitializeFEFOScenario(ctx *godog.ScenarioContext) {
	tc := &fefoFeatureContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given
	ctx.Step(`^product "([^"]*)" has lot "([^"]*)" with qty (\S+) expiring in (-?\d+) days$`, tc.productHasLot)
	ctx.Step(`^lot "([^"]*)" is quarantined$`, tc.lotIsQuarantined)
	ctx.Step(`^lot "([^"]*)" is hard-reserved$`, tc.lotIsHardReserved)

	// When
	ctx.Step(`^I request an exit of (\S+) units of "([^"]*)"$`, tc.requestExit)
	ctx.Step(`^I request an exit of (\S+) units of "([^"]*)" with minimum shelf life (\d+) days$`, tc.requestExitWithShelfLife)
	ctx.Step(`^I request an exit of (\S+) units of "([^"]*)" overriding lot "([^"]*)" because "([^"]*)"$`, tc.requestOverride)

	// Then
	ctx.Step(`^the exit produces movements:$`, tc.exitProducesMovements)
	ctx.Step(`^lot "([^"]*)" has qty (\S+)$`, tc.lotHasQty)
	ctx.Step(`^the exit fails with "([^"]*)"$`, tc.exitFailsWith)
	ctx.Step(`^no movements were recorded$`, tc.noMovementsRecorded)
	ctx.Step(`^exactly one override audit for "([^"]*)" references lot "([^"]*)"$`, tc.oneOverrideAuditReferences)
}

func TestFEFOFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeFEFOScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../../features/fefo.feature"},
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
