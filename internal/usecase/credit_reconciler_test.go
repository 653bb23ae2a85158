package usecase

import (
	"context"
	"testing"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	domainErrors "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestReconciler(backend *fakeBackend) *CreditReconciler {
	return NewCreditReconciler(backend, config.DefaultDeferredCycles(), zap.NewNop())
}

func TestCreditReconciler_QuarterlyCreditBalance(t *testing.T) {
	backend := newFakeBackend()
	backend.addOrder("500", "897", decimal.NewFromInt(897), "CZK", entity.BillingCycleQuarterly)
	backend.applyCreditBalanceDefault("897")

	before := backend.invoice("897")
	require.True(t, decimal.NewFromInt(897).Equal(before.Credit))
	require.Equal(t, entity.InvoiceStatusPaid, before.Status)

	result, err := newTestReconciler(backend).ReconcileDeferredCredit(
		context.Background(), "897", decimal.NewFromInt(897), entity.BillingCycleQuarterly, entity.CreditBalanceModuleID)
	require.NoError(t, err)

	assert.True(t, result.Applied)
	assert.True(t, decimal.NewFromInt(897).Equal(result.CreditBefore))
	assert.True(t, result.CreditAfter.IsZero())
	assert.True(t, decimal.NewFromInt(-897).Equal(result.Adjustment))
	assert.Equal(t, entity.InvoiceStatusUnpaid, result.Status)

	after := backend.invoice("897")
	assert.True(t, after.Credit.IsZero())
	assert.Equal(t, entity.InvoiceStatusUnpaid, after.Status)
}

func TestCreditReconciler_Idempotent(t *testing.T) {
	backend := newFakeBackend()
	backend.addOrder("500", "897", decimal.NewFromInt(897), "CZK", entity.BillingCycleQuarterly)
	backend.applyCreditBalanceDefault("897")
	reconciler := newTestReconciler(backend)

	_, err := reconciler.ReconcileDeferredCredit(context.Background(), "897", decimal.NewFromInt(897), "Quarterly", "0")
	require.NoError(t, err)

	second, err := reconciler.ReconcileDeferredCredit(context.Background(), "897", decimal.NewFromInt(897), "Quarterly", "0")
	require.NoError(t, err)

	assert.False(t, second.Applied)
	assert.Equal(t, "invoice credit already zero", second.SkipReason)
	assert.Equal(t, 1, backend.callCount("applyCredit"))
	assert.Equal(t, 1, backend.callCount("setInvoiceStatus"))
	assert.True(t, backend.invoice("897").Credit.IsZero())
}

func TestCreditReconciler_NotApplicable(t *testing.T) {
	tests := []struct {
		name     string
		cycle    string
		moduleID string
	}{
		{name: "monthly credit balance", cycle: entity.BillingCycleMonthly, moduleID: entity.CreditBalanceModuleID},
		{name: "quarterly gateway payment", cycle: entity.BillingCycleQuarterly, moduleID: "12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.addOrder("500", "897", decimal.NewFromInt(897), "CZK", tt.cycle)
			backend.applyCreditBalanceDefault("897")

			result, err := newTestReconciler(backend).ReconcileDeferredCredit(
				context.Background(), "897", decimal.NewFromInt(897), tt.cycle, tt.moduleID)
			require.NoError(t, err)

			assert.False(t, result.Applied)
			assert.NotEmpty(t, result.SkipReason)
			assert.Empty(t, backend.calls)
		})
	}
}

func TestCreditReconciler_KeepsRealPayment(t *testing.T) {
	backend := newFakeBackend()
	backend.addOrder("500", "897", decimal.NewFromInt(897), "CZK", entity.BillingCycleAnnually)
	_, err := backend.AddInvoicePayment(context.Background(), paymentEntry("897", "VS897", 897))
	require.NoError(t, err)

	result, err := newTestReconciler(backend).ReconcileDeferredCredit(
		context.Background(), "897", decimal.NewFromInt(897), entity.BillingCycleAnnually, "0")
	require.NoError(t, err)

	assert.False(t, result.Applied)
	assert.Equal(t, entity.InvoiceStatusPaid, backend.invoice("897").Status)
}

func TestCreditReconciler_ReconcileInvoiceResolvesOrder(t *testing.T) {
	backend := newFakeBackend()
	backend.addOrder("500", "897", decimal.NewFromInt(897), "CZK", "Semi-Annually")
	backend.applyCreditBalanceDefault("897")

	result, err := newTestReconciler(backend).ReconcileInvoice(context.Background(), "897", "")
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, entity.InvoiceStatusUnpaid, backend.invoice("897").Status)

	_, err = newTestReconciler(backend).ReconcileInvoice(context.Background(), "", "")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidRequest)
}

func TestCreditReconciler_IsDeferred(t *testing.T) {
	reconciler := newTestReconciler(newFakeBackend())
	assert.True(t, reconciler.IsDeferred("Quarterly"))
	assert.True(t, reconciler.IsDeferred("semi-annually"))
	assert.False(t, reconciler.IsDeferred("Monthly"))
	assert.False(t, reconciler.IsDeferred(""))
}
