package usecase

import (
	"testing"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPaymentMethodTable_Normalize(t *testing.T) {
	table := NewPaymentMethodTable(nil, zap.NewNop())

	tests := []struct {
		name              string
		token             string
		expectedModuleID  string
		expectedGatewayID string
		expectedDefaulted bool
	}{
		{name: "empty", token: "", expectedModuleID: "0", expectedGatewayID: "banktransfer", expectedDefaulted: true},
		{name: "null literal", token: "null", expectedModuleID: "0", expectedGatewayID: "banktransfer", expectedDefaulted: true},
		{name: "undefined literal", token: "undefined", expectedModuleID: "0", expectedGatewayID: "banktransfer", expectedDefaulted: true},
		{name: "whitespace", token: "   ", expectedModuleID: "0", expectedGatewayID: "banktransfer", expectedDefaulted: true},
		{name: "comgate", token: "comgate", expectedModuleID: "12", expectedGatewayID: "comgate"},
		{name: "payu mixed case", token: " PayU ", expectedModuleID: "10", expectedGatewayID: "10"},
		{name: "banktransfer", token: "banktransfer", expectedModuleID: "0", expectedGatewayID: "banktransfer"},
		{name: "manual", token: "manual", expectedModuleID: "0", expectedGatewayID: "banktransfer"},
		{name: "card", token: "card", expectedModuleID: "13", expectedGatewayID: "stripe"},
		{name: "garbage", token: "unknown-garbage", expectedModuleID: "0", expectedGatewayID: "banktransfer", expectedDefaulted: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := table.Normalize(tt.token)
			assert.Equal(t, tt.expectedModuleID, sel.PaymentModuleID)
			assert.Equal(t, tt.expectedGatewayID, sel.GatewayID)
			assert.Equal(t, tt.expectedDefaulted, sel.Defaulted)
		})
	}
}

func TestPaymentMethodTable_EmptyInputsShareCreditBalancePair(t *testing.T) {
	table := NewPaymentMethodTable(nil, zap.NewNop())

	empty := table.Normalize("")
	for _, token := range []string{"null", "undefined"} {
		sel := table.Normalize(token)
		assert.Equal(t, empty.PaymentModuleID, sel.PaymentModuleID)
		assert.Equal(t, empty.GatewayID, sel.GatewayID)
		assert.True(t, sel.IsCreditBalance())
	}
}

func TestPaymentMethodTable_Overrides(t *testing.T) {
	table := NewPaymentMethodTable(map[string]config.PaymentMethodConfig{
		"Comgate":  {ModuleID: "21"},
		"gopay":    {ModuleID: "30", GatewayID: "gopay"},
		"halfdone": {ModuleID: "31"},
	}, zap.NewNop())

	comgate := table.Normalize("comgate")
	assert.Equal(t, "21", comgate.PaymentModuleID)
	assert.Equal(t, "comgate", comgate.GatewayID)

	gopay := table.Normalize("gopay")
	assert.Equal(t, "30", gopay.PaymentModuleID)
	assert.False(t, gopay.Defaulted)

	// an override without a gateway id for an unknown token is ignored
	assert.True(t, table.Normalize("halfdone").Defaulted)
	assert.Contains(t, table.Tokens(), "gopay")
	assert.Equal(t, entity.CreditBalanceModuleID, table.Normalize("").PaymentModuleID)
}
