package usecase

import (
	"sort"
	"strings"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/config"
	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	"go.uber.org/zap"
)

// CreditBalanceGatewayID is the gateway id paired with the Credit-Balance module
const CreditBalanceGatewayID = "banktransfer"

var defaultPaymentMethods = map[string]entity.PaymentSelection{
	"banktransfer": {PaymentModuleID: entity.CreditBalanceModuleID, GatewayID: CreditBalanceGatewayID},
	"manual":       {PaymentModuleID: entity.CreditBalanceModuleID, GatewayID: CreditBalanceGatewayID},
	"credit":       {PaymentModuleID: entity.CreditBalanceModuleID, GatewayID: CreditBalanceGatewayID},
	"comgate":      {PaymentModuleID: "12", GatewayID: "comgate"},
	"payu":         {PaymentModuleID: "10", GatewayID: "10"},
	"stripe":       {PaymentModuleID: "13", GatewayID: "stripe"},
	"card":         {PaymentModuleID: "13", GatewayID: "stripe"},
}

// PaymentMethodTable maps storefront payment-method tokens to billing backend module and
// gateway ids. It is built once at startup and read-only afterwards.
type PaymentMethodTable struct {
	entries map[string]entity.PaymentSelection
}

// NewPaymentMethodTable builds the table from the defaults plus configured overrides.
// An override may omit either id; the missing one is kept from the default entry.
func NewPaymentMethodTable(overrides map[string]config.PaymentMethodConfig, logger *zap.Logger) *PaymentMethodTable {
	entries := make(map[string]entity.PaymentSelection, len(defaultPaymentMethods)+len(overrides))
	for token, sel := range defaultPaymentMethods {
		sel.Token = token
		entries[token] = sel
	}

	for rawToken, o := range overrides {
		token := normalizeToken(rawToken)
		if token == "" {
			continue
		}
		sel := entries[token]
		sel.Token = token
		if o.ModuleID != "" {
			sel.PaymentModuleID = o.ModuleID
		}
		if o.GatewayID != "" {
			sel.GatewayID = o.GatewayID
		}
		if sel.PaymentModuleID == "" || sel.GatewayID == "" {
			logger.Warn("Ignoring incomplete payment method override",
				zap.String("token", token),
				zap.String("module_id", o.ModuleID),
				zap.String("gateway_id", o.GatewayID))
			continue
		}
		entries[token] = sel
	}

	return &PaymentMethodTable{entries: entries}
}

// Normalize resolves a token to its selection. Empty, null-like and unknown tokens resolve
// to Credit-Balance with Defaulted set; this never fails.
func (t *PaymentMethodTable) Normalize(token string) entity.PaymentSelection {
	key := normalizeToken(token)
	if sel, ok := t.entries[key]; ok {
		return sel
	}
	return entity.PaymentSelection{
		Token:           key,
		PaymentModuleID: entity.CreditBalanceModuleID,
		GatewayID:       CreditBalanceGatewayID,
		Defaulted:       true,
	}
}

// Tokens lists the known tokens in sorted order
func (t *PaymentMethodTable) Tokens() []string {
	tokens := make([]string, 0, len(t.entries))
	for token := range t.entries {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

func normalizeToken(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	switch token {
	case "null", "undefined", "nil", "none":
		return ""
	}
	return token
}
