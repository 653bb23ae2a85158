package usecase

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/entity"
	domainErrors "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/errors"
	domainRepo "github.com/Traderpoint/CloudVPS-2-sub003/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// fakeBackend is an in-memory billing backend. Payments are deduplicated by transaction
// id and an invoice flips to Paid once the recorded total covers its amount.
type fakeBackend struct {
	mu sync.Mutex

	orders   map[string]*entity.Order
	invoices map[string]*entity.Invoice
	active   map[string]bool
	// provisioned holds service ids whose account is already Active
	provisioned map[string]bool

	authorizeErr error
	captureErr   error
	activateErr  error
	addErr       error
	provisionErr error

	// skipAutoPaid keeps invoices Unpaid after a payment, like a backend that lags
	skipAutoPaid bool

	calls       []string
	nextPayment int
}

var _ domainRepo.BillingBackend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		orders:   make(map[string]*entity.Order),
		invoices: make(map[string]*entity.Invoice),
		active:   make(map[string]bool),

		provisioned: make(map[string]bool),
	}
}

func (f *fakeBackend) addOrder(orderID, invoiceID string, amount decimal.Decimal, currency, cycle string) {
	f.orders[orderID] = &entity.Order{
		ID:        orderID,
		InvoiceID: invoiceID,
		ClientID:  "c-1",
		Status:    "Pending",
		Total:     amount,
		Currency:  currency,
		Service: &entity.Service{
			ID:           "s-" + orderID,
			BillingCycle: cycle,
			Amount:       amount,
		},
	}
	f.invoices[invoiceID] = &entity.Invoice{
		ID:       invoiceID,
		OrderID:  orderID,
		Status:   entity.InvoiceStatusUnpaid,
		Amount:   amount,
		Currency: currency,
	}
}

func (f *fakeBackend) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) callCount(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeBackend) invoice(id string) entity.Invoice {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv := *f.invoices[id]
	inv.Transactions = append([]entity.LedgerEntry(nil), inv.Transactions...)
	return inv
}

func (f *fakeBackend) GetOrderDetails(ctx context.Context, orderID string) (*entity.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("getOrderDetails")
	order, ok := f.orders[orderID]
	if !ok {
		return nil, domainErrors.NewBackendRejectedError("getOrderDetails", "Order not found")
	}
	copied := *order
	return &copied, nil
}

func (f *fakeBackend) GetInvoiceDetails(ctx context.Context, invoiceID string) (*entity.Invoice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("getInvoiceDetails")
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return nil, domainErrors.NewBackendRejectedError("getInvoiceDetails", "Invoice not found")
	}
	copied := *inv
	copied.Transactions = append([]entity.LedgerEntry(nil), inv.Transactions...)
	return &copied, nil
}

func (f *fakeBackend) AuthorizeViaGateway(ctx context.Context, orderID, invoiceID, transactionID string, amount decimal.Decimal) (*domainRepo.GatewayCallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("authorizePayment")
	if f.authorizeErr != nil {
		return nil, f.authorizeErr
	}
	f.active[orderID] = true
	return &domainRepo.GatewayCallResult{BalanceState: "Authorized"}, nil
}

func (f *fakeBackend) CaptureViaGateway(ctx context.Context, invoiceID, transactionID string, amount decimal.Decimal) (*domainRepo.GatewayCallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("capturePayment")
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	f.addPayment(invoiceID, transactionID, amount, "gateway")
	return &domainRepo.GatewayCallResult{BalanceState: "Completed"}, nil
}

func (f *fakeBackend) SetOrderActive(ctx context.Context, orderID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("setOrderActive")
	if f.activateErr != nil {
		return f.activateErr
	}
	f.active[orderID] = true
	return nil
}

func (f *fakeBackend) AddInvoicePayment(ctx context.Context, entry domainRepo.PaymentEntry) (*domainRepo.PaymentEntryResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("addInvoicePayment")
	if f.addErr != nil {
		return nil, f.addErr
	}
	id, added := f.addPayment(entry.InvoiceID, entry.TransactionID, entry.Amount, entry.ModuleLabel)
	return &domainRepo.PaymentEntryResult{PaymentID: id, Duplicate: !added}, nil
}

// addPayment must be called with mu held
func (f *fakeBackend) addPayment(invoiceID, transactionID string, amount decimal.Decimal, module string) (string, bool) {
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return "", false
	}
	if inv.HasTransaction(transactionID) {
		return "", false
	}
	now := time.Now()
	inv.Transactions = append(inv.Transactions, entity.LedgerEntry{
		TransactionID: transactionID,
		Amount:        amount,
		Module:        module,
		Date:          &now,
	})
	if !f.skipAutoPaid && inv.RecordedTotal().GreaterThanOrEqual(inv.Amount) {
		inv.Status = entity.InvoiceStatusPaid
		inv.PaidAt = &now
	}
	f.nextPayment++
	return strconv.Itoa(f.nextPayment), true
}

func (f *fakeBackend) RunProvisioningHooks(ctx context.Context, orderID string) (*domainRepo.ProvisioningOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	serviceID := "s-" + orderID
	if f.provisioned[serviceID] {
		return &domainRepo.ProvisioningOutcome{
			Skipped: []string{serviceID},
			Message: "all services already active",
		}, nil
	}
	f.record("accountCreate")
	if f.provisionErr != nil {
		return nil, f.provisionErr
	}
	f.provisioned[serviceID] = true
	return &domainRepo.ProvisioningOutcome{
		Accounts: []string{serviceID},
		Message:  fmt.Sprintf("1 account(s) created for order %s", orderID),
	}, nil
}

func (f *fakeBackend) ApplyCredit(ctx context.Context, invoiceID string, amount decimal.Decimal) (*domainRepo.CreditAdjustment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("applyCredit")
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return nil, domainErrors.NewBackendRejectedError("applyCredit", "Invoice not found")
	}
	inv.Credit = inv.Credit.Add(amount)
	return &domainRepo.CreditAdjustment{
		InvoiceID:   invoiceID,
		Applied:     amount,
		CreditAfter: inv.Credit,
	}, nil
}

func (f *fakeBackend) SetInvoiceStatus(ctx context.Context, invoiceID string, status entity.InvoiceStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("setInvoiceStatus")
	inv, ok := f.invoices[invoiceID]
	if !ok {
		return domainErrors.NewBackendRejectedError("setInvoiceStatus", "Invoice not found")
	}
	inv.Status = status
	if status != entity.InvoiceStatusPaid {
		inv.PaidAt = nil
	}
	return nil
}

// applyCreditBalanceDefault mimics the backend settling a Credit-Balance invoice on its own:
// credit equal to the amount and status Paid.
func (f *fakeBackend) applyCreditBalanceDefault(invoiceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv := f.invoices[invoiceID]
	now := time.Now()
	inv.Credit = inv.Amount
	inv.Status = entity.InvoiceStatusPaid
	inv.PaidAt = &now
	inv.PaymentModuleID = entity.CreditBalanceModuleID
}

func paymentEntry(invoiceID, transactionID string, amount int64) domainRepo.PaymentEntry {
	return domainRepo.PaymentEntry{
		InvoiceID:     invoiceID,
		Amount:        decimal.NewFromInt(amount),
		ModuleLabel:   "Bank Transfer",
		TransactionID: transactionID,
	}
}
