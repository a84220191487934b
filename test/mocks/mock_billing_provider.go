package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// MockBillingProvider is an in-memory billing provider for testing
type MockBillingProvider struct {
	mu sync.Mutex

	customers     map[string]*domain.ProviderCustomer
	subscriptions map[string]*domain.ProviderSubscription
	canceled      map[string]bool
	updateErrors  map[string]error
	seq           int

	// SubscriptionStatus is the status new subscriptions get; active when empty
	SubscriptionStatus domain.ProviderSubscriptionStatus
	// FailSubscription, when set, decides per call whether CreateSubscription fails
	FailSubscription func(params domain.CreateSubscriptionParams) error
	ProductError     error
	IntentError      error

	// Call tracking
	CreateProductCalls      int
	CreateSubscriptionCalls int
	UpdateCalls             int
	CreateCustomerCalls     int
	GetCalls                int

	ProductNames       []string
	CreatedParams      []domain.CreateSubscriptionParams
	LastIntentParams   *domain.PaymentIntentParams
	LastCustomerParams *domain.CreateCustomerParams
}

var _ ports.BillingProvider = (*MockBillingProvider)(nil)

// NewMockBillingProvider creates a new mock billing provider
func NewMockBillingProvider() *MockBillingProvider {
	return &MockBillingProvider{
		customers:     make(map[string]*domain.ProviderCustomer),
		subscriptions: make(map[string]*domain.ProviderSubscription),
		canceled:      make(map[string]bool),
		updateErrors:  make(map[string]error),
	}
}

// AddCustomer registers an existing provider customer
func (m *MockBillingProvider) AddCustomer(c domain.ProviderCustomer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.Email] = &c
}

// MarkCanceled makes later updates of id answer "already canceled"
func (m *MockBillingProvider) MarkCanceled(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canceled[id] = true
}

// SetUpdateError makes updates of id fail with err
func (m *MockBillingProvider) SetUpdateError(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateErrors[id] = err
}

// Subscription returns a stored subscription
func (m *MockBillingProvider) Subscription(id string) (domain.ProviderSubscription, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.subscriptions[id]
	if !ok {
		return domain.ProviderSubscription{}, false
	}
	return *sub, true
}

func (m *MockBillingProvider) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s_%d", prefix, m.seq)
}

func (m *MockBillingProvider) FindCustomerByEmail(_ context.Context, email string) (*domain.ProviderCustomer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[email]
	if !ok {
		return nil, nil
	}
	copied := *c
	return &copied, nil
}

func (m *MockBillingProvider) CreateCustomer(_ context.Context, params domain.CreateCustomerParams) (*domain.ProviderCustomer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCustomerCalls++
	m.LastCustomerParams = &params
	c := &domain.ProviderCustomer{ID: m.nextID("cus"), Email: params.Email, Name: params.Name}
	m.customers[params.Email] = c
	copied := *c
	return &copied, nil
}

func (m *MockBillingProvider) CreateProduct(_ context.Context, name string) (*domain.ProviderProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateProductCalls++
	if m.ProductError != nil {
		return nil, m.ProductError
	}
	m.ProductNames = append(m.ProductNames, name)
	return &domain.ProviderProduct{ID: m.nextID("prod"), Name: name}, nil
}

func (m *MockBillingProvider) CreateSubscription(_ context.Context, params domain.CreateSubscriptionParams) (*domain.ProviderSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateSubscriptionCalls++
	if m.FailSubscription != nil {
		if err := m.FailSubscription(params); err != nil {
			return nil, err
		}
	}
	status := m.SubscriptionStatus
	if status == "" {
		status = domain.ProviderSubscriptionActive
	}
	m.CreatedParams = append(m.CreatedParams, params)
	sub := &domain.ProviderSubscription{
		ID:         m.nextID("sub"),
		CustomerID: params.CustomerID,
		Status:     status,
		Metadata:   params.Metadata,
	}
	m.subscriptions[sub.ID] = sub
	copied := *sub
	return &copied, nil
}

func (m *MockBillingProvider) UpdateSubscription(_ context.Context, id string, params domain.UpdateSubscriptionParams) (*domain.ProviderSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	if err := m.updateErrors[id]; err != nil {
		return nil, err
	}
	if m.canceled[id] {
		return nil, domain.ErrSubscriptionAlreadyCanceled
	}
	sub, ok := m.subscriptions[id]
	if !ok {
		sub = &domain.ProviderSubscription{ID: id, Status: domain.ProviderSubscriptionActive}
		m.subscriptions[id] = sub
	}
	if params.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *params.CancelAtPeriodEnd
	}
	copied := *sub
	return &copied, nil
}

func (m *MockBillingProvider) GetSubscription(_ context.Context, id string) (*domain.ProviderSubscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	sub, ok := m.subscriptions[id]
	if !ok {
		return nil, domain.NewDomainError(domain.ErrorCodeProviderRejected, "no such subscription").WithDetail("id", id)
	}
	copied := *sub
	return &copied, nil
}

func (m *MockBillingProvider) CreatePaymentIntent(_ context.Context, params domain.PaymentIntentParams) (*domain.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastIntentParams = &params
	if m.IntentError != nil {
		return nil, m.IntentError
	}
	id := m.nextID("pi")
	return &domain.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       "requires_payment_method",
		Currency:     params.Currency,
		Amount:       params.Amount,
	}, nil
}

// MockProviderFactory hands out one MockBillingProvider for every channel
type MockProviderFactory struct {
	Provider *MockBillingProvider
	// VerifyError is returned by VerifyWebhookSignature
	VerifyError error
	VerifyCalls int
}

var _ ports.BillingProviderFactory = (*MockProviderFactory)(nil)

// NewMockProviderFactory creates a factory around provider
func NewMockProviderFactory(provider *MockBillingProvider) *MockProviderFactory {
	return &MockProviderFactory{Provider: provider}
}

func (f *MockProviderFactory) ForChannel(channel *domain.Channel) (ports.BillingProvider, error) {
	if channel.PaymentMethod == nil || channel.PaymentMethod.APIKey == "" {
		return nil, domain.ErrPaymentMethodMissing
	}
	return f.Provider, nil
}

func (f *MockProviderFactory) VerifyWebhookSignature(_ []byte, _ string, _ string) error {
	f.VerifyCalls++
	return f.VerifyError
}
