package subscription

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
	"github.com/kevin07696/subscription-billing/internal/pricing"
	"github.com/kevin07696/subscription-billing/pkg/resilience"
	"github.com/kevin07696/subscription-billing/test/mocks"
)

type orderStore struct {
	mu          sync.Mutex
	orders      map[string]*domain.Order
	variants    map[string]*domain.Variant
	payments    []domain.PaymentInput
	transitions []domain.OrderState
	surcharges  []domain.Surcharge
	hashes      map[string]string
	appendErr   error
}

func newOrderStore() *orderStore {
	return &orderStore{
		orders:   make(map[string]*domain.Order),
		variants: make(map[string]*domain.Variant),
		hashes:   make(map[string]string),
	}
}

func (s *orderStore) put(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.Code] = o
}

func (s *orderStore) line(id string) (*domain.OrderLine, bool) {
	for _, o := range s.orders {
		for i := range o.Lines {
			if o.Lines[i].ID == id {
				return &o.Lines[i], true
			}
		}
	}
	return nil, false
}

func copyOrder(o *domain.Order) *domain.Order {
	c := *o
	c.Lines = make([]domain.OrderLine, len(o.Lines))
	for i, l := range o.Lines {
		l.SubscriptionIDs = slices.Clone(l.SubscriptionIDs)
		c.Lines[i] = l
	}
	return &c
}

func (s *orderStore) FindOrderByCode(_ context.Context, channelID, code string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[code]
	if !ok || o.ChannelID != channelID {
		return nil, domain.ErrNotFound
	}
	return copyOrder(o), nil
}

func (s *orderStore) FindOrderByID(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == id {
			return copyOrder(o), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *orderStore) FindOrderLineByID(_ context.Context, id string) (*domain.OrderLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.line(id)
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *l
	c.SubscriptionIDs = slices.Clone(l.SubscriptionIDs)
	return &c, nil
}

func (s *orderStore) FindVariantByID(_ context.Context, _ string, id string) (*domain.Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.variants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *v
	return &c, nil
}

func (s *orderStore) AppendSubscriptionIDs(_ context.Context, lineID string, ids ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	l, ok := s.line(lineID)
	if !ok {
		return domain.ErrNotFound
	}
	for _, id := range ids {
		if !slices.Contains(l.SubscriptionIDs, id) {
			l.SubscriptionIDs = append(l.SubscriptionIDs, id)
		}
	}
	return nil
}

func (s *orderStore) SetDownpaymentSubscriptionID(_ context.Context, lineID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	l, ok := s.line(lineID)
	if !ok {
		return domain.ErrNotFound
	}
	if !slices.Contains(l.SubscriptionIDs, id) {
		l.SubscriptionIDs = append(l.SubscriptionIDs, id)
	}
	l.DownpaymentSubscriptionID = id
	return nil
}

func (s *orderStore) SetSubscriptionHash(_ context.Context, lineID, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.line(lineID)
	if !ok {
		return domain.ErrNotFound
	}
	l.SubscriptionHash = hash
	s.hashes[lineID] = hash
	return nil
}

func (s *orderStore) AddPaymentToOrder(_ context.Context, _ string, payment domain.PaymentInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, payment)
	return nil
}

func (s *orderStore) TransitionOrderState(_ context.Context, orderID string, state domain.OrderState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == orderID {
			o.State = state
		}
	}
	s.transitions = append(s.transitions, state)
	return nil
}

func (s *orderStore) AddSurcharge(_ context.Context, orderID string, surcharge domain.Surcharge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ID == orderID {
			o.TotalWithTax += surcharge.Amount
		}
	}
	s.surcharges = append(s.surcharges, surcharge)
	return nil
}

type historyStore struct {
	mu      sync.Mutex
	entries map[string][]domain.HistoryEntry
}

func newHistoryStore() *historyStore {
	return &historyStore{entries: make(map[string][]domain.HistoryEntry)}
}

func (h *historyStore) AppendOrderHistory(_ context.Context, orderID, entryType string, data domain.HistoryData) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[orderID] = append(h.entries[orderID], domain.HistoryEntry{
		ID:      fmt.Sprintf("h%d", len(h.entries[orderID])+1),
		OrderID: orderID,
		Type:    entryType,
		Data:    data,
	})
	return nil
}

func (h *historyStore) ListOrderHistory(_ context.Context, orderID string) ([]domain.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.entries[orderID]), nil
}

func (h *historyStore) messages(orderID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var msgs []string
	for _, e := range h.entries[orderID] {
		msgs = append(msgs, e.Data.Message)
	}
	return msgs
}

type paymentEventStore struct {
	mu     sync.Mutex
	events []domain.PaymentEvent
}

func (p *paymentEventStore) Insert(_ context.Context, event *domain.PaymentEvent) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.InvoiceID == event.InvoiceID && e.EventType == event.EventType {
			return false, nil
		}
	}
	event.ID = int64(len(p.events) + 1)
	p.events = append(p.events, *event)
	return true, nil
}

func (p *paymentEventStore) List(_ context.Context, filter domain.PaymentEventFilter) ([]domain.PaymentEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.PaymentEvent
	for _, e := range p.events {
		if e.ChannelID == filter.ChannelID && (filter.OrderCode == "" || e.OrderCode == filter.OrderCode) {
			out = append(out, e)
		}
	}
	return out, nil
}

type jobRecorder struct {
	mu      sync.Mutex
	creates []domain.CreateSubscriptionsJob
	cancels []domain.CancelSubscriptionJob
}

func (j *jobRecorder) EnqueueCreateSubscriptions(_ context.Context, _ domain.RequestContext, payload domain.CreateSubscriptionsJob) (ports.JobHandle, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.creates = append(j.creates, payload)
	return ports.JobHandle{ID: fmt.Sprintf("create-%d", len(j.creates)), Queue: domain.BillingQueueName}, nil
}

func (j *jobRecorder) EnqueueCancelSubscription(_ context.Context, _ domain.RequestContext, payload domain.CancelSubscriptionJob) (ports.JobHandle, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancels = append(j.cancels, payload)
	return ports.JobHandle{ID: fmt.Sprintf("cancel-%d", len(j.cancels)), Queue: domain.BillingQueueName}, nil
}

type staticChannels map[string]*domain.Channel

func (c staticChannels) Resolve(_ context.Context, token string) (*domain.Channel, error) {
	ch, ok := c[token]
	if !ok {
		return nil, domain.ErrChannelNotFound
	}
	return ch, nil
}

type staticPromotions []pricing.Promotion

var testNow = time.Date(2024, time.March, 16, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc        *Service
	orders     *orderStore
	history    *historyStore
	events     *paymentEventStore
	jobs       *jobRecorder
	provider   *mocks.MockBillingProvider
	factory    *mocks.MockProviderFactory
	logger     *mocks.MockLogger
	channel    *domain.Channel
	promotions staticPromotions
}

func newFixture() *fixture {
	f := &fixture{
		orders:   newOrderStore(),
		history:  newHistoryStore(),
		events:   &paymentEventStore{},
		jobs:     &jobRecorder{},
		provider: mocks.NewMockBillingProvider(),
		logger:   mocks.NewMockLogger(),
		channel: &domain.Channel{
			ID:              "1",
			Token:           "chan-token",
			DefaultCurrency: "USD",
			PaymentMethod: &domain.PaymentMethodConfig{
				Code:          "stripe-subscription",
				Handler:       "stripe-subscription",
				APIKey:        "sk_test_123",
				WebhookSecret: "whsec_123",
				Enabled:       true,
			},
		},
	}
	f.factory = mocks.NewMockProviderFactory(f.provider)
	f.svc = f.build()
	return f
}

func (f *fixture) build() *Service {
	return NewService(Config{
		Timeouts: resilience.TestTimeoutConfig(),
		Now:      func() time.Time { return testNow },
	}, Dependencies{
		Orders:        f.orders,
		History:       f.history,
		PaymentEvents: f.events,
		Promotions:    &f.promotions,
		Channels:      staticChannels{f.channel.Token: f.channel},
		Providers:     f.factory,
		Jobs:          f.jobs,
	}, f.logger)
}

func (p *staticPromotions) ActivePromotions(context.Context, string) ([]pricing.Promotion, error) {
	return *p, nil
}

func monthlySchedule() *domain.Schedule {
	return &domain.Schedule{
		ID:            "sched-monthly",
		Name:          "Monthly",
		IntervalUnit:  domain.IntervalUnitMonth,
		IntervalCount: 1,
		StartMoment:   domain.StartMomentStartOfCycle,
		AutoRenew:     true,
	}
}

func yearWithDownpaymentSchedule() *domain.Schedule {
	return &domain.Schedule{
		ID:                "sched-dp",
		Name:              "Yearly commitment",
		IntervalUnit:      domain.IntervalUnitMonth,
		IntervalCount:     1,
		DurationUnit:      domain.IntervalUnitYear,
		DurationCount:     1,
		StartMoment:       domain.StartMomentStartOfCycle,
		DownpaymentAmount: 2000,
		AutoRenew:         true,
	}
}

func subscriptionLine(id, name, sku string, price int64, schedule *domain.Schedule) domain.OrderLine {
	return domain.OrderLine{
		ID:        id,
		OrderID:   "o1",
		Quantity:  1,
		UnitPrice: price,
		Variant: domain.Variant{
			ID:       "v-" + id,
			Name:     name,
			SKU:      sku,
			Currency: "USD",
			Price:    price,
			Schedule: schedule,
		},
	}
}

func testOrder(lines ...domain.OrderLine) *domain.Order {
	var total int64
	for _, l := range lines {
		total += l.UnitPrice * int64(l.Quantity)
	}
	return &domain.Order{
		ID:                "o1",
		Code:              "ORDER1",
		ChannelID:         "1",
		State:             domain.OrderStateAddingItems,
		Currency:          "USD",
		Customer:          &domain.Customer{ID: "c1", Email: "jane@example.com", FirstName: "Jane", LastName: "Doe"},
		Lines:             lines,
		ShippingLineCount: 1,
		TotalWithTax:      total,
	}
}
