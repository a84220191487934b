package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	adapterports "github.com/kevin07696/subscription-billing/internal/adapters/ports"
	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
	pkgerrors "github.com/kevin07696/subscription-billing/pkg/errors"
	"github.com/kevin07696/subscription-billing/pkg/observability"
	"github.com/kevin07696/subscription-billing/pkg/resilience"
)

const (
	// DefaultBaseURL is the provider's public API endpoint
	DefaultBaseURL = "https://api.stripe.com"
	// DefaultAPIVersion pins the response shapes the client decodes
	DefaultAPIVersion = "2023-10-16"
)

// ClientConfig contains configuration for the provider API client
type ClientConfig struct {
	Timeouts *resilience.TimeoutConfig
	// Breaker is applied per channel; IsFailure is always overridden
	Breaker    resilience.CircuitBreakerConfig
	BaseURL    string
	APIVersion string
}

// DefaultClientConfig returns production defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:    DefaultBaseURL,
		APIVersion: DefaultAPIVersion,
		Timeouts:   resilience.DefaultTimeoutConfig(),
		Breaker:    resilience.DefaultCircuitBreakerConfig(),
	}
}

// Client implements ports.BillingProvider for one channel's secret key
type Client struct {
	httpClient   adapterports.HTTPClient
	logger       ports.Logger
	breaker      *resilience.CircuitBreaker
	timeouts     *resilience.TimeoutConfig
	now          func() time.Time
	baseURL      string
	apiVersion   string
	apiKey       string
	channelToken string
}

var _ ports.BillingProvider = (*Client)(nil)

// NewClient creates a provider client bound to apiKey
func NewClient(cfg ClientConfig, apiKey, channelToken string, httpClient adapterports.HTTPClient, logger ports.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeouts == nil {
		cfg.Timeouts = resilience.DefaultTimeoutConfig()
	}
	if cfg.Breaker.MaxFailures == 0 {
		cfg.Breaker = resilience.DefaultCircuitBreakerConfig()
	}

	breakerCfg := cfg.Breaker
	breakerCfg.IsFailure = pkgerrors.IsRetriable
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		observability.SetCircuitState(channelToken, int(to))
		logger.Warn("provider circuit breaker changed state",
			ports.String("channel", channelToken),
			ports.String("from", from.String()),
			ports.String("to", to.String()),
		)
	}

	return &Client{
		httpClient:   httpClient,
		logger:       logger,
		breaker:      resilience.NewCircuitBreaker(breakerCfg),
		timeouts:     cfg.Timeouts,
		now:          time.Now,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion:   cfg.APIVersion,
		apiKey:       apiKey,
		channelToken: channelToken,
	}
}

type apiCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type apiCustomerList struct {
	Data []apiCustomer `json:"data"`
}

type apiProduct struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type apiSubscription struct {
	Metadata          map[string]string `json:"metadata"`
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
}

type apiPaymentIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
	Currency     string `json:"currency"`
	Amount       int64  `json:"amount"`
}

type apiErrorBody struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// FindCustomerByEmail returns the first customer with email, or nil when there is none
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*domain.ProviderCustomer, error) {
	query := url.Values{}
	query.Set("email", email)
	query.Set("limit", "1")

	var list apiCustomerList
	if err := c.do(ctx, "find_customer", http.MethodGet, "/v1/customers?"+query.Encode(), nil, &list); err != nil {
		return nil, err
	}
	if len(list.Data) == 0 {
		return nil, nil
	}
	cust := list.Data[0]
	return &domain.ProviderCustomer{ID: cust.ID, Email: cust.Email, Name: cust.Name}, nil
}

// CreateCustomer creates a customer
func (c *Client) CreateCustomer(ctx context.Context, params domain.CreateCustomerParams) (*domain.ProviderCustomer, error) {
	body := newForm().
		set("email", params.Email).
		set("name", params.Name).
		metadata(params.Metadata)

	var cust apiCustomer
	if err := c.do(ctx, "create_customer", http.MethodPost, "/v1/customers", body, &cust); err != nil {
		return nil, err
	}
	return &domain.ProviderCustomer{ID: cust.ID, Email: cust.Email, Name: cust.Name}, nil
}

// CreateProduct creates a product the subscription price is attached to
func (c *Client) CreateProduct(ctx context.Context, name string) (*domain.ProviderProduct, error) {
	var prod apiProduct
	if err := c.do(ctx, "create_product", http.MethodPost, "/v1/products", newForm().set("name", name), &prod); err != nil {
		return nil, err
	}
	return &domain.ProviderProduct{ID: prod.ID, Name: prod.Name}, nil
}

// CreateSubscription creates an off-session subscription charging the saved payment method.
// A start date in the future is expressed as a trial that ends on it, so nothing is charged before.
func (c *Client) CreateSubscription(ctx context.Context, params domain.CreateSubscriptionParams) (*domain.ProviderSubscription, error) {
	body := newForm().
		set("customer", params.CustomerID).
		set("default_payment_method", params.PaymentMethodID).
		set("description", params.Description).
		setBool("off_session", true).
		set("proration_behavior", "none").
		set("items[0][price_data][currency]", strings.ToLower(params.Currency)).
		set("items[0][price_data][product]", params.ProductID).
		setInt("items[0][price_data][unit_amount]", params.Amount).
		set("items[0][price_data][recurring][interval]", string(params.Interval)).
		setInt("items[0][price_data][recurring][interval_count]", int64(params.IntervalCount)).
		metadata(params.Metadata)

	if params.StartDate.After(c.now()) {
		body.setInt("trial_end", params.StartDate.Unix())
	}
	if params.EndDate != nil {
		body.setInt("cancel_at", params.EndDate.Unix())
	}

	var sub apiSubscription
	if err := c.do(ctx, "create_subscription", http.MethodPost, "/v1/subscriptions", body, &sub); err != nil {
		return nil, err
	}
	return sub.toDomain(), nil
}

// UpdateSubscription updates the mutable fields of a subscription
func (c *Client) UpdateSubscription(ctx context.Context, id string, params domain.UpdateSubscriptionParams) (*domain.ProviderSubscription, error) {
	body := newForm()
	if params.CancelAtPeriodEnd != nil {
		body.setBool("cancel_at_period_end", *params.CancelAtPeriodEnd)
	}

	var sub apiSubscription
	err := c.do(ctx, "update_subscription", http.MethodPost, "/v1/subscriptions/"+url.PathEscape(id), body, &sub)
	if err != nil {
		switch {
		case isSubscriptionCanceled(err):
			return nil, domain.ErrSubscriptionAlreadyCanceled
		case isResourceMissing(err):
			return nil, fmt.Errorf("%w: %w", domain.ErrSubscriptionNotFound, err)
		}
		return nil, err
	}
	return sub.toDomain(), nil
}

// GetSubscription fetches a subscription by id
func (c *Client) GetSubscription(ctx context.Context, id string) (*domain.ProviderSubscription, error) {
	var sub apiSubscription
	if err := c.do(ctx, "get_subscription", http.MethodGet, "/v1/subscriptions/"+url.PathEscape(id), nil, &sub); err != nil {
		return nil, err
	}
	return sub.toDomain(), nil
}

// CreatePaymentIntent creates a payment intent the storefront confirms client side
func (c *Client) CreatePaymentIntent(ctx context.Context, params domain.PaymentIntentParams) (*domain.PaymentIntent, error) {
	body := newForm().
		setInt("amount", params.Amount).
		set("currency", strings.ToLower(params.Currency)).
		set("customer", params.CustomerID).
		set("setup_future_usage", params.SetupFutureUsage).
		set("description", params.Description).
		setBool("automatic_payment_methods[enabled]", true).
		metadata(params.Metadata)

	var pi apiPaymentIntent
	if err := c.do(ctx, "create_payment_intent", http.MethodPost, "/v1/payment_intents", body, &pi); err != nil {
		return nil, err
	}
	return &domain.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       pi.Status,
		Currency:     pi.Currency,
		Amount:       pi.Amount,
	}, nil
}

func (s *apiSubscription) toDomain() *domain.ProviderSubscription {
	out := &domain.ProviderSubscription{
		Metadata:          s.Metadata,
		ID:                s.ID,
		CustomerID:        s.Customer,
		Status:            domain.ProviderSubscriptionStatus(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.CurrentPeriodEnd > 0 {
		end := time.Unix(s.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &end
	}
	return out
}

// do sends one request through the breaker and decodes the JSON response into out
func (c *Client) do(ctx context.Context, operation, method, path string, body *form, out interface{}) error {
	ctx, cancel := c.timeouts.ProviderContext(ctx)
	defer cancel()

	start := time.Now()
	err := c.breaker.Call(func() error {
		return c.send(ctx, method, path, body, out)
	})
	elapsed := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	observability.RecordProviderCall(operation, status, elapsed.Seconds())

	if err != nil {
		c.logger.Warn("provider call failed",
			ports.String("operation", operation),
			ports.String("channel", c.channelToken),
			ports.Duration("elapsed", elapsed),
			ports.Err(err),
		)
		return toDomainError(ctx, operation, err)
	}

	c.logger.Debug("provider call succeeded",
		ports.String("operation", operation),
		ports.Duration("elapsed", elapsed),
	)
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body *form, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(body.encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.apiVersion != "" {
		req.Header.Set("Stripe-Version", c.apiVersion)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		netErr := pkgerrors.NewProviderError("network_error", "failed to reach billing provider",
			pkgerrors.CategoryNetworkError, true)
		netErr.ProviderMessage = err.Error()
		return netErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiErrorBody
		_ = json.Unmarshal(raw, &apiErr)
		pe := pkgerrors.FromStatus(resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
		if apiErr.Error.Type != "" {
			pe.Details["type"] = apiErr.Error.Type
		}
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if secs, convErr := strconv.Atoi(retryAfter); convErr == nil {
				pe.Details["retry_after_seconds"] = secs
			}
		}
		return pe
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

func toDomainError(ctx context.Context, operation string, err error) error {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyRequests):
		return domain.WrapError(domain.ErrorCodeProviderUnavailable, "billing provider circuit is open", err).
			WithDetail("operation", operation)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.WrapError(domain.ErrorCodeProviderTimeout, "billing provider call timed out", err).
			WithDetail("operation", operation)
	}

	var pe *pkgerrors.ProviderError
	if errors.As(err, &pe) {
		code := domain.ErrorCodeProviderRejected
		if pe.IsRetriable {
			code = domain.ErrorCodeProviderError
		}
		if pe.Category == pkgerrors.CategoryNetworkError {
			code = domain.ErrorCodeProviderUnavailable
		}
		return domain.WrapError(code, "billing provider call failed", err).
			WithDetail("operation", operation).
			WithDetail("status", pe.StatusCode)
	}
	return domain.WrapError(domain.ErrorCodeProviderError, "billing provider call failed", err).
		WithDetail("operation", operation)
}

// isSubscriptionCanceled matches the provider's refusal to update a canceled subscription
func isSubscriptionCanceled(err error) bool {
	var pe *pkgerrors.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return strings.Contains(strings.ToLower(pe.ProviderMessage), "canceled subscription")
}

// isResourceMissing matches an unknown id; a mistyped id looks the same as a deleted one
func isResourceMissing(err error) bool {
	var pe *pkgerrors.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Code == "resource_missing" || pe.Category == pkgerrors.CategoryNotFound
}
