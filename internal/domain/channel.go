package domain

// PaymentMethodConfig is the provider configuration of a channel's payment method
type PaymentMethodConfig struct {
	Code                            string `json:"code" yaml:"code"`
	Handler                         string `json:"handler" yaml:"handler"`
	APIKey                          string `json:"-" yaml:"-"`
	PublishableKey                  string `json:"publishable_key" yaml:"publishable_key"`
	WebhookSecret                   string `json:"-" yaml:"-"`
	Enabled                         bool   `json:"enabled" yaml:"enabled"`
	DisableWebhookSignatureChecking bool   `json:"disable_webhook_signature_checking" yaml:"disable_webhook_signature_checking"`
}

// Channel is the tenancy context a request or job runs in
type Channel struct {
	PaymentMethod   *PaymentMethodConfig `json:"payment_method,omitempty"`
	ID              string               `json:"id"`
	Token           string               `json:"token"`
	DefaultCurrency string               `json:"default_currency"`
}

// RequestContext is serialized into jobs so they can be replayed with the right tenancy
type RequestContext struct {
	ChannelToken string `json:"channel_token"`
	LanguageCode string `json:"language_code,omitempty"`
	ActorID      string `json:"actor_id,omitempty"`
}
