package resilience

import (
	"context"
	"fmt"
	"time"
)

// TimeoutConfig bounds each layer of a request. Inner layers must give up before outer ones:
//
//	HTTP handler, queue job or cron run
//	  service operation
//	    billing provider call
type TimeoutConfig struct {
	HTTPHandler  time.Duration
	JobExecution time.Duration
	CronJob      time.Duration
	Service      time.Duration
	ProviderCall time.Duration
}

// DefaultTimeoutConfig returns production timeout values
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:  30 * time.Second,
		JobExecution: 2 * time.Minute,
		CronJob:      5 * time.Minute,
		Service:      25 * time.Second,
		ProviderCall: 15 * time.Second,
	}
}

// TestTimeoutConfig returns shorter timeouts for testing
func TestTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPHandler:  5 * time.Second,
		JobExecution: 8 * time.Second,
		CronJob:      10 * time.Second,
		Service:      4 * time.Second,
		ProviderCall: 2 * time.Second,
	}
}

// Validate checks that every layer fits inside its parent
func (tc *TimeoutConfig) Validate() error {
	pairs := []struct {
		inner, outer         time.Duration
		innerName, outerName string
	}{
		{tc.Service, tc.HTTPHandler, "service", "http handler"},
		{tc.ProviderCall, tc.Service, "provider call", "service"},
		{tc.ProviderCall, tc.JobExecution, "provider call", "job execution"},
	}
	for _, p := range pairs {
		if p.inner <= 0 {
			return fmt.Errorf("%s timeout must be positive", p.innerName)
		}
		if p.inner >= p.outer {
			return fmt.Errorf("%s timeout %v must be shorter than %s timeout %v", p.innerName, p.inner, p.outerName, p.outer)
		}
	}
	if tc.CronJob <= 0 {
		return fmt.Errorf("cron job timeout must be positive")
	}
	return nil
}

// HandlerContext bounds an HTTP request
func (tc *TimeoutConfig) HandlerContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.HTTPHandler)
}

// JobContext bounds one job attempt. A creation job covers every line of its order.
func (tc *TimeoutConfig) JobContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.JobExecution)
}

func (tc *TimeoutConfig) CronContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.CronJob)
}

// ServiceContext bounds a synchronous service operation such as a webhook delivery
func (tc *TimeoutConfig) ServiceContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.Service)
}

// ProviderContext bounds one call to the billing provider
func (tc *TimeoutConfig) ProviderContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, tc.ProviderCall)
}
