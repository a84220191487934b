package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kevin07696/subscription-billing/internal/domain"
	"github.com/kevin07696/subscription-billing/internal/domain/ports"
)

// SignatureHeader is the header carrying the webhook signature
const SignatureHeader = "Stripe-Signature"

// DefaultSignatureTolerance bounds how old a signed timestamp may be
const DefaultSignatureTolerance = 5 * time.Minute

// SignatureVerifier checks "t=<unix>,v1=<hex>" signature headers.
// The signed payload is "<t>.<raw body>" under HMAC-SHA256 with the channel's webhook secret.
type SignatureVerifier struct {
	now       func() time.Time
	tolerance time.Duration
}

var _ ports.WebhookVerifier = (*SignatureVerifier)(nil)

// NewSignatureVerifier creates a verifier. A zero tolerance disables the timestamp check.
func NewSignatureVerifier(tolerance time.Duration) *SignatureVerifier {
	return &SignatureVerifier{now: time.Now, tolerance: tolerance}
}

// VerifyWebhookSignature returns domain.ErrSignatureInvalid wrapped with the reason on any mismatch
func (v *SignatureVerifier) VerifyWebhookSignature(rawBody []byte, signatureHeader, secret string) error {
	if secret == "" {
		return invalidSignature("webhook secret is not configured")
	}
	if signatureHeader == "" {
		return invalidSignature("signature header is missing")
	}

	timestamp, signatures, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return invalidSignature(err.Error())
	}

	if v.tolerance > 0 {
		age := v.now().Sub(time.Unix(timestamp, 0))
		if age > v.tolerance {
			return invalidSignature(fmt.Sprintf("signature timestamp too old: %v", age))
		}
		if age < -v.tolerance {
			return invalidSignature("signature timestamp is in the future")
		}
	}

	expected := []byte(ComputeSignature(timestamp, rawBody, secret))
	for _, sig := range signatures {
		if hmac.Equal(expected, []byte(sig)) {
			return nil
		}
	}
	return invalidSignature("no matching v1 signature")
}

// ComputeSignature returns the hex HMAC-SHA256 of "<timestamp>.<payload>"
func ComputeSignature(timestamp int64, payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write([]byte("."))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SignPayload builds a signature header for payload; used by tests and local tooling
func SignPayload(timestamp int64, payload []byte, secret string) string {
	return fmt.Sprintf("t=%d,v1=%s", timestamp, ComputeSignature(timestamp, payload, secret))
}

func parseSignatureHeader(header string) (int64, []string, error) {
	var (
		timestamp  int64
		haveTime   bool
		signatures []string
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("invalid timestamp %q", value)
			}
			timestamp, haveTime = ts, true
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if !haveTime {
		return 0, nil, fmt.Errorf("signature header has no timestamp")
	}
	if len(signatures) == 0 {
		return 0, nil, fmt.Errorf("signature header has no v1 signature")
	}
	return timestamp, signatures, nil
}

func invalidSignature(reason string) error {
	return domain.WrapError(domain.ErrorCodeSignatureInvalid, "webhook signature is invalid", fmt.Errorf("%s", reason))
}
