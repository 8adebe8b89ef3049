package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrProviderUnavailable wraps every transport, non-2xx or malformed-response failure.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

// mockPrefix marks synthetic references issued when a provider has no credentials.
const mockPrefix = "mock_"

type PaymentRequest struct {
	PaymentID   string
	OrderID     string
	Amount      decimal.Decimal
	Currency    string
	Description string
	Email       string
	CallbackURL string
	ReturnURL   string
}

// PaymentResponse is the outcome of an initiation. Success=false with Error set means the
// provider answered and declined; transport problems are returned as Go errors instead.
type PaymentResponse struct {
	Success     bool
	Reference   string
	RedirectURL string
	FormFields  map[string]string
	Error       string
	Raw         []byte
}

// Notification is the provider-neutral view of an asynchronous callback.
type Notification struct {
	Reference     string // value matched against Payment.ProviderRef
	ProviderTxnID string
	Status        string
	Success       bool
	Raw           []byte
}

// StatusResult is an authoritative answer from a provider status poll.
type StatusResult struct {
	Success       bool
	Status        string
	Reference     string
	PaymentMethod string
	Raw           []byte
}

type Provider interface {
	Method() string
	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)
}

// CallbackVerifier is implemented by providers that notify through a callback URL.
type CallbackVerifier interface {
	ParseCallback(body []byte) (*Notification, error)
	VerifyCallback(ctx context.Context, n *Notification) bool
}

// WebhookVerifier is implemented by providers that sign their webhooks.
type WebhookVerifier interface {
	VerifyWebhook(signature string, body []byte) bool
}

// StatusChecker is implemented by providers that can be polled.
type StatusChecker interface {
	CheckStatus(ctx context.Context, reference string) (*StatusResult, error)
}

func IsMockReference(ref string) bool {
	return strings.HasPrefix(ref, mockPrefix)
}

func mockReference(paymentID string) string {
	return mockPrefix + paymentID
}

func unavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProviderUnavailable, fmt.Sprintf(format, args...))
}

// do sends req and returns the status code and body. Non-2xx responses are
// returned together with an ErrProviderUnavailable error.
func do(client *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, unavailable("%v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, unavailable("read body: %v", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, body, unavailable("status %d", resp.StatusCode)
	}
	return resp.StatusCode, body, nil
}
