package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketpay/internal/domain"

	"github.com/tidwall/gjson"
)

// ChapaProvider implements the hosted-checkout flow. The payment id is sent as tx_ref,
// so webhooks and status polls are keyed by our own id.
type ChapaProvider struct {
	BaseURL         string
	CheckoutBaseURL string
	SecretKey       string
	WebhookSecret   string
	client          *http.Client
}

func NewChapaProvider(baseURL, checkoutBaseURL, secretKey, webhookSecret string, timeout time.Duration) *ChapaProvider {
	if baseURL == "" {
		baseURL = "https://api.chapa.co"
	}
	if checkoutBaseURL == "" {
		checkoutBaseURL = "https://checkout.chapa.co/checkout"
	}
	return &ChapaProvider{
		BaseURL:         strings.TrimRight(baseURL, "/"),
		CheckoutBaseURL: strings.TrimRight(checkoutBaseURL, "/"),
		SecretKey:       secretKey,
		WebhookSecret:   webhookSecret,
		client:          &http.Client{Timeout: timeout},
	}
}

func (p *ChapaProvider) Method() string { return domain.MethodChapa }

func (p *ChapaProvider) configured() bool { return p.SecretKey != "" }

type chapaInitReq struct {
	Amount        string             `json:"amount"`
	Currency      string             `json:"currency"`
	Email         string             `json:"email,omitempty"`
	TxRef         string             `json:"tx_ref"`
	CallbackURL   string             `json:"callback_url"`
	ReturnURL     string             `json:"return_url"`
	Customization chapaCustomization `json:"customization"`
}

type chapaCustomization struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (p *ChapaProvider) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	if !p.configured() {
		log.Printf("[CHAPA] no secret key configured, issuing mock checkout for tx_ref=%s", req.PaymentID)
		return &PaymentResponse{
			Success:     true,
			Reference:   req.PaymentID,
			RedirectURL: p.CheckoutBaseURL + "/mock/" + req.PaymentID,
		}, nil
	}
	payload := chapaInitReq{
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		Email:       req.Email,
		TxRef:       req.PaymentID,
		CallbackURL: req.CallbackURL,
		ReturnURL:   req.ReturnURL,
		Customization: chapaCustomization{
			Title:       "Order Payment",
			Description: req.Description,
		},
	}
	body, _ := json.Marshal(payload)
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/transaction/initialize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	apiReq.Header.Set("Content-Type", "application/json")
	apiReq.Header.Set("Authorization", "Bearer "+p.SecretKey)
	log.Printf("[CHAPA] POST %s/v1/transaction/initialize tx_ref=%s amount=%s", p.BaseURL, req.PaymentID, payload.Amount)
	status, respBody, err := do(p.client, apiReq)
	if err != nil {
		log.Printf("[CHAPA] initialize failed status=%d err=%v", status, err)
		return nil, err
	}
	if !gjson.ValidBytes(respBody) {
		return nil, unavailable("chapa: malformed initialize response")
	}
	res := gjson.ParseBytes(respBody)
	checkoutURL := res.Get("data.checkout_url").String()
	if res.Get("status").String() != "success" || checkoutURL == "" {
		msg := res.Get("message").String()
		if msg == "" {
			msg = "chapa declined the transaction"
		}
		return &PaymentResponse{Success: false, Error: msg, Raw: respBody}, nil
	}
	return &PaymentResponse{
		Success:     true,
		Reference:   req.PaymentID,
		RedirectURL: checkoutURL,
		Raw:         respBody,
	}, nil
}

// SignsWebhooks reports whether a webhook secret is configured. Without one every
// webhook is accepted as unsigned.
func (p *ChapaProvider) SignsWebhooks() bool { return p.WebhookSecret != "" }

// VerifyWebhook checks the hex HMAC-SHA256 of the raw body against the webhook secret.
func (p *ChapaProvider) VerifyWebhook(signature string, body []byte) bool {
	if p.WebhookSecret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(p.WebhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}

// CheckStatus asks Chapa for the authoritative state of tx_ref.
func (p *ChapaProvider) CheckStatus(ctx context.Context, reference string) (*StatusResult, error) {
	if !p.configured() {
		return &StatusResult{Success: true, Status: "success", Reference: reference}, nil
	}
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/v1/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}
	apiReq.Header.Set("Authorization", "Bearer "+p.SecretKey)
	status, respBody, err := do(p.client, apiReq)
	if status == http.StatusNotFound {
		return &StatusResult{Success: false, Status: "not_found", Raw: respBody}, nil
	}
	if err != nil {
		log.Printf("[CHAPA] verify tx_ref=%s failed: %v", reference, err)
		return nil, err
	}
	if !gjson.ValidBytes(respBody) {
		return nil, unavailable("chapa: malformed verify response")
	}
	data := gjson.GetBytes(respBody, "data")
	txStatus := data.Get("status").String()
	method := data.Get("payment_method").String()
	if method == "" {
		method = data.Get("method").String()
	}
	return &StatusResult{
		Success:       strings.EqualFold(txStatus, "success"),
		Status:        txStatus,
		Reference:     data.Get("reference").String(),
		PaymentMethod: method,
		Raw:           respBody,
	}, nil
}

// ChapaWebhook is the event body Chapa posts to the webhook URL.
type ChapaWebhook struct {
	Event         string `json:"event"`
	TxRef         string `json:"tx_ref"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	PaymentMethod string `json:"payment_method"`
	Currency      string `json:"currency"`
	Email         string `json:"email"`
}

func ParseChapaWebhook(body []byte) (*ChapaWebhook, error) {
	var w ChapaWebhook
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("chapa webhook: %w", err)
	}
	if w.TxRef == "" {
		return nil, fmt.Errorf("chapa webhook: missing tx_ref")
	}
	return &w, nil
}

func (w *ChapaWebhook) Succeeded() bool {
	return strings.EqualFold(w.Status, "success")
}

// NormalizeChapaMethod maps Chapa's free-text payment_method to a display label.
func NormalizeChapaMethod(raw string) string {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "telebirr"):
		return domain.MethodTelebirr
	case strings.Contains(s, "mpesa"), strings.Contains(s, "m-pesa"):
		return "MPESA"
	case strings.Contains(s, "cbebirr"), strings.Contains(s, "cbe birr"):
		return "CBEBIRR"
	case strings.Contains(s, "amole"):
		return "AMOLE"
	case strings.Contains(s, "awash"):
		return "AWASH"
	default:
		return domain.MethodChapa
	}
}
