package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"marketpay/internal/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// SantimPayProvider implements the reference-based flow: SantimPay issues a
// referenceId at initiation and callbacks are confirmed by looking it up again.
type SantimPayProvider struct {
	BaseURL    string
	client     *http.Client
	configured bool
}

func NewSantimPayProvider(baseURL, tokenURL, clientID, clientSecret string, timeout time.Duration) *SantimPayProvider {
	if baseURL == "" {
		baseURL = "https://services.santimpay.com/api"
	}
	p := &SantimPayProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
	if clientID != "" && clientSecret != "" {
		cc := &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
		p.client = cc.Client(ctx)
		p.client.Timeout = timeout
		p.configured = true
	}
	return p
}

func (p *SantimPayProvider) Method() string { return domain.MethodSantimPay }

type santimInitReq struct {
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	Reason            string `json:"reason"`
	MerchantReference string `json:"merchantReference"`
	NotifyURL         string `json:"notifyUrl"`
	SuccessURL        string `json:"successUrl"`
	FailureURL        string `json:"failureUrl"`
}

type santimPaymentResp struct {
	ReferenceID string `json:"referenceId"`
	PaymentURL  string `json:"paymentUrl"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

func (p *SantimPayProvider) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	if !p.configured {
		ref := mockReference(req.PaymentID)
		log.Printf("[SANTIMPAY] no client credentials configured, issuing mock referenceId=%s", ref)
		return &PaymentResponse{
			Success:     true,
			Reference:   ref,
			RedirectURL: p.BaseURL + "/mock/" + ref,
		}, nil
	}
	payload := santimInitReq{
		Amount:            req.Amount.StringFixed(2),
		Currency:          req.Currency,
		Reason:            req.Description,
		MerchantReference: req.PaymentID,
		NotifyURL:         req.CallbackURL,
		SuccessURL:        req.ReturnURL,
		FailureURL:        req.ReturnURL,
	}
	body, _ := json.Marshal(payload)
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	apiReq.Header.Set("Content-Type", "application/json")
	log.Printf("[SANTIMPAY] POST %s/v1/payments merchantReference=%s amount=%s", p.BaseURL, req.PaymentID, payload.Amount)
	status, respBody, err := do(p.client, apiReq)
	if err != nil {
		log.Printf("[SANTIMPAY] initiate failed status=%d err=%v", status, err)
		return nil, err
	}
	var out santimPaymentResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, unavailable("santimpay: malformed initiate response")
	}
	if out.ReferenceID == "" || out.PaymentURL == "" {
		msg := out.Message
		if msg == "" {
			msg = "santimpay did not issue a reference"
		}
		return &PaymentResponse{Success: false, Error: msg, Raw: respBody}, nil
	}
	return &PaymentResponse{
		Success:     true,
		Reference:   out.ReferenceID,
		RedirectURL: out.PaymentURL,
		Raw:         respBody,
	}, nil
}

// SantimPayNotification is the callback body posted to notifyUrl.
type SantimPayNotification struct {
	ReferenceID       string `json:"referenceId"`
	MerchantReference string `json:"merchantReference"`
	TxnID             string `json:"txnId"`
	Status            string `json:"status"`
	Message           string `json:"message"`
}

func (p *SantimPayProvider) ParseCallback(body []byte) (*Notification, error) {
	var n SantimPayNotification
	if err := json.Unmarshal(body, &n); err != nil {
		return nil, fmt.Errorf("santimpay callback: %w", err)
	}
	if n.ReferenceID == "" {
		return nil, fmt.Errorf("santimpay callback: missing referenceId")
	}
	return &Notification{
		Reference:     n.ReferenceID,
		ProviderTxnID: n.TxnID,
		Status:        n.Status,
		Success:       SantimPaySucceeded(n.Status),
		Raw:           body,
	}, nil
}

// VerifyCallback confirms the notification with a live lookup of the reference.
func (p *SantimPayProvider) VerifyCallback(ctx context.Context, n *Notification) bool {
	if !p.configured {
		return IsMockReference(n.Reference)
	}
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/v1/payments/"+url.PathEscape(n.Reference), nil)
	if err != nil {
		return false
	}
	_, respBody, err := do(p.client, apiReq)
	if err != nil {
		log.Printf("[SANTIMPAY] lookup referenceId=%s failed: %v", n.Reference, err)
		return false
	}
	var remote santimPaymentResp
	if err := json.Unmarshal(respBody, &remote); err != nil {
		return false
	}
	return remote.ReferenceID == n.Reference && strings.EqualFold(remote.Status, n.Status)
}

// SantimPaySucceeded maps SantimPay's status vocabulary to success.
func SantimPaySucceeded(status string) bool {
	return status == "SUCCESS" || status == "COMPLETED"
}
