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
	"sort"
	"strconv"
	"strings"
	"time"

	"marketpay/internal/domain"

	"github.com/google/uuid"
)

// TelebirrProvider implements the signed form-POST checkout. The client receives a
// pay URL plus form fields and submits them from the browser.
type TelebirrProvider struct {
	BaseURL      string
	AppID        string
	AppKey       string
	MerchantCode string
	client       *http.Client
}

func NewTelebirrProvider(baseURL, appID, appKey, merchantCode string, timeout time.Duration) *TelebirrProvider {
	if baseURL == "" {
		baseURL = "https://app.ethiotelecom.et"
	}
	return &TelebirrProvider{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		AppID:        appID,
		AppKey:       appKey,
		MerchantCode: merchantCode,
		client:       &http.Client{Timeout: timeout},
	}
}

func (p *TelebirrProvider) Method() string { return domain.MethodTelebirr }

func (p *TelebirrProvider) configured() bool { return p.AppKey != "" }

type telebirrPreOrderResp struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		PrepayID string `json:"prepayId"`
		ToPayURL string `json:"toPayUrl"`
	} `json:"data"`
}

func (p *TelebirrProvider) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error) {
	if !p.configured() {
		ref := mockReference(req.PaymentID)
		log.Printf("[TELEBIRR] no app key configured, issuing mock checkout outTradeNo=%s", ref)
		return &PaymentResponse{
			Success:     true,
			Reference:   ref,
			RedirectURL: p.BaseURL + "/payment/web/mock",
			FormFields:  map[string]string{"outTradeNo": ref},
		}, nil
	}
	outTradeNo := strings.ReplaceAll(uuid.NewString(), "-", "")
	fields := map[string]string{
		"appId":          p.AppID,
		"merchantCode":   p.MerchantCode,
		"outTradeNo":     outTradeNo,
		"subject":        req.Description,
		"totalAmount":    req.Amount.StringFixed(2),
		"currency":       req.Currency,
		"notifyUrl":      req.CallbackURL,
		"returnUrl":      req.ReturnURL,
		"timeoutExpress": "30",
		"nonce":          strings.ReplaceAll(uuid.NewString(), "-", ""),
		"timestamp":      strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	fields["sign"] = p.Sign(fields)
	body, _ := json.Marshal(fields)
	apiReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/payment/v1/merchant/preOrder", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	apiReq.Header.Set("Content-Type", "application/json")
	log.Printf("[TELEBIRR] POST %s/payment/v1/merchant/preOrder outTradeNo=%s amount=%s", p.BaseURL, outTradeNo, fields["totalAmount"])
	status, respBody, err := do(p.client, apiReq)
	if err != nil {
		log.Printf("[TELEBIRR] preOrder failed status=%d err=%v", status, err)
		return nil, err
	}
	var out telebirrPreOrderResp
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, unavailable("telebirr: malformed preOrder response")
	}
	if out.Code != "0" || out.Data.ToPayURL == "" {
		msg := out.Msg
		if msg == "" {
			msg = "telebirr rejected the order"
		}
		return &PaymentResponse{Success: false, Error: msg, Raw: respBody}, nil
	}
	form := map[string]string{
		"appId":      p.AppID,
		"outTradeNo": outTradeNo,
		"prepayId":   out.Data.PrepayID,
		"nonce":      fields["nonce"],
		"timestamp":  fields["timestamp"],
	}
	form["sign"] = p.Sign(form)
	return &PaymentResponse{
		Success:     true,
		Reference:   outTradeNo,
		RedirectURL: out.Data.ToPayURL,
		FormFields:  form,
		Raw:         respBody,
	}, nil
}

// Sign computes the hex HMAC-SHA256 over the non-empty fields sorted by key,
// joined as k=v&k=v. The sign field itself is excluded.
func (p *TelebirrProvider) Sign(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if k == "sign" || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	mac := hmac.New(sha256.New, []byte(p.AppKey))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// TelebirrNotification is the callback body posted to notifyUrl.
type TelebirrNotification struct {
	OutTradeNo  string `json:"outTradeNo"`
	TradeNo     string `json:"tradeNo"`
	TradeStatus string `json:"tradeStatus"`
	TotalAmount string `json:"totalAmount"`
	AppID       string `json:"appId"`
	Timestamp   string `json:"timestamp"`
	Sign        string `json:"sign"`
}

func (p *TelebirrProvider) ParseCallback(body []byte) (*Notification, error) {
	fields, err := flattenFields(body)
	if err != nil {
		return nil, fmt.Errorf("telebirr callback: %w", err)
	}
	n := TelebirrNotification{
		OutTradeNo:  fields["outTradeNo"],
		TradeNo:     fields["tradeNo"],
		TradeStatus: fields["tradeStatus"],
		TotalAmount: fields["totalAmount"],
		AppID:       fields["appId"],
		Timestamp:   fields["timestamp"],
		Sign:        fields["sign"],
	}
	if n.OutTradeNo == "" {
		return nil, fmt.Errorf("telebirr callback: missing outTradeNo")
	}
	return &Notification{
		Reference:     n.OutTradeNo,
		ProviderTxnID: n.TradeNo,
		Status:        n.TradeStatus,
		Success:       TelebirrSucceeded(n.TradeStatus),
		Raw:           body,
	}, nil
}

// VerifyCallback recomputes the signature locally; no round-trip is needed.
func (p *TelebirrProvider) VerifyCallback(ctx context.Context, n *Notification) bool {
	if !p.configured() {
		return IsMockReference(n.Reference)
	}
	fields, err := flattenFields(n.Raw)
	if err != nil {
		return false
	}
	sig := fields["sign"]
	if sig == "" {
		return false
	}
	if fields["appId"] != "" && fields["appId"] != p.AppID {
		return false
	}
	return hmac.Equal([]byte(strings.ToLower(sig)), []byte(p.Sign(fields)))
}

// TelebirrSucceeded maps tradeStatus to success. Telebirr reports either the
// word SUCCESS or the numeric code 2.
func TelebirrSucceeded(status string) bool {
	return status == "SUCCESS" || status == "2"
}

// flattenFields decodes a flat JSON object into string values, keeping numbers as their literal text.
func flattenFields(body []byte) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			fields[k] = s
			continue
		}
		if string(v) == "null" {
			continue
		}
		fields[k] = string(v)
	}
	return fields, nil
}
