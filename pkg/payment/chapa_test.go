package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chapaRequest() PaymentRequest {
	return PaymentRequest{
		PaymentID:   "pay-1",
		OrderID:     "order-1",
		Amount:      decimal.RequireFromString("250.5"),
		Currency:    "ETB",
		Description: "Tickets: Jazz Night",
		Email:       "buyer@example.com",
		CallbackURL: "https://api.example.com/api/v1/payments/callback/chapa",
		ReturnURL:   "https://shop.example.com/orders/order-1",
	}
}

func TestChapaInitiateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		var got map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "pay-1", got["tx_ref"])
		assert.Equal(t, "250.50", got["amount"])
		w.Write([]byte(`{"status":"success","message":"Hosted Link","data":{"checkout_url":"https://checkout.chapa.co/checkout/payment/abc"}}`))
	}))
	defer srv.Close()

	p := NewChapaProvider(srv.URL, "", "sk_test", "", 5*time.Second)
	resp, err := p.InitiatePayment(context.Background(), chapaRequest())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "pay-1", resp.Reference)
	assert.Equal(t, "https://checkout.chapa.co/checkout/payment/abc", resp.RedirectURL)
}

func TestChapaInitiateDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"failed","message":"timeout","data":null}`))
	}))
	defer srv.Close()

	p := NewChapaProvider(srv.URL, "", "sk_test", "", 5*time.Second)
	resp, err := p.InitiatePayment(context.Background(), chapaRequest())
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "timeout", resp.Error)
}

func TestChapaInitiateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewChapaProvider(srv.URL, "", "sk_test", "", 5*time.Second)
	_, err := p.InitiatePayment(context.Background(), chapaRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
}

func TestChapaInitiateMock(t *testing.T) {
	p := NewChapaProvider("", "https://checkout.test", "", "", time.Second)
	resp, err := p.InitiatePayment(context.Background(), chapaRequest())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "pay-1", resp.Reference)
	assert.Equal(t, "https://checkout.test/mock/pay-1", resp.RedirectURL)
}

func TestChapaVerifyWebhook(t *testing.T) {
	body := []byte(`{"event":"charge.success","tx_ref":"pay-1","status":"success"}`)
	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	p := NewChapaProvider("", "", "sk", "whsec", time.Second)
	assert.True(t, p.VerifyWebhook(sig, body))
	assert.False(t, p.VerifyWebhook(sig, append(body, ' ')))
	assert.False(t, p.VerifyWebhook("", body))
	assert.False(t, p.VerifyWebhook("deadbeef", body))

	unsigned := NewChapaProvider("", "", "sk", "", time.Second)
	assert.False(t, unsigned.VerifyWebhook(sig, body))
}

func TestChapaCheckStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/transaction/verify/pay-1":
			w.Write([]byte(`{"status":"success","data":{"status":"success","reference":"CHx1","payment_method":"telebirr"}}`))
		case "/v1/transaction/verify/pay-2":
			w.Write([]byte(`{"status":"success","data":{"status":"pending","reference":"CHx2","method":"mpesa"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Invalid transaction"}`))
		}
	}))
	defer srv.Close()

	p := NewChapaProvider(srv.URL, "", "sk", "", 5*time.Second)

	res, err := p.CheckStatus(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "CHx1", res.Reference)
	assert.Equal(t, "telebirr", res.PaymentMethod)

	res, err = p.CheckStatus(context.Background(), "pay-2")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "mpesa", res.PaymentMethod)

	res, err = p.CheckStatus(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "not_found", res.Status)
}

func TestParseChapaWebhook(t *testing.T) {
	w, err := ParseChapaWebhook([]byte(`{"event":"charge.success","tx_ref":"pay-1","status":"Success","payment_method":"cbebirr"}`))
	require.NoError(t, err)
	assert.True(t, w.Succeeded())
	assert.Equal(t, "CBEBIRR", NormalizeChapaMethod(w.PaymentMethod))

	_, err = ParseChapaWebhook([]byte(`{"event":"charge.success"}`))
	assert.Error(t, err)
	_, err = ParseChapaWebhook([]byte(`not json`))
	assert.Error(t, err)
}

func TestNormalizeChapaMethod(t *testing.T) {
	cases := map[string]string{
		"telebirr": "TELEBIRR",
		"M-Pesa":   "MPESA",
		"CBE Birr": "CBEBIRR",
		"amole":    "AMOLE",
		"Awash":    "AWASH",
		"card":     "CHAPA",
		"":         "CHAPA",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeChapaMethod(in), in)
	}
}
