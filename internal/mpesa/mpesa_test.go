package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"spacebook/internal/apperr"
	"spacebook/internal/config"
	"spacebook/internal/domain"
	"spacebook/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0712345678", want: "254712345678"},
		{in: "254712345678", want: "254712345678"},
		{in: " 0712345678 ", want: "254712345678"},
		{in: "+254712345678", wantErr: true},
		{in: "712345678", wantErr: true},
		{in: "", wantErr: true},
		{in: "0", wantErr: true},
		{in: "07123abc78", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperr.Is(err, apperr.KindValidation))
				assert.Equal(t, "Invalid phone number format", apperr.Message(err, ""))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPassword(t *testing.T) {
	ts := Timestamp(time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC))
	assert.Equal(t, "20240305070809", ts)

	decoded, err := base64.StdEncoding.DecodeString(Password("174379", "pk", ts))
	require.NoError(t, err)
	assert.Equal(t, "174379pk20240305070809", string(decoded))
}

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, BackoffFactor: 2}
	assert.Equal(t, 100*time.Millisecond, p.NextDelay(1))
	assert.Equal(t, 200*time.Millisecond, p.NextDelay(2))
	assert.Equal(t, 300*time.Millisecond, p.NextDelay(3))
	assert.Equal(t, 100*time.Millisecond, p.NextDelay(0))
}

func TestCallbackMetadata(t *testing.T) {
	raw := `{"Body":{"stkCallback":{
		"MerchantRequestID":"m-1","CheckoutRequestID":"c-1","ResultCode":0,"ResultDesc":"ok",
		"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":100},
			{"Name":"Balance"},
			{"Name":"TransactionDate","Value":20240305070809},
			{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},
			{"Name":"PhoneNumber","Value":254712345678}
		]}}}}`

	var env CallbackEnvelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	cb := env.Body.STKCallback

	assert.True(t, cb.Succeeded())
	receipt, ok := cb.ReceiptNumber()
	assert.True(t, ok)
	assert.Equal(t, "NLJ7RT61SV", receipt)

	amount, ok := cb.Metadata("Amount")
	assert.True(t, ok)
	assert.Equal(t, "100", amount)

	_, ok = cb.Metadata("Balance")
	assert.False(t, ok)
}

func TestCallbackFailure(t *testing.T) {
	raw := `{"Body":{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"c-1","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`

	var env CallbackEnvelope
	require.NoError(t, json.Unmarshal([]byte(raw), &env))
	cb := env.Body.STKCallback

	assert.False(t, cb.Succeeded())
	_, ok := cb.ReceiptNumber()
	assert.False(t, ok)
}

type fakeDaraja struct {
	tokenCalls atomic.Int32
	pushCalls  atomic.Int32
	tokenFails atomic.Int32
	pushStatus int
	pushCode   string

	mu       sync.Mutex
	lastPush stkPushPayload
	lastAuth string
}

func (f *fakeDaraja) last() (stkPushPayload, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPush, f.lastAuth
}

func (f *fakeDaraja) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if f.tokenFails.Load() > 0 {
			f.tokenFails.Add(-1)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "ck" || pass != "cs" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		_, _ = w.Write([]byte(`{"access_token":"tok-123","expires_in":"3599"}`))
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		f.pushCalls.Add(1)
		f.mu.Lock()
		f.lastAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&f.lastPush)
		f.mu.Unlock()
		status := f.pushStatus
		if status == 0 {
			status = http.StatusOK
		}
		code := f.pushCode
		if code == "" {
			code = "0"
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(stkPushResponse{
			MerchantRequestID:   "29115-34620561-1",
			CheckoutRequestID:   "ws_CO_191220191020363925",
			ResponseCode:        code,
			ResponseDescription: "Success. Request accepted for processing",
			CustomerMessage:     "Success. Request accepted for processing",
		})
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeDaraja, tokens domain.TokenStore) *Client {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	logger := zerolog.Nop()
	return NewClient(config.MPesaConfig{
		BaseURL:         srv.URL,
		ConsumerKey:     "ck",
		ConsumerSecret:  "cs",
		ShortCode:       "174379",
		PassKey:         "pk",
		CallbackURL:     "https://example.com/mpesa-callback",
		TransactionType: config.DefaultTransactionType,
		Timeout:         2 * time.Second,
		TokenRetry:      config.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffFactor: 2},
	}, tokens, &logger)
}

func testPush() domain.STKPushRequest {
	return domain.STKPushRequest{
		PhoneNumber: "254712345678",
		Amount:      300,
		Reference:   "Space Booking 7",
		Description: "Payment for Space 7",
		Timestamp:   time.Date(2024, 3, 5, 7, 8, 9, 0, time.UTC),
	}
}

func TestSTKPushSuccess(t *testing.T) {
	f := &fakeDaraja{}
	c := newTestClient(t, f, repository.NewMemoryTokenStore(time.Hour))

	res, err := c.STKPush(context.Background(), testPush())
	require.NoError(t, err)
	assert.Equal(t, "29115-34620561-1", res.MerchantRequestID)
	assert.Equal(t, "ws_CO_191220191020363925", res.CheckoutRequestID)

	push, auth := f.last()
	assert.Equal(t, "Bearer tok-123", auth)
	assert.Equal(t, "174379", push.BusinessShortCode)
	assert.Equal(t, "174379", push.PartyB)
	assert.Equal(t, "254712345678", push.PartyA)
	assert.Equal(t, "254712345678", push.PhoneNumber)
	assert.Equal(t, int64(300), push.Amount)
	assert.Equal(t, "20240305070809", push.Timestamp)
	assert.Equal(t, Password("174379", "pk", "20240305070809"), push.Password)
	assert.Equal(t, "CustomerPayBillOnline", push.TransactionType)
	assert.Equal(t, "https://example.com/mpesa-callback", push.CallBackURL)
	assert.Equal(t, "Space Booking 7", push.AccountReference)
	assert.Equal(t, "Payment for Space 7", push.TransactionDesc)

	// second push reuses the cached token
	_, err = c.STKPush(context.Background(), testPush())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.tokenCalls.Load())
	assert.Equal(t, int32(2), f.pushCalls.Load())
}

func TestSTKPushNon200IsUpstream(t *testing.T) {
	f := &fakeDaraja{pushStatus: http.StatusBadRequest}
	c := newTestClient(t, f, nil)

	_, err := c.STKPush(context.Background(), testPush())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Equal(t, msgPushFailed, apperr.Message(err, ""))
	assert.Equal(t, int32(1), f.pushCalls.Load(), "push must not be retried")
}

func TestSTKPushRejectedResponseCode(t *testing.T) {
	f := &fakeDaraja{pushCode: "1"}
	c := newTestClient(t, f, nil)

	_, err := c.STKPush(context.Background(), testPush())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestSTKPushUnauthorizedDropsCachedToken(t *testing.T) {
	f := &fakeDaraja{pushStatus: http.StatusUnauthorized}
	store := repository.NewMemoryTokenStore(time.Hour)
	c := newTestClient(t, f, store)

	_, err := c.STKPush(context.Background(), testPush())
	require.Error(t, err)

	tok, err := store.GetToken(context.Background(), tokenKey)
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestAccessTokenRetriesServerErrors(t *testing.T) {
	f := &fakeDaraja{}
	f.tokenFails.Store(2)
	c := newTestClient(t, f, nil)

	tok, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok.AccessToken)
	assert.Equal(t, int32(3), f.tokenCalls.Load())
	assert.True(t, tok.Expiry.After(time.Now().Add(50*time.Minute)))
}

func TestAccessTokenGivesUp(t *testing.T) {
	f := &fakeDaraja{}
	f.tokenFails.Store(10)
	c := newTestClient(t, f, nil)

	_, err := c.AccessToken(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Equal(t, msgTokenFailed, apperr.Message(err, ""))
	assert.Equal(t, int32(3), f.tokenCalls.Load())
}

func TestAccessTokenBadCredentialsNotRetried(t *testing.T) {
	f := &fakeDaraja{}
	c := newTestClient(t, f, nil)
	c.cfg.ConsumerSecret = "wrong"

	_, err := c.AccessToken(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestSTKPushTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":"3599"}`))
			return
		}
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	logger := zerolog.Nop()
	c := NewClient(config.MPesaConfig{
		BaseURL:         srv.URL,
		ShortCode:       "174379",
		TransactionType: config.DefaultTransactionType,
		Timeout:         100 * time.Millisecond,
	}, nil, &logger)

	_, err := c.STKPush(context.Background(), testPush())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}
