package mpesa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"spacebook/internal/apperr"
	"spacebook/internal/config"
	"spacebook/internal/domain"
	"spacebook/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	tokenPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	tokenKey     = "mpesa"
	acceptedCode = "0"

	// Daraja tokens live for an hour; refresh a little early.
	tokenExpirySkew  = time.Minute
	defaultTokenLife = 3599 * time.Second
	maxErrorBody     = 512

	msgTokenFailed = "Failed to get access token for payment. Please try again."
	msgPushFailed  = "Failed to initiate payment. Please try again."
)

// Client talks to the Daraja API: OAuth client-credentials tokens and
// Lipa na M-Pesa Online (STK push).
type Client struct {
	cfg        config.MPesaConfig
	httpClient *http.Client
	tokens     domain.TokenStore
	retry      RetryPolicy
	logger     *zerolog.Logger
	now        func() time.Time
}

// NewClient builds a Daraja client. tokens may be nil, in which case a
// fresh access token is fetched for every push.
func NewClient(cfg config.MPesaConfig, tokens domain.TokenStore, logger *zerolog.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		retry:      retryPolicyFrom(cfg.TokenRetry),
		logger:     logger,
		now:        time.Now,
	}
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	ExpiresIn   json.Number `json:"expires_in"`
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// AccessToken returns a cached token when one is still valid, otherwise
// fetches a new one. Only the token GET is retried.
func (c *Client) AccessToken(ctx context.Context) (*oauth2.Token, error) {
	if c.tokens != nil {
		tok, err := c.tokens.GetToken(ctx, tokenKey)
		switch {
		case err != nil:
			c.logger.Warn().Err(err).Msg("token cache read failed")
		case tok != nil && tok.Valid():
			return tok, nil
		}
	}

	var tok *oauth2.Token
	err := c.retry.do(ctx, func() error {
		var fetchErr error
		tok, fetchErr = c.fetchToken(ctx)
		if fetchErr != nil {
			c.logger.Debug().Err(fetchErr).Msg("token fetch attempt failed")
		}
		return fetchErr
	})
	if err != nil {
		metrics.IncMPesa("token", "error")
		c.logger.Error().Err(err).Msg("failed to obtain access token")
		return nil, apperr.Upstream(msgTokenFailed, err)
	}
	metrics.IncMPesa("token", "ok")

	if c.tokens != nil {
		if err := c.tokens.SetToken(ctx, tokenKey, tok); err != nil {
			c.logger.Warn().Err(err).Msg("token cache write failed")
		}
	}
	return tok, nil
}

func (c *Client) fetchToken(ctx context.Context) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readStatusError(resp)
	}

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return nil, errors.New("token response has no access_token")
	}

	life := defaultTokenLife
	if secs, err := body.ExpiresIn.Int64(); err == nil && secs > 0 {
		life = time.Duration(secs) * time.Second
	}
	if life > 2*tokenExpirySkew {
		life -= tokenExpirySkew
	}

	return &oauth2.Token{
		AccessToken: body.AccessToken,
		TokenType:   "Bearer",
		Expiry:      c.now().Add(life),
	}, nil
}

// STKPush asks the customer's handset to authorise a payment. The whole
// exchange, token included, is bounded by the configured timeout and the
// push itself is never retried.
func (c *Client) STKPush(ctx context.Context, req domain.STKPushRequest) (*domain.STKPushResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = c.now()
	}
	stamp := Timestamp(ts)

	payload := stkPushPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          Password(c.cfg.ShortCode, c.cfg.PassKey, stamp),
		Timestamp:         stamp,
		TransactionType:   c.cfg.TransactionType,
		Amount:            req.Amount,
		PartyA:            req.PhoneNumber,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   req.Description,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal stk push: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+stkPushPath, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	token.SetAuthHeader(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.pushFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken(ctx)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.pushFailed(readStatusError(resp))
	}

	var out stkPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, c.pushFailed(fmt.Errorf("decode stk push response: %w", err))
	}
	if out.ResponseCode != acceptedCode {
		return nil, c.pushFailed(fmt.Errorf("stk push rejected: code=%s desc=%s", out.ResponseCode, out.ResponseDescription))
	}
	if out.MerchantRequestID == "" {
		return nil, c.pushFailed(errors.New("stk push response has no MerchantRequestID"))
	}

	metrics.IncMPesa("stk_push", "ok")
	c.logger.Info().
		Str("merchant_request_id", out.MerchantRequestID).
		Str("checkout_request_id", out.CheckoutRequestID).
		Int64("amount", req.Amount).
		Msg("stk push accepted")

	return &domain.STKPushResult{
		MerchantRequestID:   out.MerchantRequestID,
		CheckoutRequestID:   out.CheckoutRequestID,
		ResponseCode:        out.ResponseCode,
		ResponseDescription: out.ResponseDescription,
		CustomerMessage:     out.CustomerMessage,
	}, nil
}

func (c *Client) pushFailed(err error) error {
	metrics.IncMPesa("stk_push", "error")
	c.logger.Error().Err(err).Msg("stk push failed")
	return apperr.Upstream(msgPushFailed, err)
}

func (c *Client) invalidateToken(ctx context.Context) {
	if c.tokens == nil {
		return
	}
	if err := c.tokens.DeleteToken(ctx, tokenKey); err != nil {
		c.logger.Warn().Err(err).Msg("token cache delete failed")
	}
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &statusError{status: resp.StatusCode, body: string(bytes.TrimSpace(body))}
}

