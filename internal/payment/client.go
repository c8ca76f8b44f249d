// Package payment is a client for the payment processor that issues reserved
// (virtual) bank accounts for wallet funding and pays out withdrawals.
package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"analyticaos/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Disbursement statuses reported by the processor
const (
	StatusSuccess = "SUCCESS"
	StatusPending = "PENDING"
	StatusFailed  = "FAILED"
)

// Config holds processor credentials
type Config struct {
	BaseURL       string
	APIKey        string
	SecretKey     string
	ContractCode  string
	SourceAccount string
}

// APIError is a non-successful processor response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment processor: %d %s", e.StatusCode, e.Message)
}

// ErrNotConfigured is returned when credentials are missing
var ErrNotConfigured = errors.New("payment processor is not configured")

// errNotSent marks failures that happened before the request left the client
var errNotSent = errors.New("request not sent")

// Rejected reports whether err proves the processor did not make a payout.
// Transport failures and 5xx responses are ambiguous since the transfer may
// still have gone through.
func Rejected(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode < http.StatusInternalServerError
	}
	return errors.Is(err, ErrNotConfigured) || errors.Is(err, errNotSent)
}

// Client talks to the processor REST API. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewClient creates a client. A nil httpClient gets a 30 second timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: httpClient, now: time.Now}
}

// Configured reports whether API credentials were provided
func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.SecretKey != ""
}

// accessToken returns a cached bearer token, logging in again shortly before expiry
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/v1/auth/login", nil)
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.APIKey + ":" + c.cfg.SecretKey))
	req.Header.Set("Authorization", "Basic "+basic)
	body, err := c.send(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	token := body.Get("accessToken").String()
	if token == "" {
		return "", &APIError{StatusCode: http.StatusOK, Message: "login returned no access token"}
	}
	ttl := time.Duration(body.Get("expiresIn").Int()) * time.Second
	c.token = token
	c.expires = c.now().Add(ttl - 30*time.Second)
	return c.token, nil
}

// call performs an authenticated JSON request and returns responseBody
func (c *Client) call(ctx context.Context, method, path string, payload any) (gjson.Result, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %w", errNotSent, err)
	}
	var rdr io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return gjson.Result{}, fmt.Errorf("%w: %w", errNotSent, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rdr)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %w", errNotSent, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

// send executes the request and unwraps the processor's response envelope
func (c *Client) send(req *http.Request) (gjson.Result, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, err
	}
	logrus.WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.URL.Path,
		"status": resp.StatusCode,
	}).Debug("payment processor call")
	env := gjson.ParseBytes(raw)
	if resp.StatusCode >= 300 || !env.Get("requestSuccessful").Bool() {
		msg := env.Get("responseMessage").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return gjson.Result{}, &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return env.Get("responseBody"), nil
}

// ReservedAccountRequest asks for a virtual account tied to one wallet
type ReservedAccountRequest struct {
	AccountReference string
	AccountName      string
	CustomerEmail    string
	CustomerName     string
}

// ReservedAccount is the issued virtual account
type ReservedAccount struct {
	AccountReference string `json:"account_reference"`
	AccountNumber    string `json:"account_number"`
	BankName         string `json:"bank_name"`
	BankCode         string `json:"bank_code"`
}

// ReserveAccount issues a reserved account. The processor keys accounts by
// AccountReference, so the wallet's reference must be stable.
func (c *Client) ReserveAccount(ctx context.Context, r ReservedAccountRequest) (*ReservedAccount, error) {
	body, err := c.call(ctx, http.MethodPost, "/api/v2/bank-transfer/reserved-accounts", map[string]any{
		"accountReference":     r.AccountReference,
		"accountName":          r.AccountName,
		"currencyCode":         "NGN",
		"contractCode":         c.cfg.ContractCode,
		"customerEmail":        r.CustomerEmail,
		"customerName":         r.CustomerName,
		"getAllAvailableBanks": true,
	})
	if err != nil {
		return nil, fmt.Errorf("reserve account: %w", err)
	}
	acct := body.Get("accounts.0")
	if !acct.Exists() {
		return nil, &APIError{StatusCode: http.StatusOK, Message: "no account in reservation response"}
	}
	return &ReservedAccount{
		AccountReference: body.Get("accountReference").String(),
		AccountNumber:    acct.Get("accountNumber").String(),
		BankName:         acct.Get("bankName").String(),
		BankCode:         acct.Get("bankCode").String(),
	}, nil
}

// Disbursement is a payout to a bank account. Amount is kobo.
type Disbursement struct {
	Amount        int64
	Reference     string
	Narration     string
	BankCode      string
	AccountNumber string
}

// DisbursementResult is the processor's view of a payout
type DisbursementResult struct {
	Reference string
	Status    string
	Fee       int64 // kobo
}

// Disburse sends a single bank transfer
func (c *Client) Disburse(ctx context.Context, d Disbursement) (*DisbursementResult, error) {
	body, err := c.call(ctx, http.MethodPost, "/api/v2/disbursements/single", map[string]any{
		"amount":                   utils.KoboToNaira(d.Amount).StringFixed(2),
		"reference":                d.Reference,
		"narration":                d.Narration,
		"destinationBankCode":      d.BankCode,
		"destinationAccountNumber": d.AccountNumber,
		"currency":                 "NGN",
		"sourceAccountNumber":      c.cfg.SourceAccount,
	})
	if err != nil {
		return nil, fmt.Errorf("disburse: %w", err)
	}
	fee, _ := decimal.NewFromString(body.Get("totalFee").String())
	return &DisbursementResult{
		Reference: body.Get("reference").String(),
		Status:    strings.ToUpper(body.Get("status").String()),
		Fee:       utils.NairaToKobo(fee),
	}, nil
}
