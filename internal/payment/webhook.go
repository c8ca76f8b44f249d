package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"strings"

	"analyticaos/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// SignatureHeader carries the hex HMAC-SHA512 of the raw webhook body
const SignatureHeader = "monnify-signature"

// Webhook event types
const (
	EventSuccessfulTransaction  = "SUCCESSFUL_TRANSACTION"
	EventSuccessfulDisbursement = "SUCCESSFUL_DISBURSEMENT"
	EventFailedDisbursement     = "FAILED_DISBURSEMENT"
	EventReversedDisbursement   = "REVERSED_DISBURSEMENT"
)

var ErrMalformedEvent = errors.New("malformed webhook event")

// Sign returns the hex signature of body under secret
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature in constant time
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// CollectionEvent is a payment into a reserved account
type CollectionEvent struct {
	EventType            string
	TransactionReference string
	PaymentReference     string
	AccountReference     string
	AccountNumber        string
	PaymentStatus        string
	Amount               int64 // kobo
}

// Paid reports whether the event is a settled collection
func (e CollectionEvent) Paid() bool {
	return e.EventType == EventSuccessfulTransaction && (e.PaymentStatus == "" || e.PaymentStatus == "PAID")
}

// ParseCollection extracts a collection event from a webhook body
func ParseCollection(body []byte) (*CollectionEvent, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedEvent
	}
	root := gjson.ParseBytes(body)
	data := root.Get("eventData")
	amount, err := decimal.NewFromString(data.Get("amountPaid").String())
	if err != nil {
		return nil, ErrMalformedEvent
	}
	e := &CollectionEvent{
		EventType:            root.Get("eventType").String(),
		TransactionReference: data.Get("transactionReference").String(),
		PaymentReference:     data.Get("paymentReference").String(),
		AccountReference:     data.Get("product.reference").String(),
		AccountNumber:        data.Get("destinationAccountInformation.accountNumber").String(),
		PaymentStatus:        strings.ToUpper(data.Get("paymentStatus").String()),
		Amount:               utils.NairaToKobo(amount),
	}
	if e.TransactionReference == "" {
		return nil, ErrMalformedEvent
	}
	return e, nil
}

// EventType returns the eventType of a webhook body
func EventType(body []byte) string {
	return gjson.GetBytes(body, "eventType").String()
}

// IsDisbursement reports whether eventType settles a payout
func IsDisbursement(eventType string) bool {
	switch eventType {
	case EventSuccessfulDisbursement, EventFailedDisbursement, EventReversedDisbursement:
		return true
	}
	return false
}

// DisbursementEvent is the final outcome of a payout. Reference is the one
// sent with the disbursement.
type DisbursementEvent struct {
	EventType string
	Reference string
	Status    string
	Amount    int64 // kobo
}

// Succeeded reports whether the payout reached the bank account
func (e DisbursementEvent) Succeeded() bool {
	return e.EventType == EventSuccessfulDisbursement
}

// ParseDisbursement extracts a disbursement event from a webhook body
func ParseDisbursement(body []byte) (*DisbursementEvent, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedEvent
	}
	root := gjson.ParseBytes(body)
	data := root.Get("eventData")
	e := &DisbursementEvent{
		EventType: root.Get("eventType").String(),
		Reference: data.Get("reference").String(),
		Status:    strings.ToUpper(data.Get("status").String()),
	}
	if !IsDisbursement(e.EventType) || e.Reference == "" {
		return nil, ErrMalformedEvent
	}
	if raw := data.Get("amount"); raw.Exists() {
		amount, err := decimal.NewFromString(raw.String())
		if err != nil {
			return nil, ErrMalformedEvent
		}
		e.Amount = utils.NairaToKobo(amount)
	}
	return e, nil
}
