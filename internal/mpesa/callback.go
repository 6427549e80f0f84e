package mpesa

import (
	"encoding/json"
	"strings"
)

const receiptItem = "MpesaReceiptNumber"

// CallbackEnvelope is the body Daraja POSTs to the callback URL.
type CallbackEnvelope struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        json.Number       `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem values are strings or numbers depending on the field, and
// some items (Balance) arrive with no value at all.
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

// Succeeded reports whether the customer completed the payment.
func (c STKCallback) Succeeded() bool {
	code, err := c.ResultCode.Int64()
	return err == nil && code == 0
}

// Metadata looks an item up by name and renders its value as text.
func (c STKCallback) Metadata(name string) (string, bool) {
	if c.CallbackMetadata == nil {
		return "", false
	}
	for _, item := range c.CallbackMetadata.Item {
		if item.Name != name {
			continue
		}
		raw := strings.TrimSpace(string(item.Value))
		if raw == "" || raw == "null" {
			return "", false
		}
		var s string
		if err := json.Unmarshal(item.Value, &s); err == nil {
			return s, true
		}
		return raw, true
	}
	return "", false
}

// ReceiptNumber returns the MpesaReceiptNumber metadata item.
func (c STKCallback) ReceiptNumber() (string, bool) {
	return c.Metadata(receiptItem)
}
