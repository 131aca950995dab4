// Package payments holds the Stripe webhook types and signature check. The
// processor signs each delivery with an HMAC over "<timestamp>.<payload>";
// the shared webhook secret is the only trust anchor.
package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// EventCheckoutCompleted is the only event type the service acts on.
	EventCheckoutCompleted = "checkout.session.completed"

	// PaymentStatusPaid gates crediting: completed sessions with deferred
	// payment methods arrive with payment_status "unpaid".
	PaymentStatusPaid = "paid"

	// SignatureTolerance bounds how stale a signed timestamp may be.
	SignatureTolerance = 5 * time.Minute
)

var (
	ErrInvalidSignatureHeader = errors.New("invalid signature header")
	ErrTimestampOutOfRange    = errors.New("signature timestamp outside tolerance")
	ErrSignatureMismatch      = errors.New("no matching signature")
)

// Event is the subset of a Stripe webhook event the service reads.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object CheckoutSession `json:"object"`
	} `json:"data"`
}

// CheckoutSession is the payload object of a checkout event. Metadata is
// set when the session is created: "kind" ("coin"|"item"), "user_id", and
// either "coin_amount" or "item_id"+"quantity".
type CheckoutSession struct {
	ID            string            `json:"id"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// VerifySignature checks a Stripe-Signature header value against the raw
// request payload. The header carries "t=<unix>,v1=<hex>[,v1=<hex>...]";
// the signed payload is "<t>.<body>" and any matching v1 entry passes.
func VerifySignature(payload []byte, header, secret string, now time.Time) error {
	var timestamp int64 = -1
	var candidates []string

	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ErrInvalidSignatureHeader
			}
			timestamp = ts
		case "v1":
			candidates = append(candidates, v)
		}
	}

	if timestamp < 0 || len(candidates) == 0 {
		return ErrInvalidSignatureHeader
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > SignatureTolerance || age < -SignatureTolerance {
		return ErrTimestampOutOfRange
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, candidate := range candidates {
		if hmac.Equal([]byte(expected), []byte(candidate)) {
			return nil
		}
	}
	return ErrSignatureMismatch
}

// SignPayload produces a Stripe-Signature header value for payload at ts.
// Used by tests and local webhook replays.
func SignPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
