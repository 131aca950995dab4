package payments

import (
	"errors"
	"testing"
	"time"
)

func TestVerifySignature_Valid(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := time.Now()
	header := SignPayload(payload, "whsec_test", now)

	if err := VerifySignature(payload, header, "whsec_test", now); err != nil {
		t.Errorf("VerifySignature rejected a valid signature: %v", err)
	}
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()
	header := SignPayload(payload, "whsec_other", now)

	err := VerifySignature(payload, header, "whsec_test", now)
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Errorf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestVerifySignature_TamperedPayload(t *testing.T) {
	now := time.Now()
	header := SignPayload([]byte(`{"amount":100}`), "whsec_test", now)

	err := VerifySignature([]byte(`{"amount":999}`), header, "whsec_test", now)
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Errorf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestVerifySignature_StaleTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()
	header := SignPayload(payload, "whsec_test", now.Add(-10*time.Minute))

	err := VerifySignature(payload, header, "whsec_test", now)
	if !errors.Is(err, ErrTimestampOutOfRange) {
		t.Errorf("expected ErrTimestampOutOfRange, got %v", err)
	}
}

func TestVerifySignature_MalformedHeader(t *testing.T) {
	for _, header := range []string{"", "t=abc,v1=00", "v1=00", "t=123"} {
		err := VerifySignature([]byte(`{}`), header, "whsec_test", time.Now())
		if !errors.Is(err, ErrInvalidSignatureHeader) {
			t.Errorf("header %q: expected ErrInvalidSignatureHeader, got %v", header, err)
		}
	}
}

func TestVerifySignature_MultipleCandidates(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()
	good := SignPayload(payload, "whsec_test", now)

	// A bogus extra v1 must not mask the matching one.
	combined := good + ",v1=deadbeef"
	if err := VerifySignature(payload, combined, "whsec_test", now); err != nil {
		t.Errorf("a matching candidate among several should pass: %v", err)
	}
}
