package payment

import (
	"strconv"
	"testing"
	"time"
)

func TestVerifySignatureRoundtrip(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Now()

	header := SignatureHeader(secret, now, body)
	if err := VerifySignature(secret, header, body, now); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifySignatureRejects(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := SignatureHeader(secret, now, body)

	cases := []struct {
		name   string
		secret string
		header string
		body   []byte
		at     time.Time
	}{
		{"wrong secret", "whsec_other", header, body, now},
		{"tampered body", secret, header, []byte(`{"id":"evt_2"}`), now},
		{"missing header", secret, "", body, now},
		{"malformed header", secret, "v1=abc", body, now},
		{"stale timestamp", secret, header, body, now.Add(10 * time.Minute)},
		{"future timestamp", secret, SignatureHeader(secret, now.Add(10*time.Minute), body), body, now},
		{"empty secret", "", header, body, now},
	}
	for _, c := range cases {
		if err := VerifySignature(c.secret, c.header, c.body, c.at); err == nil {
			t.Errorf("%s: signature accepted, want rejection", c.name)
		}
	}
}

func TestParseSignatureHeaderOrderInsensitive(t *testing.T) {
	secret := "whsec_test"
	body := []byte("payload")
	now := time.Now()

	sig := ComputeSignature(secret, now, body)
	reordered := "v1=" + sig + ", t=" + strconv.FormatInt(now.Unix(), 10)
	if err := VerifySignature(secret, reordered, body, now); err != nil {
		t.Fatalf("reordered header rejected: %v", err)
	}
}
