package verification

import "testing"

func TestIssueVerify_RoundTrip(t *testing.T) {
	s := NewSigner("test-secret")

	for _, orderID := range []string{"o1", "5f1c2c6e-9f2a-4b9f-8a50-000000000001", ""} {
		token := s.Issue(orderID)
		if !s.Verify(orderID, token) {
			t.Errorf("Verify rejected a freshly issued token for %q", orderID)
		}
	}
}

func TestVerify_RejectsGarbage(t *testing.T) {
	s := NewSigner("test-secret")

	if s.Verify("o1", "garbage") {
		t.Error("Verify accepted a garbage token")
	}
	if s.Verify("o1", "") {
		t.Error("Verify accepted an empty token")
	}
	if s.Verify("o1", s.Issue("o2")) {
		t.Error("Verify accepted a token issued for a different order")
	}
}

func TestIssue_Deterministic(t *testing.T) {
	s := NewSigner("test-secret")

	if s.Issue("o1") != s.Issue("o1") {
		t.Error("Issue must be deterministic for the same order id")
	}
	if s.Issue("o1") == s.Issue("o2") {
		t.Error("tokens for different orders must differ")
	}
}

func TestVerify_SecretMatters(t *testing.T) {
	a := NewSigner("secret-a")
	b := NewSigner("secret-b")

	if b.Verify("o1", a.Issue("o1")) {
		t.Error("token issued under a different secret must not verify")
	}
}
