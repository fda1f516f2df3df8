package auth

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestMintAndValidate(t *testing.T) {
	tokens := NewTokens(time.Hour)
	tok := tokens.Mint()
	if tok == "" {
		t.Fatal("empty token")
	}
	if !tokens.Valid(tok) {
		t.Fatal("freshly minted token invalid")
	}
	if tokens.Valid("adm_forged") {
		t.Fatal("unknown token accepted")
	}
	if tokens.Valid("") {
		t.Fatal("empty token accepted")
	}
}

func TestTokensExpire(t *testing.T) {
	tokens := NewTokens(time.Minute)
	base := time.Now()
	tokens.now = func() time.Time { return base }

	tok := tokens.Mint()
	if !tokens.Valid(tok) {
		t.Fatal("token invalid before expiry")
	}

	tokens.now = func() time.Time { return base.Add(2 * time.Minute) }
	if tokens.Valid(tok) {
		t.Fatal("token valid after expiry")
	}
}

func TestRevoke(t *testing.T) {
	tokens := NewTokens(time.Hour)
	tok := tokens.Mint()
	tokens.Revoke(tok)
	if tokens.Valid(tok) {
		t.Fatal("revoked token accepted")
	}
}

func TestMintedTokensAreUnique(t *testing.T) {
	tokens := NewTokens(time.Hour)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok := tokens.Mint()
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestParseBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer tok", "tok", true},
		{"Bearer   tok  ", "tok", true},
		{"bearer tok", "", false},
		{"Basic tok", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		r := httptest.NewRequest("GET", "/", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		got, ok := ParseBearer(r)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseBearer(%q) = %q, %v; want %q, %v", tc.header, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPasswordMatch(t *testing.T) {
	if !PasswordMatch("hunter2", "hunter2") {
		t.Fatal("matching passwords rejected")
	}
	if PasswordMatch("hunter", "hunter2") {
		t.Fatal("mismatched passwords accepted")
	}
	if PasswordMatch("", "") != true {
		t.Fatal("empty-vs-empty mismatch")
	}
}
