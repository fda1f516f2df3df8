package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func providerServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, "prov_sk_test", WithPersona("ava", "voice-1"))
}

func TestNewSessionToken(t *testing.T) {
	var gotAuth string
	var gotBody map[string]string
	c := providerServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/token" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"data":{"session_id":"s1","session_token":"tok"}}`))
	})

	cred, err := c.NewSessionToken(context.Background(), "en")
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}
	if cred.SessionID != "s1" || cred.SessionToken != "tok" {
		t.Fatalf("credential = %+v", cred)
	}
	if gotAuth != "Bearer prov_sk_test" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
	if gotBody["avatar_id"] != "ava" || gotBody["voice_id"] != "voice-1" || gotBody["language"] != "en" {
		t.Fatalf("request body = %v", gotBody)
	}
}

func TestNewSessionToken_MissingFields(t *testing.T) {
	c := providerServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"session_id":"s1"}}`))
	})
	if _, err := c.NewSessionToken(context.Background(), "en"); err == nil {
		t.Fatal("expected error for incomplete credential")
	}
}

func TestStartSession(t *testing.T) {
	var gotAuth string
	c := providerServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data":{"livekit_url":"wss://room","livekit_client_token":"ct"}}`))
	})

	info, err := c.StartSession(context.Background(), "tok")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if info.LivekitURL != "wss://room" || info.LivekitClientToken != "ct" {
		t.Fatalf("info = %+v", info)
	}
	// Activation authenticates with the session token, not the provider key.
	if gotAuth != "Bearer tok" {
		t.Fatalf("Authorization = %q", gotAuth)
	}
}

func TestEndSessionReturnsTranscript(t *testing.T) {
	c := providerServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sessions/s1/end" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"data":{"transcript":[{"sender":"user","text":"hi","offset_ms":120}]}}`))
	})

	entries, err := c.EndSession(context.Background(), "s1", "tok")
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if len(entries) != 1 || entries[0].Sender != "user" || entries[0].OffsetMs != 120 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestNon2xxIsStatusError(t *testing.T) {
	c := providerServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota exceeded"}`, http.StatusPaymentRequired)
	})

	_, err := c.NewSessionToken(context.Background(), "en")
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("StatusCode = %d", se.StatusCode)
	}
}
