package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gridvoice/cli/internal/identity"
)

func TestAuthenticateSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var req authRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.DeviceID != "dev-1" || req.DisplayName != "ash" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(authResponse{
			UserID:      "u1",
			DisplayName: "ash",
			Token:       "tok-1",
		})
	}))
	defer srv.Close()

	client := NewHTTPAuthClient(srv.URL)
	sess, err := client.Authenticate(context.Background(), identity.Identity{
		DeviceID:    "dev-1",
		DisplayName: "ash",
	})
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if sess.UserID != "u1" || sess.DisplayName != "ash" || sess.Token != "tok-1" {
		t.Fatalf("session = %+v", sess)
	}
}

func TestAuthenticateNameConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	_, err := NewHTTPAuthClient(srv.URL).Authenticate(context.Background(), identity.Identity{DeviceID: "d", DisplayName: "taken"})
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("err = %v, want ErrNameTaken", err)
	}
}

func TestAuthenticateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewHTTPAuthClient(srv.URL).Authenticate(context.Background(), identity.Identity{DeviceID: "d"})
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
	if errors.Is(err, ErrNameTaken) {
		t.Fatal("server error must not be reported as a name conflict")
	}
}

func TestAuthenticateEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(authResponse{UserID: "u1", DisplayName: "ash"})
	}))
	defer srv.Close()

	_, err := NewHTTPAuthClient(srv.URL).Authenticate(context.Background(), identity.Identity{DeviceID: "d"})
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("err = %v, want ErrAuthFailed", err)
	}
}
