package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gridvoice/cli/internal/identity"
)

// Session is the ephemeral product of a successful authentication. Token
// binds the duplex channel to the account; DisplayName is the name the
// service actually confirmed.
type Session struct {
	UserID      string
	DisplayName string
	Token       string
}

// AuthClient exchanges a device identity for a session.
type AuthClient interface {
	// Authenticate fails with ErrNameTaken when the service reports a display
	// name conflict, or ErrAuthFailed for any other rejection.
	Authenticate(ctx context.Context, id identity.Identity) (Session, error)
}

type authRequest struct {
	DeviceID    string `json:"device_id"`
	DisplayName string `json:"display_name"`
}

type authResponse struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Token       string `json:"token"`
}

// HTTPAuthClient authenticates against the service's device-auth endpoint.
// A name conflict is signaled by HTTP 409.
type HTTPAuthClient struct {
	URL    string
	Client *http.Client
}

func NewHTTPAuthClient(url string) *HTTPAuthClient {
	return &HTTPAuthClient{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *HTTPAuthClient) Authenticate(ctx context.Context, id identity.Identity) (Session, error) {
	body, err := json.Marshal(authRequest{
		DeviceID:    id.DeviceID,
		DisplayName: id.DisplayName,
	})
	if err != nil {
		return Session{}, NewError("authenticate", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return Session{}, NewError("authenticate", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.Client.Do(req)
	if err != nil {
		return Session{}, NewError("authenticate", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusConflict:
		return Session{}, ErrNameTaken
	default:
		return Session{}, WrapError("authenticate", ErrAuthFailed,
			fmt.Sprintf("status %d", resp.StatusCode))
	}

	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return Session{}, NewError("authenticate", err)
	}
	if ar.Token == "" {
		return Session{}, WrapError("authenticate", ErrAuthFailed, "empty session token")
	}

	return Session{
		UserID:      ar.UserID,
		DisplayName: ar.DisplayName,
		Token:       ar.Token,
	}, nil
}
