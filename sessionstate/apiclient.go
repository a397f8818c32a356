package sessionstate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/campustrack/authcore"
)

// APIClient implements [authcore.ProfileResolver] and
// [authcore.ProfileFetcher] against the authd HTTP API. It is the transport
// a coordinator uses in a real client.
type APIClient struct {
	baseURL string
	http    *http.Client
}

// NewAPIClient builds a client for the given base URL. A nil http.Client
// gets a default with a 15s timeout.
func NewAPIClient(baseURL string, client *http.Client) *APIClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &APIClient{
		baseURL: baseURL,
		http:    client,
	}
}

type lookupRequest struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type lookupResponse struct {
	Success bool                 `json:"success"`
	Kind    authcore.ProfileKind `json:"userType"`
	Profile authcore.Profile     `json:"profile"`
}

// ResolveByContact implements [authcore.ProfileResolver] via
// POST /api/users/lookup.
func (c *APIClient) ResolveByContact(ctx context.Context, email, phone string) (authcore.ResolvedProfile, error) {
	body, err := json.Marshal(lookupRequest{Email: email, Phone: phone})
	if err != nil {
		return authcore.ResolvedProfile{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/users/lookup", bytes.NewReader(body))
	if err != nil {
		return authcore.ResolvedProfile{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return authcore.ResolvedProfile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return authcore.ResolvedProfile{}, authcore.ErrProfileNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return authcore.ResolvedProfile{}, fmt.Errorf("profile lookup: unexpected status %d", resp.StatusCode)
	}

	var decoded lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return authcore.ResolvedProfile{}, err
	}
	if !decoded.Success {
		return authcore.ResolvedProfile{}, authcore.ErrProfileNotFound
	}

	return authcore.ResolvedProfile{Kind: decoded.Kind, Profile: decoded.Profile}, nil
}

type fetchResponse struct {
	Success bool             `json:"success"`
	User    authcore.Profile `json:"user"`
}

// FetchByToken implements [authcore.ProfileFetcher] via GET /api/profile
// with a bearer token.
func (c *APIClient) FetchByToken(ctx context.Context, bearer string) (authcore.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/profile", nil)
	if err != nil {
		return authcore.Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.http.Do(req)
	if err != nil {
		return authcore.Profile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return authcore.Profile{}, authcore.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return authcore.Profile{}, fmt.Errorf("profile fetch: unexpected status %d", resp.StatusCode)
	}

	var decoded fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return authcore.Profile{}, err
	}
	if !decoded.Success {
		return authcore.Profile{}, authcore.ErrUnauthorized
	}

	return decoded.User, nil
}
