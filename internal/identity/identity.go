package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// User is the snapshot the identity service returns for a guest. The booking
// copies DisplayName/Email/Phone at creation and never refreshes them.
type User struct {
	ID               uint   `json:"id"`
	DisplayName      string `json:"display_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	IdentityVerified bool   `json:"identity_verified"`
}

// VerificationResult is the opaque answer of the biometric collaborator.
// The engine only consumes IsMatch as a gate; it makes no claims about how
// the score is produced.
type VerificationResult struct {
	IsMatch    bool    `json:"is_match"`
	Confidence float64 `json:"confidence"`
}

type Directory interface {
	ResolveUser(ctx context.Context, userID uint) (*User, error)
}

type Verifier interface {
	Verify(ctx context.Context, userID uint, sample string) (*VerificationResult, error)
}

type httpDirectory struct {
	baseURL string
	client  *http.Client
}

func NewHTTPDirectory(baseURL string) Directory {
	return &httpDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (d *httpDirectory) ResolveUser(ctx context.Context, userID uint) (*User, error) {
	url := fmt.Sprintf("%s/api/v1/users/%d", d.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrUserNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity service returned %d", resp.StatusCode)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	return &user, nil
}

type httpVerifier struct {
	baseURL string
	client  *http.Client
}

func NewHTTPVerifier(baseURL string) Verifier {
	return &httpVerifier{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *httpVerifier) Verify(ctx context.Context, userID uint, sample string) (*VerificationResult, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"user_id": userID,
		"sample":  sample,
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v1/verify", v.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verification service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verification service returned %d", resp.StatusCode)
	}

	var result VerificationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode verification response: %w", err)
	}
	return &result, nil
}
