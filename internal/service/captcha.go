package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CaptchaVerifier validates a client CAPTCHA token.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

type turnstileVerifier struct {
	client    *http.Client
	secret    string
	verifyURL string
}

type turnstileResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// NewTurnstileVerifier verifies tokens against Cloudflare Turnstile.
func NewTurnstileVerifier(client *http.Client, secret, verifyURL string) CaptchaVerifier {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &turnstileVerifier{client: client, secret: secret, verifyURL: verifyURL}
}

func (v *turnstileVerifier) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("turnstile request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("turnstile returned status %d", resp.StatusCode)
	}

	var body turnstileResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("decode turnstile response: %w", err)
	}
	return body.Success, nil
}

// allowAllCaptcha accepts every token. It is only wired when no secret is
// configured in development.
type allowAllCaptcha struct{}

// NewNoopCaptchaVerifier returns a verifier that accepts every token.
func NewNoopCaptchaVerifier() CaptchaVerifier { return allowAllCaptcha{} }

func (allowAllCaptcha) Verify(context.Context, string, string) (bool, error) { return true, nil }
