// Package identity wraps the external identity provider's account REST API.
// Authentication screens live entirely on the provider's side; the server
// only needs sign-up/sign-in for the API flow and the account-panel
// operations (password change, account deletion).
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"homestaging/internal/domain"
	"homestaging/internal/infra"
)

// Account is the provider's view of an authenticated user.
type Account struct {
	UID          string
	Email        string
	IDToken      string
	RefreshToken string
	IsNewUser    bool
}

// Options controls how the identity client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type accountRequest struct {
	Email             string `json:"email,omitempty"`
	Password          string `json:"password,omitempty"`
	IDToken           string `json:"idToken,omitempty"`
	ReturnSecureToken bool   `json:"returnSecureToken,omitempty"`
}

type accountResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, fmt.Errorf("identity: api key is required")
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://identitytoolkit.googleapis.com/v1"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		httpClient: client,
		logger:     logger,
	}, nil
}

// SignUp registers a new account. The returned account is always a first-ever
// registration, which is when the welcome credit applies.
func (c *Client) SignUp(ctx context.Context, email, password string) (*Account, error) {
	var resp accountResponse
	err := c.invoke(ctx, "accounts:signUp", accountRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	c.logger.Info().Str("uid", resp.LocalID).Msg("identity: account created")
	return &Account{
		UID:          resp.LocalID,
		Email:        resp.Email,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
		IsNewUser:    true,
	}, nil
}

// SignIn authenticates an existing account.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Account, error) {
	var resp accountResponse
	err := c.invoke(ctx, "accounts:signInWithPassword", accountRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &Account{
		UID:          resp.LocalID,
		Email:        resp.Email,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}

// ChangePassword updates the password of the account owning idToken. The
// provider may demand a recent sign-in, surfaced as ErrIdentityOperation.
func (c *Client) ChangePassword(ctx context.Context, idToken, newPassword string) error {
	var resp accountResponse
	return c.invoke(ctx, "accounts:update", accountRequest{
		IDToken:           idToken,
		Password:          newPassword,
		ReturnSecureToken: false,
	}, &resp)
}

// DeleteAccount removes the account owning idToken from the provider. The
// caller is responsible for clearing the ledger entry afterwards.
func (c *Client) DeleteAccount(ctx context.Context, idToken string) error {
	var resp struct{}
	return c.invoke(ctx, "accounts:delete", accountRequest{IDToken: idToken}, &resp)
}

func (c *Client) invoke(ctx context.Context, action string, payload any, out any) error {
	endpoint := fmt.Sprintf("%s/%s?key=%s", c.baseURL, action, c.apiKey)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("identity: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("identity: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrIdentityOperation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr apiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			c.logger.Warn().Str("action", action).Str("reason", apiErr.Error.Message).Msg("identity: provider refused operation")
			return fmt.Errorf("%w: %s", domain.ErrIdentityOperation, apiErr.Error.Message)
		}
		return fmt.Errorf("%w: status %d", domain.ErrIdentityOperation, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %s", domain.ErrIdentityOperation, err)
	}
	return nil
}
