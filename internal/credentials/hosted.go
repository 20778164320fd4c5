package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"example.com/workouts/internal/domain"
)

// Hosted is a credential store backed by a GoTrue-compatible identity
// provider over REST. The anon API key and base URL come from configuration;
// they are never baked into the binary.
type Hosted struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHosted constructs a Hosted store.
func NewHosted(baseURL, apiKey string, timeout time.Duration) *Hosted {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Hosted{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type hostedTokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	User         hostedUser `json:"user"`
}

type hostedUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	ConfirmedAt string `json:"confirmed_at"`
}

type hostedError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Code        string `json:"error_code"`
	Msg         string `json:"msg"`
}

func (e hostedError) message() string {
	for _, s := range []string{e.Description, e.Msg, e.Error, e.Code} {
		if s != "" {
			return s
		}
	}
	return "unknown provider error"
}

// SignIn implements Store via the password grant.
func (h *Hosted) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": normalizeEmail(email), "password": password}

	var resp hostedTokenResponse
	status, perr, err := h.post(ctx, "/token?grant_type=password", "", body, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if status >= 300 {
		return nil, classifySignInError(status, perr)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, fmt.Errorf("%w: provider returned no session", domain.ErrProviderUnavailable)
	}
	return sessionFromToken(resp), nil
}

// SignUp implements Store. A response without tokens means the provider wants
// email confirmation before it issues a session.
func (h *Hosted) SignUp(ctx context.Context, email, password string) (*Registration, error) {
	body := map[string]string{"email": normalizeEmail(email), "password": password}

	// Confirmation-enabled providers return the bare user object instead of a
	// token payload, so decode both shapes.
	var resp struct {
		hostedTokenResponse
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	status, perr, err := h.post(ctx, "/signup", "", body, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if status >= 300 {
		return nil, classifySignUpError(status, perr)
	}

	if resp.AccessToken != "" && resp.RefreshToken != "" {
		session := sessionFromToken(resp.hostedTokenResponse)
		return &Registration{Session: session, Identity: session.Identity}, nil
	}

	identity := domain.Identity{ID: resp.User.ID, Email: resp.User.Email}
	if identity.ID == "" {
		identity = domain.Identity{ID: resp.ID, Email: resp.Email}
	}
	return &Registration{Identity: identity, ConfirmationRequired: true}, nil
}

// SetSession implements Store. The access token is checked first; on expiry
// the refresh grant issues a replacement pair.
func (h *Hosted) SetSession(ctx context.Context, tokens domain.TokenPair) (*Session, error) {
	identity, err := h.CurrentIdentity(ctx, tokens.AccessToken)
	if err == nil {
		return &Session{Identity: *identity, Tokens: tokens}, nil
	}

	body := map[string]string{"refresh_token": tokens.RefreshToken}
	var resp hostedTokenResponse
	status, perr, err := h.post(ctx, "/token?grant_type=refresh_token", "", body, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if status >= 300 {
		if status >= 500 {
			return nil, fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, perr.message())
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrUnauthorized, perr.message())
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		return nil, fmt.Errorf("%w: refresh returned no session", domain.ErrUnauthorized)
	}
	return sessionFromToken(resp), nil
}

// CurrentIdentity implements Store via GET /user.
func (h *Hosted) CurrentIdentity(ctx context.Context, accessToken string) (*domain.Identity, error) {
	if accessToken == "" {
		return nil, domain.ErrUnauthorized
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/user", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	h.setHeaders(req, accessToken)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", domain.ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		return nil, domain.ErrUnauthorized
	}

	var user hostedUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if user.ID == "" {
		return nil, domain.ErrUnauthorized
	}
	return &domain.Identity{ID: user.ID, Email: user.Email}, nil
}

// SignOut implements Store via POST /logout.
func (h *Hosted) SignOut(ctx context.Context, tokens domain.TokenPair) error {
	if tokens.AccessToken == "" {
		return nil
	}
	status, perr, err := h.post(ctx, "/logout", tokens.AccessToken, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if status >= 300 && status != http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, perr.message())
	}
	return nil
}

func (h *Hosted) post(ctx context.Context, path, bearer string, body, out interface{}) (int, hostedError, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, hostedError{}, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, &buf)
	if err != nil {
		return 0, hostedError{}, err
	}
	h.setHeaders(req, bearer)

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, hostedError{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var perr hostedError
		_ = json.NewDecoder(resp.Body).Decode(&perr)
		return resp.StatusCode, perr, nil
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, hostedError{}, err
		}
	}
	return resp.StatusCode, hostedError{}, nil
}

func (h *Hosted) setHeaders(req *http.Request, bearer string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", h.apiKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
}

func sessionFromToken(resp hostedTokenResponse) *Session {
	return &Session{
		Identity: domain.Identity{ID: resp.User.ID, Email: resp.User.Email},
		Tokens:   domain.TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken},
	}
}

func classifySignInError(status int, perr hostedError) error {
	msg := strings.ToLower(perr.message())
	switch {
	case status >= 500:
		return fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, perr.message())
	case strings.Contains(msg, "not confirmed") || perr.Code == "email_not_confirmed":
		return fmt.Errorf("%w: %s", domain.ErrUnconfirmedAccount, perr.message())
	default:
		return fmt.Errorf("%w: %s", domain.ErrInvalidCredentials, perr.message())
	}
}

func classifySignUpError(status int, perr hostedError) error {
	msg := strings.ToLower(perr.message())
	switch {
	case status >= 500:
		return fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, perr.message())
	case strings.Contains(msg, "already") || perr.Code == "user_already_exists":
		return fmt.Errorf("%w: %s", domain.ErrDuplicateAccount, perr.message())
	case strings.Contains(msg, "password") || perr.Code == "weak_password":
		return fmt.Errorf("%w: %s", domain.ErrWeakPassword, perr.message())
	default:
		return fmt.Errorf("%w: %s", domain.ErrProviderUnavailable, perr.message())
	}
}
