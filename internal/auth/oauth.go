package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reelgrid/reelgrid/internal/httputil"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const oauthStateTTL = 10 * time.Minute

type oauthSettings struct {
	cfg *oauth2.Config

	mu     sync.Mutex
	states map[string]time.Time
}

// OAuthConfig carries the federated-login application credentials.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (h *Handler) SetOAuth(cfg OAuthConfig) {
	h.oauth = &oauthSettings{
		cfg: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"email", "public_profile"},
			Endpoint:     facebook.Endpoint,
		},
		states: make(map[string]time.Time),
	}
}

func (o *oauthSettings) newState() string {
	state := uuid.NewString()
	o.mu.Lock()
	o.states[state] = time.Now().Add(oauthStateTTL)
	for s, exp := range o.states {
		if time.Now().After(exp) {
			delete(o.states, s)
		}
	}
	o.mu.Unlock()
	return state
}

func (o *oauthSettings) consumeState(state string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	exp, ok := o.states[state]
	if !ok {
		return false
	}
	delete(o.states, state)
	return time.Now().Before(exp)
}

// FacebookLogin starts the federated sign-in redirect flow.
func (h *Handler) FacebookLogin(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "federated login is not enabled")
		return
	}
	url := h.oauth.cfg.AuthCodeURL(h.oauth.newState())
	http.Redirect(w, r, url, http.StatusFound)
}

type facebookProfile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// FacebookCallback lands the provider redirect: it verifies the state
// nonce, exchanges the code, provisions the account and profile on first
// sign-in, and hands the browser back to the SPA with a refresh cookie set.
func (h *Handler) FacebookCallback(w http.ResponseWriter, r *http.Request) {
	if h.oauth == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "federated login is not enabled")
		return
	}

	if !h.oauth.consumeState(r.URL.Query().Get("state")) {
		httputil.WriteError(w, http.StatusBadRequest, "invalid or expired login state")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	token, err := h.oauth.cfg.Exchange(r.Context(), code)
	if err != nil {
		httputil.WriteError(w, http.StatusBadGateway, "failed to exchange authorization code")
		return
	}

	fbProfile, err := fetchFacebookProfile(r.Context(), h.oauth.cfg, token)
	if err != nil {
		httputil.WriteError(w, http.StatusBadGateway, "failed to load provider profile")
		return
	}
	if fbProfile.Email == "" {
		httputil.WriteError(w, http.StatusBadRequest, "provider account has no email address")
		return
	}

	userID, err := h.provisionFederatedUser(r.Context(), fbProfile)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to provision account")
		return
	}

	_, refreshToken, err := h.issueTokens(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	h.setRefreshTokenCookie(w, refreshToken)
	http.Redirect(w, r, "/auth/callback", http.StatusFound)
}

func fetchFacebookProfile(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (*facebookProfile, error) {
	resp, err := cfg.Client(ctx, token).Get("https://graph.facebook.com/me?fields=id,name,email")
	if err != nil {
		return nil, fmt.Errorf("fetch provider profile: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider profile request failed: %s", resp.Status)
	}

	var profile facebookProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode provider profile: %w", err)
	}
	return &profile, nil
}

// provisionFederatedUser finds or creates the local account for a provider
// identity. Federated accounts get an unusable random password hash so the
// password login path can never match them by accident.
func (h *Handler) provisionFederatedUser(ctx context.Context, fb *facebookProfile) (string, error) {
	var userID string
	err := h.db.QueryRow(ctx, "SELECT id FROM users WHERE email = $1", fb.Email).Scan(&userID)
	if err == nil {
		if err := h.ensureProfile(ctx, userID, fb.Name); err != nil {
			return "", err
		}
		return userID, nil
	}

	placeholder, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	err = h.db.QueryRow(ctx,
		"INSERT INTO users (email, password) VALUES ($1, $2) RETURNING id",
		fb.Email, string(placeholder),
	).Scan(&userID)
	if err != nil {
		return "", err
	}

	username := fb.Name
	if username == "" {
		return "", errors.New("provider profile has no name")
	}
	if err := h.ensureProfile(ctx, userID, username); err != nil {
		return "", err
	}
	return userID, nil
}
