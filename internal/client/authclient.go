package client

import (
	"context"
	"net/http"

	"github.com/reelgrid/reelgrid/internal/session"
)

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
}

type sessionResponse struct {
	User struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	Profile *struct {
		ID        string `json:"id"`
		Username  string `json:"username"`
		AvatarURL string `json:"avatarUrl"`
	} `json:"profile"`
}

// CurrentSession resolves an existing session. With no access token it
// first tries a silent refresh off the cookie jar; a clean "not signed
// in" outcome is a nil session, not an error.
func (c *Client) CurrentSession(ctx context.Context) (*session.Session, error) {
	if c.token() == "" {
		if err := c.refresh(ctx, false); err != nil {
			if statusOf(err) == http.StatusUnauthorized {
				return nil, nil
			}
			return nil, err
		}
	}

	sess, err := c.fetchSession(ctx)
	if err != nil {
		if statusOf(err) == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

func (c *Client) fetchSession(ctx context.Context) (*session.Session, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &resp); err != nil {
		return nil, err
	}
	return &session.Session{
		User:        session.User{ID: resp.User.ID, Email: resp.User.Email},
		AccessToken: c.token(),
	}, nil
}

// refresh rotates the refresh cookie into a fresh access token. When
// emit is set, subscribers hear a token-refreshed event.
func (c *Client) refresh(ctx context.Context, emit bool) error {
	var resp tokenResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", nil, &resp); err != nil {
		return err
	}
	c.setAccessToken(resp.AccessToken)

	if emit {
		sess, err := c.fetchSession(ctx)
		if err == nil {
			c.emit(session.Event{Kind: session.EventTokenRefreshed, Session: sess})
		}
	}
	return nil
}

// Refresh renews the access token and notifies subscribers.
func (c *Client) Refresh(ctx context.Context) error {
	return c.refresh(ctx, true)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

// SignIn authenticates with email and password and announces the new
// session to subscribers.
func (c *Client) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login",
		credentialsRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	c.setAccessToken(resp.AccessToken)

	sess, err := c.fetchSession(ctx)
	if err != nil {
		return nil, err
	}
	c.emit(session.Event{Kind: session.EventSignedIn, Session: sess})
	return sess, nil
}

// SignUp registers an account and announces the new session.
func (c *Client) SignUp(ctx context.Context, email, password, username string) (*session.Session, error) {
	var resp tokenResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/register",
		credentialsRequest{Email: email, Password: password, Username: username}, &resp)
	if err != nil {
		return nil, err
	}
	c.setAccessToken(resp.AccessToken)

	sess, err := c.fetchSession(ctx)
	if err != nil {
		return nil, err
	}
	c.emit(session.Event{Kind: session.EventSignedIn, Session: sess})
	return sess, nil
}

// SignOut revokes the refresh token, drops the access token, and
// announces the sign-out.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
	c.setAccessToken("")
	c.emit(session.Event{Kind: session.EventSignedOut})
	return err
}

// GetProfile loads the signed-in user's profile via the session
// endpoint. A null profile maps to session.ErrProfileNotFound.
func (c *Client) GetProfile(ctx context.Context, userID string) (*session.Profile, error) {
	var resp sessionResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Profile == nil {
		return nil, session.ErrProfileNotFound
	}
	return &session.Profile{
		ID:        resp.Profile.ID,
		Username:  resp.Profile.Username,
		AvatarURL: resp.Profile.AvatarURL,
	}, nil
}

type updateProfileRequest struct {
	Username  *string `json:"username,omitempty"`
	AvatarKey *string `json:"avatarKey,omitempty"`
}

type profileResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatarUrl"`
}

// UpdateProfile applies a partial profile change.
func (c *Client) UpdateProfile(ctx context.Context, update session.ProfileUpdate) (*session.Profile, error) {
	var resp profileResponse
	err := c.do(ctx, http.MethodPatch, "/api/auth/profile",
		updateProfileRequest{Username: update.Username, AvatarKey: update.AvatarKey}, &resp)
	if err != nil {
		return nil, err
	}
	return &session.Profile{ID: resp.ID, Username: resp.Username, AvatarURL: resp.AvatarURL}, nil
}
