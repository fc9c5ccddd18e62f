package api

import (
	"context"
	"fmt"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (TokenPair, error) {
	var tokens TokenPair
	err := c.postJSON(ctx, "", c.endpoint("auth", "login"), loginRequest{
		Username: username,
		Password: password,
	}, &tokens)
	if err != nil {
		return TokenPair{}, err
	}
	if tokens.Access == "" {
		return TokenPair{}, fmt.Errorf("api: login response missing access token")
	}
	return tokens, nil
}

// Register creates a new account with the given role. The backend responds
// with a plain acknowledgement; the caller logs in separately.
func (c *Client) Register(ctx context.Context, username, password string, role Role) error {
	return c.postJSON(ctx, "", c.endpoint("auth", "register"), registerRequest{
		Username: username,
		Password: password,
		Role:     role,
	}, nil)
}

// Me resolves the access token to the profile behind it.
func (c *Client) Me(ctx context.Context, token string) (UserProfile, error) {
	var profile UserProfile
	if err := c.getJSON(ctx, token, c.endpoint("auth", "me"), &profile); err != nil {
		return UserProfile{}, err
	}
	return profile, nil
}
