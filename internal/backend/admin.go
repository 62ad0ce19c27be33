package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// LoginResult is the backend answer to a successful admin login.
type LoginResult struct {
	Message string `json:"message"`
	Token   string `json:"token"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges admin credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (LoginResult, error) {
	resp, err := c.do(ctx, "/admin/login", http.MethodPost, "/admin/login", loginRequest{Username: username, Password: password}, "")
	if err != nil {
		return LoginResult{}, err
	}
	var result LoginResult
	if err := resp.Decode(&result); err != nil {
		return LoginResult{}, err
	}
	if resp.Status != http.StatusOK {
		return LoginResult{}, &APIError{Kind: KindServer, Status: resp.Status, Message: GenericMessage}
	}
	result.Token = strings.TrimSpace(result.Token)
	if result.Token == "" {
		return LoginResult{}, decodeError(resp.Status, errors.New("login response carried no token"))
	}
	return result, nil
}

// Verify asks the backend whether token is still valid.
func (c *Client) Verify(ctx context.Context, token string) error {
	_, err := c.do(ctx, "/admin/verify", http.MethodGet, "/admin/verify", nil, token)
	return err
}
