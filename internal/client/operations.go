package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/searchapi-console/internal/model"
	"github.com/searchapi-console/internal/validation"
)

const invalidCredentialsMessage = "invalid email or password"

// Login exchanges email and password for a token pair. It does not
// persist the tokens; that is the session controller's commit step.
func (c *Client) Login(ctx context.Context, email, password string) (*model.TokenPair, error) {
	if err := validation.Login(email, password); err != nil {
		return nil, NewValidation(err.Error())
	}

	var tokens model.TokenPair
	err := c.do(ctx, call{
		operation: "login",
		method:    http.MethodPost,
		path:      "/login",
		body:      map[string]string{"email": strings.TrimSpace(email), "password": password},
		auth:      authNone,
	}, &tokens)
	if err != nil {
		return nil, loginError(err)
	}
	if tokens.AccessToken == "" {
		return nil, &Error{Kind: KindServer, Code: "invalid_response", Message: "login response did not include an access token"}
	}
	return &tokens, nil
}

// loginError types rejected credentials as an auth error carrying the
// server's message.
func loginError(err error) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	switch e.Status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
		msg := e.Message
		if msg == "" || msg == http.StatusText(e.Status) {
			msg = invalidCredentialsMessage
		}
		return &Error{Kind: KindUnauthorized, Status: e.Status, Code: "invalid_credentials", Message: msg}
	}
	return e
}

// Register creates a dashboard account.
func (c *Client) Register(ctx context.Context, r model.Registration) (*model.Account, error) {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.TrimSpace(r.Email)
	if err := validation.Registration(r); err != nil {
		return nil, NewValidation(err.Error())
	}

	var account model.Account
	err := c.do(ctx, call{
		operation: "register",
		method:    http.MethodPost,
		path:      "/register",
		body:      r,
		auth:      authNone,
	}, &account)
	if err != nil {
		return nil, err
	}
	if account.Email == "" {
		account.Email = r.Email
		account.FirstName = r.FirstName
		account.LastName = r.LastName
	}
	return &account, nil
}

// Me returns the account the current access token belongs to.
func (c *Client) Me(ctx context.Context) (*model.Account, error) {
	var account model.Account
	if err := c.do(ctx, call{operation: "me", method: http.MethodGet, path: "/me", auth: authBearer}, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// ListAPIKeys returns the user's keys in server order (newest first).
func (c *Client) ListAPIKeys(ctx context.Context) ([]model.APIKey, error) {
	var keys []model.APIKey
	if err := c.do(ctx, call{operation: "list_api_keys", method: http.MethodGet, path: "/tokens", auth: authBearer}, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// CreateAPIKey issues a new key. The returned token is shown in full
// only in this response.
func (c *Client) CreateAPIKey(ctx context.Context, name string) (*model.APIKey, error) {
	name, err := validation.KeyName(name)
	if err != nil {
		return nil, NewValidation(err.Error())
	}

	var key model.APIKey
	err = c.do(ctx, call{
		operation: "create_api_key",
		method:    http.MethodPost,
		path:      "/tokens",
		body:      map[string]string{"name": name},
		auth:      authBearer,
	}, &key)
	if err != nil {
		return nil, err
	}
	if key.Name == "" {
		key.Name = name
	}
	return &key, nil
}

func (c *Client) DeleteAPIKey(ctx context.Context, id int64) error {
	return c.do(ctx, call{
		operation: "delete_api_key",
		method:    http.MethodDelete,
		path:      fmt.Sprintf("/tokens/%d", id),
		auth:      authBearer,
	}, nil)
}

func (c *Client) UsageStats(ctx context.Context) ([]model.UsagePoint, error) {
	var points []model.UsagePoint
	if err := c.do(ctx, call{operation: "usage_stats", method: http.MethodGet, path: "/usage-stats", auth: authBearer}, &points); err != nil {
		return nil, err
	}
	return points, nil
}

func (c *Client) MyPackages(ctx context.Context) ([]model.Package, error) {
	var packages []model.Package
	if err := c.do(ctx, call{operation: "my_packages", method: http.MethodGet, path: "/my-packages", auth: authBearer}, &packages); err != nil {
		return nil, err
	}
	return packages, nil
}

// Search runs a query billed to apiKey. The session's bearer token is
// never sent, and a 401 here does not affect the session.
func (c *Client) Search(ctx context.Context, apiKey string, params model.SearchParams) (*model.SearchResult, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, NewValidation("an API key is required to search")
	}
	params, err := validation.SearchParams(params)
	if err != nil {
		return nil, NewValidation(err.Error())
	}

	var raw json.RawMessage
	err = c.do(ctx, call{
		operation: "search",
		method:    http.MethodPost,
		path:      "/api/search",
		body:      params,
		auth:      authAPIKey,
		apiKey:    apiKey,
	}, &raw)
	if err != nil {
		return nil, err
	}

	result := &model.SearchResult{Raw: raw}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			return nil, &Error{Kind: KindServer, Code: "invalid_response", Message: "the search service returned an unexpected response", Err: err}
		}
	}
	return result, nil
}
