package authsdk

import (
	"context"
	"net/http"
)

// Login exchanges a username and password for a token pair.
func (c *SDKClient) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.postJSON(ctx, "/login", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh rotates a session's renewal token. The presented token is spent
// whether or not the caller receives the response.
func (c *SDKClient) Refresh(ctx context.Context, req RefreshRequest) (*TokenResponse, error) {
	var out TokenResponse
	if err := c.postJSON(ctx, "/refresh", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout ends the session the access token belongs to and revokes the token.
func (c *SDKClient) Logout(ctx context.Context, accessToken string) error {
	return c.postJSON(ctx, "/logout", accessToken, nil, nil)
}

// LogoutAll ends every session of the token's subject. It must be called
// through the gateway, which resolves the subject from the token.
func (c *SDKClient) LogoutAll(ctx context.Context, accessToken string) (*LogoutAllResponse, error) {
	var out LogoutAllResponse
	if err := c.postJSON(ctx, "/logout-all", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Validate asks the identity service whether token is currently valid.
func (c *SDKClient) Validate(ctx context.Context, token string) (*ValidateResponse, error) {
	var out ValidateResponse
	if err := c.postJSON(ctx, "/validate", "", ValidateRequest{Token: token}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get performs an authenticated GET, typically against a gateway route.
func (c *SDKClient) Get(ctx context.Context, path, accessToken string) (*http.Response, error) {
	headers := map[string]string{}
	if accessToken != "" {
		headers["Authorization"] = "Bearer " + accessToken
	}
	return c.doRequest(ctx, http.MethodGet, path, nil, headers)
}
