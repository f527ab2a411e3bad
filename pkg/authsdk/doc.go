/*
Package authsdk is the client SDK and wire error vocabulary for tokengate.

# Errors

Every error response from the gateway and the identity service has the
same JSON body:

	{"status": 401, "error": "token_revoked", "message": "...", "path": "/api/orders"}

The server side writes these with (*APIError).WriteError. On the client side
every failed call returns an *APIError, which matches the predefined values
with errors.Is:

	_, err := client.Refresh(ctx, req)
	if errors.Is(err, authsdk.ErrRefreshReplayed) {
		// the renewal token was already spent; the session is gone
	}

# SDKClient and Session

SDKClient wraps the unauthenticated endpoints:

	client := authsdk.NewSDKClient("https://gateway.example.com/api/auth")
	tokens, err := client.Login(ctx, authsdk.LoginRequest{Username: "alice", Password: pw})

A Session keeps a token pair and refreshes the access token shortly before it
expires. Concurrent callers share a single refresh, so the single-use renewal
token is never presented twice by the same Session:

	session, err := client.AuthenticateWithPassword(ctx, req)
	token, err := session.Token(ctx)
	err = session.Logout(ctx)

A Session whose refresh is rejected, or that has logged out, returns
ErrSessionEnded from then on.
*/
package authsdk
