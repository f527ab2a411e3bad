// Package filter is the gateway's edge authentication. A request is turned
// into an Exchange and passed through an ordered Chain of filters, each of
// which continues, allows or rejects it. Filters never refresh tokens.
package filter

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/tokengate/pkg/authsdk"
	"github.com/aussiebroadwan/tokengate/pkg/jwtx"
)

type Verdict int

const (
	// Continue hands the exchange to the next filter.
	Continue Verdict = iota
	// Allow forwards the request with Exchange.Inject applied.
	Allow
	// Reject answers with Result.Err and does not forward.
	Reject
)

func (v Verdict) String() string {
	switch v {
	case Continue:
		return "continue"
	case Allow:
		return "allow"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Exchange is the state one request carries through the chain. Filters get
// a copy and return the copy they want the next filter to see.
type Exchange struct {
	// Path is the cleaned request path.
	Path string

	// Authorization is the raw Authorization header.
	Authorization string

	// Token is set by ExtractBearer.
	Token string

	// Claims is set by VerifyToken.
	Claims jwtx.Claims

	// Inject holds the identity headers to add to the forwarded request.
	Inject http.Header
}

type Result struct {
	Verdict  Verdict
	Exchange Exchange
	Err      *authsdk.APIError
}

type Filter func(ctx context.Context, ex Exchange) Result

func Next(ex Exchange) Result { return Result{Verdict: Continue, Exchange: ex} }

func Permit(ex Exchange) Result { return Result{Verdict: Allow, Exchange: ex} }

func Deny(ex Exchange, err *authsdk.APIError) Result {
	return Result{Verdict: Reject, Exchange: ex, Err: err}
}

// Chain runs filters in order until one allows or rejects. A chain that runs
// out of filters rejects, so a misconfigured chain never lets traffic through.
func Chain(filters ...Filter) Filter {
	return func(ctx context.Context, ex Exchange) Result {
		for _, f := range filters {
			res := f(ctx, ex)
			if res.Verdict != Continue {
				return res
			}
			ex = res.Exchange
		}
		return Deny(ex, authsdk.ErrInvalidToken)
	}
}
