// Package identity resolves the acting user for a request. The app trusts
// an upstream authenticator; everything here assumes the user id it is
// handed has already been verified.
package identity

import (
	"net/http"

	apperrors "github.com/rahulvtu/studycircle/pkg/errors"
)

// HeaderUserID carries the authenticated user's id, set by the auth proxy
// in front of this service.
const HeaderUserID = "X-User-ID"

// Provider extracts the acting user from an incoming request.
type Provider interface {
	CurrentUser(r *http.Request) (string, error)
}

// HeaderProvider reads the user id from HeaderUserID.
type HeaderProvider struct{}

func (HeaderProvider) CurrentUser(r *http.Request) (string, error) {
	userID := r.Header.Get(HeaderUserID)
	if userID == "" {
		return "", apperrors.New(apperrors.CodeNotAuthorized, "missing user identity")
	}
	return userID, nil
}

// StaticProvider always resolves to a fixed user. Used in tests and
// single-user local runs.
type StaticProvider struct {
	UserID string
}

func (p StaticProvider) CurrentUser(*http.Request) (string, error) {
	return p.UserID, nil
}
