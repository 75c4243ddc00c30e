package websocket

import (
	"net/http"
	"strings"

	"inputfeed/internal/auth"
	"inputfeed/internal/input"
	apperrors "inputfeed/pkg/errors"
)

// Authorizer resolves the stream token on an upgrade request and decides
// which tag channels the viewer may join.
type Authorizer struct {
	tokens *auth.TokenService
}

// NewAuthorizer returns an Authorizer. With a nil token service every
// request is accepted anonymously.
func NewAuthorizer(tokens *auth.TokenService) *Authorizer {
	return &Authorizer{tokens: tokens}
}

// Authenticate returns the claims carried by the request's token, read from
// the "token" query parameter or a Bearer Authorization header.
func (a *Authorizer) Authenticate(r *http.Request) (*auth.StreamClaims, error) {
	if a == nil || a.tokens == nil {
		return &auth.StreamClaims{}, nil
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		header := r.Header.Get("Authorization")
		if after, ok := strings.CutPrefix(header, "Bearer "); ok {
			token = strings.TrimSpace(after)
		}
	}
	if token == "" {
		return nil, apperrors.ErrUnauthorized
	}
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

// Channels validates the requested types list against the claims and returns
// the channels to subscribe. An empty request means AllTypes.
func (a *Authorizer) Channels(claims *auth.StreamClaims, requested string) ([]string, error) {
	var channels []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(requested, ",") {
		part = strings.TrimSpace(part)
		if part == "" || seen[part] {
			continue
		}
		if part != AllTypes && !input.Tag(part).Known() {
			return nil, apperrors.ErrInvalidInput
		}
		if !claims.Allows(part) {
			return nil, apperrors.ErrUnauthorized
		}
		seen[part] = true
		channels = append(channels, part)
	}
	if len(channels) == 0 {
		if !claims.Allows(AllTypes) {
			return nil, apperrors.ErrUnauthorized
		}
		channels = []string{AllTypes}
	}
	return channels, nil
}
