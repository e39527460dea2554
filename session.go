package checkbox

import (
	"context"
	"time"

	"github.com/ansel1/merry"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type sessionState int

const (
	stateNoToken sessionState = iota
	stateAuthenticated
	stateRevoked
)

// session exchanges cashier credentials for a bearer token and owns it.
// Nothing outside this type reads the token.
type session struct {
	creds    Credentials
	tokenTTL time.Duration
	tr       caller

	state     sessionState
	token     string
	issuedAt  time.Time
	expiresAt time.Time
}

func newSession(creds Credentials, tokenTTL time.Duration, tr caller) *session {
	return &session{creds: creds, tokenTTL: tokenTTL, tr: tr}
}

func (s *session) login(ctx context.Context) error {
	var resp signinResponse
	err := s.tr.call(ctx, "POST", "cashier/signin", nil,
		signinRequest{Login: s.creds.Login, Password: s.creds.Password}, &resp)
	if err != nil {
		if merry.Is(err, ErrRejected) || merry.Is(err, ErrAuth) {
			return authFailure(err)
		}
		return err
	}
	if resp.AccessToken == "" {
		return ErrProtocol.Here().Append("signin response has no access_token")
	}

	s.token = resp.AccessToken
	s.issuedAt = time.Now()
	s.expiresAt = tokenExpiry(resp.AccessToken, s.issuedAt, s.tokenTTL)
	s.state = stateAuthenticated
	log.Info().Str("login", s.creds.Login).Time("expires_at", s.expiresAt).Msg("checkbox: cashier signed in")
	return nil
}

// ensureValid returns the cached token, logging in again only when there is
// no token, it expired, or a 401 revoked it.
func (s *session) ensureValid(ctx context.Context) (string, error) {
	if s.state == stateAuthenticated && time.Now().Before(s.expiresAt) {
		return s.token, nil
	}
	if err := s.login(ctx); err != nil {
		return "", err
	}
	return s.token, nil
}

func (s *session) invalidate() {
	s.state = stateRevoked
	s.token = ""
}

// do runs an authorized call. A 401 revokes the token and the call is
// repeated once after a fresh login; a second 401 is surfaced as fatal so
// bad credentials cannot loop.
func (s *session) do(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	for attempt := 0; ; attempt++ {
		token, err := s.ensureValid(ctx)
		if err != nil {
			return err
		}

		h := map[string]string{"Authorization": "Bearer " + token}
		for k, v := range headers {
			h[k] = v
		}

		err = s.tr.call(ctx, method, path, h, body, out)
		if err == nil {
			return nil
		}
		if merry.Is(err, ErrAuth) && attempt == 0 {
			log.Warn().Str("method", method).Str("path", path).Msg("checkbox: token rejected, re-authenticating")
			s.invalidate()
			continue
		}
		return err
	}
}

// authFailure re-labels a signin rejection as ErrAuth, keeping the server
// payload attached.
func authFailure(err error) error {
	authErr := ErrAuth.Here()
	if apiErr, ok := APIErrorFrom(err); ok {
		return authErr.Append(apiErr.Error()).WithValue(apiErrorKey, apiErr)
	}
	return authErr.Append(err.Error())
}

// tokenExpiry reads the exp claim when the token is a JWT, otherwise falls
// back to the configured TTL estimate.
func tokenExpiry(token string, issuedAt time.Time, ttl time.Duration) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return issuedAt.Add(ttl)
}
