package api

import (
	"errors"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/nvisycom/server/auth"
)

// principalKey is the context key the auth middleware stores the resolved
// principal under.
const principalKey = "principal"

// AuthMiddleware authenticates bearer JWTs: the signature and claims are
// verified against the session keys, then the embedded access sequence is
// checked against the API token store so revoked tokens die immediately.
func (s *Service) AuthMiddleware() echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey:  principalKey,
		TokenLookup: "header:Authorization:Bearer ",
		ParseTokenFunc: func(c echo.Context, tokenString string) (any, error) {
			claims, err := s.Keys.Decode(tokenString)
			if err != nil {
				return nil, err
			}

			token, err := s.Tokens.GetToken(c.Request().Context(), claims.AccessSeq)
			if err != nil {
				return nil, err
			}
			if token == nil {
				return nil, auth.ErrInvalidToken
			}

			account, err := s.Store.FindAccountByID(c.Request().Context(), token.AccountID)
			if err != nil {
				return nil, auth.ErrInvalidToken
			}

			return &auth.Principal{
				AccountID: account.ID,
				AccessSeq: token.AccessSeq,
				IsAdmin:   account.IsAdmin,
			}, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			switch {
			case errors.Is(err, echojwt.ErrJWTMissing):
				return ErrMissingAuthToken()
			case errors.Is(err, auth.ErrExpiredToken):
				return ErrTokenExpired()
			default:
				return ErrUnauthorized()
			}
		},
	})
}

// principal returns the authenticated caller set by AuthMiddleware.
func principal(c echo.Context) (*auth.Principal, error) {
	p, ok := c.Get(principalKey).(*auth.Principal)
	if !ok || p == nil {
		return nil, ErrMissingAuthToken()
	}
	return p, nil
}
