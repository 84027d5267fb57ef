package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nvisycom/server/auth"
	"github.com/nvisycom/server/db"
	"github.com/nvisycom/server/nats"
)

// SignupRequest creates a new account.
type SignupRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest authenticates an account.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AccountResponse is the public shape of an account.
type AccountResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse carries a freshly issued bearer token.
type SessionResponse struct {
	Account   AccountResponse `json:"account"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

func accountResponse(account *db.Account) AccountResponse {
	return AccountResponse{
		ID:        account.ID,
		Email:     account.Email,
		IsAdmin:   account.IsAdmin,
		CreatedAt: account.CreatedAt,
	}
}

// Signup registers an account and issues a first session token.
func (s *Service) Signup(c echo.Context) error {
	var req SignupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()

	if _, err := s.Store.FindAccountByEmail(ctx, req.Email); err == nil {
		return ErrConflict().WithMessage("An account with this email already exists").WithResource("account")
	} else if !errors.Is(err, db.ErrNotFound) {
		return err
	}

	hash, err := s.Hasher.HashPassword(req.Password)
	if err != nil {
		return err
	}

	account, err := s.Store.CreateAccount(ctx, db.NewAccount{
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}

	return s.issueSession(c, account, http.StatusCreated)
}

// Login authenticates credentials and issues a session token. When no
// account matches the email a dummy hash verification of equal cost runs
// before returning, so timing does not reveal account existence.
func (s *Service) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()

	account, err := s.Store.FindAccountByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.Hasher.VerifyDummy(req.Password)
			return ErrUnauthorized().WithMessage("Invalid credentials")
		}
		return err
	}

	if err := s.Hasher.VerifyPassword(req.Password, account.PasswordHash); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return ErrUnauthorized().WithMessage("Invalid credentials")
		}
		return err
	}

	return s.issueSession(c, account, http.StatusOK)
}

// issueSession creates an ApiToken record and signs a JWT bound to it.
func (s *Service) issueSession(c echo.Context, account *db.Account, status int) error {
	ctx := c.Request().Context()

	token, err := s.Tokens.CreateToken(
		ctx,
		account.ID,
		nats.TokenWeb,
		c.RealIP(),
		c.Request().UserAgent(),
		s.Config.Auth.TokenTTL,
	)
	if err != nil {
		return err
	}

	signed, err := s.Keys.Encode(account.ID, token.AccessSeq, s.Config.Auth.TokenTTL)
	if err != nil {
		return err
	}

	// A device session tracks activity alongside the token.
	if _, err := s.Sessions.CreateSession(ctx, account.ID, "", c.RealIP(), c.Request().UserAgent(), s.Config.Auth.TokenTTL); err != nil {
		log.WithError(err).Warn("could not create user session")
	}

	return c.JSON(status, SessionResponse{
		Account:   accountResponse(account),
		Token:     signed,
		ExpiresAt: token.ExpiredAt,
	})
}

// Logout revokes the calling token.
func (s *Service) Logout(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}

	if err := s.Tokens.DeleteToken(c.Request().Context(), caller.AccessSeq); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// LogoutEverywhere revokes every token and session of the calling account.
func (s *Service) LogoutEverywhere(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	deleted, err := s.Tokens.DeleteAccountTokens(ctx, caller.AccountID)
	if err != nil {
		return err
	}
	if _, err := s.Sessions.DeleteUserSessions(ctx, caller.AccountID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]int{"revoked": deleted})
}

// TokenInfo is the public shape of an issued token.
type TokenInfo struct {
	AccessSeq  uuid.UUID      `json:"access_seq"`
	TokenType  nats.TokenType `json:"token_type"`
	IPAddress  string         `json:"ip_address"`
	UserAgent  string         `json:"user_agent"`
	IssuedAt   time.Time      `json:"issued_at"`
	ExpiredAt  time.Time      `json:"expired_at"`
	LastUsedAt *time.Time     `json:"last_used_at,omitempty"`
}

// ListTokens returns the caller's active tokens, most recently used first.
func (s *Service) ListTokens(c echo.Context) error {
	caller, err := principal(c)
	if err != nil {
		return err
	}

	tokens, err := s.Tokens.GetAccountTokens(c.Request().Context(), caller.AccountID)
	if err != nil {
		return err
	}

	infos := make([]TokenInfo, len(tokens))
	for i, t := range tokens {
		infos[i] = TokenInfo{
			AccessSeq:  t.AccessSeq,
			TokenType:  t.TokenType,
			IPAddress:  t.IPAddress,
			UserAgent:  t.UserAgent,
			IssuedAt:   t.IssuedAt,
			ExpiredAt:  t.ExpiredAt,
			LastUsedAt: t.LastUsedAt,
		}
	}
	return c.JSON(http.StatusOK, infos)
}
