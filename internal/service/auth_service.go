package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/dokumen-api/internal/models"
	"github.com/noah-isme/dokumen-api/pkg/config"
	appErrors "github.com/noah-isme/dokumen-api/pkg/errors"
)

type userProvisioner interface {
	Provision(ctx context.Context, claims *models.TokenClaims) (*models.User, error)
}

// CallbackResult tells the transport layer how to finish the login callback.
type CallbackResult struct {
	Redirect    string
	Token       string
	SetCookie   bool
	ClearCookie bool
	User        *models.User
}

// AuthService validates tokens issued by the external auth service.
type AuthService struct {
	users  userProvisioner
	config config.AuthConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users userProvisioner, cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "access_token"
	}
	if cfg.CookieTTL <= 0 {
		cfg.CookieTTL = time.Hour
	}
	return &AuthService{users: users, config: cfg, logger: logger, now: time.Now}
}

// CookieName is the cookie carrying the access token.
func (s *AuthService) CookieName() string { return s.config.CookieName }

// CookieTTL is the lifetime of the access token cookie.
func (s *AuthService) CookieTTL() time.Duration { return s.config.CookieTTL }

// LoginURL points at the external login page.
func (s *AuthService) LoginURL() string {
	return s.config.AuthURL + "/?redirect_url=" + url.QueryEscape(s.config.RedirectAuthURL)
}

// LogoutURL points at the external logout page.
func (s *AuthService) LogoutURL() string {
	return s.config.AuthURL + "/logout?redirect_url=" + url.QueryEscape(s.config.RedirectAuthURL)
}

// ValidateToken parses an access token. Signatures are verified with HS256 when a secret is
// configured; otherwise the token is only decoded and its expiry checked.
func (s *AuthService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	if tokenString == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing token")
	}
	claims := &models.TokenClaims{}

	if s.config.Secret != "" {
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(s.config.Secret), nil
		}, jwt.WithTimeFunc(s.now))
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				return nil, appErrors.ErrTokenExpired
			}
			return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
		}
		if !token.Valid {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
		}
		if claims.ExpiresAt != nil && !s.now().Before(claims.ExpiresAt.Time) {
			return nil, appErrors.ErrTokenExpired
		}
	}

	if claims.Identity() == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no user id")
	}
	return claims, nil
}

// Callback completes a login redirect. A missing token sends the user to the login page;
// an expired or unusable token logs the user out.
func (s *AuthService) Callback(ctx context.Context, token string) CallbackResult {
	if token == "" {
		return CallbackResult{Redirect: s.LoginURL()}
	}
	claims, err := s.ValidateToken(token)
	if err != nil {
		s.logger.Info("callback token rejected", zap.Error(err))
		return CallbackResult{Redirect: s.LogoutURL(), ClearCookie: true}
	}
	user, err := s.users.Provision(ctx, claims)
	if err != nil {
		s.logger.Warn("load user on callback failed", zap.String("user_id", claims.Identity()), zap.Error(err))
		return CallbackResult{Redirect: s.LogoutURL(), ClearCookie: true}
	}

	redirect := s.config.PostLoginRedirect
	if redirect == "" {
		redirect = "/"
	}
	return CallbackResult{Redirect: redirect, Token: token, SetCookie: true, User: user}
}
