package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/veridata/consent-server-go/internal/config"
	apperrors "github.com/veridata/consent-server-go/internal/errors"
	"github.com/veridata/consent-server-go/internal/model"
	"github.com/veridata/consent-server-go/internal/repository"
)

const tokenIssuer = "consent-server"

// SessionService issues and validates the stateless session tokens set
// after email, wallet or OAuth login. The subject claim is the user ID;
// every downstream operation takes that ID explicitly.
type SessionService struct {
	userRepo repository.UserRepository
	secret   []byte
}

func NewSessionService(userRepo repository.UserRepository, secret string) *SessionService {
	return &SessionService{
		userRepo: userRepo,
		secret:   []byte(secret),
	}
}

func (s *SessionService) IssueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(config.SessionMaxAge)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

func (s *SessionService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return "", apperrors.InvalidToken("invalid or expired session").WithCause(err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", apperrors.InvalidToken("session token has no subject")
	}
	return claims.Subject, nil
}

// ResolveUser loads the user for a session token.
func (s *SessionService) ResolveUser(ctx context.Context, tokenString string) (*model.User, error) {
	userID, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if user == nil {
		return nil, apperrors.Unauthorized("Unknown user")
	}
	return user, nil
}

// LoginWithEmail finds or creates the user for an email login and issues a
// session token.
func (s *SessionService) LoginWithEmail(ctx context.Context, email string) (*model.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", apperrors.InvalidInput("email", "not a valid address")
	}
	return s.loginOrCreate(ctx, email, email, model.ProviderNameEmail)
}

// LoginWithWallet finds or creates the user for a wallet login. The wallet
// address doubles as the account identity.
func (s *SessionService) LoginWithWallet(ctx context.Context, address string) (*model.User, string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, "", apperrors.MissingRequired("address")
	}
	return s.loginOrCreate(ctx, address, address, model.ProviderNameWallet)
}

// LoginWithProfile attaches an OAuth identity to a user account, creating
// one from the profile when no matching email exists, and issues a session
// token.
func (s *SessionService) LoginWithProfile(ctx context.Context, profile *model.NormalizedProfile) (*model.User, string, error) {
	email := profile.Email
	if email == "" {
		// Providers like Twitter expose no email; synthesize a stable one
		// from the handle so the account can be found again.
		email = fmt.Sprintf("%s@%s.external", profile.Handle, strings.ToLower(profile.Provider))
		email = strings.ReplaceAll(email, " ", "")
	}
	return s.loginOrCreate(ctx, email, profile.Name, profile.Provider)
}

func (s *SessionService) loginOrCreate(ctx context.Context, email, name, provider string) (*model.User, string, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", apperrors.Database(err)
	}

	if user == nil {
		user, err = s.userRepo.Create(ctx, model.CreateUserParams{
			Email:    email,
			Name:     name,
			Provider: provider,
		})
		if err != nil {
			return nil, "", apperrors.Database(err)
		}
		log.Info().Str("userId", user.ID).Str("provider", provider).Msg("user created")
	}

	token, err := s.IssueToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}
