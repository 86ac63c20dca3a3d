// Package auth содержит логику регистрации, входа, выхода и сброса пароля.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/memorysphere/internal/lib/jwt"
	"github.com/magabrotheeeer/memorysphere/internal/lib/password"
	"github.com/magabrotheeeer/memorysphere/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
	"github.com/magabrotheeeer/memorysphere/internal/models"
	"github.com/magabrotheeeer/memorysphere/internal/storage/repository"
)

// ResetTokenTTL время жизни ссылки сброса пароля.
const ResetTokenTTL = time.Hour

var (
	// ErrInvalidCredentials неверная почта или пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken почта уже зарегистрирована.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidToken токен сессии или сброса недействителен.
	ErrInvalidToken = errors.New("invalid token")
)

// AccountRepository описывает контракт для работы с учётными записями.
type AccountRepository interface {
	CreateAccount(ctx context.Context, a models.Account) (string, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	UpdatePassword(ctx context.Context, accountID, passwordHash string) error
}

// TokenStore хранит отозванные токены сессий и токены сброса пароля.
type TokenStore interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	StoreResetToken(ctx context.Context, token, accountID string, ttl time.Duration) error
	ConsumeResetToken(ctx context.Context, token string) (string, error)
}

// Publisher публикует сообщения для сервиса рассылки.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, message any) error
}

// Service отвечает за регистрацию, авторизацию и валидацию JWT.
type Service struct {
	accounts  AccountRepository
	tokens    TokenStore
	jwtMaker  jwt.Maker
	publisher Publisher
	log       *slog.Logger
	now       func() time.Time
}

// New создает новый экземпляр Service.
func New(log *slog.Logger, accounts AccountRepository, tokens TokenStore, jwtMaker jwt.Maker, publisher Publisher) *Service {
	return &Service{
		accounts:  accounts,
		tokens:    tokens,
		jwtMaker:  jwtMaker,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp создает учётную запись с пробным периодом и возвращает её ID и токен сессии.
func (s *Service) SignUp(ctx context.Context, email, rawPassword, firstName, lastName string) (string, string, error) {
	const op = "services.auth.SignUp"
	hashed, err := password.GetHash(rawPassword)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	now := s.now().UTC()
	trialEnd := now.Add(models.TrialPeriod)
	account := models.Account{
		Email:              normalizeEmail(email),
		FirstName:          strings.TrimSpace(firstName),
		LastName:           strings.TrimSpace(lastName),
		PasswordHash:       hashed,
		TrialStartedAt:     now,
		TrialEndsAt:        &trialEnd,
		SubscriptionStatus: models.StatusTrial,
	}
	id, err := s.accounts.CreateAccount(ctx, account)
	if errors.Is(err, repository.ErrEmailTaken) {
		return "", "", fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	token, err := s.jwtMaker.GenerateToken(id, account.Email)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("account registered", sl.Account(id))
	return id, token, nil
}

// SignIn проверяет пароль и выдаёт токен сессии.
func (s *Service) SignIn(ctx context.Context, email, rawPassword string) (string, error) {
	const op = "services.auth.SignIn"
	account, err := s.accounts.GetAccountByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(account.PasswordHash, rawPassword); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			s.log.Error("failed to compare password hash", sl.Account(account.ID), sl.Err(err))
		}
		return "", ErrInvalidCredentials
	}
	return s.jwtMaker.GenerateToken(account.ID, account.Email)
}

// Authenticate разбирает токен и проверяет, что он не отозван.
func (s *Service) Authenticate(ctx context.Context, token string) (*jwt.CustomClaims, error) {
	const op = "services.auth.Authenticate"
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrInvalidToken, err)
	}
	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if revoked {
		return nil, fmt.Errorf("%s: %w: revoked", op, ErrInvalidToken)
	}
	return claims, nil
}

// SignOut отзывает токен до окончания срока его действия.
func (s *Service) SignOut(ctx context.Context, claims *jwt.CustomClaims) error {
	const op = "services.auth.SignOut"
	if err := s.tokens.RevokeToken(ctx, claims.ID, claims.TTL(s.now())); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("session revoked", sl.Account(claims.AccountID))
	return nil
}

// RequestPasswordReset создаёт токен сброса и ставит письмо в очередь рассылки.
// Для неизвестной почты ничего не происходит и ошибка не возвращается.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	const op = "services.auth.RequestPasswordReset"
	account, err := s.accounts.GetAccountByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Debug("password reset requested for unknown email")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	token := uuid.NewString()
	if err := s.tokens.StoreResetToken(ctx, token, account.ID, ResetTokenTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	msg := models.PasswordResetMessage{
		Email:     account.Email,
		FirstName: account.FirstName,
		Token:     token,
		ExpiresAt: s.now().UTC().Add(ResetTokenTTL),
	}
	if err := s.publisher.Publish(ctx, rabbitmq.ExchangeAuth, rabbitmq.RoutingKeyPasswordReset, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("password reset requested", sl.Account(account.ID))
	return nil
}

// ResetPassword устанавливает новый пароль по одноразовому токену сброса.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	const op = "services.auth.ResetPassword"
	if err := password.Validate(newPassword); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	accountID, err := s.tokens.ConsumeResetToken(ctx, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if accountID == "" {
		return fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.accounts.UpdatePassword(ctx, accountID, hashed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("password reset", sl.Account(accountID))
	return nil
}
