// Package payment синхронизирует зеркало подписки с платёжным провайдером
// и создаёт сессии оплаты.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/memorysphere/internal/config"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
	"github.com/magabrotheeeer/memorysphere/internal/models"
	"github.com/magabrotheeeer/memorysphere/internal/paymentprovider"
)

var (
	// ErrUnknownPlan запрошен тариф вне каталога.
	ErrUnknownPlan = errors.New("unknown plan")
	// ErrBadEvent тело вебхука не удалось разобрать.
	ErrBadEvent = errors.New("malformed webhook event")
)

// Repository методы хранилища для зеркала подписки.
type Repository interface {
	ApplySubscription(ctx context.Context, rec models.SubscriptionRecord) (bool, error)
	GetAccountIDByProviderSubscription(ctx context.Context, providerSubscriptionID string) (string, error)
}

// CheckoutClient создаёт сессии оплаты у провайдера.
type CheckoutClient interface {
	CreateCheckoutSession(ctx context.Context, params paymentprovider.CheckoutRequest) (*paymentprovider.CheckoutSession, error)
}

// CacheInvalidator сбрасывает кеш решения о доступе.
type CacheInvalidator interface {
	InvalidateSubscription(ctx context.Context, accountID string) error
}

// Service обрабатывает оплату и вебхуки.
type Service struct {
	repo        Repository
	client      CheckoutClient
	invalidator CacheInvalidator
	cfg         config.Payments
	log         *slog.Logger
	now         func() time.Time
}

// New создает новый экземпляр Service.
func New(log *slog.Logger, repo Repository, client CheckoutClient, invalidator CacheInvalidator, cfg config.Payments) *Service {
	return &Service{
		repo:        repo,
		client:      client,
		invalidator: invalidator,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// Plans возвращает каталог тарифов.
func (s *Service) Plans() []paymentprovider.Plan {
	return paymentprovider.Plans()
}

// CreateCheckout создаёт сессию оплаты тарифа priceID для учётной записи.
func (s *Service) CreateCheckout(ctx context.Context, accountID, email, priceID string) (*paymentprovider.CheckoutSession, error) {
	const op = "services.payment.CreateCheckout"
	if _, ok := paymentprovider.PlanByPriceID(priceID); !ok {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrUnknownPlan, priceID)
	}
	session, err := s.client.CreateCheckoutSession(ctx, paymentprovider.CheckoutRequest{
		PriceID:    priceID,
		AccountID:  accountID,
		Email:      email,
		SuccessURL: s.cfg.SuccessURL,
		CancelURL:  s.cfg.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("checkout session created", sl.Account(accountID), slog.String("session_id", session.ID))
	return session, nil
}

// HandleWebhook проверяет подпись и применяет событие провайдера.
// Неизвестные типы событий игнорируются.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	const op = "services.payment.HandleWebhook"
	if err := paymentprovider.VerifySignature(body, signature, s.cfg.WebhookSecret); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var event paymentprovider.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrBadEvent, err)
	}
	log := s.log.With(sl.Op(op), slog.String("event_id", event.ID), slog.String("type", event.Type))

	var (
		rec *models.SubscriptionRecord
		err error
	)
	switch event.Type {
	case paymentprovider.EventSubscriptionCreated, paymentprovider.EventSubscriptionUpdated, paymentprovider.EventSubscriptionDeleted:
		rec, err = s.subscriptionRecord(ctx, event.Data.Object)
	case paymentprovider.EventCheckoutCompleted:
		rec, err = s.checkoutRecord(event.Data.Object)
	default:
		log.Debug("webhook event ignored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rec == nil {
		log.Debug("webhook event carries no subscription change")
		return nil
	}

	canceledDeletion, err := s.repo.ApplySubscription(ctx, *rec)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.invalidator.InvalidateSubscription(ctx, rec.AccountID); err != nil {
		log.Warn("failed to invalidate subscription cache", sl.Err(err))
	}
	log.Info("subscription mirror updated",
		sl.Account(rec.AccountID),
		slog.String("status", string(rec.Status)),
		slog.Bool("deletion_canceled", canceledDeletion))
	return nil
}

func (s *Service) subscriptionRecord(ctx context.Context, raw json.RawMessage) (*models.SubscriptionRecord, error) {
	var sub paymentprovider.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil || sub.ID == "" {
		return nil, fmt.Errorf("%w: subscription object", ErrBadEvent)
	}
	status, err := models.ParseProviderStatus(sub.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEvent, err)
	}

	accountID := sub.Metadata["account_id"]
	if accountID == "" {
		accountID, err = s.repo.GetAccountIDByProviderSubscription(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
	}

	rec := &models.SubscriptionRecord{
		AccountID:              accountID,
		ProviderSubscriptionID: sub.ID,
		PriceID:                sub.PriceID(),
		Status:                 status,
		CancelAtPeriodEnd:      sub.CancelAtPeriodEnd,
		UpdatedAt:              s.now().UTC(),
	}
	if sub.CurrentPeriodEnd > 0 {
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		rec.CurrentPeriodEnd = &end
	}
	return rec, nil
}

func (s *Service) checkoutRecord(raw json.RawMessage) (*models.SubscriptionRecord, error) {
	var session paymentprovider.CheckoutSessionObject
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("%w: checkout session object", ErrBadEvent)
	}
	if session.PaymentStatus != "paid" || session.Subscription == "" {
		return nil, nil
	}
	accountID := session.ClientReferenceID
	if accountID == "" {
		accountID = session.Metadata["account_id"]
	}
	if accountID == "" {
		return nil, fmt.Errorf("%w: checkout session without account", ErrBadEvent)
	}
	return &models.SubscriptionRecord{
		AccountID:              accountID,
		ProviderSubscriptionID: session.Subscription,
		PriceID:                session.Metadata["price_id"],
		Status:                 models.ProviderActive,
		UpdatedAt:              s.now().UTC(),
	}, nil
}
