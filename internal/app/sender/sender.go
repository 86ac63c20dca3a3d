// Package sender собирает сервис рассылки: читает очереди отчётов о запусках
// и писем сброса пароля и отправляет письма через SMTP.
package sender

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/memorysphere/internal/config"
	"github.com/magabrotheeeer/memorysphere/internal/lib/days"
	"github.com/magabrotheeeer/memorysphere/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
	"github.com/magabrotheeeer/memorysphere/internal/lib/smtp"
	"github.com/magabrotheeeer/memorysphere/internal/models"
	senderservice "github.com/magabrotheeeer/memorysphere/internal/services/sender"
)

// App сервис рассылки.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.Service
	logger        *slog.Logger
}

// New подключается к брокеру и настраивает почтовый транспорт.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.sender.New"
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.Retries, cfg.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.Topology())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)
	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderservice.New(logger, transport, cfg.SMTP.From, cfg.AdminEmail),
		logger:        logger,
	}, nil
}

// Run обрабатывает очереди до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	consumers := map[string]func([]byte) error{
		rabbitmq.QueueAdminSummary:  a.senderService.SendAdminSummary,
		rabbitmq.QueuePasswordReset: a.senderService.SendPasswordReset,
	}
	for queue, handler := range consumers {
		if err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, queue, handler); err != nil {
			a.logger.Error("failed to start consumer", slog.String("queue", queue), sl.Err(err))
			a.close()
			return err
		}
	}

	<-ctx.Done()
	a.logger.Info("sender service shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}

// SendTestWarning отправляет предупреждение этапа stage на адрес to без
// подключения к брокеру. Дата удаления отстоит от текущего момента на daysLeft суток.
func SendTestWarning(ctx context.Context, cfg *config.Config, logger *slog.Logger, to string, stage models.WarningStage, daysLeft int) error {
	const op = "app.sender.SendTestWarning"
	svc := senderservice.New(logger, smtp.NewTransport(cfg.SMTP, logger), cfg.SMTP.From, cfg.AdminEmail)
	deletionDate := time.Now().Add(time.Duration(daysLeft) * days.Day)
	if err := svc.SendWarning(ctx, models.Recipient{Email: to}, stage, deletionDate); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
