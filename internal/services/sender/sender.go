// Package sender формирует и отправляет письма пользователям и администратору:
// предупреждения об удалении данных, отчёты о запусках и ссылки сброса пароля.
package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
	"github.com/magabrotheeeer/memorysphere/internal/lib/smtp"
	"github.com/magabrotheeeer/memorysphere/internal/models"
)

const dateLayout = "January 2, 2006"

// Service отправляет письма через SMTP транспорт.
type Service struct {
	transport  smtp.Dialer
	from       string
	adminEmail string
	log        *slog.Logger
	now        func() time.Time
}

// New создает новый экземпляр Service. Пустой from заменяется логином SMTP.
func New(log *slog.Logger, transport smtp.Dialer, from, adminEmail string) *Service {
	if from == "" {
		from = transport.Envelope()
	}
	return &Service{
		transport:  transport,
		from:       from,
		adminEmail: adminEmail,
		log:        log,
		now:        time.Now,
	}
}

// SendWarning отправляет предупреждение этапа stage о предстоящем удалении.
func (s *Service) SendWarning(ctx context.Context, to models.Recipient, stage models.WarningStage, deletionDate time.Time) error {
	const op = "sender.SendWarning"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tmpl, ok := warningTemplates[stage]
	if !ok {
		return fmt.Errorf("%s: unknown warning stage %q", op, stage)
	}

	name := to.FirstName
	if name == "" {
		name = "there"
	}
	var body bytes.Buffer
	if err := tmpl.body.Execute(&body, warningData{
		FirstName:    name,
		DeletionDate: deletionDate.UTC().Format(dateLayout),
		SubscribeURL: subscribeURL,
	}); err != nil {
		return fmt.Errorf("%s: render: %w", op, err)
	}

	if err := s.send(to.Email, tmpl.subject, body.String()); err != nil {
		s.log.Error("failed to send warning", slog.String("stage", string(stage)), slog.String("to", to.Email), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("warning sent", slog.String("stage", string(stage)), slog.String("to", to.Email))
	return nil
}

// SendAdminSummary обрабатывает сообщение очереди с итогом запуска
// и пересылает отчёт администратору.
func (s *Service) SendAdminSummary(body []byte) error {
	const op = "sender.SendAdminSummary"
	var summary models.RunSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		s.log.Error("failed to unmarshal run summary", sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}
	if s.adminEmail == "" {
		s.log.Warn("admin email is not configured, summary dropped")
		return nil
	}

	var html bytes.Buffer
	if err := summaryTemplate.Execute(&html, summary); err != nil {
		return fmt.Errorf("%s: render: %w", op, err)
	}
	subject := fmt.Sprintf("Data deletion run: %d scheduled, %d warnings, %d deleted, %d failures",
		summary.Scheduled, summary.WarningsSent.Total(), summary.Deleted, len(summary.Failures))
	if err := s.send(s.adminEmail, subject, html.String()); err != nil {
		s.log.Error("failed to send admin summary", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// SendPasswordReset обрабатывает сообщение очереди со ссылкой сброса пароля.
func (s *Service) SendPasswordReset(body []byte) error {
	const op = "sender.SendPasswordReset"
	var msg models.PasswordResetMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		s.log.Error("failed to unmarshal password reset message", sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}
	if msg.Email == "" || msg.Token == "" {
		return fmt.Errorf("%s: email and token are required", op)
	}

	name := msg.FirstName
	if name == "" {
		name = "there"
	}
	var html bytes.Buffer
	if err := resetTemplate.Execute(&html, resetData{
		FirstName: name,
		Link:      resetPasswordURL + "?" + url.Values{"token": {msg.Token}}.Encode(),
		ExpiresAt: msg.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"),
	}); err != nil {
		return fmt.Errorf("%s: render: %w", op, err)
	}
	if err := s.send(msg.Email, "Reset your MemorySphere password", html.String()); err != nil {
		s.log.Error("failed to send password reset", slog.String("to", msg.Email), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Service) send(to, subject, html string) error {
	return smtp.Send(s.transport, smtp.Message{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	}, s.now())
}
