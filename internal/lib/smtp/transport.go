package smtp

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"time"

	"github.com/magabrotheeeer/memorysphere/internal/config"
	"github.com/magabrotheeeer/memorysphere/internal/lib/sl"
)

const dialTimeout = 10 * time.Second

// implicitTLSPort порт SMTPS, на котором TLS поднимается до приветствия сервера.
const implicitTLSPort = "465"

// Transport подключается к SMTP серверу из конфига.
type Transport struct {
	cfg config.SMTP
	log *slog.Logger
}

// NewTransport создает новый экземпляр Transport.
func NewTransport(cfg config.SMTP, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log}
}

func (t *Transport) tlsConfig() *tls.Config {
	return &tls.Config{
		ServerName: t.cfg.SMTPHost,
		MinVersion: tls.VersionTLS12,
	}
}

// Dial устанавливает соединение и проходит аутентификацию. На порту 465
// используется TLS с первого байта, на остальных обязателен STARTTLS.
func (t *Transport) Dial() (Client, error) {
	const op = "smtp.Dial"
	addr := net.JoinHostPort(t.cfg.SMTPHost, t.cfg.SMTPPort)
	log := t.log.With(slog.String("addr", addr))

	var (
		conn net.Conn
		err  error
	)
	dialer := &net.Dialer{Timeout: dialTimeout}
	if t.cfg.SMTPPort == implicitTLSPort {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, t.tlsConfig())
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		log.Error("failed to dial smtp server", sl.Err(err))
		return nil, fmt.Errorf("%s: dial: %w", op, err)
	}

	client, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		log.Error("failed to create smtp client", sl.Err(err))
		return nil, fmt.Errorf("%s: new client: %w", op, err)
	}

	fail := func(stage string, err error) (Client, error) {
		_ = client.Close()
		log.Error("smtp session failed", slog.String("stage", stage), sl.Err(err))
		return nil, fmt.Errorf("%s: %s: %w", op, stage, err)
	}

	if t.cfg.SMTPPort != implicitTLSPort {
		if ok, _ := client.Extension("STARTTLS"); !ok {
			return fail("starttls", fmt.Errorf("server does not support STARTTLS"))
		}
		if err = client.StartTLS(t.tlsConfig()); err != nil {
			return fail("starttls", err)
		}
	}

	if t.cfg.SMTPUser != "" {
		auth := smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPass, t.cfg.SMTPHost)
		if err = client.Auth(auth); err != nil {
			return fail("auth", err)
		}
	}

	return client, nil
}

// Envelope возвращает имя пользователя SMTP, используемое как envelope sender.
func (t *Transport) Envelope() string {
	return t.cfg.SMTPUser
}
