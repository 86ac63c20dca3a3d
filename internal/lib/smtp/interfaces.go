// Package smtp предоставляет транспорт и формирование писем для отправки по SMTP.
package smtp

import "io"

// Client часть *smtp.Client, нужная для отправки одного письма.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer открывает аутентифицированную SMTP сессию.
// Envelope возвращает адрес для команды MAIL FROM.
type Dialer interface {
	Dial() (Client, error)
	Envelope() string
}
