// Package sl содержит атрибуты slog, общие для всех сервисов MemorySphere.
package sl

import "log/slog"

// Err возвращает атрибут "error" с текстом ошибки. Для nil значение пустое.
//
//	log.Error("failed to schedule deletion", sl.Err(err))
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Account возвращает атрибут с идентификатором учётной записи.
func Account(id string) slog.Attr {
	return slog.String("account_id", id)
}

// Op возвращает атрибут с именем операции.
func Op(op string) slog.Attr {
	return slog.String("op", op)
}
