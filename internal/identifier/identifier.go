// Package identifier генерирует номера заказов и счетов и токены публичного доступа.
package identifier

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const suffixLen = 8

// OrderNumber возвращает номер заказа вида ORD-YYMMDD-XXXXXXXX.
// Уникальность гарантируется ограничением в БД, суффикс лишь делает коллизии редкими.
func OrderNumber(now time.Time) string {
	return "ORD-" + now.UTC().Format("060102") + "-" + randomSuffix()
}

// InvoiceNumber возвращает номер счёта вида INV-YYYYMMDD-XXXXXXXX.
func InvoiceNumber(now time.Time) string {
	return "INV-" + now.UTC().Format("20060102") + "-" + randomSuffix()
}

// ShareableToken возвращает непрозрачный токен публичной ссылки на счёт.
func ShareableToken() string {
	return uuid.NewString()
}

func randomSuffix() string {
	id := uuid.New()
	hex := strings.ReplaceAll(id.String(), "-", "")
	return strings.ToUpper(hex[:suffixLen])
}
