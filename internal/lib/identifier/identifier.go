// Package identifier выдаёт человекочитаемые номера заказов и чеков.
// Уникальность не проверяется в БД: префикс по времени плюс случайный суффикс,
// редкие коллизии ловит уникальный индекс при вставке.
package identifier

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	orderSuffixLen   = 6 // 24 бита
	receiptSuffixLen = 4 // 16 бит
)

type Generator struct {
	now    func() time.Time
	random func() uuid.UUID
}

func NewGenerator() *Generator {
	return &Generator{now: time.Now, random: uuid.New}
}

// NewGeneratorWithClock - для тестов с фиксированным временем
func NewGeneratorWithClock(now func() time.Time) *Generator {
	return &Generator{now: now, random: uuid.New}
}

// GenerateOrderNumber возвращает номер вида PK-20240131235959-3FA2B1
func (g *Generator) GenerateOrderNumber() string {
	return "PK-" + g.now().UTC().Format("20060102150405") + "-" + g.suffix(orderSuffixLen)
}

// GenerateReceiptNumber возвращает номер вида R240131A3F2
func (g *Generator) GenerateReceiptNumber() string {
	return "R" + g.now().UTC().Format("060102") + g.suffix(receiptSuffixLen)
}

func (g *Generator) suffix(n int) string {
	id := g.random()
	return strings.ToUpper(hex.EncodeToString(id[:])[:n])
}
