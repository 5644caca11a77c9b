package service

import (
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/transfer-reconciler/internal/domain/transfer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func txn(id, account, amount string, date time.Time, description string) *transfer.Transaction {
	return &transfer.Transaction{
		ID:          id,
		AccountID:   account,
		Date:        date,
		Amount:      decimal.RequireFromString(amount),
		Description: description,
	}
}

func ptr[T any](v T) *T {
	return &v
}
