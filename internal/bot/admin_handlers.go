package bot

import (
	"context"
	"fmt"
	"path/filepath"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"florist-bot/internal/catalog"
)

// handleOperatorCommand runs an operator-only command and reports whether
// cmd was one.
func (b *Bot) handleOperatorCommand(ctx context.Context, logger *zap.Logger, chatID int64, cmd string) bool {
	switch cmd {
	case "export":
		b.handleExportOrders(ctx, logger, chatID)
	case "stats":
		b.handleOrderStats(ctx, logger, chatID)
	default:
		return false
	}
	return true
}

func (b *Bot) handleExportOrders(ctx context.Context, logger *zap.Logger, chatID int64) {
	path, err := b.reports.ExportOrdersToExcel(ctx, b.reportsDir, b.now())
	if err != nil {
		logger.Error("Failed to export orders",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Ошибка при выгрузке заказов")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = fmt.Sprintf("📊 Выгрузка заказов: %s", filepath.Base(path))
	if _, err := b.api.Send(doc); err != nil {
		logger.Error("Failed to send orders export",
			zap.Int64("chat_id", chatID),
			zap.String("path", path),
			zap.Error(err))
		b.sendError(chatID, "Не удалось отправить файл")
	}
}

func (b *Bot) handleOrderStats(ctx context.Context, logger *zap.Logger, chatID int64) {
	stats, err := b.reports.OrderStats(ctx)
	if err != nil {
		logger.Error("Failed to get order statistics",
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		b.sendError(chatID, "Ошибка при получении статистики")
		return
	}

	text := fmt.Sprintf(
		"📈 Статистика заказов\n\n"+
			"Всего: %d\n"+
			"Сегодня: %d\n"+
			"Новые: %d\n"+
			"Выполненные: %d",
		stats.Total,
		stats.Today,
		stats.ByStatus[catalog.StatusNew],
		stats.ByStatus[catalog.StatusCompleted],
	)
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}
