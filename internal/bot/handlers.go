package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/engbot/internal/excel"
	"github.com/example/engbot/internal/review"
	sr "github.com/example/engbot/internal/spaced_repetition"
	"github.com/example/engbot/pkg/models"
)

// Constants for callback data
const (
	callbackReview     = "review"
	callbackShowPrefix = "show_"
	callbackRatePrefix = "rate_"
)

var qualityLabels = [...]string{"0 😶", "1 ❌", "2 🤔", "3 😓", "4 🙂", "5 🎯"}

const ratingHelp = `Оцените, насколько легко вспомнили:
0 - полный провал, 1 - неверно, 2 - неверно, но знакомо,
3 - верно с трудом, 4 - верно с заминкой, 5 - идеально`

// HandleCommand handles bot commands
func (b *Bot) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	var err error
	switch message.Command() {
	case "start":
		err = b.handleStart(ctx, message)
	case "help":
		err = b.handleHelp(message)
	case "review":
		err = b.sendNextCard(ctx, message.From.ID, message.Chat.ID)
	case "queue":
		err = b.handleQueue(ctx, message)
	case "stats":
		err = b.handleStats(ctx, message)
	case "export":
		err = b.handleExport(ctx, message)
	case "import":
		err = b.handleImportCommand(message)
	case "time":
		err = b.handleTimeCommand(ctx, message)
	default:
		err = b.handleUnknownCommand(message)
	}
	return err
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	user := &models.User{
		ID:                  message.From.ID,
		Username:            message.From.UserName,
		FirstName:           message.From.FirstName,
		IsAdmin:             b.isAdmin(message.From.ID),
		NotificationEnabled: true,
		NotificationHour:    9,
		CardsPerDay:         20,
	}
	if err := b.reviews.RegisterUser(ctx, user); err != nil {
		b.reply(message.Chat.ID, "❌ Не удалось зарегистрироваться. Попробуйте позже.")
		return fmt.Errorf("failed to register user %d: %w", user.ID, err)
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, fmt.Sprintf("Привет, %s! 🎓\n\n%s", message.From.FirstName, helpText))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "🎯 Начать повторение", CallbackData: callbackReview}}})
	_, err := b.api.Send(msg)
	return err
}

const helpText = `Доступные команды:
/review - повторить карточки
/queue - сколько карточек ждет повторения
/stats - ваша статистика
/export - выгрузить статистику в Excel
/time <час> - время напоминаний (UTC)
/import [log] - загрузить карточки или историю (для администраторов)`

func (b *Bot) handleHelp(message *tgbotapi.Message) error {
	_, err := b.api.Send(tgbotapi.NewMessage(message.Chat.ID, helpText))
	return err
}

func (b *Bot) sendNextCard(ctx context.Context, userID, chatID int64) error {
	card, err := b.reviews.NextCard(ctx, userID)
	if err != nil {
		b.reply(chatID, "❌ Не удалось получить карточку. Попробуйте позже.")
		return err
	}
	if card == nil {
		b.reply(chatID, "🎉 Все карточки повторены! Возвращайтесь позже.")
		return nil
	}

	b.markShown(userID, *card)
	msg := tgbotapi.NewMessage(chatID, formatFront(*card))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{
		{Text: "👀 Показать ответ", CallbackData: fmt.Sprintf("%s%d", callbackShowPrefix, card.ID)},
	}})
	_, err = b.api.Send(msg)
	return err
}

func formatFront(card models.Card) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📘 %s", card.Front)
	if card.Deck != "" {
		fmt.Fprintf(&sb, "\n🗂 %s", card.Deck)
	}
	return sb.String()
}

func ratingKeyboard(cardID int64) tgbotapi.InlineKeyboardMarkup {
	row := make([]MenuButton, len(qualityLabels))
	for q, label := range qualityLabels {
		row[q] = MenuButton{Text: label, CallbackData: fmt.Sprintf("%s%d_%d", callbackRatePrefix, cardID, q)}
	}
	return createKeyboard([][]MenuButton{row[:3], row[3:]})
}

// HandleCallback handles callback queries from inline buttons
func (b *Bot) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if callback.From == nil || callback.Message == nil || callback.Message.Chat == nil {
		return errors.New("invalid callback: required fields are missing")
	}
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID

	// Telegram ждет ответа на каждый callback, иначе кнопка "зависает"
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.log.Warn("failed to answer callback", "callback_id", callback.ID, "error", err)
	}

	switch {
	case callback.Data == callbackReview:
		return b.sendNextCard(ctx, userID, chatID)
	case strings.HasPrefix(callback.Data, callbackShowPrefix):
		cardID, err := strconv.ParseInt(strings.TrimPrefix(callback.Data, callbackShowPrefix), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid callback data %q: %w", callback.Data, err)
		}
		return b.showAnswer(userID, chatID, callback.Message.MessageID, cardID)
	case strings.HasPrefix(callback.Data, callbackRatePrefix):
		cardID, quality, err := parseRateCallback(callback.Data)
		if err != nil {
			return err
		}
		return b.handleRating(ctx, userID, chatID, cardID, quality)
	default:
		return fmt.Errorf("unknown callback data %q", callback.Data)
	}
}

// parseRateCallback splits "rate_<cardID>_<quality>".
func parseRateCallback(data string) (cardID int64, quality int, err error) {
	parts := strings.Split(strings.TrimPrefix(data, callbackRatePrefix), "_")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid rating callback %q", data)
	}
	if cardID, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid card id in %q: %w", data, err)
	}
	if quality, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, fmt.Errorf("invalid quality in %q: %w", data, err)
	}
	return cardID, quality, nil
}

func (b *Bot) showAnswer(userID, chatID int64, messageID int, cardID int64) error {
	card, ok := b.currentCard(userID, cardID)
	if !ok {
		b.reply(chatID, "Карточка устарела. Нажмите /review, чтобы продолжить.")
		return nil
	}

	text := formatFront(card) + "\n\n✅ " + card.Back
	if card.Context != "" {
		text += "\n💬 " + card.Context
	}
	text += "\n\n" + ratingHelp
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, ratingKeyboard(card.ID))
	_, err := b.api.Send(edit)
	return err
}

func (b *Bot) handleRating(ctx context.Context, userID, chatID, cardID int64, quality int) error {
	shown, elapsed, ok := b.claimShown(userID, cardID)
	if !ok {
		b.reply(chatID, "Карточка устарела. Нажмите /review, чтобы продолжить.")
		return nil
	}

	rating := review.Rating{CardID: cardID, Quality: quality, Duration: elapsed}
	result, err := b.reviews.Submit(ctx, userID, rating)
	switch {
	case errors.Is(err, sr.ErrInvalidRating), errors.Is(err, review.ErrUnknownCard):
		b.reply(chatID, "Эта оценка больше не действительна. Нажмите /review.")
		return nil
	case err != nil:
		// Карточка остаётся на экране, можно нажать оценку ещё раз
		b.restoreShown(userID, shown)
		b.reply(chatID, "❌ Не удалось сохранить ответ. Попробуйте позже.")
		return err
	}

	b.reply(chatID, fmt.Sprintf("Следующее повторение через %d %s (%s).", result.Interval, dayWord(result.Interval), difficultyLabel(result.Difficulty)))
	return b.sendNextCard(ctx, userID, chatID)
}

func dayWord(n int) string {
	if n%100 >= 11 && n%100 <= 14 {
		return "дней"
	}
	switch n % 10 {
	case 1:
		return "день"
	case 2, 3, 4:
		return "дня"
	default:
		return "дней"
	}
}

func difficultyLabel(d models.Difficulty) string {
	switch d {
	case models.DifficultyEasy:
		return "легко"
	case models.DifficultyHard:
		return "сложно"
	default:
		return "нормально"
	}
}

func (b *Bot) handleQueue(ctx context.Context, message *tgbotapi.Message) error {
	queue, err := b.reviews.Queue(ctx, message.From.ID, b.config.QueueCapacity)
	if err != nil {
		b.reply(message.Chat.ID, "❌ Очередь сейчас недоступна.")
		return err
	}
	if len(queue) == 0 {
		b.reply(message.Chat.ID, "🎉 Все карточки повторены! Возвращайтесь позже.")
		return nil
	}

	text := fmt.Sprintf("К повторению: %d %s", len(queue), cardWord(len(queue)))
	if len(queue) == b.config.QueueCapacity {
		text = fmt.Sprintf("К повторению: не меньше %d %s", len(queue), cardWord(len(queue)))
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "🎯 Начать", CallbackData: callbackReview}}})
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleStats(ctx context.Context, message *tgbotapi.Message) error {
	summary, err := b.reviews.Summary(ctx, message.From.ID)
	if err != nil {
		b.reply(message.Chat.ID, "❌ Статистика сейчас недоступна.")
		return err
	}
	if summary.TotalReviews == 0 {
		b.reply(message.Chat.ID, "Статистика пока недоступна. Начните повторение, чтобы увидеть свой прогресс!")
		return nil
	}

	text := formatSummary(summary)
	if mastered, err := b.reviews.Mastered(ctx, message.From.ID); err == nil && mastered > 0 {
		text += fmt.Sprintf("\nВыучено: %d %s", mastered, cardWord(mastered))
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "🎯 Продолжить", CallbackData: callbackReview}}})
	_, err = b.api.Send(msg)
	return err
}

func formatSummary(s sr.Summary) string {
	var sb strings.Builder
	sb.WriteString("📊 Ваша статистика\n\n")
	fmt.Fprintf(&sb, "Повторений: %d\n", s.TotalReviews)
	fmt.Fprintf(&sb, "Средняя оценка: %.2f\n", s.AverageQuality)
	fmt.Fprintf(&sb, "Запоминание: %.1f%%\n", s.RetentionRate)
	fmt.Fprintf(&sb, "Средний интервал: %.1f дн.\n", s.AverageInterval)
	fmt.Fprintf(&sb, "Легко / нормально / сложно: %d / %d / %d\n",
		s.DifficultyDistribution.Easy, s.DifficultyDistribution.Normal, s.DifficultyDistribution.Hard)
	fmt.Fprintf(&sb, "Серия верных ответов: %d", s.StreakCount)
	if s.AverageReviewDuration > 0 {
		fmt.Fprintf(&sb, "\nСреднее время ответа: %.2f с", s.AverageReviewDuration)
	}
	return sb.String()
}

func (b *Bot) handleExport(ctx context.Context, message *tgbotapi.Message) error {
	userID := message.From.ID
	summary, err := b.reviews.Summary(ctx, userID)
	if err != nil {
		return err
	}
	history, err := b.reviews.History(ctx, userID)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := excel.ExportSummary(&buf, summary, history); err != nil {
		b.reply(message.Chat.ID, "❌ Не удалось сформировать файл.")
		return err
	}
	doc := tgbotapi.NewDocument(message.Chat.ID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("reviews_%d.xlsx", userID),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("Повторений: %d", summary.TotalReviews)
	_, err = b.api.Send(doc)
	return err
}

func (b *Bot) handleImportCommand(message *tgbotapi.Message) error {
	if !b.isAdmin(message.From.ID) {
		b.reply(message.Chat.ID, "Эта команда доступна только администраторам.")
		return nil
	}

	kind, text := importCards, "Отправьте файл .xlsx или .csv с карточками: слово, перевод, контекст, колода."
	if strings.EqualFold(strings.TrimSpace(message.CommandArguments()), "log") {
		kind, text = importLog, "Отправьте файл .xlsx или .csv с историей: card_id, quality, interval, duration_seconds, timestamp."
	}
	b.mu.Lock()
	b.awaitingImport[message.Chat.ID] = kind
	b.mu.Unlock()

	b.reply(message.Chat.ID, text)
	return nil
}

func (b *Bot) handleDocument(ctx context.Context, message *tgbotapi.Message) error {
	b.mu.Lock()
	kind, ok := b.awaitingImport[message.Chat.ID]
	delete(b.awaitingImport, message.Chat.ID)
	b.mu.Unlock()
	if !ok || !b.isAdmin(message.From.ID) {
		b.reply(message.Chat.ID, "Чтобы загрузить файл, сначала выполните /import.")
		return nil
	}

	data, err := b.download(ctx, message.Document.FileID)
	if err != nil {
		b.reply(message.Chat.ID, "❌ Не удалось скачать файл.")
		return err
	}
	format := excel.FormatOf(message.Document.FileName)

	var (
		imported int
		result   excel.ImportResult
	)
	switch kind {
	case importLog:
		cfg := excel.DefaultLogImportConfig()
		if format == excel.FormatXLSX {
			// Листа Log может не быть в сторонних файлах
			cfg.SheetName = ""
		}
		parsed, err := excel.ImportReviewLogFrom(bytes.NewReader(data), format, cfg)
		if err != nil {
			b.reply(message.Chat.ID, "❌ Не удалось прочитать файл: "+err.Error())
			return nil
		}
		if err := b.reviews.ImportHistory(ctx, message.From.ID, parsed.Entries); err != nil {
			b.reply(message.Chat.ID, "❌ Ошибка импорта: "+err.Error())
			return err
		}
		imported, result = len(parsed.Entries), parsed.ImportResult
	default:
		parsed, err := excel.ImportCardsFrom(bytes.NewReader(data), format, excel.DefaultImportConfig(), message.From.ID)
		if err != nil {
			b.reply(message.Chat.ID, "❌ Не удалось прочитать файл: "+err.Error())
			return nil
		}
		if imported, err = b.reviews.ImportCards(ctx, parsed.Cards); err != nil {
			b.reply(message.Chat.ID, "❌ Ошибка импорта: "+err.Error())
			return err
		}
		result = parsed.ImportResult
	}

	b.log.Info("file imported", "user_id", message.From.ID, "file", message.Document.FileName,
		"imported", imported, "skipped", result.Skipped)
	b.reply(message.Chat.ID, b.formatImportResult(imported, result))
	return nil
}

func (b *Bot) formatImportResult(imported int, result excel.ImportResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ Импорт завершен\nОбработано строк: %d\nЗагружено: %d\nПропущено: %d",
		result.TotalProcessed, imported, result.Skipped)
	for i, e := range result.Errors {
		if i == b.config.MaxReportedErrors {
			fmt.Fprintf(&sb, "\n... и еще %d", len(result.Errors)-i)
			break
		}
		sb.WriteString("\n" + e)
	}
	return sb.String()
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (b *Bot) handleTimeCommand(ctx context.Context, message *tgbotapi.Message) error {
	hour, err := strconv.Atoi(strings.TrimSpace(message.CommandArguments()))
	if err != nil || hour < 0 || hour > 23 {
		b.reply(message.Chat.ID, "Укажите час от 0 до 23, например: /time 9")
		return nil
	}
	if err := b.reviews.SetNotificationHour(ctx, message.From.ID, hour); err != nil {
		b.reply(message.Chat.ID, "❌ Ошибка обновления настроек. Сначала выполните /start.")
		return err
	}
	b.reply(message.Chat.ID, fmt.Sprintf("✅ Напоминания будут приходить в %d:00 UTC", hour))
	return nil
}

func (b *Bot) handleUnknownCommand(message *tgbotapi.Message) error {
	_, err := b.api.Send(tgbotapi.NewMessage(message.Chat.ID, "Неизвестная команда. Используйте /help."))
	return err
}
