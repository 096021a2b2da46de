package bot

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/engbot/internal/logger"
	"github.com/example/engbot/internal/review"
	sr "github.com/example/engbot/internal/spaced_repetition"
	"github.com/example/engbot/pkg/models"
)

// Sender is the part of the Telegram API the bot talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Reviewer is the review workflow behind the chat commands.
type Reviewer interface {
	RegisterUser(ctx context.Context, user *models.User) error
	SetNotificationHour(ctx context.Context, userID int64, hour int) error
	NextCard(ctx context.Context, userID int64) (*models.Card, error)
	Queue(ctx context.Context, userID int64, capacity int) ([]models.QueueEntry, error)
	Submit(ctx context.Context, userID int64, r review.Rating) (models.CalculationResult, error)
	Summary(ctx context.Context, userID int64) (sr.Summary, error)
	Mastered(ctx context.Context, userID int64) (int, error)
	History(ctx context.Context, userID int64) ([]models.ReviewLogEntry, error)
	ImportCards(ctx context.Context, cards []models.Card) (int, error)
	ImportHistory(ctx context.Context, userID int64, entries []models.ReviewLogEntry) error
}

// MenuButton represents a button in the menu
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// importKind is what a pending /import upload contains.
type importKind int

const (
	importCards importKind = iota
	importLog
)

// shownCard remembers when a card was put in front of a user.
type shownCard struct {
	card models.Card
	at   time.Time
}

// Bot represents the Telegram bot application
type Bot struct {
	api     Sender
	reviews Reviewer
	config  *BotConfig
	admins  map[int64]bool
	log     *logger.Logger
	http    *http.Client
	now     func() time.Time

	mu              sync.Mutex
	shown           map[int64]shownCard
	awaitingImport  map[int64]importKind
	handlersRunning sync.WaitGroup
}

// New creates a new bot instance
func New(api Sender, reviews Reviewer, config *BotConfig, log *logger.Logger) *Bot {
	if config == nil {
		config = DefaultConfig()
	}
	admins := make(map[int64]bool, len(config.AdminUserIDs))
	for _, id := range config.AdminUserIDs {
		admins[id] = true
	}
	return &Bot{
		api:            api,
		reviews:        reviews,
		config:         config,
		admins:         admins,
		log:            log,
		http:           &http.Client{Timeout: config.DownloadTimeout},
		now:            time.Now,
		shown:          make(map[int64]shownCard),
		awaitingImport: make(map[int64]importKind),
	}
}

// Connect authorizes against the Telegram Bot API.
func Connect(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	return api, nil
}

// Run handles updates until ctx is cancelled or the channel is closed, then
// waits for in-flight handlers.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer b.handlersRunning.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handlersRunning.Add(1)
			go func() {
				defer b.handlersRunning.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

// UpdatesConfig returns the long-polling configuration for GetUpdatesChan.
func (b *Bot) UpdatesConfig() tgbotapi.UpdateConfig {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.UpdateTimeout
	return updateConfig
}

// SendReminders implements the scheduler.Notifier interface
func (b *Bot) SendReminders(userID int64, count int) error {
	// В личных чатах user ID совпадает с chat ID
	chatID := userID

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("У вас %d %s для повторения! Нажмите /review, чтобы начать.", count, cardWord(count)))
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{{Text: "🎯 Повторить", CallbackData: callbackReview}}})
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("failed to send reminder", "user_id", userID, "error", err)
		return err
	}
	b.log.Info("reminder sent", "user_id", userID, "count", count)
	return nil
}

// cardWord picks the Russian plural form of "карточка" for n.
func cardWord(n int) string {
	if n%100 >= 11 && n%100 <= 14 {
		return "карточек"
	}
	switch n % 10 {
	case 1:
		return "карточка"
	case 2, 3, 4:
		return "карточки"
	default:
		return "карточек"
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.admins[userID]
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	var err error
	switch {
	case update.CallbackQuery != nil:
		err = b.HandleCallback(ctx, update.CallbackQuery)
	case update.Message == nil || update.Message.From == nil || update.Message.Chat == nil:
		return
	case update.Message.IsCommand():
		err = b.HandleCommand(ctx, update.Message)
	case update.Message.Document != nil:
		err = b.handleDocument(ctx, update.Message)
	default:
		b.reply(update.Message.Chat.ID, "Не понимаю. Используйте /help, чтобы увидеть список команд.")
	}
	if err != nil {
		b.log.Error("failed to handle update", "update_id", update.UpdateID, "error", err)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) markShown(userID int64, card models.Card) {
	b.mu.Lock()
	b.shown[userID] = shownCard{card: card, at: b.now()}
	b.mu.Unlock()
}

// currentCard returns the card currently in front of the user if it is cardID.
func (b *Bot) currentCard(userID, cardID int64) (models.Card, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	shown, ok := b.shown[userID]
	if !ok || shown.card.ID != cardID {
		return models.Card{}, false
	}
	return shown.card, true
}

// claimShown removes cardID from in front of the user and reports how long it was shown.
// Only the first claim for a shown card succeeds.
func (b *Bot) claimShown(userID, cardID int64) (shownCard, time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	shown, ok := b.shown[userID]
	if !ok || shown.card.ID != cardID {
		return shownCard{}, 0, false
	}
	delete(b.shown, userID)
	return shown, b.now().Sub(shown.at), true
}

// restoreShown puts a claimed card back unless another card was shown meanwhile.
func (b *Bot) restoreShown(userID int64, shown shownCard) {
	b.mu.Lock()
	if _, ok := b.shown[userID]; !ok {
		b.shown[userID] = shown
	}
	b.mu.Unlock()
}
