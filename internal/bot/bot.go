package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/sfuentes/agendabot/internal/assistant"
	"github.com/sfuentes/agendabot/internal/auth"
	"github.com/sfuentes/agendabot/internal/calendar"
)

// updateTimeout bounds the whole pipeline for one inbound message,
// including LLM calls and the calendar write.
const updateTimeout = 90 * time.Second

// Bot owns the Telegram side: command handling, the message pipeline, and
// outbound notifications. Heavy work runs after the transport has already
// been acknowledged, so Telegram never redelivers because of a slow model.
type Bot struct {
	api         *tgbotapi.BotAPI
	engine      *assistant.Engine
	store       auth.CredentialStore
	refresher   *auth.Refresher
	broker      *auth.Broker
	publisher   *calendar.Publisher
	logger      *slog.Logger
	webhookMode bool
}

// New wires the bot against the Telegram API.
func New(
	token string,
	engine *assistant.Engine,
	store auth.CredentialStore,
	refresher *auth.Refresher,
	broker *auth.Broker,
	publisher *calendar.Publisher,
	webhookMode bool,
	logger *slog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	logger.Info("telegram bot authorized", "username", api.Self.UserName)

	return &Bot{
		api:         api,
		engine:      engine,
		store:       store,
		refresher:   refresher,
		broker:      broker,
		publisher:   publisher,
		logger:      logger,
		webhookMode: webhookMode,
	}, nil
}

// Token returns the bot token; the router uses it as the webhook path
// secret.
func (b *Bot) Token() string {
	return b.api.Token
}

// RegisterWebhook points Telegram at the bot's webhook endpoint.
func (b *Bot) RegisterWebhook(appURL string) error {
	wh, err := tgbotapi.NewWebhook(appURL + "/webhook/" + b.api.Token)
	if err != nil {
		return err
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// RunPolling consumes updates via long polling until ctx is cancelled.
// Used in development; the OAuth redirect is unreachable in this mode.
func (b *Bot) RunPolling(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			go b.HandleUpdate(&update)
		}
	}
}

// HandleUpdate runs the pipeline for one update. Safe to call from
// concurrent goroutines; per-user state lives only in the stores.
func (b *Bot) HandleUpdate(update *tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), updateTimeout)
	defer cancel()

	msg := update.Message
	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	case msg.Voice != nil:
		b.handleVoice(ctx, msg)
	case len(msg.Photo) > 0:
		b.handlePhoto(ctx, msg)
	case msg.Text != "":
		b.handleText(ctx, msg, msg.Text)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userKey := strconv.FormatInt(msg.From.ID, 10)

	switch msg.Command() {
	case "start":
		b.reply(msg, fmt.Sprintf(
			"Hello %s! I'm your calendar assistant. "+
				"You can ask me to add events to your calendar. "+
				"For example: 'Remind me about meeting with John on Friday at 3:00 PM' "+
				"or send me an image of an event.", msg.From.FirstName))
	case "help":
		b.sendHelp(msg.Chat.ID)
	case "connect":
		b.handleConnect(ctx, msg, userKey)
	case "disconnect":
		if err := b.store.Delete(ctx, userKey); err != nil {
			b.logger.Error("disconnect failed", "user", userKey, "error", err)
			b.reply(msg, "Something went wrong, please try again later.")
			return
		}
		b.reply(msg, "Your calendar has been disconnected. Use /connect to link it again.")
	default:
		b.reply(msg, "Unknown command. Use /help to see what I can do.")
	}
}

func (b *Bot) handleConnect(ctx context.Context, msg *tgbotapi.Message, userKey string) {
	if !b.webhookMode {
		// Polling mode has no reachable redirect target.
		b.reply(msg, "Calendar authorization is only available on the hosted bot. "+
			"This instance runs in polling mode and cannot receive the sign-in redirect.")
		return
	}

	authURL, err := b.broker.Begin(ctx, userKey)
	if err != nil {
		b.logger.Error("connect failed", "user", userKey, "error", err)
		b.reply(msg, "Something went wrong, please try again later.")
		return
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID,
		"Tap the button below to authorize access to your Google Calendar. "+
			"The link is valid for 10 minutes.")
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Connect Google Calendar", authURL),
		),
	)
	if _, err := b.api.Send(reply); err != nil {
		b.logger.Error("failed to send connect message", "user", userKey, "error", err)
	}
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message, text string) {
	processing := b.sendProcessing(msg.Chat.ID, "Processing your message...")
	defer b.deleteMessage(processing)

	intent, err := b.engine.DetectIntent(ctx, text)
	if err != nil {
		b.logger.Error("intent detection failed", "error", err)
		b.reply(msg, "Sorry, an error occurred while processing your message. Please try again.")
		return
	}

	switch intent.Intent {
	case assistant.IntentAddEvent:
		details, err := b.engine.ExtractEvent(ctx, text, time.Now())
		if err != nil {
			b.logger.Error("event extraction failed", "error", err)
			b.reply(msg, "Sorry, an error occurred while processing your message. Please try again.")
			return
		}
		b.handleAddEvent(ctx, msg, details)
	case assistant.IntentGreet:
		b.reply(msg, "Hello! How can I help you with your calendar today?")
	case assistant.IntentHelp:
		b.sendHelp(msg.Chat.ID)
	default:
		b.reply(msg, "I'm not sure what you want to do. Can you be more specific? "+
			"For example, \"Add meeting with Peter on Friday at 3:00 PM\".")
	}
}

// handleAddEvent creates the event through the user's connected calendar,
// or falls back to an add-to-calendar link when the user never connected.
func (b *Bot) handleAddEvent(ctx context.Context, msg *tgbotapi.Message, details assistant.EventDetails) {
	if details.Summary == "" || details.StartTime == "" {
		b.reply(msg, "I need more information about the event. "+
			"Please specify at least a title and a date/time.")
		return
	}

	event := calendar.Event{
		Summary:     details.Summary,
		Location:    details.Location,
		Description: details.Description,
		StartTime:   details.StartTime,
		EndTime:     details.EndTime,
	}
	userKey := strconv.FormatInt(msg.From.ID, 10)

	cred, err := b.store.Get(ctx, userKey)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		b.sendRenderLink(msg, event)
		return
	case err != nil:
		b.logger.Error("credential lookup failed", "user", userKey, "error", err)
		b.reply(msg, "Something went wrong, please try again later.")
		return
	}

	cred, err = b.refresher.EnsureValid(ctx, userKey, cred)
	if errors.Is(err, auth.ErrReauthorizationRequired) {
		b.reply(msg, "Your authorization has expired. Please use /disconnect and /connect again.")
		return
	}
	if err != nil {
		b.logger.Error("credential refresh failed", "user", userKey, "error", err)
		b.reply(msg, "Something went wrong, please try again later.")
		return
	}

	result, err := b.publisher.Insert(ctx, cred, event)
	if err != nil {
		b.reply(msg, result.Message)
		return
	}

	text := "✅ I added the event to your calendar:\n\n" + formatEvent(event)
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ParseMode = tgbotapi.ModeMarkdown
	if result.EventLink != "" {
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("Open in Calendar", result.EventLink),
			),
		)
	}
	if _, err := b.api.Send(reply); err != nil {
		b.logger.Error("failed to send event confirmation", "error", err)
	}
}

// sendRenderLink offers the no-auth add-to-calendar fallback.
func (b *Bot) sendRenderLink(msg *tgbotapi.Message, event calendar.Event) {
	text := "I extracted the following event details:\n\n" + formatEvent(event) +
		"\n\nYou can add it to your calendar with the button below, " +
		"or use /connect so I can create events for you directly."
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ParseMode = tgbotapi.ModeMarkdown
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Add to my Calendar", calendar.RenderLink(event)),
		),
	)
	if _, err := b.api.Send(reply); err != nil {
		b.logger.Error("failed to send calendar link", "error", err)
	}
}

func (b *Bot) handleVoice(ctx context.Context, msg *tgbotapi.Message) {
	processing := b.sendProcessing(msg.Chat.ID, "Processing your audio message...")
	defer b.deleteMessage(processing)

	path, cleanup, err := b.downloadToTemp(ctx, msg.Voice.FileID, ".ogg")
	if err != nil {
		b.logger.Error("voice download failed", "error", err)
		b.reply(msg, "Sorry, an error occurred while processing your audio. Please try again.")
		return
	}
	defer cleanup()

	transcription, err := b.transcribeFile(ctx, path)
	if err != nil || transcription == "" {
		b.logger.Error("transcription failed", "error", err)
		b.reply(msg, "Sorry, I couldn't transcribe your audio message. "+
			"Please try again or send your message as text.")
		return
	}

	b.reply(msg, fmt.Sprintf("I heard: %q", transcription))
	b.handleText(ctx, msg, transcription)
}

func (b *Bot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) {
	processing := b.sendProcessing(msg.Chat.ID, "Processing your image...")
	defer b.deleteMessage(processing)

	// Highest resolution is last.
	photo := msg.Photo[len(msg.Photo)-1]
	image, err := b.downloadBytes(ctx, photo.FileID)
	if err != nil {
		b.logger.Error("photo download failed", "error", err)
		b.reply(msg, "Sorry, an error occurred while processing your image. Please try again.")
		return
	}

	details, err := b.engine.ExtractEventFromImage(ctx, image)
	if err != nil {
		b.logger.Error("image extraction failed", "error", err)
		b.reply(msg, "Sorry, an error occurred while processing your image. Please try again.")
		return
	}
	if details.Confidence < 0.5 {
		b.reply(msg, "I couldn't detect event information in this image. "+
			"Please send a clearer image or provide the event details in text.")
		return
	}

	b.handleAddEvent(ctx, msg, details)
}

// NotifyAuthorized announces a completed authorization back to the user.
// Called asynchronously from the OAuth callback path.
func (b *Bot) NotifyAuthorized(userKey string) {
	chatID, err := strconv.ParseInt(userKey, 10, 64)
	if err != nil {
		b.logger.Error("cannot notify: bad user key", "user", userKey, "error", err)
		return
	}
	message := tgbotapi.NewMessage(chatID,
		"✅ Your Google Calendar is connected! Send me an event description and I'll add it for you.")
	if _, err := b.api.Send(message); err != nil {
		b.logger.Error("failed to send authorization notification", "user", userKey, "error", err)
	}
}

func (b *Bot) sendHelp(chatID int64) {
	text := "I can help you manage your calendar. Here are some examples of what you can do:\n\n" +
		"- \"Remind me to buy milk tomorrow at 10am\"\n" +
		"- \"Add work meeting on Monday at 9:00\"\n" +
		"- Send an image of an event poster\n" +
		"- Send a voice message describing an event\n\n" +
		"Use /connect to link your Google Calendar and /disconnect to unlink it."
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("failed to send help", "error", err)
	}
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(msg.Chat.ID, text)); err != nil {
		b.logger.Error("failed to send reply", "error", err)
	}
}

// sendProcessing posts the transient status message; returns zero values
// on failure so deleteMessage becomes a no-op.
func (b *Bot) sendProcessing(chatID int64, text string) tgbotapi.Message {
	sent, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		b.logger.Warn("failed to send processing message", "error", err)
		return tgbotapi.Message{}
	}
	return sent
}

func (b *Bot) deleteMessage(msg tgbotapi.Message) {
	if msg.MessageID == 0 || msg.Chat == nil {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		b.logger.Warn("failed to delete processing message", "error", err)
	}
}

func formatEvent(event calendar.Event) string {
	out := fmt.Sprintf("📅 *%s*\n📆 %s", event.Summary, event.StartTime)
	if event.Location != "" {
		out += "\n📍 " + event.Location
	}
	if event.Description != "" {
		description := event.Description
		// Truncate on rune boundaries; a byte slice could cut a
		// multi-byte character in half.
		if runes := []rune(description); len(runes) > 200 {
			description = string(runes[:197]) + "..."
		}
		out += "\n📝 " + description
	}
	return out
}
