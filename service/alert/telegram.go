package alert

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the subset of tgbotapi.BotAPI used to deliver messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewTelegramBot creates a Bot API client against endpoint, which uses the
// tgbotapi.APIEndpoint format. The token is verified with getMe.
// A nil client means no timeout.
func NewTelegramBot(token, endpoint string, client *http.Client) (*tgbotapi.BotAPI, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return bot, nil
}

// TelegramDispatcher sends alerts as Markdown messages to a single chat.
type TelegramDispatcher struct {
	sender        Sender
	chatID        string
	explorerTxURL string
	logger        *slog.Logger
}

// NewTelegramDispatcher creates a dispatcher for chatID, which is either a
// numeric chat id or an @channel username.
func NewTelegramDispatcher(sender Sender, chatID, explorerTxURL string, logger *slog.Logger) *TelegramDispatcher {
	return &TelegramDispatcher{
		sender:        sender,
		chatID:        chatID,
		explorerTxURL: explorerTxURL,
		logger:        logger,
	}
}

// Name implements Dispatcher.
func (d *TelegramDispatcher) Name() string {
	return "telegram"
}

// Dispatch implements Dispatcher.
func (d *TelegramDispatcher) Dispatch(ctx context.Context, a Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := d.newMessage(FormatMessage(a, d.explorerTxURL))
	msg.ParseMode = tgbotapi.ModeMarkdown

	// The Bot API client takes no context, so the send is raced against ctx.
	// An abandoned send finishes in the background, bounded by the http.Client timeout.
	done := make(chan sendResult, 1)
	go func() {
		sent, err := d.sender.Send(msg)
		done <- sendResult{msg: sent, err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("telegram sendMessage: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return fmt.Errorf("telegram sendMessage: %w", res.err)
		}
		d.logger.DebugContext(ctx, "telegram message sent",
			"message_id", res.msg.MessageID,
			"signature", a.Signature,
		)
		return nil
	}
}

type sendResult struct {
	msg tgbotapi.Message
	err error
}

func (d *TelegramDispatcher) newMessage(text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(d.chatID, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	username := d.chatID
	if !strings.HasPrefix(username, "@") {
		username = "@" + username
	}
	return tgbotapi.NewMessageToChannel(username, text)
}
