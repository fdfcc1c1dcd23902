package transport

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/hearthside/relay/pkg/log"
	"github.com/hearthside/relay/pkg/types"
)

// botSender is the slice of the bot API the adapter needs; tests inject
// a fake
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChatTransport publishes text messages to integer-addressed chat
// channels via the bot API
type ChatTransport struct {
	bot    botSender
	logger zerolog.Logger
}

// NewChatTransport connects the bot API with the given token
func NewChatTransport(token string) (*ChatTransport, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("chat transport init failed: %w", err)
	}
	return NewChatTransportWithBot(bot), nil
}

// NewChatTransportWithBot wraps an existing bot client
func NewChatTransportWithBot(bot botSender) *ChatTransport {
	return &ChatTransport{
		bot:    bot,
		logger: log.WithTransport("chat"),
	}
}

// Kind implements Transport
func (t *ChatTransport) Kind() types.TransportKind {
	return types.TransportChat
}

// Deliver sends the body as a chat message. The parse mode is applied
// only when the body came from a template chat variant.
func (t *ChatTransport) Deliver(ctx context.Context, rcpt types.Recipient, content Rendered) Result {
	if ctx.Err() != nil {
		return cancelled()
	}

	msg := tgbotapi.NewMessage(rcpt.ChatID, content.Body)
	if content.FromTemplate && content.ParseMode != "" {
		msg.ParseMode = content.ParseMode
	}

	sent, err := t.bot.Send(msg)
	if err != nil {
		t.logger.Error().Err(err).Int64("chat_id", rcpt.ChatID).Msg("chat delivery failed")
		return failed(fmt.Sprintf("chat send: %v", err))
	}

	return Result{
		Status: types.MessageSent,
		Meta:   map[string]string{"message_id": fmt.Sprintf("%d", sent.MessageID)},
	}
}
