// Package telegram bridges Telegram chats onto the SMS-shaped pipeline:
// each chat is a sender identity and each outbound segment is delivered
// as its own message, standing in for a real SMS modem in deployments
// that run over data.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/careline/internal/gateway"
)

// Adapter bridges Telegram to the gateway.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	gateway *gateway.Gateway
}

// New creates a Telegram adapter. The gateway is attached separately so
// the adapter can serve as the gateway's transport.
func New(token string) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{bot: bot}, nil
}

// AttachGateway wires inbound messages into the gateway. Must be called
// before Start.
func (a *Adapter) AttachGateway(gw *gateway.Gateway) {
	a.gateway = gw
}

// Start begins long-polling for Telegram updates.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			a.handleMessage(ctx, update.Message)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(msg)
		return
	}

	sender := senderKey(msg.Chat.ID)
	if err := a.gateway.HandleInbound(ctx, sender, msg.Text); err != nil {
		slog.Error("handle inbound failed", "sender", sender, "error", err)
		a.send(msg.Chat.ID, "Sorry, something went wrong processing your message.")
	}
}

func (a *Adapter) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		a.send(msg.Chat.ID, "Welcome to Careline Health. Describe your symptoms or question in a message. Send RESET to start a new conversation.")
	default:
		a.send(msg.Chat.ID, "Unknown command. Send a health question as a plain message, or RESET to start over.")
	}
}

// Send delivers one logical reply as its segments, in order. The segment
// split upstream already respects SMS limits, which are far below
// Telegram's own.
func (a *Adapter) Send(ctx context.Context, recipient string, segments []string) error {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return fmt.Errorf("bad recipient %q: %w", recipient, err)
	}
	for _, segment := range segments {
		if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, segment)); err != nil {
			return fmt.Errorf("sending segment: %w", err)
		}
	}
	return nil
}

func (a *Adapter) send(chatID int64, text string) {
	if _, err := a.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		slog.Error("send message failed", "error", err)
	}
}

func senderKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
