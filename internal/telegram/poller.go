package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/nfc-command/ncc/internal/audit"
	"github.com/nfc-command/ncc/internal/command"
	"github.com/nfc-command/ncc/internal/config"
)

// BotAPI is the part of *tgbotapi.BotAPI the poller uses.
type BotAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Connect authenticates with the Bot API using the configured token.
func Connect(cfg config.TelegramConfig, logger *zap.Logger) (*tgbotapi.BotAPI, error) {
	if err := tgbotapi.SetLogger(zap.NewStdLog(logger.Named("tgbotapi"))); err != nil {
		return nil, fmt.Errorf("failed to set bot logger: %w", err)
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}
	bot.Debug = cfg.Debug

	logger.Info("Authorized on Telegram", zap.String("bot", bot.Self.UserName))
	return bot, nil
}

// Poller receives updates and answers them through the conversation.
type Poller struct {
	bot         BotAPI
	conv        command.Conversation
	logger      *zap.Logger
	pollTimeout int
	stopOnce    sync.Once
}

// NewPoller creates a poller for bot.
func NewPoller(bot BotAPI, conv command.Conversation, cfg config.TelegramConfig, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		bot:         bot,
		conv:        conv,
		logger:      logger,
		pollTimeout: int(cfg.PollTimeout().Seconds()),
	}
}

// Run handles updates until ctx is cancelled or the update channel closes.
func (p *Poller) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = p.pollTimeout
	u.AllowedUpdates = []string{"message"}

	updates := p.bot.GetUpdatesChan(u)
	p.logger.Info("Bot initialized and ready to receive messages")

	for {
		select {
		case <-ctx.Done():
			p.stop()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			p.handleUpdate(ctx, update)
		}
	}
}

func (p *Poller) stop() {
	p.stopOnce.Do(p.bot.StopReceivingUpdates)
}

func (p *Poller) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	in := update.Message
	if in == nil || in.Chat == nil || in.Text == "" {
		return
	}

	msg := command.Message{ChatID: in.Chat.ID, Text: in.Text}
	if in.From != nil {
		msg.UserID = in.From.ID
	}

	ctx = audit.WithActor(ctx, "telegram:"+strconv.FormatInt(msg.UserID, 10))
	for _, reply := range p.conv.HandleMessage(ctx, msg) {
		out := tgbotapi.NewMessage(msg.ChatID, reply.Text)
		if reply.Markdown {
			out.ParseMode = tgbotapi.ModeMarkdown
		}
		if _, err := p.bot.Send(out); err != nil {
			p.logger.Error("Failed to send reply",
				zap.Int64("chat_id", msg.ChatID),
				zap.Error(err))
		}
	}
}
