// Package telegram sends operator alerts to a Telegram chat and answers a
// couple of read-only status commands from that chat.
package telegram

import (
	"context"
	"fmt"
	"html"
	"log"
	"time"

	tele "gopkg.in/telebot.v3"

	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/config"
	"github.com/lezgoverci/virion-labs-dashboard-sub000/internal/model"
)

// BotStatsProvider reports fleet statistics for the /bots command.
type BotStatsProvider interface {
	Stats(ctx context.Context) (*model.BotStats, error)
}

type Bot struct {
	bot    *tele.Bot
	chatID int64
	stats  BotStatsProvider
}

func NewBot(cfg *config.Config, stats BotStatsProvider) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Telegram.BotToken,
		Poller: &tele.LongPoller{Timeout: 60 * time.Second},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:    bot,
		chatID: cfg.Telegram.AlertChatID,
		stats:  stats,
	}

	b.registerHandlers()

	return b, nil
}

func (b *Bot) registerHandlers() {
	b.bot.Use(b.onlyAlertChat)
	b.bot.Handle("/ping", b.handlePing)
	b.bot.Handle("/bots", b.handleBots)
}

func (b *Bot) StartPolling(ctx context.Context) {
	go func() {
		<-ctx.Done()
		b.bot.Stop()
	}()
	log.Println("[Telegram] Polling started")
	b.bot.Start()
}

func (b *Bot) onlyAlertChat(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Chat() == nil || c.Chat().ID != b.chatID {
			return nil
		}
		return next(c)
	}
}

func (b *Bot) handlePing(c tele.Context) error {
	return c.Send("pong")
}

func (b *Bot) handleBots(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := b.stats.Stats(ctx)
	if err != nil {
		return c.Send("Failed to load bot stats: " + html.EscapeString(err.Error()))
	}
	return c.Send(FormatBotStats(stats), tele.ModeHTML)
}

func (b *Bot) SendMessage(text string) error {
	_, err := b.bot.Send(tele.ChatID(b.chatID), text, tele.ModeHTML)
	return err
}

func (b *Bot) NotifyBotAction(bot *model.Bot, action model.BotAction) error {
	return b.SendMessage(FormatBotAction(bot, action))
}

func (b *Bot) NotifyStorageFailure(operation string, err error) error {
	return b.SendMessage(FormatStorageFailure(operation, err))
}

func FormatBotAction(bot *model.Bot, action model.BotAction) string {
	return fmt.Sprintf(`🤖 <b>Bot %s</b>

Name: %s
Status: <b>%s</b>
ID: <code>%s</code>`,
		html.EscapeString(string(action)),
		html.EscapeString(bot.Name),
		html.EscapeString(string(bot.Status)),
		bot.ID)
}

func FormatStorageFailure(operation string, err error) string {
	return fmt.Sprintf(`⚠️ <b>Storage failure</b>

Operation: %s
Error: <code>%s</code>`,
		html.EscapeString(operation),
		html.EscapeString(err.Error()))
}

func FormatBotStats(s *model.BotStats) string {
	return fmt.Sprintf(`📊 <b>Bots</b>

Online: %d / %d (%.1f%%)
Servers: %d
Users: %d
Commands: %d
Avg uptime: %.1f%%`,
		s.OnlineBots, s.TotalBots, s.OnlinePercentage,
		s.TotalServers, s.TotalUsers, s.TotalCommands, s.AvgUptime)
}
