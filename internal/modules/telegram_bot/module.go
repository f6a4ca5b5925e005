package telegram

import (
	"context"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/fx"

	broadcast "fvg_bot/internal/modules/broadcast/service"
	"fvg_bot/internal/modules/config"
	"fvg_bot/internal/modules/telegram_bot/service"
	"fvg_bot/pkg/logger"
)

// Run attaches the chat confirmer to the engine's events. Without a token it does nothing.
func Run(lc fx.Lifecycle, cfg *config.Config, ctl service.Controller, fan *broadcast.Fanout) error {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		logger.Info("[TG] disabled: token or chat_id not set")
		return nil
	}
	bot, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return errors.Wrap(err, "telegram bot")
	}
	t := service.NewTelegram(bot, cfg.Telegram.ChatID, ctl)
	fan.Attach(t)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			t.Start(context.Background())
			logger.Info("[TG] bot @%s started", bot.Self.UserName)
			return nil
		},
		OnStop: func(_ context.Context) error {
			t.Stop()
			return nil
		},
	})
	return nil
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Invoke(Run),
	)
}
