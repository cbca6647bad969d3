package notify

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"robotrading/internal/modules/config"
	"robotrading/internal/notify"
	"robotrading/pkg/logger"
)

func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		logger.Info("[NOTIFY] telegram не настроен, сообщения идут в лог")
		return notify.NewStdout()
	}
	tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		logger.Error("[NOTIFY] telegram не поднялся, откатываемся в лог: %v", err)
		return notify.NewStdout()
	}
	return tg
}

// announce шлёт операционные сообщения о старте/остановке процесса.
// Ликвидации по стопу через нотифайер не ходят.
func announce(lc fx.Lifecycle, n notify.Notifier, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			body := fmt.Sprintf("интрадей-монитор запущен, интервал %s", cfg.IntradayInterval)
			if err := n.Notify(ctx, "robotrading up", body); err != nil {
				logger.Warn("[NOTIFY] стартовое сообщение не ушло: %v", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := n.Notify(ctx, "robotrading down", "процесс останавливается"); err != nil {
				logger.Warn("[NOTIFY] стоп-сообщение не ушло: %v", err)
			}
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(newNotifier),
		fx.Invoke(announce),
	)
}
