package notify

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"robotrading/pkg/logger"
)

// Notifier — канал для торговых сигналов дневного цикла и операционных
// сообщений. Ликвидации по стопу сюда не ходят никогда — это продуктовое
// требование, а не забытый вызов: стопы видны в alert-логах и метриках.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

// Telegram — пассивный нотифайер в один чат.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID}, nil
}

func (t *Telegram) Notify(ctx context.Context, subject, body string) error {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return nil
	}
	msg := tgbot.NewMessage(t.chatID, fmt.Sprintf("📣 %s\n\n%s", subject, body))
	_, err := t.bot.Send(msg)
	return err
}

// Stdout — заглушка для локальной отладки, всё пишет в лог.
type Stdout struct{}

func NewStdout() *Stdout { return &Stdout{} }

func (s *Stdout) Notify(ctx context.Context, subject, body string) error {
	logger.Info("[NOTIFY] %s: %s", subject, body)
	return nil
}
