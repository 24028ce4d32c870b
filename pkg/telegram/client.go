package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

type Client struct {
	Bot          *tgbotapi.BotAPI
	UpdateConfig tgbotapi.UpdateConfig
}

func NewClient(token string, debug bool) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	bot.Debug = debug

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	// Геопозиция приходит обычным сообщением, callback - от inline-кнопок
	updateConfig.AllowedUpdates = []string{"message", "callback_query"}

	return &Client{
		Bot:          bot,
		UpdateConfig: updateConfig,
	}, nil
}

// Updates открывает long polling
func (c *Client) Updates() tgbotapi.UpdatesChannel {
	return c.Bot.GetUpdatesChan(c.UpdateConfig)
}

// Send отправляет сообщение или документ
func (c *Client) Send(msg tgbotapi.Chattable) error {
	if _, err := c.Bot.Send(msg); err != nil {
		logrus.WithError(err).Error("Failed to send telegram message")
		return err
	}
	return nil
}

// Request выполняет запрос без сообщения в ответ (callback, правка клавиатуры)
func (c *Client) Request(req tgbotapi.Chattable) error {
	if _, err := c.Bot.Request(req); err != nil {
		logrus.WithError(err).Warn("Telegram request failed")
		return err
	}
	return nil
}

// Stop прекращает получение обновлений
func (c *Client) Stop() {
	c.Bot.StopReceivingUpdates()
}
