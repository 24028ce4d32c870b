package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"geo-attendance-bot/internal/config"
	"geo-attendance-bot/internal/models"
	"geo-attendance-bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Messenger - то, что нужно обработчику от клиента Telegram
type Messenger interface {
	Send(msg tgbotapi.Chattable) error
	Request(req tgbotapi.Chattable) error
}

// Состояния диалога с пользователем
const (
	stateAwaitingName     = "awaiting_name"
	stateAwaitingEmail    = "awaiting_email:"    // + имя
	stateAwaitingCheckIn  = "awaiting_checkin:"  // + id локации
	stateAwaitingCheckOut = "awaiting_checkout"
)

type Handler struct {
	bot       Messenger
	employees *service.EmployeeService
	locations *service.LocationService
	reports   *service.ReportService
	engine    *service.CheckInEngine
	config    *config.BotConfig

	mu         sync.Mutex
	userStates map[int64]string
}

func NewHandler(
	bot Messenger,
	employees *service.EmployeeService,
	locations *service.LocationService,
	reports *service.ReportService,
	engine *service.CheckInEngine,
	cfg *config.BotConfig,
) *Handler {
	return &Handler{
		bot:        bot,
		employees:  employees,
		locations:  locations,
		reports:    reports,
		engine:     engine,
		config:     cfg,
		userStates: make(map[int64]string),
	}
}

// HandleUpdates обрабатывает обновления по одному до закрытия канала или отмены ctx
func (h *Handler) HandleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate обрабатывает одно обновление с ограничением по времени
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx, cancel := context.WithTimeout(ctx, h.config.RequestTimeout)
	defer cancel()

	if update.CallbackQuery != nil {
		h.handleCallbackQuery(ctx, update.CallbackQuery)
		return
	}

	if update.Message == nil {
		return
	}

	h.handleMessage(ctx, update.Message)
}

// handleCallbackQuery обрабатывает inline кнопки
func (h *Handler) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	// Отвечаем на callback (убираем "часики" у кнопки)
	h.bot.Request(tgbotapi.NewCallback(callback.ID, ""))

	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID
	data := callback.Data

	switch {
	case strings.HasPrefix(data, "checkin:"):
		h.beginCheckIn(ctx, chatID, strings.TrimPrefix(data, "checkin:"))
	case data == "checkout":
		h.beginCheckOut(ctx, chatID)
	default:
		logrus.WithField("data", data).Warn("Unknown callback data")
	}
}

func (h *Handler) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	username := ""
	if message.From != nil {
		username = message.From.UserName
	}
	logrus.WithFields(logrus.Fields{
		"chat_id":  chatID,
		"username": username,
	}).Infof("Message: %s", message.Text)

	if message.Location != nil {
		h.handleLocation(ctx, message)
		return
	}

	// Команда прерывает незавершенный диалог
	if message.IsCommand() {
		h.clearState(chatID)
		h.handleCommand(ctx, message)
		return
	}

	if state, exists := h.getState(chatID); exists {
		h.handleProfileState(ctx, message, state)
		return
	}

	h.reply(chatID, "🤖 I only understand commands and shared locations. Use /help for the list of commands.")
}

func (h *Handler) getState(chatID int64) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	state, ok := h.userStates[chatID]
	return state, ok
}

func (h *Handler) setState(chatID int64, state string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.userStates[chatID] = state
}

func (h *Handler) clearState(chatID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.userStates, chatID)
}

func (h *Handler) reply(chatID int64, text string) {
	h.bot.Send(tgbotapi.NewMessage(chatID, text))
}

// replyWithMarkup отправляет сообщение с клавиатурой
func (h *Handler) replyWithMarkup(chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	h.bot.Send(msg)
}

// reportFault логирует сбой под коротким идентификатором и сообщает его пользователю
func (h *Handler) reportFault(chatID int64, op string, err error) {
	faultID := strings.ToUpper(uuid.NewString()[:8])
	logrus.WithError(err).WithFields(logrus.Fields{
		"fault_id": faultID,
		"chat_id":  chatID,
		"op":       op,
	}).Error("Request failed")

	h.reply(chatID, fmt.Sprintf("❌ Something went wrong, please try again later.\nReference: %s", faultID))
}

// requireEmployee возвращает профиль или просит его создать
func (h *Handler) requireEmployee(ctx context.Context, chatID int64) (*models.Employee, bool) {
	employee, err := h.employees.GetByChatID(ctx, chatID)
	if errors.Is(err, service.ErrEmployeeNotFound) {
		h.reply(chatID, "❌ Profile not found.\nUse /createprofile to register first.")
		return nil, false
	}
	if err != nil {
		h.reportFault(chatID, "get employee", err)
		return nil, false
	}
	return employee, true
}

// requireAdmin проверяет права администратора
func (h *Handler) requireAdmin(ctx context.Context, chatID int64) bool {
	isAdmin, err := h.employees.IsAdmin(ctx, chatID)
	if err != nil {
		h.reportFault(chatID, "check admin", err)
		return false
	}

	if !isAdmin {
		logrus.WithField("chat_id", chatID).Warn("Unauthorized access to admin command")
		h.reply(chatID, "❌ Access denied. This command is for administrators only.")
		return false
	}
	return true
}
