package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"geo-attendance-bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// startProfileCreation начинает процесс создания профиля
func (h *Handler) startProfileCreation(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	// Проверяем, есть ли уже профиль
	_, err := h.employees.GetByChatID(ctx, chatID)
	if err == nil {
		h.reply(chatID, "❌ You already have a profile!\nUse /myprofile to see it.")
		return
	}
	if !errors.Is(err, service.ErrEmployeeNotFound) {
		h.reportFault(chatID, "get employee", err)
		return
	}

	h.setState(chatID, stateAwaitingName)

	h.reply(chatID, `👤 Registration

Step 1 of 2:
✏️ Please send your full name:`)
}

// handleProfileState обрабатывает шаги создания профиля
func (h *Handler) handleProfileState(ctx context.Context, message *tgbotapi.Message, state string) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	switch {
	case state == stateAwaitingName:
		if text == "" {
			h.reply(chatID, "✏️ Please send your full name as text:")
			return
		}
		h.setState(chatID, stateAwaitingEmail+text)

		h.reply(chatID, fmt.Sprintf(`Step 2 of 2:
✅ Name saved: %s
📧 Now send your work email:`, text))

	case strings.HasPrefix(state, stateAwaitingEmail):
		fullName := strings.TrimPrefix(state, stateAwaitingEmail)

		username := ""
		if message.From != nil {
			username = message.From.UserName
		}

		employee, err := h.employees.CreateProfile(ctx, chatID, username, service.ProfileInput{
			FullName: fullName,
			Email:    text,
		})

		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			// Оставляем состояние, чтобы можно было прислать email еще раз
			h.reply(chatID, "❌ That does not look like a valid email. Please try again:")
			return
		case errors.Is(err, service.ErrEmployeeExists):
			h.clearState(chatID)
			h.reply(chatID, "❌ A profile with this chat or email already exists.")
			return
		case err != nil:
			h.clearState(chatID)
			h.reportFault(chatID, "create profile", err)
			return
		}

		h.clearState(chatID)
		h.reply(chatID, fmt.Sprintf(`🎉 Profile created!

%s

Use /locations to see where you can check in.`, h.employees.FormatProfile(employee)))

	default:
		// состояния отметок ждут геопозицию, а не текст
		h.reply(chatID, "📍 Please share your location using the button below, or send any command to cancel.")
	}
}

// showProfile показывает профиль сотрудника
func (h *Handler) showProfile(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	employee, ok := h.requireEmployee(ctx, chatID)
	if !ok {
		return
	}

	h.reply(chatID, h.employees.FormatProfile(employee))
}
