package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"geo-attendance-bot/internal/models"
	"geo-attendance-bot/internal/service"
	"geo-attendance-bot/pkg/geofence"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// locationKeyboard просит пользователя поделиться геопозицией
func locationKeyboard() tgbotapi.ReplyKeyboardMarkup {
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButtonLocation("📍 Share my location"),
		),
	)
	keyboard.OneTimeKeyboard = true
	keyboard.ResizeKeyboard = true
	return keyboard
}

// showLocations показывает активные локации с кнопками отметки
func (h *Handler) showLocations(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	locations, err := h.locations.ListActive(ctx)
	if err != nil {
		h.reportFault(chatID, "list locations", err)
		return
	}

	if len(locations) == 0 {
		h.reply(chatID, "📭 There are no active locations yet.")
		return
	}

	var lines []string
	var rows [][]tgbotapi.InlineKeyboardButton
	lines = append(lines, "🏢 Active locations:")
	for _, l := range locations {
		lines = append(lines, "", h.locations.FormatLocation(l))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("✅ Check in: %s", l.Name),
				fmt.Sprintf("checkin:%d", l.ID),
			),
		))
	}

	h.replyWithMarkup(chatID, strings.Join(lines, "\n"), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// beginCheckIn запоминает локацию и запрашивает геопозицию
func (h *Handler) beginCheckIn(ctx context.Context, chatID int64, rawLocationID string) {
	if _, ok := h.requireEmployee(ctx, chatID); !ok {
		return
	}

	rawLocationID = strings.TrimSpace(rawLocationID)
	if rawLocationID == "" {
		h.reply(chatID, "ℹ️ Usage: /checkin [location ID]\nUse /locations to see the IDs.")
		return
	}

	h.setState(chatID, stateAwaitingCheckIn+rawLocationID)
	h.replyWithMarkup(chatID,
		"📍 Please share your current location to check in.",
		locationKeyboard())
}

// beginCheckOut запрашивает геопозицию для ухода
func (h *Handler) beginCheckOut(ctx context.Context, chatID int64) {
	if _, ok := h.requireEmployee(ctx, chatID); !ok {
		return
	}

	h.setState(chatID, stateAwaitingCheckOut)
	h.replyWithMarkup(chatID,
		"📍 Please share your current location to check out.",
		locationKeyboard())
}

// handleLocation завершает ожидающую отметку присланной геопозицией
func (h *Handler) handleLocation(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	state, exists := h.getState(chatID)
	if !exists || (state != stateAwaitingCheckOut && !strings.HasPrefix(state, stateAwaitingCheckIn)) {
		h.reply(chatID, "ℹ️ Use /checkin or /checkout first, then share your location.")
		return
	}
	h.clearState(chatID)

	employee, ok := h.requireEmployee(ctx, chatID)
	if !ok {
		return
	}

	point := &geofence.Point{Lat: message.Location.Latitude, Lon: message.Location.Longitude}
	now := message.Time().In(h.config.Timezone)

	logrus.WithFields(logrus.Fields{
		"chat_id": chatID,
		"lat":     point.Lat,
		"lon":     point.Lon,
		"state":   state,
	}).Debug("Location received")

	var text string
	if state == stateAwaitingCheckOut {
		res, err := h.engine.CheckOut(ctx, service.CheckOutRequest{
			EmployeeID: employee.ID,
			Point:      point,
			Now:        now,
		})
		if err != nil {
			h.reportFault(chatID, "check out", err)
			return
		}
		text = formatCheckOutResult(res, h.config.Timezone)
	} else {
		res, err := h.engine.CheckIn(ctx, service.CheckInRequest{
			EmployeeID: employee.ID,
			LocationID: strings.TrimPrefix(state, stateAwaitingCheckIn),
			Point:      point,
			Now:        now,
		})
		if err != nil {
			h.reportFault(chatID, "check in", err)
			return
		}
		text = formatCheckInResult(res, h.config.Timezone)
	}

	h.replyWithMarkup(chatID, text, tgbotapi.NewRemoveKeyboard(true))
}

// showStatus показывает текущую сессию
func (h *Handler) showStatus(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID

	employee, ok := h.requireEmployee(ctx, chatID)
	if !ok {
		return
	}

	session, err := h.engine.Current(ctx, employee.ID)
	if err != nil {
		h.reportFault(chatID, "current session", err)
		return
	}

	if session == nil {
		h.reply(chatID, "⚪️ You are not checked in anywhere.\nUse /locations to check in.")
		return
	}

	elapsed := message.Time().Sub(session.CheckInTime)
	if elapsed < 0 {
		elapsed = 0
	}

	text := fmt.Sprintf(`🟢 You are checked in at %s

%s
⏱ On site: %s`,
		session.Location.Name,
		session.FormatTime(h.config.Timezone),
		models.FormatHours(elapsed))

	h.replyWithMarkup(chatID, text, tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏁 Check out", "checkout"),
		),
	))
}

// showHistory показывает последние отметки сотрудника
func (h *Handler) showHistory(ctx context.Context, message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID

	employee, ok := h.requireEmployee(ctx, chatID)
	if !ok {
		return
	}

	limit, err := parseLimit(args, h.config.HistoryLimit)
	if err != nil {
		h.reply(chatID, "ℹ️ Usage: /history [N]")
		return
	}

	history, err := h.reports.History(ctx, employee.ID, limit)
	if err != nil {
		h.reportFault(chatID, "history", err)
		return
	}

	if len(history) == 0 {
		h.reply(chatID, "📭 You have no check-ins yet.")
		return
	}

	lines := []string{fmt.Sprintf("📜 Your last %d check-ins:", len(history))}
	for _, c := range history {
		lines = append(lines, "", formatSessionLine(c, h.config.Timezone))
	}
	h.reply(chatID, strings.Join(lines, "\n"))
}

func formatCheckInResult(res *service.CheckInResult, tz *time.Location) string {
	if !res.Accepted {
		return fmt.Sprintf("❌ %s\n%s", res.Message, reasonHint(res.Reason))
	}

	return fmt.Sprintf(`✅ %s

⏰ Time: %s
📅 Date: %s

💡 Don't forget to /checkout when you leave.`,
		res.Message,
		res.Session.CheckInTime.In(tz).Format("15:04"),
		res.Session.CheckInTime.In(tz).Format("02.01.2006"))
}

func formatCheckOutResult(res *service.CheckOutResult, tz *time.Location) string {
	if !res.Accepted {
		return fmt.Sprintf("❌ %s\n%s", res.Message, reasonHint(res.Reason))
	}

	duration := "N/A"
	if res.DurationSeconds != nil {
		duration = models.FormatClockDuration(time.Duration(*res.DurationSeconds) * time.Second)
	}

	return fmt.Sprintf(`🏁 %s

%s
⏱ Duration: %s`,
		res.Message,
		res.Session.FormatTime(tz),
		duration)
}

// reasonHint подсказывает, что делать после отказа
func reasonHint(reason service.ReasonCode) string {
	switch reason {
	case service.ReasonAlreadyCheckedIn:
		return "Use /status to see where you are checked in."
	case service.ReasonLocationUnavailable:
		return "Use /locations to see the available locations."
	case service.ReasonOutsideShiftWindow:
		return "Please try again closer to the start of your shift."
	case service.ReasonOutOfRange:
		return "Move closer to the site and share your location again."
	case service.ReasonNotCheckedIn:
		return "Use /checkin to start a session."
	case service.ReasonInvalidInterval:
		return "Check your device clock and try again."
	default:
		return ""
	}
}

func formatSessionLine(c *models.CheckIn, tz *time.Location) string {
	status := "🟢 open"
	if !c.IsOpen() {
		status = "⚪️ " + c.FormatDuration()
	}

	return fmt.Sprintf("📅 %s • %s\n%s • %s",
		c.CheckInTime.In(tz).Format("02.01.2006"),
		c.Location.Name,
		c.FormatTime(tz),
		status)
}

// parseLimit разбирает необязательное положительное число
func parseLimit(args string, def int) (int, error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return def, nil
	}

	n, err := strconv.Atoi(args)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid number %q", args)
	}
	return n, nil
}
