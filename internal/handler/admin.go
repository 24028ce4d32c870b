package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"geo-attendance-bot/internal/models"
	"geo-attendance-bot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// showDashboard показывает сводку за сегодня (только для админов)
func (h *Handler) showDashboard(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	stats, err := h.reports.Dashboard(ctx)
	if err != nil {
		h.reportFault(chatID, "dashboard", err)
		return
	}

	text := fmt.Sprintf(`📊 Dashboard

🟢 Checked in now: %d
📥 Check-ins today: %d
⏱ Hours worked today: %s
👥 Employees: %d (👑 admins: %d)
🏢 Active locations: %d`,
		stats.CheckedInNow,
		stats.TodayCheckIns,
		models.FormatHours(stats.TodayHours),
		stats.Employees, stats.Admins,
		stats.ActiveLocations)

	h.reply(chatID, text)
}

// showEmployees показывает всех сотрудников
func (h *Handler) showEmployees(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	employees, err := h.employees.List(ctx)
	if err != nil {
		h.reportFault(chatID, "list employees", err)
		return
	}

	if len(employees) == 0 {
		h.reply(chatID, "📭 No employees registered yet.")
		return
	}

	lines := []string{fmt.Sprintf("👥 Employees (%d):", len(employees)), ""}
	for i, e := range employees {
		roleEmoji := "👤"
		if e.IsAdmin() {
			roleEmoji = "👑"
		}
		lines = append(lines, fmt.Sprintf("%d. %s %s (%s)\n   📧 %s • 💬 %d",
			i+1, roleEmoji, e.FullName, e.EmployeeCode, e.Email, e.ChatID))
	}

	h.reply(chatID, strings.Join(lines, "\n"))
}

func (h *Handler) promoteToAdmin(ctx context.Context, message *tgbotapi.Message, args string) {
	h.changeRole(ctx, message, args, models.Role(models.RoleAdmin))
}

func (h *Handler) demoteToEmployee(ctx context.Context, message *tgbotapi.Message, args string) {
	h.changeRole(ctx, message, args, models.Role(models.RoleEmployee))
}

// changeRole назначает роль сотруднику по chat ID
func (h *Handler) changeRole(ctx context.Context, message *tgbotapi.Message, args string, role models.Role) {
	chatID := message.Chat.ID

	targetChatID, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		h.reply(chatID, "ℹ️ Usage: /promote [chat ID] or /demote [chat ID]")
		return
	}

	if targetChatID == h.config.BaseAdminChatID && role != models.Role(models.RoleAdmin) {
		h.reply(chatID, "❌ The base administrator cannot be demoted.")
		return
	}

	err = h.employees.UpdateRole(ctx, chatID, targetChatID, role)
	switch {
	case errors.Is(err, service.ErrForbidden):
		h.reply(chatID, "❌ Access denied. This command is for administrators only.")
		return
	case errors.Is(err, service.ErrEmployeeNotFound):
		h.reply(chatID, fmt.Sprintf("❌ No employee with chat ID %d.", targetChatID))
		return
	case err != nil:
		h.reportFault(chatID, "update role", err)
		return
	}

	h.reply(chatID, fmt.Sprintf("✅ Employee %d is now %s.", targetChatID, role))
	h.reply(targetChatID, fmt.Sprintf("ℹ️ Your role has been changed to %s.", role))
}

// showActive показывает сотрудников на смене по локациям
func (h *Handler) showActive(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	groups, err := h.reports.ActiveByLocation(ctx)
	if err != nil {
		h.reportFault(chatID, "active employees", err)
		return
	}

	if len(groups) == 0 {
		h.reply(chatID, "⚪️ Nobody is checked in right now.")
		return
	}

	lines := []string{"🟢 Checked in now:"}
	for _, g := range groups {
		lines = append(lines, "", fmt.Sprintf("🏢 %s (%d)", g.LocationName, len(g.Sessions)))
		for _, s := range g.Sessions {
			lines = append(lines, fmt.Sprintf("  • %s since %s",
				s.Employee.FullName,
				s.CheckInTime.In(h.config.Timezone).Format("15:04")))
		}
	}

	h.reply(chatID, strings.Join(lines, "\n"))
}

// showLog показывает последние отметки всех сотрудников
func (h *Handler) showLog(ctx context.Context, message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	limit, err := parseLimit(args, h.config.HistoryLimit)
	if err != nil {
		h.reply(chatID, "ℹ️ Usage: /log [N]")
		return
	}

	entries, err := h.reports.Log(ctx, limit)
	if err != nil {
		h.reportFault(chatID, "attendance log", err)
		return
	}

	if len(entries) == 0 {
		h.reply(chatID, "📭 No check-ins recorded yet.")
		return
	}

	lines := []string{fmt.Sprintf("📜 Last %d check-ins:", len(entries))}
	for _, c := range entries {
		lines = append(lines, "", fmt.Sprintf("👤 %s\n%s", c.Employee.FullName, formatSessionLine(c, h.config.Timezone)))
	}

	h.reply(chatID, strings.Join(lines, "\n"))
}

// exportAttendance отправляет xlsx-выгрузку документом
func (h *Handler) exportAttendance(ctx context.Context, message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	days, err := parseLimit(args, service.DefaultExportDays)
	if err != nil {
		h.reply(chatID, "ℹ️ Usage: /export [days]")
		return
	}

	buf, filename, err := h.reports.Export(ctx, days)
	if err != nil {
		h.reportFault(chatID, "export", err)
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: buf.Bytes()})
	doc.Caption = fmt.Sprintf("📎 Attendance for the last %d days", days)
	if err := h.bot.Send(doc); err != nil {
		logrus.WithError(err).WithField("chat_id", chatID).Error("Failed to send export")
	}
}

// addLocation создает локацию из "name; address; lat; lon; radius; start; end"
func (h *Handler) addLocation(ctx context.Context, message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	input, err := service.ParseLocationInput(args)
	if err == nil {
		var location *models.Location
		location, err = h.locations.Create(ctx, input)
		if err == nil {
			h.reply(chatID, "✅ Location added:\n\n"+h.locations.FormatLocation(location))
			return
		}
	}

	h.replyLocationError(chatID, "add location", err,
		"ℹ️ Usage: /addlocation name; address; lat; lon; radius; start; end")
}

// editLocation перезаписывает локацию: "ID; name; address; lat; lon; radius; start; end"
func (h *Handler) editLocation(ctx context.Context, message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	id, rest, err := splitLocationID(args)
	if err != nil {
		h.reply(chatID, "ℹ️ Usage: /editlocation ID; name; address; lat; lon; radius; start; end")
		return
	}

	input, err := service.ParseLocationInput(rest)
	if err == nil {
		var location *models.Location
		location, err = h.locations.Update(ctx, id, input)
		if err == nil {
			h.reply(chatID, "✅ Location updated:\n\n"+h.locations.FormatLocation(location))
			return
		}
	}

	h.replyLocationError(chatID, "edit location", err,
		"ℹ️ Usage: /editlocation ID; name; address; lat; lon; radius; start; end")
}

// toggleLocation включает или выключает локацию
func (h *Handler) toggleLocation(ctx context.Context, message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	id, err := parseID(args)
	if err != nil {
		h.reply(chatID, "ℹ️ Usage: /togglelocation [ID]")
		return
	}

	location, err := h.locations.Toggle(ctx, id)
	if err != nil {
		h.replyLocationError(chatID, "toggle location", err, "")
		return
	}

	state := "activated 🟢"
	if !location.IsActive {
		state = "deactivated ⚪️"
	}
	h.reply(chatID, fmt.Sprintf("✅ Location %s %s.", location.Name, state))
}

// deleteLocation удаляет локацию без отметок
func (h *Handler) deleteLocation(ctx context.Context, message *tgbotapi.Message, args string) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	id, err := parseID(args)
	if err != nil {
		h.reply(chatID, "ℹ️ Usage: /deletelocation [ID]")
		return
	}

	if err := h.locations.Delete(ctx, id); err != nil {
		h.replyLocationError(chatID, "delete location", err, "")
		return
	}

	h.reply(chatID, fmt.Sprintf("🗑 Location #%d deleted.", id))
}

// showAllLocations показывает все локации, включая выключенные
func (h *Handler) showAllLocations(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	locations, err := h.locations.ListAll(ctx)
	if err != nil {
		h.reportFault(chatID, "list locations", err)
		return
	}

	if len(locations) == 0 {
		h.reply(chatID, "📭 No locations yet. Use /addlocation to create one.")
		return
	}

	lines := []string{fmt.Sprintf("🏢 All locations (%d):", len(locations))}
	for _, l := range locations {
		lines = append(lines, "", h.locations.FormatLocation(l))
	}
	h.reply(chatID, strings.Join(lines, "\n"))
}

// replyLocationError переводит ошибки сервиса локаций в ответ администратору
func (h *Handler) replyLocationError(chatID int64, op string, err error, usage string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		text := "❌ Invalid fields: " + strings.Join(verr.Fields, ", ")
		if usage != "" {
			text += "\n" + usage
		}
		h.reply(chatID, text)
	case errors.Is(err, service.ErrLocationNotFound):
		h.reply(chatID, "❌ Location not found.")
	case errors.Is(err, service.ErrLocationInUse):
		h.reply(chatID, "❌ This location has check-in records and cannot be deleted. Use /togglelocation to deactivate it.")
	default:
		h.reportFault(chatID, op, err)
	}
}

// parseID разбирает положительный идентификатор
func parseID(args string) (uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(args), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid id %q", args)
	}
	return uint(id), nil
}

// splitLocationID отделяет ID от остальных полей "ID; ..."
func splitLocationID(args string) (uint, string, error) {
	head, rest, found := strings.Cut(args, ";")
	if !found {
		return 0, "", fmt.Errorf("missing fields")
	}
	id, err := parseID(head)
	if err != nil {
		return 0, "", err
	}
	return id, rest, nil
}
