package handler

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (h *Handler) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()
	args := message.CommandArguments()

	switch command {
	case "start":
		h.sendStartMessage(message)
	case "help":
		h.sendHelpMessage(message)
	case "helpadmin":
		h.sendAdminHelpMessage(ctx, message)

	// Профиль
	case "createprofile":
		h.startProfileCreation(ctx, message)
	case "myprofile":
		h.showProfile(ctx, message)

	// Отметки (все сотрудники)
	case "locations":
		h.showLocations(ctx, message)
	case "checkin":
		h.beginCheckIn(ctx, message.Chat.ID, args)
	case "checkout":
		h.beginCheckOut(ctx, message.Chat.ID)
	case "status":
		h.showStatus(ctx, message)
	case "history":
		h.showHistory(ctx, message, args)

	// Администрирование
	case "dashboard":
		h.showDashboard(ctx, message)
	case "employees":
		h.showEmployees(ctx, message)
	case "promote":
		h.promoteToAdmin(ctx, message, args)
	case "demote":
		h.demoteToEmployee(ctx, message, args)
	case "active":
		h.showActive(ctx, message)
	case "log":
		h.showLog(ctx, message, args)
	case "export":
		h.exportAttendance(ctx, message, args)

	// Управление локациями (админы)
	case "addlocation":
		h.addLocation(ctx, message, args)
	case "editlocation":
		h.editLocation(ctx, message, args)
	case "togglelocation":
		h.toggleLocation(ctx, message, args)
	case "deletelocation":
		h.deleteLocation(ctx, message, args)
	case "alllocations":
		h.showAllLocations(ctx, message)

	default:
		h.sendUnknownCommand(message)
	}
}

func (h *Handler) sendUnknownCommand(message *tgbotapi.Message) {
	h.reply(message.Chat.ID, "❌ Unknown command. Use /help to see the list of commands.")
}

const employeeHelp = `📋 Available commands:

👤 Profile:
/createprofile - Register (name and email)
/myprofile - Show my profile

📍 Attendance:
/locations - Locations where you can check in
/checkin [ID] - Check in at a location, then share your location
/checkout - Check out, then share your location
/status - Am I checked in right now?
/history [N] - My last N check-ins (default 10)

🛠 Utilities:
/start - Start working with the bot
/help - Show this message

💡 How it works:
1. Register with /createprofile
2. Pick a location with /locations
3. Check in no earlier than %d minutes before the shift starts
4. Share your location while standing at the site
5. Check out with /checkout when you leave`

func (h *Handler) sendStartMessage(message *tgbotapi.Message) {
	name := "there"
	if message.From != nil && message.From.FirstName != "" {
		name = message.From.FirstName
	}

	text := fmt.Sprintf("👋 Hi, %s! I track attendance at work locations.\n\n", name) +
		fmt.Sprintf(employeeHelp, h.engine.GraceMinutes())
	h.reply(message.Chat.ID, text)
}

func (h *Handler) sendHelpMessage(message *tgbotapi.Message) {
	h.reply(message.Chat.ID, fmt.Sprintf(employeeHelp, h.engine.GraceMinutes()))
}

func (h *Handler) sendAdminHelpMessage(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !h.requireAdmin(ctx, chatID) {
		return
	}

	text := `📋 Administrator commands:

📊 Reports:
/dashboard - Today's summary
/active - Who is checked in right now
/log [N] - Last N check-ins of everyone
/export [days] - Excel export for the last N days (default 30)

👥 Employees:
/employees - All employees
/promote [chat ID] - Grant admin role
/demote [chat ID] - Revoke admin role

🏢 Locations:
/alllocations - All locations including inactive
/addlocation name; address; lat; lon; radius; start; end
    Example: /addlocation HQ; Tverskaya 1; 55.7558; 37.6173; 100; 09:00; 18:00
    Use "-" for unknown coordinates or default radius
/editlocation ID; name; address; lat; lon; radius; start; end
/togglelocation [ID] - Activate or deactivate
/deletelocation [ID] - Delete a location without check-ins`

	if h.config.BaseAdminChatID != 0 {
		text += fmt.Sprintf("\n\n🔧 Base administrator chat ID: %d", h.config.BaseAdminChatID)
	}

	h.reply(chatID, text)
}
