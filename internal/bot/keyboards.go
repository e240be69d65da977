package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/registry"
)

// Reply-keyboard button labels. These double as message matchers, so they
// are defined once.
const (
	buttonCancel     = "❌ Отмена"
	buttonUseCurrent = "📝 Использовать текущую папку"
	buttonNewFolder  = "📁 Создать подпапку"
	buttonToRoots    = "🔙 К выбору папок"
	buttonNewMeeting = "🆕 Начать новую встречу"
)

// numberedKeyboard renders items as "1. name" rows followed by extra rows.
func numberedKeyboard(items []string, extras ...string) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	for i, item := range items {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(fmt.Sprintf("%d. %s", i+1, item)),
		))
	}
	for _, extra := range extras {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(extra)))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}

func newMeetingKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonNewMeeting)),
	)
	kb.OneTimeKeyboard = true
	kb.ResizeKeyboard = true
	return kb
}

func idleKeyboard(sessionID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("▶️ Продолжить", "idle_extend:"+sessionID),
			tgbotapi.NewInlineKeyboardButtonData("🏁 Завершить", "idle_end:"+sessionID),
		),
	)
}

func reopenKeyboard(sessionID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Возобновить встречу", "reopen:"+sessionID),
		),
	)
}

// reopenConfirmKeyboard is the explicit two-step confirmation shown when a
// reopen would close a different active meeting.
func reopenConfirmKeyboard(sessionID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Да, завершить и возобновить", "reopen_force:"+sessionID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", "reopen_cancel"),
		),
	)
}

func adminMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📂 Список папок", "adm_folders"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Добавить папку", "adm_folder_add"),
			tgbotapi.NewInlineKeyboardButtonData("➖ Удалить папку", "adm_folder_del"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔐 Права доступа к папке", "adm_folder_restrict"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👤 Список пользователей", "adm_users"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Добавить пользователя", "adm_user_add"),
			tgbotapi.NewInlineKeyboardButtonData("➖ Удалить пользователя", "adm_user_del"),
		),
	)
}

// restrictKeyboard renders per-user toggles for a folder's permitted list.
func restrictKeyboard(users []registry.User, selected map[int64]bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, u := range users {
		mark := "⬜"
		if selected[u.ID] {
			mark = "✅"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s %s", mark, u.DisplayName()),
				fmt.Sprintf("restrict_toggle:%d", u.ID),
			),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("💾 Сохранить", "restrict_save"),
		tgbotapi.NewInlineKeyboardButtonData("🌐 Доступна всем", "restrict_clear"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
