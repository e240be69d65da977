package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/registry"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/storage"
)

func (b *Bot) cmdAdmin(ev Event) {
	if !b.cfg.IsAdmin(ev.UserID) {
		b.send(ev.ChatID, "⛔ Эта команда доступна только администраторам.")
		return
	}
	b.resetState(ev.UserID)
	b.sendWithKeyboard(ev.ChatID, "👨‍💼 Административное меню\n\nВыберите действие:", adminMenuKeyboard())
}

func (b *Bot) handleAdminCallback(ctx context.Context, ev Event, action, arg string) {
	if !b.cfg.IsAdmin(ev.UserID) {
		return
	}
	st := b.state(ev.UserID)

	switch action {
	case "adm_folders":
		b.edit(ev.ChatID, ev.MessageID, b.renderFolders())
	case "adm_folder_add":
		st.stage = stageAdminAddFolder
		b.edit(ev.ChatID, ev.MessageID, "📂 Введите путь к папке, которую нужно разрешить (например, /Проекты/Клиенты):")
	case "adm_folder_del":
		st.stage = stageAdminRemoveFolder
		b.edit(ev.ChatID, ev.MessageID, b.renderFolders()+"\n➖ Введите номер папки для удаления из списка:")
	case "adm_folder_restrict":
		st.stage = stageAdminRestrictFolder
		b.edit(ev.ChatID, ev.MessageID, b.renderFolders()+"\n🔐 Введите номер папки для настройки прав доступа:")
	case "adm_users":
		b.edit(ev.ChatID, ev.MessageID, b.renderUsers())
	case "adm_user_add":
		st.stage = stageAdminAddUser
		b.edit(ev.ChatID, ev.MessageID, "👤 Отправьте ID пользователя Telegram (и, при желании, username через пробел):")
	case "adm_user_del":
		st.stage = stageAdminRemoveUser
		b.edit(ev.ChatID, ev.MessageID, b.renderUsers()+"\n➖ Введите номер пользователя для удаления:")
	case "restrict_toggle":
		b.toggleRestrictUser(ev, st, arg)
	case "restrict_save":
		b.saveRestrict(ev, st, false)
	case "restrict_clear":
		b.saveRestrict(ev, st, true)
	default:
		b.log.Warn("unknown callback", "user", ev.UserID, "data", ev.CallbackData)
	}
}

func (b *Bot) renderFolders() string {
	folders := b.reg.Folders()
	if len(folders) == 0 {
		return "❌ Список разрешенных папок пуст."
	}
	var sb strings.Builder
	sb.WriteString("📂 Разрешенные папки:\n\n")
	for i, f := range folders {
		access := "доступна всем"
		if n := len(f.AllowedUsers); n > 0 {
			access = fmt.Sprintf("доступ ограничен (%d польз.)", n)
		}
		fmt.Fprintf(&sb, "%d. %s — %s\n", i+1, f.Path, access)
	}
	return sb.String()
}

func (b *Bot) renderUsers() string {
	users := b.reg.Users()
	if len(users) == 0 {
		return "❌ Список разрешенных пользователей пуст."
	}
	var sb strings.Builder
	sb.WriteString("👤 Разрешенные пользователи:\n\n")
	for i, u := range users {
		fmt.Fprintf(&sb, "%d. %s (id %d), добавлен %s\n", i+1, u.DisplayName(), u.ID, u.AddedAt.Format("2006-01-02"))
	}
	return sb.String()
}

// handleAdminText consumes the typed half of admin dialogues.
func (b *Bot) handleAdminText(ctx context.Context, ev Event, st *convState) {
	if !b.cfg.IsAdmin(ev.UserID) {
		b.resetState(ev.UserID)
		return
	}

	switch st.stage {
	case stageAdminAddFolder:
		b.adminAddFolder(ctx, ev, st)
	case stageAdminRemoveFolder:
		b.adminRemoveFolder(ev, st)
	case stageAdminRestrictFolder:
		b.adminPickRestrictFolder(ev, st)
	case stageAdminAddUser:
		b.adminAddUser(ev, st)
	case stageAdminRemoveUser:
		b.adminRemoveUser(ev, st)
	}
}

func (b *Bot) adminAddFolder(ctx context.Context, ev Event, st *convState) {
	path := strings.TrimSpace(ev.Text)
	if path == "" {
		b.send(ev.ChatID, "❌ Путь не может быть пустым. Введите путь к папке:")
		return
	}
	path = storage.NormalizePath(path)

	if err := b.gw.EnsureRecursive(ctx, path); err != nil {
		b.send(ev.ChatID, storageErrorText("❌ Не удалось создать папку в хранилище.", err))
		return
	}
	switch err := b.reg.AddFolder(path); {
	case errors.Is(err, registry.ErrFolderExists):
		b.send(ev.ChatID, "❌ Папка уже есть в списке разрешенных.")
	case err != nil:
		b.send(ev.ChatID, "❌ Ошибка при сохранении списка папок: "+err.Error())
	default:
		st.stage = stageNone
		b.send(ev.ChatID, fmt.Sprintf("✅ Папка %s добавлена в список разрешенных и доступна всем.", path))
	}
}

func (b *Bot) adminRemoveFolder(ev Event, st *convState) {
	folders := b.reg.Folders()
	idx, ok := parseIndex(ev.Text)
	if !ok || idx < 1 || idx > len(folders) {
		b.send(ev.ChatID, "❌ Неверный номер папки. Введите номер из списка:")
		return
	}
	path := folders[idx-1].Path
	switch err := b.reg.RemoveFolder(path); {
	case errors.Is(err, registry.ErrFolderNotFound):
		b.send(ev.ChatID, "❌ Папка не найдена в списке разрешенных.")
	case err != nil:
		b.send(ev.ChatID, "❌ Ошибка при сохранении списка папок: "+err.Error())
	default:
		st.stage = stageNone
		b.send(ev.ChatID, fmt.Sprintf("✅ Папка %s удалена из списка разрешенных.", path))
	}
}

func (b *Bot) adminPickRestrictFolder(ev Event, st *convState) {
	folders := b.reg.Folders()
	idx, ok := parseIndex(ev.Text)
	if !ok || idx < 1 || idx > len(folders) {
		b.send(ev.ChatID, "❌ Неверный номер папки. Введите номер из списка:")
		return
	}
	users := b.reg.Users()
	if len(users) == 0 {
		st.stage = stageNone
		b.send(ev.ChatID, "❌ Список пользователей пуст, ограничивать доступ некому.")
		return
	}

	folder := folders[idx-1]
	st.stage = stageNone
	st.restrictPath = folder.Path
	st.restrictSel = make(map[int64]bool, len(folder.AllowedUsers))
	for _, id := range folder.AllowedUsers {
		st.restrictSel[id] = true
	}
	b.sendWithKeyboard(ev.ChatID, b.restrictPrompt(folder.Path, st.restrictSel), restrictKeyboard(users, st.restrictSel))
}

func (b *Bot) restrictPrompt(path string, sel map[int64]bool) string {
	status := "⚠️ В данный момент папка доступна всем пользователям."
	if len(sel) > 0 {
		status = "✅ В данный момент папка доступна только выбранным пользователям."
	}
	return fmt.Sprintf(
		"🔐 Права доступа к папке '%s'\n\n%s\n\nНажимайте на пользователей для выбора. Если не выбран ни один, папка будет доступна всем.",
		path, status)
}

func (b *Bot) toggleRestrictUser(ev Event, st *convState, arg string) {
	if st.restrictPath == "" {
		b.edit(ev.ChatID, ev.MessageID, "❌ Настройка прав уже завершена. Откройте /admin заново.")
		return
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return
	}
	if st.restrictSel[id] {
		delete(st.restrictSel, id)
	} else {
		st.restrictSel[id] = true
	}
	b.editWithKeyboard(ev.ChatID, ev.MessageID,
		b.restrictPrompt(st.restrictPath, st.restrictSel),
		restrictKeyboard(b.reg.Users(), st.restrictSel))
}

func (b *Bot) saveRestrict(ev Event, st *convState, clear bool) {
	if st.restrictPath == "" {
		b.edit(ev.ChatID, ev.MessageID, "❌ Настройка прав уже завершена. Откройте /admin заново.")
		return
	}
	var ids []int64
	if !clear {
		for id := range st.restrictSel {
			ids = append(ids, id)
		}
	}
	path := st.restrictPath
	st.restrictPath = ""
	st.restrictSel = nil

	if err := b.reg.SetFolderUsers(path, ids); err != nil {
		b.edit(ev.ChatID, ev.MessageID, "❌ Произошла ошибка при обновлении прав доступа: "+err.Error())
		return
	}
	if clear || len(ids) == 0 {
		b.edit(ev.ChatID, ev.MessageID, fmt.Sprintf("✅ Папка '%s' доступна всем пользователям.", path))
		return
	}
	b.edit(ev.ChatID, ev.MessageID, fmt.Sprintf("✅ Права доступа к папке '%s' обновлены (%d польз.).", path, len(ids)))
}

func (b *Bot) adminAddUser(ev Event, st *convState) {
	fields := strings.Fields(ev.Text)
	if len(fields) == 0 {
		b.send(ev.ChatID, "❌ Отправьте числовой ID пользователя:")
		return
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		b.send(ev.ChatID, "❌ ID пользователя должен быть числом. Попробуйте еще раз:")
		return
	}
	u := registry.User{ID: id}
	if len(fields) > 1 {
		u.Username = strings.TrimPrefix(fields[1], "@")
	}
	switch err := b.reg.AddUser(u); {
	case errors.Is(err, registry.ErrUserExists):
		b.send(ev.ChatID, "❌ Пользователь уже есть в списке разрешенных.")
	case err != nil:
		b.send(ev.ChatID, "❌ Ошибка при сохранении списка пользователей: "+err.Error())
	default:
		st.stage = stageNone
		b.send(ev.ChatID, fmt.Sprintf("✅ Пользователь %s добавлен в список разрешенных.", u.DisplayName()))
	}
}

func (b *Bot) adminRemoveUser(ev Event, st *convState) {
	users := b.reg.Users()
	idx, ok := parseIndex(ev.Text)
	if !ok || idx < 1 || idx > len(users) {
		b.send(ev.ChatID, "❌ Неверный номер пользователя. Введите номер из списка:")
		return
	}
	u := users[idx-1]
	switch err := b.reg.RemoveUser(u.ID); {
	case errors.Is(err, registry.ErrUserNotFound):
		b.send(ev.ChatID, "❌ Пользователь не найден в списке разрешенных.")
	case err != nil:
		b.send(ev.ChatID, "❌ Ошибка при сохранении списка пользователей: "+err.Error())
	default:
		st.stage = stageNone
		b.send(ev.ChatID, fmt.Sprintf("✅ Пользователь %s удален из списка разрешенных и из всех папок.", u.DisplayName()))
	}
}
