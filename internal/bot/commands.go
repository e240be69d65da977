package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/navigator"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/session"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/storage"
)

func (b *Bot) handleCommand(ctx context.Context, ev Event) {
	b.log.Info("command", "user", ev.UserID, "command", ev.Command)
	switch ev.Command {
	case "start":
		b.cmdStart(ev)
	case "help":
		b.cmdHelp(ev)
	case "new":
		b.cmdNew(ctx, ev)
	case "switch":
		b.cmdSwitch(ctx, ev)
	case "current":
		b.cmdCurrent(ctx, ev)
	case "end":
		b.cmdEnd(ctx, ev)
	case "reopen":
		b.cmdReopen(ctx, ev)
	case "admin":
		b.cmdAdmin(ev)
	case "cancel":
		b.cmdCancel(ev)
	default:
		b.send(ev.ChatID, "❓ Неизвестная команда. /help — список команд.")
	}
}

func (b *Bot) cmdStart(ev Event) {
	b.send(ev.ChatID,
		"👋 Привет! Я бот для регистрации встреч.\n\n"+
			"Команды:\n"+
			"/new - начать новую встречу\n"+
			"/switch - завершить текущую и начать новую\n"+
			"/current - показать текущую встречу\n"+
			"/end - завершить встречу\n"+
			"/help - справка")
}

func (b *Bot) cmdHelp(ev Event) {
	b.send(ev.ChatID,
		"🔖 Помощь по командам:\n\n"+
			"/new - начать новую встречу\n"+
			"/switch - завершить текущую и начать новую\n"+
			"/current - показать текущую встречу\n"+
			"/end - завершить встречу\n"+
			"/reopen - возобновить последнюю завершенную встречу\n"+
			"/cancel - отменить текущий диалог\n\n"+
			"Во время встречи:\n"+
			"- текст добавляется в отчёт\n"+
			"- фото, видео и документы сохраняются в папку встречи\n"+
			"- голосовые сообщения расшифровываются в отчёт")
}

func (b *Bot) cmdNew(ctx context.Context, ev Event) {
	if !b.reg.UserKnown(ev.UserID) && !b.cfg.IsAdmin(ev.UserID) {
		b.send(ev.ChatID, "❌ У вас нет доступа к боту. Обратитесь к администратору.")
		return
	}
	folders := b.reg.AllowedFoldersFor(ev.UserID)
	if len(folders) == 0 {
		b.send(ev.ChatID, "❌ У вас нет доступа ни к одной папке. Обратитесь к администратору.")
		return
	}

	st := b.state(ev.UserID)
	st.stage = stageChooseRoot
	st.roots = folders
	st.cursor = nil
	b.sendWithKeyboard(ev.ChatID, "👋 Выберите папку для встречи:",
		numberedKeyboard(folders, buttonCancel))
}

func (b *Bot) cmdSwitch(ctx context.Context, ev Event) {
	if b.engine.Active(ev.UserID) != nil {
		sum, err := b.engine.End(ctx, ev.UserID)
		if err != nil {
			b.log.Warn("switch: closing flush failed", "user", ev.UserID, "err", err)
		}
		if sum != nil {
			b.send(ev.ChatID, "✅ Текущая встреча завершена.")
			b.sendSummary(ev.ChatID, sum, true)
		}
	}
	b.cmdNew(ctx, ev)
}

func (b *Bot) cmdCurrent(ctx context.Context, ev Event) {
	s := b.engine.Active(ev.UserID)
	if s == nil {
		b.send(ev.ChatID, "❌ У вас нет активной встречи. Используйте /new, чтобы начать новую встречу.")
		return
	}
	text := fmt.Sprintf(
		"📝 Текущая встреча:\nПапка: %s\nФайл: %s",
		s.FolderPath, s.LogName())
	if !b.gw.Offline() {
		if link, err := b.gw.Link(ctx, s.LogPath); err == nil {
			text += "\nСсылка: " + link
		}
	}
	b.send(ev.ChatID, text+"\n\n✍️ Можете отправлять текст, голос, фото или видео.")
}

func (b *Bot) cmdEnd(ctx context.Context, ev Event) {
	sum, err := b.engine.End(ctx, ev.UserID)
	if errors.Is(err, session.ErrNoSession) {
		b.send(ev.ChatID, "❌ Нет активной встречи.")
		return
	}
	if err != nil {
		b.send(ev.ChatID, storageErrorText("⚠️ Встреча завершена, но не удалось записать закрывающую строку в отчёт.", err))
	}
	b.sendSummary(ev.ChatID, sum, true)
}

func (b *Bot) cmdReopen(ctx context.Context, ev Event) {
	snap := b.engine.LastSnapshot(ev.UserID)
	if snap == nil {
		b.send(ev.ChatID, "❌ Нет завершенной встречи для возобновления.")
		return
	}
	b.reopen(ctx, ev.ChatID, ev.UserID, snap.SessionID, false, 0)
}

func (b *Bot) cmdCancel(ev Event) {
	b.resetState(ev.UserID)
	b.sendWithKeyboard(ev.ChatID, "❌ Действие отменено.", tgbotapi.NewRemoveKeyboard(false))
}

// handleNavigationText drives the folder-selection dialogue.
func (b *Bot) handleNavigationText(ctx context.Context, ev Event, st *convState) {
	text := strings.TrimSpace(ev.Text)
	if text == buttonCancel {
		b.resetState(ev.UserID)
		b.sendWithKeyboard(ev.ChatID, "❌ Создание встречи отменено.", tgbotapi.NewRemoveKeyboard(false))
		return
	}

	switch st.stage {
	case stageChooseRoot:
		idx, ok := parseIndex(text)
		if !ok {
			b.send(ev.ChatID, "❌ Пожалуйста, выберите папку из предложенного списка.")
			return
		}
		if idx < 1 || idx > len(st.roots) {
			b.send(ev.ChatID, "❌ Неверный номер папки.")
			return
		}
		b.enterRoot(ctx, ev, st, st.roots[idx-1])

	case stageNavigate:
		switch text {
		case buttonUseCurrent:
			b.startMeeting(ctx, ev, st, st.cursor.Root, st.cursor.Path)
		case buttonNewFolder:
			st.stage = stageNewFolderName
			b.sendWithKeyboard(ev.ChatID,
				fmt.Sprintf("📁 Введите название новой подпапки в '%s':", st.cursor.Path),
				tgbotapi.NewRemoveKeyboard(false))
		case buttonToRoots:
			st.stage = stageChooseRoot
			st.cursor = nil
			b.sendWithKeyboard(ev.ChatID, "👋 Выберите папку для встречи:",
				numberedKeyboard(st.roots, buttonCancel))
		default:
			idx, ok := parseIndex(text)
			if !ok {
				b.send(ev.ChatID, "❌ Пожалуйста, выберите папку из предложенного списка.")
				return
			}
			b.enterSubfolder(ctx, ev, st, idx)
		}

	case stageNewFolderName:
		path, err := b.nav.CreateSubfolder(ctx, st.cursor, ev.Text)
		switch {
		case errors.Is(err, navigator.ErrEmptyName):
			b.send(ev.ChatID, "❌ Название папки не может быть пустым. Введите другое название:")
		case errors.Is(err, storage.ErrExists):
			b.send(ev.ChatID, fmt.Sprintf("❌ Папка '%s' уже существует. Введите другое название:", strings.TrimSpace(ev.Text)))
		case err != nil:
			b.send(ev.ChatID, storageErrorText("❌ Произошла ошибка при создании папки.", err))
		default:
			b.startMeeting(ctx, ev, st, st.cursor.Root, path)
		}
	}
}

// enterRoot lists the chosen allowed folder; a folder with no subfolders is
// terminal and opens the meeting directly.
func (b *Bot) enterRoot(ctx context.Context, ev Event, st *convState, root string) {
	cursor, listing, err := b.nav.Open(ctx, root)
	if err != nil {
		b.send(ev.ChatID, storageErrorText("❌ Произошла ошибка при получении списка папок.", err))
		return
	}
	st.cursor = cursor
	if len(listing.Entries) == 0 {
		b.startMeeting(ctx, ev, st, root, root)
		return
	}
	st.stage = stageNavigate
	b.showListing(ev.ChatID, listing)
}

func (b *Bot) enterSubfolder(ctx context.Context, ev Event, st *convState, idx int) {
	listing, err := b.nav.Enter(ctx, st.cursor, idx)
	switch {
	case errors.Is(err, navigator.ErrBadIndex):
		b.send(ev.ChatID, "❌ Неверный номер папки.")
		return
	case err != nil:
		// The cursor stays where it was; the previous numbers still work.
		b.send(ev.ChatID, storageErrorText("❌ Произошла ошибка при получении списка папок.", err))
		return
	}
	if len(listing.Entries) == 0 {
		b.startMeeting(ctx, ev, st, st.cursor.Root, st.cursor.Path)
		return
	}
	b.showListing(ev.ChatID, listing)
}

func (b *Bot) showListing(chatID int64, l *navigator.Listing) {
	b.sendWithKeyboard(chatID, navigator.FormatListing(l),
		numberedKeyboard(l.Entries, buttonUseCurrent, buttonNewFolder, buttonToRoots, buttonCancel))
}

func (b *Bot) startMeeting(ctx context.Context, ev Event, st *convState, root, path string) {
	s, ended, err := b.engine.Open(ctx, ev.UserID, root, path, baseName(path))
	if ended != nil {
		b.send(ev.ChatID, "✅ Предыдущая встреча завершена.")
	}
	if err != nil {
		b.send(ev.ChatID, storageErrorText("❌ Произошла ошибка при создании встречи.", err))
		return
	}
	b.resetState(ev.UserID)

	text := fmt.Sprintf(
		"🆕 Создана новая встреча:\nПапка: %s\nФайл: %s\n\n✍️ Можете отправлять текст, голос, фото или видео.\nДля завершения встречи используйте /end",
		s.FolderPath, s.LogName())
	if b.gw.Offline() {
		text += "\n\n⚠️ Бот работает в автономном режиме: данные не сохраняются в хранилище."
	}
	b.sendWithKeyboard(ev.ChatID, text, tgbotapi.NewRemoveKeyboard(false))
}

// parseIndex accepts "3" or "3. Folder name" and returns the number.
func parseIndex(text string) (int, bool) {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '.'); i > 0 {
		text = text[:i]
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, false
	}
	return n, true
}

func baseName(path string) string {
	i := strings.LastIndex(path, "/")
	return path[i+1:]
}
