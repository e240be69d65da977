package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/session"
)

// handleMeetingText appends free text to the active meeting's log.
func (b *Bot) handleMeetingText(ctx context.Context, ev Event) {
	if ev.Text == buttonNewMeeting {
		b.cmdNew(ctx, ev)
		return
	}

	if b.engine.Active(ev.UserID) == nil {
		b.sendWithKeyboard(ev.ChatID, "❌ Нет активной встречи.", newMeetingKeyboard())
		return
	}

	status := b.send(ev.ChatID, "🔄 Добавляю текст в отчёт...")
	err := b.engine.Append(ctx, ev.UserID, ev.Text, ev.Author)
	switch {
	case errors.Is(err, session.ErrNoSession):
		// Ended between the check and the append, e.g. by an idle prompt.
		b.edit(ev.ChatID, status.MessageID, "❌ Встреча уже завершена.")
	case err != nil:
		b.edit(ev.ChatID, status.MessageID, storageErrorText("❌ Не удалось добавить текст в отчёт.", err))
	default:
		b.edit(ev.ChatID, status.MessageID, "✅ Текст добавлен в отчёт.")
	}
}

// promptIdle runs on the idle timer goroutine; the engine has already
// verified the meeting is still the user's active one.
func (b *Bot) promptIdle(userID int64, s *session.Session) {
	b.log.Info("idle prompt", "user", userID, "session", s.ID)
	minutes := int(b.cfg.IdleTimeout().Minutes())
	b.sendWithKeyboard(userID, fmt.Sprintf(
		"⏰ Встреча в '%s' неактивна уже %d мин.\nПродолжить или завершить?",
		s.FolderName, minutes),
		idleKeyboard(s.ID))
}

func (b *Bot) handleCallback(ctx context.Context, ev Event) {
	b.answerCallback(ev.CallbackID)

	data := ev.CallbackData
	action, arg := data, ""
	if i := strings.IndexByte(data, ':'); i >= 0 {
		action, arg = data[:i], data[i+1:]
	}

	switch action {
	case "idle_extend":
		if b.engine.Extend(ev.UserID, arg) {
			b.edit(ev.ChatID, ev.MessageID, "▶️ Хорошо, встреча продолжается.")
		} else {
			b.edit(ev.ChatID, ev.MessageID, "❌ Эта встреча уже завершена.")
		}
	case "idle_end":
		b.idleEnd(ctx, ev, arg)
	case "reopen":
		b.reopen(ctx, ev.ChatID, ev.UserID, arg, false, ev.MessageID)
	case "reopen_force":
		b.reopen(ctx, ev.ChatID, ev.UserID, arg, true, ev.MessageID)
	case "reopen_cancel":
		b.edit(ev.ChatID, ev.MessageID, "❌ Возобновление отменено, текущая встреча продолжается.")
	default:
		b.handleAdminCallback(ctx, ev, action, arg)
	}
}

// idleEnd ends the meeting from the idle prompt, but only if that meeting
// is still the active one.
func (b *Bot) idleEnd(ctx context.Context, ev Event, sessionID string) {
	active := b.engine.Active(ev.UserID)
	if active == nil || active.ID != sessionID {
		b.edit(ev.ChatID, ev.MessageID, "❌ Эта встреча уже завершена.")
		return
	}
	sum, err := b.engine.End(ctx, ev.UserID)
	if errors.Is(err, session.ErrNoSession) {
		b.edit(ev.ChatID, ev.MessageID, "❌ Эта встреча уже завершена.")
		return
	}
	b.edit(ev.ChatID, ev.MessageID, "🏁 Встреча завершена.")
	if err != nil {
		b.send(ev.ChatID, storageErrorText("⚠️ Не удалось записать закрывающую строку в отчёт.", err))
	}
	b.sendSummary(ev.ChatID, sum, true)
}

// reopen continues the retained meeting. A stale session ID (the snapshot
// has since been replaced or consumed) is reported, never acted on. When a
// different meeting is active and force is not set, the user gets an
// explicit confirm/cancel step.
func (b *Bot) reopen(ctx context.Context, chatID, userID int64, sessionID string, force bool, messageID int) {
	snap := b.engine.LastSnapshot(userID)
	if snap == nil || snap.SessionID != sessionID {
		b.edit(chatID, messageID, "❌ Эту встречу уже нельзя возобновить.")
		return
	}

	s, err := b.engine.Reopen(ctx, userID, force)
	switch {
	case errors.Is(err, session.ErrActiveSession):
		b.sendWithKeyboard(chatID, fmt.Sprintf(
			"⚠️ У вас уже есть активная встреча в '%s'.\nЗавершить её и возобновить встречу в '%s'?",
			b.engine.Active(userID).FolderName, snap.FolderName),
			reopenConfirmKeyboard(sessionID))
	case errors.Is(err, session.ErrNoSnapshot):
		b.edit(chatID, messageID, "❌ Нет завершенной встречи для возобновления.")
	case err != nil:
		b.send(chatID, storageErrorText("⚠️ Встреча возобновлена, но не удалось записать отметку в отчёт.", err))
		b.sendReopened(chatID, s)
	default:
		b.sendReopened(chatID, s)
	}
}

func (b *Bot) sendReopened(chatID int64, s *session.Session) {
	b.send(chatID, fmt.Sprintf(
		"🔄 Встреча возобновлена:\nПапка: %s\nФайл: %s\n\n✍️ Записи продолжат добавляться в тот же отчёт.",
		s.FolderPath, s.LogName()))
}

func (b *Bot) sendSummary(chatID int64, sum *session.Summary, withReopen bool) {
	if sum == nil {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏁 Итоги встречи:\n")
	fmt.Fprintf(&sb, "Папка: %s\n", sum.FolderPath)
	fmt.Fprintf(&sb, "Файл: %s\n", sum.LogName)
	fmt.Fprintf(&sb, "Длительность: %s\n", formatDuration(sum.Duration))
	fmt.Fprintf(&sb, "Записей: %d, файлов: %d\n", sum.Entries, sum.Files)
	if len(sum.Tail) > 0 {
		sb.WriteString("\nПоследние записи:\n")
		for _, line := range sum.Tail {
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	if withReopen {
		b.sendWithKeyboard(chatID, sb.String(), reopenKeyboard(sum.SessionID))
		return
	}
	b.send(chatID, sb.String())
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	if h > 0 {
		return fmt.Sprintf("%dч %02dмин", h, m)
	}
	return fmt.Sprintf("%dмин", m)
}
