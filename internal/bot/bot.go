// Package bot is the Telegram-facing layer: it classifies inbound updates,
// drives the folder-selection and admin dialogues, and routes meeting
// content into the session engine and storage gateway.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/config"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/navigator"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/registry"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/session"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/storage"
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/transcribe"
)

type Bot struct {
	api    *tgbotapi.BotAPI
	cfg    config.Config
	gw     *storage.Gateway
	reg    *registry.Store
	engine *session.Engine
	nav    *navigator.Navigator
	tr     transcribe.Transcriber
	log    *slog.Logger

	mu     sync.Mutex
	states map[int64]*convState
	queues map[int64]chan Event
	wg     sync.WaitGroup
}

func New(cfg config.Config, gw *storage.Gateway, reg *registry.Store, engine *session.Engine, nav *navigator.Navigator, tr transcribe.Transcriber, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	api.Debug = cfg.Telegram.Debug

	b := &Bot{
		api:    api,
		cfg:    cfg,
		gw:     gw,
		reg:    reg,
		engine: engine,
		nav:    nav,
		tr:     tr,
		log:    log,
		states: make(map[int64]*convState),
		queues: make(map[int64]chan Event),
	}
	engine.SetIdleFunc(b.promptIdle)
	return b, nil
}

// Run polls for updates until ctx is cancelled. Updates for different users
// are handled concurrently; updates for one user are serialized through a
// per-user queue, so a double-tap cannot race the dialogue state.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Info("bot started", "account", b.api.Self.UserName, "offline", b.gw.Offline())

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.engine.Shutdown()
			b.wg.Wait()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			ev, handled := Classify(upd)
			if !handled {
				continue
			}
			if !b.enqueue(ctx, ev) && ev.ChatID != 0 {
				b.send(ev.ChatID, "⏳ Слишком много сообщений подряд. Подождите немного и отправьте еще раз.")
			}
		}
	}
}

// enqueue hands the event to the user's serialized queue. It reports false
// when the queue is full and the event was dropped.
func (b *Bot) enqueue(ctx context.Context, ev Event) bool {
	b.mu.Lock()
	q, ok := b.queues[ev.UserID]
	if !ok {
		q = make(chan Event, 16)
		b.queues[ev.UserID] = q
		b.wg.Add(1)
		go b.worker(ctx, q)
	}
	b.mu.Unlock()

	select {
	case q <- ev:
		return true
	default:
		b.log.Warn("update queue full, dropping", "user", ev.UserID, "kind", ev.Kind.String())
		return false
	}
}

func (b *Bot) worker(ctx context.Context, q chan Event) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-q:
			b.safeHandle(ctx, ev)
		}
	}
}

// safeHandle isolates one update: a panic is logged and answered with a
// generic apology instead of taking the process down.
func (b *Bot) safeHandle(ctx context.Context, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in update handler", "user", ev.UserID, "kind", ev.Kind.String(), "panic", r)
			if ev.ChatID != 0 {
				b.send(ev.ChatID, "⚠️ Произошла непредвиденная ошибка. Пожалуйста, сообщите администратору.")
			}
		}
	}()
	b.handle(ctx, ev)
}

func (b *Bot) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case KindCallback:
		b.handleCallback(ctx, ev)
		return
	case KindCommand:
		b.handleCommand(ctx, ev)
		return
	}

	st := b.state(ev.UserID)
	switch st.stage {
	case stageChooseRoot, stageNavigate, stageNewFolderName:
		if ev.Kind == KindText {
			b.handleNavigationText(ctx, ev, st)
			return
		}
	case stageAwaitCaption:
		if ev.Kind == KindText {
			b.handleCaption(ctx, ev, st)
			return
		}
	case stageAwaitTranscript, stageAwaitTranscriptEdit:
		if ev.Kind == KindText {
			b.handleTranscriptText(ctx, ev, st)
			return
		}
	case stageAdminAddFolder, stageAdminRemoveFolder, stageAdminRestrictFolder,
		stageAdminAddUser, stageAdminRemoveUser:
		if ev.Kind == KindText {
			b.handleAdminText(ctx, ev, st)
			return
		}
	}

	switch ev.Kind {
	case KindText:
		b.handleMeetingText(ctx, ev)
	case KindPhoto, KindVideo, KindVoice, KindAudio, KindDocument, KindVideoNote:
		// A media message aborts any pending caption/transcript prompt.
		b.resetPromptStage(st)
		b.handleMedia(ctx, ev)
	default:
		b.send(ev.ChatID, "❌ Не могу обработать этот тип сообщения.")
	}
}

func (b *Bot) resetPromptStage(st *convState) {
	switch st.stage {
	case stageAwaitCaption, stageAwaitTranscript, stageAwaitTranscriptEdit:
		st.stage = stageNone
	}
}

// send delivers a plain text message; errors are logged, never silent.
func (b *Bot) send(chatID int64, text string) tgbotapi.Message {
	msg := tgbotapi.NewMessage(chatID, text)
	sent, err := b.api.Send(msg)
	if err != nil {
		b.log.Error("send failed", "chat", chatID, "err", err)
	}
	return sent
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, kb any) tgbotapi.Message {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	sent, err := b.api.Send(msg)
	if err != nil {
		b.log.Error("send failed", "chat", chatID, "err", err)
	}
	return sent
}

// edit updates a status message in place so long operations do not spam the
// chat with progress lines.
func (b *Bot) edit(chatID int64, messageID int, text string) {
	if messageID == 0 {
		b.send(chatID, text)
		return
	}
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("edit failed", "chat", chatID, "message", messageID, "err", err)
	}
}

func (b *Bot) editWithKeyboard(chatID int64, messageID int, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, kb)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("edit failed", "chat", chatID, "message", messageID, "err", err)
	}
}

func (b *Bot) answerCallback(id string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		b.log.Error("callback answer failed", "err", err)
	}
}

// storageErrorText maps a storage failure to an actionable user message.
func storageErrorText(prefix string, err error) string {
	switch storage.Classify(err) {
	case storage.ClassTimeout:
		return prefix + "\n⏱ Превышено время ожидания при обращении к хранилищу."
	case storage.ClassTransient:
		return prefix + "\n🌐 Проблема с подключением к хранилищу. Повторите через несколько минут."
	case storage.ClassPermission:
		return prefix + "\n⛔ Нет прав доступа к хранилищу. Сообщите администратору."
	case storage.ClassConflict:
		return prefix + "\n⚠️ Файл или папка с таким именем уже существует."
	case storage.ClassNotFound:
		return prefix + "\n⚠️ Файл или папка не найдены в хранилище."
	default:
		detail := err.Error()
		// Truncate on a rune boundary; backend errors quote user text.
		if r := []rune(detail); len(r) > 100 {
			detail = string(r[:100])
		}
		return prefix + "\n⚠️ Детали: " + detail
	}
}
