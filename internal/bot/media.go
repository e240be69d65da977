package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/storage"
)

// largeFileBytes is the size above which upload status messages mention that
// the transfer may take a while.
const largeFileBytes = 5 << 20

// handleMedia is the ingest pipeline: download from Telegram, classify,
// transcribe voice, upload under the meeting's media prefix, log, and prompt
// for an optional caption.
func (b *Bot) handleMedia(ctx context.Context, ev Event) {
	if b.engine.Active(ev.UserID) == nil {
		b.sendWithKeyboard(ev.ChatID, "❌ Нет активной встречи.", newMeetingKeyboard())
		return
	}

	status := b.send(ev.ChatID, "🔄 Анализирую полученный файл...")
	b.log.Info("inbound media", "user", ev.UserID, "kind", ev.Kind.String(), "name", ev.FileName, "size", ev.FileSize)

	switch ev.Kind {
	case KindVoice, KindAudio:
		b.handleVoice(ctx, ev, status.MessageID)
	default:
		b.handleUpload(ctx, ev, status.MessageID)
	}
}

func (b *Bot) handleUpload(ctx context.Context, ev Event, statusID int) {
	sess := b.engine.Active(ev.UserID)
	if sess == nil {
		b.edit(ev.ChatID, statusID, "❌ Встреча уже завершена.")
		return
	}

	b.edit(ev.ChatID, statusID, fmt.Sprintf("📥 Скачиваю %s...", kindNameRu(ev.Kind)))
	tmp, size, err := b.downloadToTemp(ctx, ev.FileID, path.Ext(ev.FileName))
	if err != nil {
		b.edit(ev.ChatID, statusID, storageErrorText("❌ Не удалось скачать файл из Telegram.", err))
		return
	}
	defer os.Remove(tmp)

	sizeMB := float64(size) / (1 << 20)
	progress := fmt.Sprintf("☁️ Загружаю %s (%.1f МБ) в хранилище...", kindNameRu(ev.Kind), sizeMB)
	if size > largeFileBytes {
		progress += "\n⏳ Файл крупный, это может занять несколько минут."
	}
	b.edit(ev.ChatID, statusID, progress)

	ext := strings.TrimPrefix(path.Ext(ev.FileName), ".")
	if ext == "" {
		ext = "bin"
	}
	finalPath, err := b.gw.UploadFile(ctx, tmp, sess.MediaPath(ext), false)
	if err != nil {
		cls := storage.Classify(err)
		if size > largeFileBytes && (cls == storage.ClassTimeout || cls == storage.ClassTransient) {
			b.edit(ev.ChatID, statusID,
				"❌ Не удалось загрузить файл.\n📦 Возможно, файл слишком большой или сеть нестабильна. Попробуйте отправить файл меньшего размера.")
			return
		}
		b.edit(ev.ChatID, statusID, storageErrorText("❌ Не удалось загрузить файл в хранилище.", err))
		return
	}

	if err := b.engine.RecordMedia(ctx, ev.UserID, finalPath, ev.Kind.String()); err != nil {
		b.edit(ev.ChatID, statusID, storageErrorText("⚠️ Файл сохранен, но не удалось добавить запись в отчёт.", err))
		return
	}

	_, storedName := storage.SplitPath(finalPath)
	b.edit(ev.ChatID, statusID, fmt.Sprintf(
		"✅ Файл сохранен как\n%s\n\nХотите добавить подпись? Отправьте текст подписи или продолжайте встречу.",
		storedName))
	b.state(ev.UserID).stage = stageAwaitCaption
}

func (b *Bot) handleVoice(ctx context.Context, ev Event, statusID int) {
	tmp, size, err := b.downloadToTemp(ctx, ev.FileID, ".ogg")
	if err != nil {
		b.edit(ev.ChatID, statusID, storageErrorText("❌ Не удалось скачать голосовое сообщение.", err))
		return
	}
	defer os.Remove(tmp)

	b.edit(ev.ChatID, statusID, fmt.Sprintf(
		"🔉 Получено голосовое сообщение (%.1f МБ). Распознаю речь...", float64(size)/(1<<20)))

	text, err := b.tr.Transcribe(ctx, tmp)
	if err != nil {
		b.log.Warn("transcription failed", "user", ev.UserID, "err", err)
		text = ""
	}

	st := b.state(ev.UserID)
	if text == "" {
		st.stage = stageAwaitTranscript
		b.edit(ev.ChatID, statusID,
			"⚠️ Не удалось автоматически распознать текст.\nНапишите расшифровку голосового сообщения, и я добавлю её в отчёт:")
		return
	}

	if err := b.engine.Append(ctx, ev.UserID, "Расшифровка голосового сообщения: "+text, ev.Author); err != nil {
		b.edit(ev.ChatID, statusID, storageErrorText("❌ Не удалось добавить расшифровку в отчёт.", err))
		return
	}
	st.stage = stageAwaitTranscriptEdit
	b.edit(ev.ChatID, statusID, fmt.Sprintf(
		"✅ Голосовое сообщение расшифровано.\n\n📝 Автоматическая расшифровка:\n%s\n\nЕсли расшифровка неточная, пришлите исправленный текст, и я добавлю поправку в отчёт.", text))
}

// handleTranscriptText consumes the next text message as a manual transcript
// or a correction to the automatic one.
func (b *Bot) handleTranscriptText(ctx context.Context, ev Event, st *convState) {
	var line string
	switch st.stage {
	case stageAwaitTranscript:
		line = "Расшифровка голосового сообщения (вручную): " + ev.Text
	case stageAwaitTranscriptEdit:
		line = "Исправленная расшифровка: " + ev.Text
	}
	st.stage = stageNone

	status := b.send(ev.ChatID, "🔄 Добавляю расшифровку в отчёт...")
	if err := b.engine.Append(ctx, ev.UserID, line, ev.Author); err != nil {
		b.edit(ev.ChatID, status.MessageID, storageErrorText("❌ Не удалось добавить расшифровку в отчёт.", err))
		return
	}
	b.edit(ev.ChatID, status.MessageID, "✅ Расшифровка добавлена в отчёт.")
}

func (b *Bot) handleCaption(ctx context.Context, ev Event, st *convState) {
	st.stage = stageNone
	status := b.send(ev.ChatID, "🔄 Добавляю подпись к файлу в отчёт...")
	if err := b.engine.Append(ctx, ev.UserID, "Подпись к файлу: "+ev.Text, ev.Author); err != nil {
		b.edit(ev.ChatID, status.MessageID, storageErrorText("❌ Не удалось добавить подпись.", err))
		return
	}
	b.edit(ev.ChatID, status.MessageID, "✅ Подпись добавлена в отчёт.")
}

// downloadToTemp fetches a Telegram file into a temporary local file and
// returns its path and size. The caller removes the file.
func (b *Bot) downloadToTemp(ctx context.Context, fileID, suffix string) (string, int64, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", 0, fmt.Errorf("resolve telegram file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("download telegram file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("download telegram file: status %d", resp.StatusCode)
	}

	f, err := os.CreateTemp("", "meetbot_*"+suffix)
	if err != nil {
		return "", 0, err
	}
	size, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("save telegram file: %w", err)
	}
	return f.Name(), size, nil
}

func kindNameRu(k Kind) string {
	switch k {
	case KindPhoto:
		return "фотографию"
	case KindVideo, KindVideoNote:
		return "видео"
	case KindVoice, KindAudio:
		return "аудио"
	case KindDocument:
		return "документ"
	default:
		return "файл"
	}
}
