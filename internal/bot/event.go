package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Kind discriminates inbound events. Classification happens once, at the
// transport boundary; everything downstream switches on Kind instead of
// probing optional update fields.
type Kind int

const (
	KindOther Kind = iota
	KindCommand
	KindText
	KindPhoto
	KindVideo
	KindVoice
	KindAudio
	KindDocument
	KindVideoNote
	KindCallback
)

func (k Kind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindText:
		return "text"
	case KindPhoto:
		return "photo"
	case KindVideo:
		return "video"
	case KindVoice:
		return "voice"
	case KindAudio:
		return "audio"
	case KindDocument:
		return "document"
	case KindVideoNote:
		return "video_note"
	case KindCallback:
		return "callback"
	default:
		return "other"
	}
}

// Event is the classified form of one inbound update.
type Event struct {
	Kind      Kind
	UserID    int64
	ChatID    int64
	MessageID int

	// Author is the sender's display name, used to attribute log entries.
	Author    string
	Username  string
	FirstName string
	LastName  string

	Command string
	Text    string

	FileID   string
	FileName string
	FileSize int64

	CallbackID   string
	CallbackData string
}

// Classify produces an Event from a raw update. ok is false for updates the
// bot does not handle (edited messages, channel posts and so on).
func Classify(u tgbotapi.Update) (Event, bool) {
	if u.CallbackQuery != nil {
		cq := u.CallbackQuery
		ev := Event{
			Kind:         KindCallback,
			UserID:       cq.From.ID,
			Author:       displayName(cq.From),
			Username:     cq.From.UserName,
			FirstName:    cq.From.FirstName,
			LastName:     cq.From.LastName,
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
		}
		if cq.Message != nil {
			ev.ChatID = cq.Message.Chat.ID
			ev.MessageID = cq.Message.MessageID
		}
		return ev, true
	}

	msg := u.Message
	if msg == nil || msg.From == nil {
		return Event{}, false
	}
	ev := Event{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Author:    displayName(msg.From),
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		LastName:  msg.From.LastName,
		Text:      msg.Text,
	}

	switch {
	case msg.IsCommand():
		ev.Kind = KindCommand
		ev.Command = msg.Command()
		ev.Text = msg.CommandArguments()
	case msg.Voice != nil:
		ev.Kind = KindVoice
		ev.FileID = msg.Voice.FileID
		ev.FileName = fmt.Sprintf("voice_%s.ogg", msg.Voice.FileUniqueID)
		ev.FileSize = int64(msg.Voice.FileSize)
	case msg.Audio != nil:
		ev.Kind = KindAudio
		ev.FileID = msg.Audio.FileID
		ev.FileName = msg.Audio.FileName
		if ev.FileName == "" {
			ev.FileName = fmt.Sprintf("audio_%s.mp3", msg.Audio.FileUniqueID)
		}
		ev.FileSize = int64(msg.Audio.FileSize)
	case len(msg.Photo) > 0:
		// Telegram sends several resolutions; the last is the largest.
		photo := msg.Photo[len(msg.Photo)-1]
		ev.Kind = KindPhoto
		ev.FileID = photo.FileID
		ev.FileName = fmt.Sprintf("photo_%s.jpg", photo.FileUniqueID)
		ev.FileSize = int64(photo.FileSize)
	case msg.Video != nil:
		ev.Kind = KindVideo
		ev.FileID = msg.Video.FileID
		ev.FileName = msg.Video.FileName
		if ev.FileName == "" {
			ev.FileName = fmt.Sprintf("video_%s.mp4", msg.Video.FileUniqueID)
		}
		ev.FileSize = int64(msg.Video.FileSize)
	case msg.VideoNote != nil:
		ev.Kind = KindVideoNote
		ev.FileID = msg.VideoNote.FileID
		ev.FileName = fmt.Sprintf("video_note_%s.mp4", msg.VideoNote.FileUniqueID)
		ev.FileSize = int64(msg.VideoNote.FileSize)
	case msg.Document != nil:
		ev.Kind = KindDocument
		ev.FileID = msg.Document.FileID
		ev.FileName = msg.Document.FileName
		if ev.FileName == "" {
			ev.FileName = fmt.Sprintf("doc_%s", msg.Document.FileUniqueID)
		}
		ev.FileSize = int64(msg.Document.FileSize)
	case msg.Text != "":
		ev.Kind = KindText
	default:
		ev.Kind = KindOther
	}
	return ev, true
}

func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}
