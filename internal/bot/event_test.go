package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 10,
			From:      &tgbotapi.User{ID: 42, FirstName: "Ivan", LastName: "Petrov"},
			Chat:      &tgbotapi.Chat{ID: 42},
			Text:      text,
		},
	}
}

func TestClassifyCommand(t *testing.T) {
	u := textUpdate("/new now please")
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 4}}

	ev, ok := Classify(u)
	if !ok {
		t.Fatal("Classify() ok = false")
	}
	if ev.Kind != KindCommand {
		t.Fatalf("Kind = %v, want command", ev.Kind)
	}
	if ev.Command != "new" {
		t.Errorf("Command = %q, want %q", ev.Command, "new")
	}
	if ev.Text != "now please" {
		t.Errorf("Text = %q, want the command arguments", ev.Text)
	}
	if ev.Author != "Ivan Petrov" {
		t.Errorf("Author = %q, want %q", ev.Author, "Ivan Petrov")
	}
}

func TestClassifyText(t *testing.T) {
	ev, ok := Classify(textUpdate("обычная заметка"))
	if !ok {
		t.Fatal("Classify() ok = false")
	}
	if ev.Kind != KindText {
		t.Errorf("Kind = %v, want text", ev.Kind)
	}
	if ev.Text != "обычная заметка" {
		t.Errorf("Text = %q", ev.Text)
	}
	if ev.UserID != 42 || ev.ChatID != 42 {
		t.Errorf("UserID/ChatID = %d/%d, want 42/42", ev.UserID, ev.ChatID)
	}
}

func TestClassifyPhotoPicksLargest(t *testing.T) {
	u := textUpdate("")
	u.Message.Photo = []tgbotapi.PhotoSize{
		{FileID: "small", FileUniqueID: "s", FileSize: 100},
		{FileID: "large", FileUniqueID: "l", FileSize: 9000},
	}

	ev, ok := Classify(u)
	if !ok {
		t.Fatal("Classify() ok = false")
	}
	if ev.Kind != KindPhoto {
		t.Fatalf("Kind = %v, want photo", ev.Kind)
	}
	if ev.FileID != "large" {
		t.Errorf("FileID = %q, want the largest resolution", ev.FileID)
	}
	if ev.FileName != "photo_l.jpg" {
		t.Errorf("FileName = %q, want %q", ev.FileName, "photo_l.jpg")
	}
	if ev.FileSize != 9000 {
		t.Errorf("FileSize = %d, want 9000", ev.FileSize)
	}
}

func TestClassifyVoice(t *testing.T) {
	u := textUpdate("")
	u.Message.Voice = &tgbotapi.Voice{FileID: "v1", FileUniqueID: "uq", FileSize: 512}

	ev, ok := Classify(u)
	if !ok {
		t.Fatal("Classify() ok = false")
	}
	if ev.Kind != KindVoice {
		t.Fatalf("Kind = %v, want voice", ev.Kind)
	}
	if ev.FileName != "voice_uq.ogg" {
		t.Errorf("FileName = %q, want %q", ev.FileName, "voice_uq.ogg")
	}
}

func TestClassifyCallback(t *testing.T) {
	u := tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb1",
			From: &tgbotapi.User{ID: 42, UserName: "field42"},
			Message: &tgbotapi.Message{
				MessageID: 77,
				Chat:      &tgbotapi.Chat{ID: 42},
			},
			Data: "idle_extend:abc",
		},
	}

	ev, ok := Classify(u)
	if !ok {
		t.Fatal("Classify() ok = false")
	}
	if ev.Kind != KindCallback {
		t.Fatalf("Kind = %v, want callback", ev.Kind)
	}
	if ev.CallbackID != "cb1" || ev.CallbackData != "idle_extend:abc" {
		t.Errorf("callback fields = %q/%q", ev.CallbackID, ev.CallbackData)
	}
	if ev.MessageID != 77 {
		t.Errorf("MessageID = %d, want 77", ev.MessageID)
	}
}

func TestClassifySkipsUnhandledUpdates(t *testing.T) {
	if _, ok := Classify(tgbotapi.Update{}); ok {
		t.Error("empty update classified as handled")
	}
	edited := tgbotapi.Update{EditedMessage: &tgbotapi.Message{Text: "later edit"}}
	if _, ok := Classify(edited); ok {
		t.Error("edited message classified as handled")
	}
}

func TestParseIndex(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"3", 3, true},
		{" 12 ", 12, true},
		{"3. Складские визиты", 3, true},
		{"1. 📁 alpha", 1, true},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseIndex(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseIndex(%q) = (%d, %v), want (%d, %v)", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestBaseName(t *testing.T) {
	if got := baseName("/visits/alpha"); got != "alpha" {
		t.Errorf("baseName() = %q, want %q", got, "alpha")
	}
	if got := baseName("/alpha"); got != "alpha" {
		t.Errorf("baseName() = %q, want %q", got, "alpha")
	}
}
