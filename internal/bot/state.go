package bot

import (
	"github.com/Ballindaboy/ITD-TG2YD-MEET/internal/navigator"
)

// stage is the user's position in a multi-step dialogue. stageNone means no
// dialogue: plain messages feed the active meeting.
type stage int

const (
	stageNone stage = iota

	// Folder selection for a new meeting.
	stageChooseRoot
	stageNavigate
	stageNewFolderName

	// Post-media prompts.
	stageAwaitCaption
	stageAwaitTranscript
	stageAwaitTranscriptEdit

	// Admin dialogues.
	stageAdminAddFolder
	stageAdminRemoveFolder
	stageAdminRestrictFolder
	stageAdminAddUser
	stageAdminRemoveUser
)

// convState is one user's transient dialogue state. It dies with the process
// (the navigation cursor is explicitly not persisted).
type convState struct {
	stage  stage
	roots  []string
	cursor *navigator.Cursor

	// restrictPath is the folder whose permitted-user list is being
	// edited; restrictSel tracks the toggled user IDs.
	restrictPath string
	restrictSel  map[int64]bool
}

func (b *Bot) state(userID int64) *convState {
	b.mu.Lock()
	defer b.mu.Unlock()
	st, ok := b.states[userID]
	if !ok {
		st = &convState{}
		b.states[userID] = st
	}
	return st
}

// resetState drops the user's dialogue back to the top level.
func (b *Bot) resetState(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, userID)
}
