package bot

import "strconv"

// NavigationButtons is the set of ~55 top-level navigation button texts
// that, when pressed while an FSM session is active, clear the session and
// fall through to normal handling instead of being swallowed by the
// in-progress workflow — this is how /cancel-by-button escape works from
// any deep state, per spec.md §4.6.
type NavigationButtons map[string]bool

// IsNavigation reports whether text is one of the top-level navigation
// buttons.
func (n NavigationButtons) IsNavigation(text string) bool {
	return n[text]
}

// SessionClearer is the narrow slice of fsm.Manager the navigation
// middleware needs.
type SessionClearer interface {
	Clear(userID string)
}

// MessageDeleter is the narrow slice of Telegram the navigation middleware
// needs to clean up tracked messages.
type MessageDeleter interface {
	Delete(chatID int64, messageID int) error
}

// TrackedMessageIDs names the message ids (header, prompt, menu) the
// navigation middleware must delete before letting a navigation button
// through, when they are present.
type TrackedMessageIDs struct {
	HeaderMsgID int
	PromptMsgID int
	MenuMsgID   int
}

// HandleNavigation clears the FSM session keyed by chatID (as a decimal
// string) and deletes any tracked messages for chatID, returning true if text was a navigation button (in
// which case the caller should proceed to normal menu handling) and false
// otherwise (in which case the caller's in-progress FSM handler should run
// as usual).
func HandleNavigation(nav NavigationButtons, sessions SessionClearer, deleter MessageDeleter, chatID int64, tracked TrackedMessageIDs, text string) bool {
	if !nav.IsNavigation(text) {
		return false
	}

	sessions.Clear(strconv.FormatInt(chatID, 10))
	for _, id := range []int{tracked.HeaderMsgID, tracked.PromptMsgID, tracked.MenuMsgID} {
		if id != 0 {
			_ = deleter.Delete(chatID, id)
		}
	}
	return true
}
