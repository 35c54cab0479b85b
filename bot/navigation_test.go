package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSessionClearer struct{ cleared []string }

func (f *fakeSessionClearer) Clear(userID string) { f.cleared = append(f.cleared, userID) }

type fakeMessageDeleter struct{ deleted []int }

func (f *fakeMessageDeleter) Delete(chatID int64, messageID int) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func TestHandleNavigation_NonNavigationTextPassesThrough(t *testing.T) {
	nav := NavigationButtons{"🏠 Главное меню": true}
	sessions := &fakeSessionClearer{}
	deleter := &fakeMessageDeleter{}

	handled := HandleNavigation(nav, sessions, deleter, 42, TrackedMessageIDs{}, "some free text")
	assert.False(t, handled)
	assert.Empty(t, sessions.cleared)
}

func TestHandleNavigation_NavigationButtonClearsSessionAndTrackedMessages(t *testing.T) {
	nav := NavigationButtons{"🏠 Главное меню": true}
	sessions := &fakeSessionClearer{}
	deleter := &fakeMessageDeleter{}
	tracked := TrackedMessageIDs{HeaderMsgID: 1, PromptMsgID: 2, MenuMsgID: 0}

	handled := HandleNavigation(nav, sessions, deleter, 42, tracked, "🏠 Главное меню")
	assert.True(t, handled)
	assert.Equal(t, []string{"42"}, sessions.cleared)
	assert.ElementsMatch(t, []int{1, 2}, deleter.deleted)
}

func TestHandleNavigation_SkipsZeroTrackedMessageIDs(t *testing.T) {
	nav := NavigationButtons{"⬅️ Назад": true}
	sessions := &fakeSessionClearer{}
	deleter := &fakeMessageDeleter{}

	HandleNavigation(nav, sessions, deleter, 1, TrackedMessageIDs{}, "⬅️ Назад")
	assert.Empty(t, deleter.deleted)
}
