package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePerms struct {
	allowText, allowCallback bool
}

func (f *fakePerms) AuthorizeText(ctx context.Context, userID, buttonText string) (bool, error) {
	return f.allowText, nil
}

func (f *fakePerms) AuthorizeCallback(ctx context.Context, userID, callbackPrefix string) (bool, error) {
	return f.allowCallback, nil
}

type fakeClearer struct{ cleared []string }

func (f *fakeClearer) Clear(userID string) { f.cleared = append(f.cleared, userID) }

type fakeDeleter struct{ deleted []int }

func (f *fakeDeleter) Delete(chatID int64, messageID int) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

type fakeNotifier struct{ sent []string }

func (f *fakeNotifier) Send(chatID int64, text string, markup interface{}) (int, error) {
	f.sent = append(f.sent, text)
	return 1, nil
}

func TestTextMiddleware_DeniesWithoutPermission(t *testing.T) {
	perms := &fakePerms{allowText: false}
	notifier := &fakeNotifier{}
	called := false
	next := func(ctx context.Context, userID string, chatID int64, text string) error {
		called = true
		return nil
	}

	mw := TextMiddleware(perms, NavigationButtons{}, &fakeClearer{}, &fakeDeleter{}, NewCooldownLedger(), CooldownAdmin, notifier, next)
	require.NoError(t, mw(context.Background(), "user-1", 1, "/admin"))

	assert.False(t, called)
	assert.Len(t, notifier.sent, 1)
}

func TestTextMiddleware_NavigationClearsSessionAndSkipsCooldown(t *testing.T) {
	perms := &fakePerms{allowText: true}
	clearer := &fakeClearer{}
	deleter := &fakeDeleter{}
	notifier := &fakeNotifier{}
	called := false
	next := func(ctx context.Context, userID string, chatID int64, text string) error {
		called = true
		return nil
	}

	nav := NavigationButtons{"🏠 Home": true}
	mw := TextMiddleware(perms, nav, clearer, deleter, NewCooldownLedger(), CooldownNavigation, notifier, next)

	require.NoError(t, mw(context.Background(), "user-1", 1, "🏠 Home"))
	assert.True(t, called)
	assert.Contains(t, clearer.cleared, "1")
}

func TestTextMiddleware_CooldownBlocksRapidRepeat(t *testing.T) {
	perms := &fakePerms{allowText: true}
	notifier := &fakeNotifier{}
	calls := 0
	next := func(ctx context.Context, userID string, chatID int64, text string) error {
		calls++
		return nil
	}

	mw := TextMiddleware(perms, NavigationButtons{}, &fakeClearer{}, &fakeDeleter{}, NewCooldownLedger(), time.Hour, notifier, next)

	require.NoError(t, mw(context.Background(), "user-1", 1, "🔄 Sync"))
	require.NoError(t, mw(context.Background(), "user-1", 1, "🔄 Sync"))

	assert.Equal(t, 1, calls, "second press within the cooldown window must be blocked")
	assert.Len(t, notifier.sent, 1)
}

func TestCooldownLedger_AllowsAfterWindow(t *testing.T) {
	l := NewCooldownLedger()
	assert.True(t, l.Allow("user-1", "search", time.Millisecond))
	time.Sleep(3 * time.Millisecond)
	assert.True(t, l.Allow("user-1", "search", time.Millisecond))
}
