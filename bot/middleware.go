package bot

import (
	"context"
	"time"
)

// PermissionChecker is the narrow slice of permissions.Resolver the
// middleware needs.
type PermissionChecker interface {
	AuthorizeText(ctx context.Context, userID, buttonText string) (bool, error)
	AuthorizeCallback(ctx context.Context, userID, callbackPrefix string) (bool, error)
}

// Notifier sends the short user-facing notices the middleware chain needs
// (permission denial, cooldown notice) without pulling in the full
// Telegram transport type.
type Notifier interface {
	Send(chatID int64, text string, markup interface{}) (int, error)
}

// TextMiddleware wraps a TextHandler with the permission, navigation, and
// cooldown checks spec.md §4.6 requires to run in that order: permission
// first (outer), then navigation, then cooldown, then the handler itself.
func TextMiddleware(perms PermissionChecker, nav NavigationButtons, sessions SessionClearer, deleter MessageDeleter, cooldowns *CooldownLedger, cooldown time.Duration, notifier Notifier, next TextHandler) TextHandler {
	return func(ctx context.Context, userID string, chatID int64, text string) error {
		allowed, err := perms.AuthorizeText(ctx, userID, text)
		if err != nil {
			return err
		}
		if !allowed {
			_, err := notifier.Send(chatID, "🚫 You don't have permission for that.", nil)
			return err
		}

		if HandleNavigation(nav, sessions, deleter, chatID, TrackedMessageIDs{}, text) {
			return next(ctx, userID, chatID, text)
		}

		if !cooldowns.Allow(userID, text, cooldown) {
			_, err := notifier.Send(chatID, "⏳ Please wait a moment before trying again.", nil)
			return err
		}

		return next(ctx, userID, chatID, text)
	}
}

// CallbackMiddleware wraps a CallbackHandler with the permission and
// cooldown checks; navigation does not apply to inline callbacks.
func CallbackMiddleware(perms PermissionChecker, cooldowns *CooldownLedger, cooldown time.Duration, notifier Notifier, callbackPrefix string, next CallbackHandler) CallbackHandler {
	return func(ctx context.Context, userID string, chatID int64, messageID int, data string) error {
		allowed, err := perms.AuthorizeCallback(ctx, userID, callbackPrefix)
		if err != nil {
			return err
		}
		if !allowed {
			_, err := notifier.Send(chatID, "🚫 You don't have permission for that.", nil)
			return err
		}

		if !cooldowns.Allow(userID, callbackPrefix, cooldown) {
			_, err := notifier.Send(chatID, "⏳ Please wait a moment before trying again.", nil)
			return err
		}

		return next(ctx, userID, chatID, messageID, data)
	}
}
