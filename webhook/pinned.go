package webhook

import (
	"context"
	"fmt"

	"github.com/vostok-rest/backoffice/common"
	"github.com/vostok-rest/backoffice/db/repository"
)

// ChatLister resolves which chats should receive a given pinned-message
// class (every admin for stop-list, the owning department's chats for
// stock alerts).
type ChatLister interface {
	ChatsFor(ctx context.Context, class string) ([]int64, error)
}

// PinnedNotifier implements Subscriber: it renders the current stop-list
// snapshot, hashes it, and edits every subscribed chat's pinned message
// only when the hash differs from last time — per spec.md §4.7.5's
// "update only if hash differs (avoid flicker and rate-limit abuse)".
type PinnedNotifier struct {
	stoplist repository.StoplistRepository
	pinned   repository.PinnedMessageRepository
	chats    ChatLister
	sender   PinnedSender
	lastHash map[int64]string
}

// PinnedSender is the send/edit surface PinnedNotifier needs — kept
// untyped on markup so it can be satisfied by bot.Telegram without this
// package importing tgbotapi.
type PinnedSender interface {
	Send(chatID int64, text string, markup interface{}) (int, error)
	EditText(chatID int64, messageID int, text string) error
}

// NewPinnedNotifier builds a PinnedNotifier for the "stoplist" class.
func NewPinnedNotifier(stoplist repository.StoplistRepository, pinned repository.PinnedMessageRepository, chats ChatLister, sender PinnedSender) *PinnedNotifier {
	return &PinnedNotifier{stoplist: stoplist, pinned: pinned, chats: chats, sender: sender, lastHash: make(map[int64]string)}
}

// OnStoplistFlush renders the post-flush stop-list snapshot and pushes it
// to every subscribed chat whose cached content hash has changed.
func (n *PinnedNotifier) OnStoplistFlush(ctx context.Context, entered, left []repository.StoplistPair) error {
	current, err := n.stoplist.Active(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload active stoplist for notification: %w", err)
	}

	hash := ContentHash(current)
	text := renderStoplist(current)

	chatIDs, err := n.chats.ChatsFor(ctx, "stoplist")
	if err != nil {
		return fmt.Errorf("failed to list stoplist-subscribed chats: %w", err)
	}

	for _, chatID := range chatIDs {
		if n.lastHash[chatID] == hash {
			continue
		}

		msg, err := n.pinned.Get(ctx, "stoplist", chatID)
		if err != nil || msg == nil {
			messageID, sendErr := n.sender.Send(chatID, text, nil)
			if sendErr != nil {
				common.Logger.WithFields(common.ErrorFields(sendErr, "stoplist-notify")).Error("failed to send stoplist message")
				continue
			}
			if setErr := n.pinned.Set(ctx, "stoplist", chatID, int64(messageID)); setErr != nil {
				common.Logger.WithFields(common.ErrorFields(setErr, "stoplist-notify")).Error("failed to record pinned stoplist message id")
			}
		} else if editErr := n.sender.EditText(chatID, int(msg.MessageID), text); editErr != nil {
			common.Logger.WithFields(common.ErrorFields(editErr, "stoplist-notify")).Error("failed to edit pinned stoplist message")
		}

		n.lastHash[chatID] = hash
	}

	return nil
}

func renderStoplist(pairs []repository.StoplistPair) string {
	if len(pairs) == 0 {
		return "✅ Stop-list is empty."
	}
	text := "🚫 Stop-list:\n"
	for _, p := range pairs {
		text += fmt.Sprintf("• %s @ %s\n", p.ProductID, p.StoreID)
	}
	return text
}
