package bot

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vostok-rest/backoffice/common"
	"github.com/vostok-rest/backoffice/db/repository"
)

// AdminDirectory lists the chat ids of administrators and product-request
// receivers — the fan-out target sets for Notifiers and for the stop-list
// pinned-message subscriber list.
type AdminDirectory interface {
	BotAdminChatIDs(ctx context.Context) ([]int64, error)
	RequestReceiverChatIDs(ctx context.Context) ([]int64, error)
}

// Notifiers implements the workflow packages' narrow send-side interfaces
// (workflows.AdminNotifier, workflows.ProductRequestNotifier,
// webhook.ChatLister) over one Telegram transport and one AdminDirectory,
// so each workflow doesn't need its own bespoke fan-out type.
// workflows.TransferNotifier is implemented by TransferNotifications below.
type Notifiers struct {
	tg     *Telegram
	admins AdminDirectory
}

// NewNotifiers builds a Notifiers adapter.
func NewNotifiers(tg *Telegram, admins AdminDirectory) *Notifiers {
	return &Notifiers{tg: tg, admins: admins}
}

func approveRejectKeyboard(writeoffID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "wo_approve:"+writeoffID),
			tgbotapi.NewInlineKeyboardButtonData("✏️ Edit", "wo_edit:"+writeoffID),
			tgbotapi.NewInlineKeyboardButtonData("🚫 Reject", "wo_reject:"+writeoffID),
		),
	)
}

// NotifyAdmins fans a write-off's approval keyboard out to every
// administrator, returning each recipient's message id so it can later be
// cleared in place.
func (n *Notifiers) NotifyAdmins(ctx context.Context, wo *repository.PendingWriteoff) (map[int64]int, error) {
	chatIDs, err := n.admins.BotAdminChatIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list administrators: %w", err)
	}

	text := fmt.Sprintf("📋 Write-off pending approval\nStore: %s\nAccount: %s\nReason: %s\nTotal: %s",
		wo.StoreID, wo.AccountID, wo.Reason, wo.TotalAmount.String())
	markup := approveRejectKeyboard(wo.ID)

	messageIDs := make(map[int64]int, len(chatIDs))
	for _, chatID := range chatIDs {
		messageID, err := n.tg.Send(chatID, text, markup)
		if err != nil {
			common.Logger.WithFields(common.ErrorFields(err, wo.ID)).Error("failed to notify admin of pending write-off")
			continue
		}
		messageIDs[chatID] = messageID
	}
	return messageIDs, nil
}

// ClearAdminKeyboards blanks every fanned-out approval message's markup
// once one admin has resolved the write-off — the single-window UX
// invariant spec.md §4.6 requires.
func (n *Notifiers) ClearAdminKeyboards(ctx context.Context, messageIDs map[int64]int) error {
	for chatID, messageID := range messageIDs {
		if err := n.tg.Edit(chatID, messageID, "✔️ Resolved.", nil); err != nil {
			common.Logger.WithFields(common.ErrorFields(err, fmt.Sprintf("%d", chatID))).Error("failed to clear admin keyboard")
		}
	}
	return nil
}

// NotifyAuthor sends a plain status update to the chat id that authored a
// write-off or product request.
func (n *Notifiers) NotifyAuthor(ctx context.Context, authorID, text string) error {
	return n.sendToChatString(authorID, text)
}

// NotifyRequester is NotifyAuthor under the name the invoice workflow's
// ProductRequestNotifier interface uses.
func (n *Notifiers) NotifyRequester(ctx context.Context, requestedBy, text string) error {
	return n.sendToChatString(requestedBy, text)
}

// NotifyReceivers fans a new product request out to every receiver.
func (n *Notifiers) NotifyReceivers(ctx context.Context, req *repository.ProductRequest) error {
	chatIDs, err := n.admins.RequestReceiverChatIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list product-request receivers: %w", err)
	}

	text := fmt.Sprintf("📦 Product request\nStore: %s\nProduct: %s\nQuantity: %s",
		req.StoreID, req.ProductName, req.Quantity.String())
	for _, chatID := range chatIDs {
		if _, err := n.tg.Send(chatID, text, nil); err != nil {
			common.Logger.WithFields(common.ErrorFields(err, req.ID)).Error("failed to notify receiver of product request")
		}
	}
	return nil
}

// NotifyAdminsText sends a plain broadcast to every administrator — the
// nightly negative-consumable transfer's end-of-run summary (through
// TransferNotifications) and the daily sync's min-stock and evening
// stop-list reports.
func (n *Notifiers) NotifyAdminsText(ctx context.Context, summary string) error {
	chatIDs, err := n.admins.BotAdminChatIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list administrators: %w", err)
	}
	for _, chatID := range chatIDs {
		if _, err := n.tg.Send(chatID, summary, nil); err != nil {
			common.Logger.WithFields(common.ErrorFields(err, "transfer-summary")).Error("failed to notify administrator")
		}
	}
	return nil
}

// TransferNotifications adapts Notifiers to workflows.TransferNotifier's
// single-method NotifyAdmins(ctx, summary) shape — kept separate from
// Notifiers itself since the write-off workflow's AdminNotifier already
// uses the name NotifyAdmins for a different signature.
type TransferNotifications struct {
	n *Notifiers
}

// NewTransferNotifications wraps n for the nightly transfer workflow.
func NewTransferNotifications(n *Notifiers) *TransferNotifications {
	return &TransferNotifications{n: n}
}

func (t *TransferNotifications) NotifyAdmins(ctx context.Context, summary string) error {
	return t.n.NotifyAdminsText(ctx, summary)
}

// ChatsFor implements webhook.ChatLister: the stop-list pinned message is
// subscribed by every administrator.
func (n *Notifiers) ChatsFor(ctx context.Context, class string) ([]int64, error) {
	switch class {
	case "stoplist":
		return n.admins.BotAdminChatIDs(ctx)
	default:
		return nil, nil
	}
}

func (n *Notifiers) sendToChatString(chatIDStr, text string) error {
	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", chatIDStr, err)
	}
	_, err = n.tg.Send(chatID, text, nil)
	return err
}
