// Package bot turns chat interactions into engine operations. The
// gateway process parses slash commands and button presses into
// Intents; the Bot executes them and emits replies through the
// platform boundary.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"vendhub-bot/internal/cart"
	"vendhub-bot/internal/flow"
	"vendhub-bot/internal/model"
	"vendhub-bot/internal/platform"
	"vendhub-bot/internal/repository"
	"vendhub-bot/internal/service"
)

// IntentKind identifies a chat interaction.
type IntentKind string

const (
	IntentShow          IntentKind = "show"
	IntentBuy           IntentKind = "buy"
	IntentBalance       IntentKind = "balance"
	IntentCartAdd       IntentKind = "cart_add"
	IntentCartRemove    IntentKind = "cart_remove"
	IntentCartShow      IntentKind = "cart_show"
	IntentCheckout      IntentKind = "checkout"
	IntentConfirm       IntentKind = "confirm"
	IntentCancel        IntentKind = "cancel"
	IntentSelectItem    IntentKind = "select_item"
	IntentSelectOption  IntentKind = "select_option"
	IntentSelectContent IntentKind = "select_content"
)

// Intent is one parsed chat interaction.
type Intent struct {
	Kind      IntentKind `json:"kind"`
	GuildID   string     `json:"guild_id"`
	ChannelID string     `json:"channel_id"`
	MessageID string     `json:"message_id"`
	UserID    string     `json:"user_id"`
	Username  string     `json:"username"`

	ItemID       int64 `json:"item_id,omitempty"`
	Quantity     int64 `json:"quantity,omitempty"`
	OptionIndex  int   `json:"option_index,omitempty"`
	ContentIndex int   `json:"content_index,omitempty"`
}

// Config holds the bot's tunables.
type Config struct {
	StartingBalance int64
	ConfirmTimeout  time.Duration
	BrowseTimeout   time.Duration
}

// Bot executes intents against the purchase engine.
type Bot struct {
	store repository.Store
	carts cart.Store
	chat  platform.Messenger
	proc  *service.Processor
	flows *flow.Manager
	cfg   Config
}

// New creates a bot.
func New(store repository.Store, carts cart.Store, chat platform.Messenger, proc *service.Processor, flows *flow.Manager, cfg Config) *Bot {
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 60 * time.Second
	}
	if cfg.BrowseTimeout == 0 {
		cfg.BrowseTimeout = 5 * time.Minute
	}
	return &Bot{
		store: store,
		carts: carts,
		chat:  chat,
		proc:  proc,
		flows: flows,
		cfg:   cfg,
	}
}

// HandleIntent dispatches one interaction. Errors returned here are
// infrastructure failures; user-facing refusals are delivered as
// private replies and reported as nil.
func (b *Bot) HandleIntent(ctx context.Context, in Intent) error {
	switch in.Kind {
	case IntentShow:
		return b.handleShow(ctx, in)
	case IntentBuy:
		return b.handleBuy(ctx, in)
	case IntentBalance:
		return b.handleBalance(ctx, in)
	case IntentCartAdd:
		return b.handleCartAdd(ctx, in)
	case IntentCartRemove:
		return b.handleCartRemove(ctx, in)
	case IntentCartShow:
		return b.handleCartShow(ctx, in)
	case IntentCheckout:
		return b.handleCheckout(ctx, in)
	case IntentConfirm:
		return b.handleConfirm(ctx, in)
	case IntentCancel:
		return b.handleCancel(ctx, in)
	case IntentSelectItem:
		return b.handleSelectItem(ctx, in)
	case IntentSelectOption, IntentSelectContent:
		return b.handleSelect(ctx, in)
	default:
		return fmt.Errorf("unknown intent kind %q", in.Kind)
	}
}

func (b *Bot) currency(ctx context.Context, guildID string) string {
	settings, err := b.store.GetGuildSettings(ctx, guildID)
	if err != nil {
		return model.DefaultCurrencyName
	}
	return settings.CurrencyName
}

// handleShow posts the catalog and opens a browse session owned by the
// requesting user.
func (b *Bot) handleShow(ctx context.Context, in Intent) error {
	items, err := b.store.ListItems(ctx)
	if err != nil {
		return err
	}
	currency := b.currency(ctx, in.GuildID)

	if err := b.chat.Reply(ctx, in.ChannelID, in.MessageID, renderShop(items, currency)); err != nil {
		return err
	}

	account, err := b.proc.EnsureAccount(ctx, in.UserID, in.Username, b.cfg.StartingBalance)
	if err != nil {
		return err
	}

	b.bindFlow(in, account, 0, 1, b.cfg.BrowseTimeout)
	return nil
}

// handleBuy performs a direct purchase, or opens a confirmation flow
// when the item requires a choice first.
func (b *Bot) handleBuy(ctx context.Context, in Intent) error {
	if in.Quantity < 1 {
		in.Quantity = 1
	}
	account, err := b.proc.EnsureAccount(ctx, in.UserID, in.Username, b.cfg.StartingBalance)
	if err != nil {
		return err
	}
	item, err := b.store.GetItem(ctx, in.ItemID)
	if err != nil {
		return b.refuse(ctx, in, err, nil, account)
	}

	if err := service.CanPurchase(item, account, in.Quantity); err != nil {
		return b.refuse(ctx, in, err, item, account)
	}

	if item.NeedsSelection() {
		b.bindFlow(in, account, item.ID, in.Quantity, b.cfg.ConfirmTimeout)
		return b.chat.Reply(ctx, in.ChannelID, in.MessageID, renderChoices(item))
	}

	receipt, err := b.proc.Purchase(ctx, service.PurchaseRequest{
		AccountID:    account.ID,
		ItemID:       item.ID,
		Quantity:     in.Quantity,
		OptionIndex:  -1,
		ContentIndex: -1,
		GuildID:      in.GuildID,
	})
	if err != nil {
		return b.refuse(ctx, in, err, item, account)
	}

	b.announceSale(ctx, in, receipt)
	return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, renderReceipt(receipt, b.currency(ctx, in.GuildID)))
}

func (b *Bot) handleBalance(ctx context.Context, in Intent) error {
	account, err := b.proc.EnsureAccount(ctx, in.UserID, in.Username, b.cfg.StartingBalance)
	if err != nil {
		return err
	}
	currency := b.currency(ctx, in.GuildID)
	return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID,
		fmt.Sprintf("You have %d %s.", account.Balance, currency))
}

func (b *Bot) handleCartAdd(ctx context.Context, in Intent) error {
	if in.Quantity < 1 {
		in.Quantity = 1
	}
	item, err := b.store.GetItem(ctx, in.ItemID)
	if err != nil {
		return b.refuse(ctx, in, err, nil, nil)
	}
	if !item.IsActive {
		return b.refuse(ctx, in, service.ErrItemInactive, item, nil)
	}

	c, err := b.carts.Add(ctx, in.UserID, item, in.Quantity)
	if err != nil {
		if errors.Is(err, cart.ErrStockExceeded) {
			return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID,
				fmt.Sprintf("Only %d of %s in stock.", item.Stock, item.Name))
		}
		return err
	}
	return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID,
		fmt.Sprintf("Added %d x %s to your cart (%d lines).", in.Quantity, item.Name, len(c.Lines)))
}

func (b *Bot) handleCartRemove(ctx context.Context, in Intent) error {
	if in.Quantity < 1 {
		in.Quantity = 1
	}
	c, err := b.carts.Remove(ctx, in.UserID, in.ItemID, in.Quantity)
	if err != nil {
		if errors.Is(err, cart.ErrLineNotFound) {
			return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, "That item is not in your cart.")
		}
		return err
	}
	return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID,
		fmt.Sprintf("Removed. Your cart now has %d lines.", len(c.Lines)))
}

func (b *Bot) handleCartShow(ctx context.Context, in Intent) error {
	view, err := b.proc.ViewCart(ctx, b.carts, in.UserID)
	if err != nil {
		return err
	}
	currency := b.currency(ctx, in.GuildID)
	return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, renderCart(view, currency))
}

func (b *Bot) handleCheckout(ctx context.Context, in Intent) error {
	account, err := b.proc.EnsureAccount(ctx, in.UserID, in.Username, b.cfg.StartingBalance)
	if err != nil {
		return err
	}

	summary, err := b.proc.Checkout(ctx, b.carts, account.ID, in.UserID, in.GuildID)
	if err != nil {
		if summary != nil && len(summary.Receipts) > 0 {
			// Some lines committed before the failure; report both.
			currency := b.currency(ctx, in.GuildID)
			msg := renderCheckout(summary, currency) + "\n" + refusalText(err, nil, account, currency)
			return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, msg)
		}
		return b.refuse(ctx, in, err, nil, account)
	}

	for _, receipt := range summary.Receipts {
		b.announceSale(ctx, in, receipt)
	}
	return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID,
		renderCheckout(summary, b.currency(ctx, in.GuildID)))
}

func (b *Bot) handleConfirm(ctx context.Context, in Intent) error {
	f, ok := b.flows.Get(in.MessageID)
	if !ok {
		return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, "This menu is no longer active.")
	}

	err := f.Confirm(ctx, in.UserID)
	switch {
	case err == nil:
	case errors.Is(err, flow.ErrNotOwner):
		return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, "Only the person who opened this menu can use it.")
	case errors.Is(err, flow.ErrAlreadyDone):
		return nil
	case errors.Is(err, flow.ErrFlowExpired), errors.Is(err, flow.ErrFlowFinished):
		return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, "This menu is no longer active.")
	case errors.Is(err, flow.ErrNotConfirming):
		return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, "Pick an option first.")
	default:
		account, _ := b.store.GetAccountByPlatformID(ctx, in.UserID)
		item, _ := b.store.GetItem(ctx, f.Selection().ItemID)
		return b.refuse(ctx, in, err, item, account)
	}

	b.flows.Unbind(in.MessageID)
	return nil
}

func (b *Bot) handleCancel(ctx context.Context, in Intent) error {
	f, ok := b.flows.Get(in.MessageID)
	if !ok {
		return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, "This menu is no longer active.")
	}
	if err := f.Cancel(in.UserID); err != nil {
		return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, "Only the person who opened this menu can use it.")
	}
	b.flows.Unbind(in.MessageID)
	return b.chat.DisableControls(ctx, in.ChannelID, in.MessageID, "Purchase cancelled.")
}

func (b *Bot) handleSelectItem(ctx context.Context, in Intent) error {
	f, ok := b.flows.Get(in.MessageID)
	if !ok {
		return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, "This menu is no longer active.")
	}
	qty := in.Quantity
	if qty < 1 {
		qty = 1
	}
	if err := f.SelectItem(in.UserID, in.ItemID, qty); err != nil {
		return b.flowRefusal(ctx, in, err)
	}

	item, err := b.store.GetItem(ctx, in.ItemID)
	if err != nil {
		return b.refuse(ctx, in, err, nil, nil)
	}
	if item.NeedsSelection() {
		return b.chat.Reply(ctx, in.ChannelID, in.MessageID, renderChoices(item))
	}
	if err := f.Arm(in.UserID); err != nil {
		return b.flowRefusal(ctx, in, err)
	}
	currency := b.currency(ctx, in.GuildID)
	return b.chat.Reply(ctx, in.ChannelID, in.MessageID,
		fmt.Sprintf("Buy %d x %s for %d %s?", qty, item.Name, item.Price*qty, currency))
}

func (b *Bot) handleSelect(ctx context.Context, in Intent) error {
	f, ok := b.flows.Get(in.MessageID)
	if !ok {
		return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, "This menu is no longer active.")
	}

	var err error
	if in.Kind == IntentSelectContent {
		err = f.SelectContent(in.UserID, in.ContentIndex)
	} else {
		err = f.SelectOption(in.UserID, in.OptionIndex)
	}
	if err != nil {
		return b.flowRefusal(ctx, in, err)
	}

	sel := f.Selection()
	item, err := b.store.GetItem(ctx, sel.ItemID)
	if err != nil {
		return b.refuse(ctx, in, err, nil, nil)
	}
	currency := b.currency(ctx, in.GuildID)
	return b.chat.Reply(ctx, in.ChannelID, in.MessageID,
		fmt.Sprintf("Buy %d x %s for %d %s? Press confirm to complete.",
			sel.Quantity, item.Name, item.Price*sel.Quantity, currency))
}

// bindFlow opens a confirmation flow on the interaction's message. The
// commit callback runs the purchase; the receipt is delivered from the
// callback itself so confirm handling stays a single transition.
func (b *Bot) bindFlow(in Intent, account *model.Account, itemID, qty int64, timeout time.Duration) {
	f := flow.New(flow.Config{
		MessageID: in.MessageID,
		ChannelID: in.ChannelID,
		GuildID:   in.GuildID,
		OwnerID:   in.UserID,
		ItemID:    itemID,
		Quantity:  qty,
		Timeout:   timeout,
		Commit: func(ctx context.Context, sel flow.Selection) error {
			receipt, err := b.proc.Purchase(ctx, service.PurchaseRequest{
				AccountID:    account.ID,
				ItemID:       sel.ItemID,
				Quantity:     sel.Quantity,
				OptionIndex:  sel.OptionIndex,
				ContentIndex: sel.ContentIndex,
				GuildID:      in.GuildID,
			})
			if err != nil {
				return err
			}
			b.announceSale(ctx, in, receipt)
			if err := b.chat.DisableControls(ctx, in.ChannelID, in.MessageID,
				renderReceipt(receipt, b.currency(ctx, in.GuildID))); err != nil {
				log.Printf("[Bot] Failed to finalize message %s: %v", in.MessageID, err)
			}
			return nil
		},
		OnExpire: func(f *flow.Flow) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			b.flows.Unbind(f.MessageID)
			if err := b.chat.DisableControls(ctx, f.ChannelID, f.MessageID, "This menu expired."); err != nil {
				log.Printf("[Bot] Failed to expire message %s: %v", f.MessageID, err)
			}
		},
	})
	b.flows.Bind(f)
}

func (b *Bot) announceSale(ctx context.Context, in Intent, receipt *service.Receipt) {
	text := fmt.Sprintf("%s just bought %d x %s!", in.Username, receipt.Transaction.Quantity, receiptItemName(receipt))
	if err := b.chat.Announce(ctx, in.ChannelID, text); err != nil {
		log.Printf("[Bot] Failed to announce sale in %s: %v", in.ChannelID, err)
	}
}

func (b *Bot) flowRefusal(ctx context.Context, in Intent, err error) error {
	switch {
	case errors.Is(err, flow.ErrNotOwner):
		return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, "Only the person who opened this menu can use it.")
	case errors.Is(err, flow.ErrFlowExpired), errors.Is(err, flow.ErrFlowFinished):
		return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, "This menu is no longer active.")
	default:
		return err
	}
}

// refuse turns an engine error into a private notice. Unknown errors
// propagate so the gateway can surface a generic failure.
func (b *Bot) refuse(ctx context.Context, in Intent, err error, item *model.Item, account *model.Account) error {
	currency := b.currency(ctx, in.GuildID)
	text := refusalText(err, item, account, currency)
	if text == "" {
		return err
	}
	return b.chat.ReplyPrivate(ctx, in.ChannelID, in.UserID, text)
}

func refusalText(err error, item *model.Item, account *model.Account, currency string) string {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "That item does not exist."
	case errors.Is(err, service.ErrItemInactive):
		return "That item is not for sale right now."
	case errors.Is(err, service.ErrInvalidQuantity):
		return "Quantity must be at least 1."
	case errors.Is(err, service.ErrEmptyCart):
		return "Your cart is empty."
	case errors.Is(err, repository.ErrInsufficientStock):
		if item != nil {
			return fmt.Sprintf("Not enough stock: only %d of %s left.", item.Stock, item.Name)
		}
		return "Not enough stock left."
	case errors.Is(err, repository.ErrInsufficientBalance):
		if account != nil {
			return fmt.Sprintf("You cannot afford that: you have %d %s.", account.Balance, currency)
		}
		return "You cannot afford that."
	case errors.Is(err, repository.ErrNoContentOption):
		return "That option was just taken by someone else."
	}
	return ""
}
