package service

import (
	"context"
	"fmt"
	"log"

	"vendhub-bot/internal/model"
	"vendhub-bot/internal/platform"
	"vendhub-bot/internal/repository"
)

// Fulfiller delivers the non-financial side of a purchase: the role
// grant and the content payload. Everything here runs after the ledger
// commit; failures are reported as warnings, never as a rollback.
type Fulfiller struct {
	store repository.ItemStore
	chat  platform.Messenger
}

// NewFulfiller creates a fulfillment dispatcher.
func NewFulfiller(store repository.ItemStore, chat platform.Messenger) *Fulfiller {
	return &Fulfiller{store: store, chat: chat}
}

// Fulfill grants the item's role (best effort) and delivers its content
// to the purchaser over a private message. contentIndex selects a
// one-shot payload from the item's content option pool; pass a negative
// index when no option was selected. Returns the delivered payload, if
// any, plus user-facing warnings for each degraded step.
func (f *Fulfiller) Fulfill(ctx context.Context, guildID string, account *model.Account, item *model.Item, contentIndex int) (string, []string) {
	var warnings []string
	var delivered string

	if item.RoleID != "" {
		// The customer already paid; a rejected grant must not fail the sale.
		if err := f.chat.GrantRole(ctx, guildID, account.PlatformID, item.RoleID); err != nil {
			log.Printf("[Fulfiller] Role grant failed for account %d, role %s: %v", account.ID, item.RoleID, err)
			warnings = append(warnings, "role grant failed, contact an admin")
		}
	}

	if item.Content != "" {
		if err := f.chat.DirectMessage(ctx, account.PlatformID, item.Content); err != nil {
			log.Printf("[Fulfiller] Content delivery failed for account %d, item %d: %v", account.ID, item.ID, err)
			warnings = append(warnings, "content delivery failed, contact an admin")
		} else {
			delivered = item.Content
		}
	}

	if contentIndex >= 0 {
		payload, warning := f.deliverContentOption(ctx, account, item.ID, contentIndex)
		if warning != "" {
			warnings = append(warnings, warning)
		}
		if payload != "" {
			delivered = payload
		}
	}

	return delivered, warnings
}

// deliverContentOption sends the selected one-shot payload and removes
// it from the pool. Delivery happens first; if the removal write fails
// afterwards the inconsistency is logged rather than re-delivering the
// same payload to anyone else.
func (f *Fulfiller) deliverContentOption(ctx context.Context, account *model.Account, itemID int64, index int) (string, string) {
	item, err := f.store.GetItem(ctx, itemID)
	if err != nil {
		log.Printf("[Fulfiller] Failed to load item %d for content option: %v", itemID, err)
		return "", "content delivery failed, contact an admin"
	}
	if index >= len(item.ContentOptions) {
		return "", "selected content option is no longer available"
	}
	payload := item.ContentOptions[index]

	if err := f.chat.DirectMessage(ctx, account.PlatformID, payload); err != nil {
		// Not consumed: the purchaser never received it.
		log.Printf("[Fulfiller] Content option delivery failed for account %d, item %d: %v", account.ID, itemID, err)
		return "", "content delivery failed, contact an admin"
	}

	if _, err := f.store.ConsumeContentOption(ctx, itemID, index); err != nil {
		log.Printf("[Fulfiller] INCONSISTENCY: delivered option %d of item %d but failed to remove it from the pool: %v",
			index, itemID, err)
	}
	return payload, ""
}

// fulfillmentNotice renders the degraded-success message shown to the
// purchaser when one or more fulfillment steps failed.
func fulfillmentNotice(warnings []string) string {
	if len(warnings) == 0 {
		return ""
	}
	out := "Purchase completed, but:"
	for _, w := range warnings {
		out += fmt.Sprintf("\n- %s", w)
	}
	return out
}
