package bot

import (
	"fmt"
	"strings"

	"vendhub-bot/internal/model"
	"vendhub-bot/internal/service"
)

// renderShop formats the catalog for the shop message. Inactive items
// are hidden; sold-out items are shown so buyers know they exist.
func renderShop(items []model.Item, currency string) string {
	var sb strings.Builder
	sb.WriteString("**Shop**\n")
	shown := 0
	for _, item := range items {
		if !item.IsActive {
			continue
		}
		shown++
		stock := fmt.Sprintf("%d left", item.Stock)
		if item.InfiniteStock {
			stock = "unlimited"
		} else if item.Stock <= 0 {
			stock = "sold out"
		}
		fmt.Fprintf(&sb, "`#%d` **%s** - %d %s (%s)\n", item.ID, item.Name, item.Price, currency, stock)
		if item.Description != "" {
			fmt.Fprintf(&sb, "    %s\n", item.Description)
		}
	}
	if shown == 0 {
		return "The shop is empty right now."
	}
	return sb.String()
}

// renderChoices prompts for the item's variant or content choice.
func renderChoices(item *model.Item) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** - pick one:\n", item.Name)
	if len(item.Options) > 0 {
		for i, opt := range item.Options {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, opt)
		}
		return sb.String()
	}
	for i := range item.ContentOptions {
		fmt.Fprintf(&sb, "%d. Option %d\n", i+1, i+1)
	}
	return sb.String()
}

// receiptItemName returns the item name with the chosen variant, if any.
func receiptItemName(r *service.Receipt) string {
	if r.Option != "" {
		return fmt.Sprintf("%s (%s)", r.Item.Name, r.Option)
	}
	return r.Item.Name
}

func renderReceipt(r *service.Receipt, currency string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You bought %d x %s for %d %s. New balance: %d %s.",
		r.Transaction.Quantity, receiptItemName(r), r.Transaction.TotalPrice, currency, r.NewBalance, currency)
	if notice := r.Notice(); notice != "" {
		sb.WriteString("\n")
		sb.WriteString(notice)
	}
	return sb.String()
}

func renderCart(view *service.CartView, currency string) string {
	if len(view.Lines) == 0 {
		return "Your cart is empty."
	}
	var sb strings.Builder
	sb.WriteString("**Your cart**\n")
	for _, line := range view.Lines {
		fmt.Fprintf(&sb, "%d x %s - %d %s\n", line.Quantity, line.Name, line.UnitPrice*line.Quantity, currency)
	}
	fmt.Fprintf(&sb, "Total: %d %s", view.Total, currency)
	return sb.String()
}

func renderCheckout(summary *service.CheckoutSummary, currency string) string {
	if len(summary.Receipts) == 0 {
		return "Nothing was purchased."
	}
	var sb strings.Builder
	sb.WriteString("**Checkout complete**\n")
	for _, r := range summary.Receipts {
		fmt.Fprintf(&sb, "%d x %s - %d %s\n", r.Transaction.Quantity, receiptItemName(r), r.Transaction.TotalPrice, currency)
		if notice := r.Notice(); notice != "" {
			fmt.Fprintf(&sb, "    %s\n", notice)
		}
	}
	fmt.Fprintf(&sb, "Total: %d %s. New balance: %d %s.", summary.Total, currency, summary.NewBalance, currency)
	return sb.String()
}
