package bot

import (
	"context"
	"strings"
	"testing"
	"time"

	"vendhub-bot/internal/cart"
	"vendhub-bot/internal/flow"
	"vendhub-bot/internal/model"
	"vendhub-bot/internal/platform"
	"vendhub-bot/internal/repository"
	"vendhub-bot/internal/service"
)

type fixture struct {
	bot   *Bot
	store repository.Store
	rec   *platform.Recorder
	flows *flow.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	rec := platform.NewRecorder()
	carts := cart.NewMemoryStore(time.Minute)
	t.Cleanup(func() { carts.Close() })
	proc := service.NewProcessor(store, service.NewFulfiller(store, rec))
	flows := flow.NewManager()
	b := New(store, carts, rec, proc, flows, Config{
		StartingBalance: 100,
		ConfirmTimeout:  time.Minute,
		BrowseTimeout:   time.Minute,
	})
	return &fixture{bot: b, store: store, rec: rec, flows: flows}
}

func (f *fixture) seedItem(t *testing.T, in model.InsertItem) *model.Item {
	t.Helper()
	item, err := f.store.CreateItem(context.Background(), in)
	if err != nil {
		t.Fatalf("failed to seed item: %v", err)
	}
	return item
}

func intent(kind IntentKind) Intent {
	return Intent{
		Kind:      kind,
		GuildID:   "g1",
		ChannelID: "c1",
		MessageID: "m1",
		UserID:    "u1",
		Username:  "alice",
	}
}

func TestDirectBuyAnnouncesAndDebits(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, model.InsertItem{Name: "sword", Price: 60, Stock: 2, IsActive: true})

	in := intent(IntentBuy)
	in.ItemID = item.ID
	if err := f.bot.HandleIntent(context.Background(), in); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	announces := f.rec.CallsTo("Announce")
	if len(announces) != 1 || !strings.Contains(announces[0].Text, "alice") {
		t.Fatalf("expected public sale announcement, got %+v", announces)
	}
	receipts := f.rec.CallsTo("ReplyPrivate")
	if len(receipts) != 1 || !strings.Contains(receipts[0].Text, "New balance: 40") {
		t.Fatalf("expected receipt with new balance, got %+v", receipts)
	}

	account, err := f.store.GetAccountByPlatformID(context.Background(), "u1")
	if err != nil {
		t.Fatalf("account not created: %v", err)
	}
	if account.Balance != 40 {
		t.Fatalf("expected balance 40, got %d", account.Balance)
	}
}

func TestBuyRefusalNamesCurrentValues(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, model.InsertItem{Name: "crown", Price: 500, Stock: 2, IsActive: true})

	in := intent(IntentBuy)
	in.ItemID = item.ID
	if err := f.bot.HandleIntent(context.Background(), in); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	notices := f.rec.CallsTo("ReplyPrivate")
	if len(notices) != 1 || !strings.Contains(notices[0].Text, "you have 100") {
		t.Fatalf("expected balance refusal, got %+v", notices)
	}
	if len(f.rec.CallsTo("Announce")) != 0 {
		t.Fatal("refused purchase was announced")
	}
}

func TestSelectionFlowConfirmDeliversOption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, model.InsertItem{
		Name: "license", Price: 10, Stock: 5, IsActive: true,
		ContentOptions: []string{"KEY-A", "KEY-B"},
	})

	buy := intent(IntentBuy)
	buy.ItemID = item.ID
	if err := f.bot.HandleIntent(ctx, buy); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if _, ok := f.flows.Get("m1"); !ok {
		t.Fatal("no flow bound for selection item")
	}

	sel := intent(IntentSelectContent)
	sel.ContentIndex = 0
	if err := f.bot.HandleIntent(ctx, sel); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	if err := f.bot.HandleIntent(ctx, intent(IntentConfirm)); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	dms := f.rec.CallsTo("DirectMessage")
	if len(dms) != 1 || dms[0].Text != "KEY-A" {
		t.Fatalf("expected KEY-A delivered by DM, got %+v", dms)
	}
	finals := f.rec.CallsTo("DisableControls")
	if len(finals) != 1 || !strings.Contains(finals[0].Text, "You bought 1 x license") {
		t.Fatalf("expected finalized message, got %+v", finals)
	}
	if _, ok := f.flows.Get("m1"); ok {
		t.Fatal("flow still bound after commit")
	}

	got, _ := f.store.GetItem(ctx, item.ID)
	if len(got.ContentOptions) != 1 || got.ContentOptions[0] != "KEY-B" {
		t.Fatalf("expected pool [KEY-B], got %v", got.ContentOptions)
	}
}

func TestVariantChoiceNamedInReceiptAndAnnouncement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, model.InsertItem{
		Name: "shirt", Price: 30, Stock: 5, IsActive: true, Options: []string{"red", "blue"},
	})

	buy := intent(IntentBuy)
	buy.ItemID = item.ID
	if err := f.bot.HandleIntent(ctx, buy); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	sel := intent(IntentSelectOption)
	sel.OptionIndex = 1
	if err := f.bot.HandleIntent(ctx, sel); err != nil {
		t.Fatalf("select failed: %v", err)
	}

	if err := f.bot.HandleIntent(ctx, intent(IntentConfirm)); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	finals := f.rec.CallsTo("DisableControls")
	if len(finals) != 1 || !strings.Contains(finals[0].Text, "shirt (blue)") {
		t.Fatalf("expected chosen variant on receipt, got %+v", finals)
	}
	announces := f.rec.CallsTo("Announce")
	if len(announces) != 1 || !strings.Contains(announces[0].Text, "shirt (blue)") {
		t.Fatalf("expected chosen variant in announcement, got %+v", announces)
	}
}

func TestConfirmFromNonOwnerLeavesFlowLive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, model.InsertItem{
		Name: "license", Price: 10, Stock: 5, IsActive: true,
		ContentOptions: []string{"KEY-A"},
	})

	buy := intent(IntentBuy)
	buy.ItemID = item.ID
	f.bot.HandleIntent(ctx, buy)

	sel := intent(IntentSelectContent)
	sel.ContentIndex = 0
	f.bot.HandleIntent(ctx, sel)

	intruder := intent(IntentConfirm)
	intruder.UserID = "u2"
	intruder.Username = "bob"
	if err := f.bot.HandleIntent(ctx, intruder); err != nil {
		t.Fatalf("handle failed: %v", err)
	}

	notices := f.rec.CallsTo("ReplyPrivate")
	last := notices[len(notices)-1]
	if last.UserID != "u2" || !strings.Contains(last.Text, "Only the person") {
		t.Fatalf("expected ownership notice to u2, got %+v", last)
	}
	if _, ok := f.flows.Get("m1"); !ok {
		t.Fatal("intruder killed the flow")
	}
	if len(f.rec.CallsTo("DirectMessage")) != 0 {
		t.Fatal("intruder triggered delivery")
	}

	// The owner can still complete the purchase.
	if err := f.bot.HandleIntent(ctx, intent(IntentConfirm)); err != nil {
		t.Fatalf("owner confirm failed: %v", err)
	}
	if len(f.rec.CallsTo("DirectMessage")) != 1 {
		t.Fatal("owner confirm did not deliver")
	}
}

func TestCancelDisablesControls(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, model.InsertItem{
		Name: "license", Price: 10, Stock: 5, IsActive: true, Options: []string{"red", "blue"},
	})

	buy := intent(IntentBuy)
	buy.ItemID = item.ID
	f.bot.HandleIntent(ctx, buy)

	if err := f.bot.HandleIntent(ctx, intent(IntentCancel)); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	finals := f.rec.CallsTo("DisableControls")
	if len(finals) != 1 || !strings.Contains(finals[0].Text, "cancelled") {
		t.Fatalf("expected cancelled message, got %+v", finals)
	}
	if _, ok := f.flows.Get("m1"); ok {
		t.Fatal("flow still bound after cancel")
	}

	// No money moved.
	account, _ := f.store.GetAccountByPlatformID(ctx, "u1")
	if account.Balance != 100 {
		t.Fatalf("cancel moved money: %d", account.Balance)
	}
}

func TestCartFlowThroughIntents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, model.InsertItem{Name: "potion", Price: 20, Stock: 10, IsActive: true})

	add := intent(IntentCartAdd)
	add.ItemID = item.ID
	add.Quantity = 3
	if err := f.bot.HandleIntent(ctx, add); err != nil {
		t.Fatalf("cart add failed: %v", err)
	}

	show := intent(IntentCartShow)
	if err := f.bot.HandleIntent(ctx, show); err != nil {
		t.Fatalf("cart show failed: %v", err)
	}
	notices := f.rec.CallsTo("ReplyPrivate")
	if !strings.Contains(notices[len(notices)-1].Text, "Total: 60") {
		t.Fatalf("expected cart total 60, got %+v", notices[len(notices)-1])
	}

	if err := f.bot.HandleIntent(ctx, intent(IntentCheckout)); err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	account, _ := f.store.GetAccountByPlatformID(ctx, "u1")
	if account.Balance != 40 {
		t.Fatalf("expected balance 40 after checkout, got %d", account.Balance)
	}
	txs, _ := f.store.ListTransactions(ctx)
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
}

func TestUnknownMenuGetsNotice(t *testing.T) {
	f := newFixture(t)

	if err := f.bot.HandleIntent(context.Background(), intent(IntentConfirm)); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	notices := f.rec.CallsTo("ReplyPrivate")
	if len(notices) != 1 || !strings.Contains(notices[0].Text, "no longer active") {
		t.Fatalf("expected stale-menu notice, got %+v", notices)
	}
}
