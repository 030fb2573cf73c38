package repository

import (
	"context"
	"fmt"
	"log"
	"time"

	"vendhub-bot/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBStore implements Store using MongoDB. The balance and stock
// adjustments use guarded UpdateOne filters so the non-negative check
// and the write are one atomic document operation.
type MongoDBStore struct {
	client       *mongo.Client
	db           *mongo.Database
	items        *mongo.Collection
	accounts     *mongo.Collection
	transactions *mongo.Collection
	settings     *mongo.Collection
	counters     *mongo.Collection
}

// NewMongoDBStore creates a new MongoDB-backed store.
func NewMongoDBStore(uri, database string) (*MongoDBStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	s := &MongoDBStore{
		client:       client,
		db:           db,
		items:        db.Collection("items"),
		accounts:     db.Collection("accounts"),
		transactions: db.Collection("transactions"),
		settings:     db.Collection("guild_settings"),
		counters:     db.Collection("counters"),
	}

	for coll, key := range map[*mongo.Collection]string{
		s.accounts: "platform_id",
		s.settings: "guild_id",
	} {
		indexModel := mongo.IndexModel{
			Keys:    bson.D{{Key: key, Value: 1}},
			Options: options.Index().SetUnique(true),
		}
		if _, err := coll.Indexes().CreateOne(ctx, indexModel); err != nil {
			log.Printf("[MongoDB] Warning: failed to create index on %s: %v", key, err)
		}
	}

	log.Printf("[MongoDB] Connected to %s", database)
	return s, nil
}

// nextID atomically increments and returns the sequence for name.
func (s *MongoDBStore) nextID(ctx context.Context, name string) (int64, error) {
	var doc struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id for %s: %w", name, err)
	}
	return doc.Seq, nil
}

type itemDocument struct {
	ID             int64     `bson:"_id"`
	Name           string    `bson:"name"`
	Description    string    `bson:"description"`
	Price          int64     `bson:"price"`
	Stock          int64     `bson:"stock"`
	InfiniteStock  bool      `bson:"infinite_stock"`
	IsActive       bool      `bson:"is_active"`
	RoleID         string    `bson:"role_id"`
	Content        string    `bson:"content"`
	ContentOptions []string  `bson:"content_options"`
	Options        []string  `bson:"options"`
	CreatedAt      time.Time `bson:"created_at"`
}

func (d *itemDocument) toModel() *model.Item {
	return &model.Item{
		ID: d.ID, Name: d.Name, Description: d.Description, Price: d.Price,
		Stock: d.Stock, InfiniteStock: d.InfiniteStock, IsActive: d.IsActive,
		RoleID: d.RoleID, Content: d.Content,
		ContentOptions: d.ContentOptions, Options: d.Options, CreatedAt: d.CreatedAt,
	}
}

type accountDocument struct {
	ID         int64     `bson:"_id"`
	PlatformID string    `bson:"platform_id"`
	Username   string    `bson:"username"`
	Balance    int64     `bson:"balance"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (d *accountDocument) toModel() *model.Account {
	return &model.Account{ID: d.ID, PlatformID: d.PlatformID, Username: d.Username,
		Balance: d.Balance, CreatedAt: d.CreatedAt}
}

// CreateItem adds a new catalog item.
func (s *MongoDBStore) CreateItem(ctx context.Context, in model.InsertItem) (*model.Item, error) {
	id, err := s.nextID(ctx, "items")
	if err != nil {
		return nil, err
	}
	doc := itemDocument{
		ID: id, Name: in.Name, Description: in.Description, Price: in.Price,
		Stock: in.Stock, InfiniteStock: in.InfiniteStock, IsActive: in.IsActive,
		RoleID: in.RoleID, Content: in.Content,
		ContentOptions: in.ContentOptions, Options: in.Options,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.items.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return doc.toModel(), nil
}

// GetItem retrieves a catalog item by id.
func (s *MongoDBStore) GetItem(ctx context.Context, id int64) (*model.Item, error) {
	var doc itemDocument
	err := s.items.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return doc.toModel(), nil
}

// ListItems returns all catalog items ordered by id.
func (s *MongoDBStore) ListItems(ctx context.Context) ([]model.Item, error) {
	cursor, err := s.items.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer cursor.Close(ctx)

	var items []model.Item
	for cursor.Next(ctx) {
		var doc itemDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		items = append(items, *doc.toModel())
	}
	return items, cursor.Err()
}

// UpdateItem applies a partial update.
func (s *MongoDBStore) UpdateItem(ctx context.Context, id int64, upd model.ItemUpdate) (*model.Item, error) {
	set := bson.M{}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Price != nil {
		set["price"] = *upd.Price
	}
	if upd.Stock != nil {
		set["stock"] = *upd.Stock
	}
	if upd.InfiniteStock != nil {
		set["infinite_stock"] = *upd.InfiniteStock
	}
	if upd.IsActive != nil {
		set["is_active"] = *upd.IsActive
	}
	if upd.RoleID != nil {
		set["role_id"] = *upd.RoleID
	}
	if upd.Content != nil {
		set["content"] = *upd.Content
	}
	if upd.ContentOptions != nil {
		set["content_options"] = *upd.ContentOptions
	}
	if upd.Options != nil {
		set["options"] = *upd.Options
	}

	var doc itemDocument
	err := s.items.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return doc.toModel(), nil
}

// DeleteItem removes an item from the catalog.
func (s *MongoDBStore) DeleteItem(ctx context.Context, id int64) error {
	res, err := s.items.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AdjustStock changes stock by delta. The filter guards against going
// negative, so the check and the increment are one atomic operation.
func (s *MongoDBStore) AdjustStock(ctx context.Context, itemID, delta int64) error {
	filter := bson.M{"_id": itemID}
	if delta < 0 {
		filter["stock"] = bson.M{"$gte": -delta}
	}
	res, err := s.items.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"stock": delta}})
	if err != nil {
		return fmt.Errorf("failed to adjust stock: %w", err)
	}
	if res.MatchedCount == 0 {
		count, err := s.items.CountDocuments(ctx, bson.M{"_id": itemID})
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrInsufficientStock
	}
	return nil
}

// ConsumeContentOption removes and returns the payload at index. The
// removal is a compare-and-swap on the whole pool, retried on contention.
func (s *MongoDBStore) ConsumeContentOption(ctx context.Context, itemID int64, index int) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		item, err := s.GetItem(ctx, itemID)
		if err != nil {
			return "", err
		}
		if index < 0 || index >= len(item.ContentOptions) {
			return "", ErrNoContentOption
		}
		payload := item.ContentOptions[index]
		remaining := append(append([]string(nil), item.ContentOptions[:index]...), item.ContentOptions[index+1:]...)

		res, err := s.items.UpdateOne(ctx,
			bson.M{"_id": itemID, "content_options": item.ContentOptions},
			bson.M{"$set": bson.M{"content_options": remaining}})
		if err != nil {
			return "", fmt.Errorf("failed to consume content option: %w", err)
		}
		if res.MatchedCount > 0 {
			return payload, nil
		}
		// Pool changed under us, retry against the fresh document.
	}
	return "", fmt.Errorf("failed to consume content option: too much contention")
}

// CreateAccount adds a new user account.
func (s *MongoDBStore) CreateAccount(ctx context.Context, platformID, username string, balance int64) (*model.Account, error) {
	id, err := s.nextID(ctx, "accounts")
	if err != nil {
		return nil, err
	}
	doc := accountDocument{ID: id, PlatformID: platformID, Username: username,
		Balance: balance, CreatedAt: time.Now().UTC()}
	if _, err := s.accounts.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoDBStore) findAccount(ctx context.Context, filter bson.M) (*model.Account, error) {
	var doc accountDocument
	err := s.accounts.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return doc.toModel(), nil
}

// GetAccount retrieves an account by id.
func (s *MongoDBStore) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return s.findAccount(ctx, bson.M{"_id": id})
}

// GetAccountByPlatformID retrieves an account by its platform user id.
func (s *MongoDBStore) GetAccountByPlatformID(ctx context.Context, platformID string) (*model.Account, error) {
	return s.findAccount(ctx, bson.M{"platform_id": platformID})
}

// ListAccounts returns all accounts ordered by id.
func (s *MongoDBStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	cursor, err := s.accounts.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []model.Account
	for cursor.Next(ctx) {
		var doc accountDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		accounts = append(accounts, *doc.toModel())
	}
	return accounts, cursor.Err()
}

// AdjustBalance changes the balance by delta with a guarded update.
func (s *MongoDBStore) AdjustBalance(ctx context.Context, accountID, delta int64) (*model.Account, error) {
	filter := bson.M{"_id": accountID}
	if delta < 0 {
		filter["balance"] = bson.M{"$gte": -delta}
	}

	var doc accountDocument
	err := s.accounts.FindOneAndUpdate(ctx, filter,
		bson.M{"$inc": bson.M{"balance": delta}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		count, cerr := s.accounts.CountDocuments(ctx, bson.M{"_id": accountID})
		if cerr != nil {
			return nil, cerr
		}
		if count == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrInsufficientBalance
	}
	if err != nil {
		return nil, fmt.Errorf("failed to adjust balance: %w", err)
	}
	return doc.toModel(), nil
}

// SetBalance overwrites an account balance.
func (s *MongoDBStore) SetBalance(ctx context.Context, accountID, balance int64) (*model.Account, error) {
	var doc accountDocument
	err := s.accounts.FindOneAndUpdate(ctx,
		bson.M{"_id": accountID},
		bson.M{"$set": bson.M{"balance": balance}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set balance: %w", err)
	}
	return doc.toModel(), nil
}

// ResetAllBalances sets every account balance to zero.
func (s *MongoDBStore) ResetAllBalances(ctx context.Context) (int64, error) {
	res, err := s.accounts.UpdateMany(ctx, bson.M{}, bson.M{"$set": bson.M{"balance": int64(0)}})
	if err != nil {
		return 0, fmt.Errorf("failed to reset balances: %w", err)
	}
	return res.ModifiedCount, nil
}

type transactionDocument struct {
	ID         int64     `bson:"_id"`
	AccountID  int64     `bson:"account_id"`
	ItemID     int64     `bson:"item_id"`
	Quantity   int64     `bson:"quantity"`
	TotalPrice int64     `bson:"total_price"`
	CreatedAt  time.Time `bson:"created_at"`
}

// AppendTransaction appends a ledger record.
func (s *MongoDBStore) AppendTransaction(ctx context.Context, in model.InsertTransaction) (*model.Transaction, error) {
	id, err := s.nextID(ctx, "transactions")
	if err != nil {
		return nil, err
	}
	doc := transactionDocument{ID: id, AccountID: in.AccountID, ItemID: in.ItemID,
		Quantity: in.Quantity, TotalPrice: in.TotalPrice, CreatedAt: time.Now().UTC()}
	if _, err := s.transactions.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to append transaction: %w", err)
	}
	return &model.Transaction{ID: doc.ID, AccountID: doc.AccountID, ItemID: doc.ItemID,
		Quantity: doc.Quantity, TotalPrice: doc.TotalPrice, CreatedAt: doc.CreatedAt}, nil
}

func (s *MongoDBStore) queryTransactions(ctx context.Context, filter bson.M) ([]model.Transaction, error) {
	cursor, err := s.transactions.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var txs []model.Transaction
	for cursor.Next(ctx) {
		var doc transactionDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		txs = append(txs, model.Transaction{ID: doc.ID, AccountID: doc.AccountID,
			ItemID: doc.ItemID, Quantity: doc.Quantity, TotalPrice: doc.TotalPrice,
			CreatedAt: doc.CreatedAt})
	}
	return txs, cursor.Err()
}

// ListTransactions returns the full ledger in append order.
func (s *MongoDBStore) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, bson.M{})
}

// TransactionsByAccount returns the ledger records for one account.
func (s *MongoDBStore) TransactionsByAccount(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, bson.M{"account_id": accountID})
}

type settingsDocument struct {
	ID           int64  `bson:"_id"`
	GuildID      string `bson:"guild_id"`
	CurrencyName string `bson:"currency_name"`
	Prefix       string `bson:"prefix"`
	IsActive     bool   `bson:"is_active"`
}

// GetGuildSettings retrieves settings for a guild.
func (s *MongoDBStore) GetGuildSettings(ctx context.Context, guildID string) (*model.GuildSettings, error) {
	var doc settingsDocument
	err := s.settings.FindOne(ctx, bson.M{"guild_id": guildID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get guild settings: %w", err)
	}
	return &model.GuildSettings{ID: doc.ID, GuildID: doc.GuildID,
		CurrencyName: doc.CurrencyName, Prefix: doc.Prefix, IsActive: doc.IsActive}, nil
}

// UpsertGuildSettings creates or replaces a guild's settings.
func (s *MongoDBStore) UpsertGuildSettings(ctx context.Context, settings model.GuildSettings) (*model.GuildSettings, error) {
	existing, err := s.GetGuildSettings(ctx, settings.GuildID)
	if err == ErrNotFound {
		id, err := s.nextID(ctx, "guild_settings")
		if err != nil {
			return nil, err
		}
		settings.ID = id
	} else if err != nil {
		return nil, err
	} else {
		settings.ID = existing.ID
	}

	doc := settingsDocument{ID: settings.ID, GuildID: settings.GuildID,
		CurrencyName: settings.CurrencyName, Prefix: settings.Prefix, IsActive: settings.IsActive}
	_, err = s.settings.ReplaceOne(ctx, bson.M{"guild_id": settings.GuildID}, doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert guild settings: %w", err)
	}
	out := settings
	return &out, nil
}

// Close disconnects from MongoDB.
func (s *MongoDBStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// Ensure MongoDBStore implements Store
var _ Store = (*MongoDBStore)(nil)
