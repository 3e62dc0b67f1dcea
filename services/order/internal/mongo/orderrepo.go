package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/froggyflex/hotelma/services/order/internal/order"
)

const openOrderPerTableIndex = "one_open_order_per_table"

type OrderRepo struct {
	collection *mongo.Collection
}

func NewOrderRepo(db *mongo.Database) *OrderRepo {
	return &OrderRepo{
		collection: db.Collection("orders"),
	}
}

// EnsureIndexes creates the partial unique index that allows a single open
// order per table, plus the item lookup index.
func (r *OrderRepo) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "table.id", Value: 1}},
			Options: options.Index().
				SetName(openOrderPerTableIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": order.StatusOpen}),
		},
		{
			Keys:    bson.D{{Key: "items._id", Value: 1}},
			Options: options.Index().SetName("items_id"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("status"),
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("cannot create order indexes: %w", err)
	}
	return nil
}

func (r *OrderRepo) Create(ctx context.Context, o *order.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}

	if _, err := r.collection.InsertOne(ctx, o); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: table %s", order.ErrConflict, o.Table.ID)
		}
		return fmt.Errorf("cannot create order: %w", err)
	}

	return nil
}

func (r *OrderRepo) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *OrderRepo) FindActiveByTable(ctx context.Context, tableID uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, bson.M{"table.id": tableID, "status": order.StatusOpen})
}

func (r *OrderRepo) FindByItemID(ctx context.Context, itemID uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, bson.M{"items._id": itemID})
}

func (r *OrderRepo) ListActive(ctx context.Context) ([]*order.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"status": order.StatusOpen}, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot list active orders: %w", err)
	}
	defer cursor.Close(ctx)

	var result []*order.Order
	if err := cursor.All(ctx, &result); err != nil {
		return nil, fmt.Errorf("cannot decode orders: %w", err)
	}

	return result, nil
}

// Save replaces the document only if its model_version still matches.
func (r *OrderRepo) Save(ctx context.Context, o *order.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}

	expected := o.ModelVersion
	next := *o
	next.ModelVersion = expected + 1

	filter := bson.M{"_id": o.ID, "model_version": expected}
	result, err := r.collection.ReplaceOne(ctx, filter, &next)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: table %s", order.ErrConflict, o.Table.ID)
		}
		return fmt.Errorf("cannot update order: %w", err)
	}

	if result.MatchedCount == 0 {
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": o.ID})
		if err != nil {
			return fmt.Errorf("cannot check order: %w", err)
		}
		if count == 0 {
			return order.ErrNotFound
		}
		return order.ErrVersionConflict
	}

	o.ModelVersion = next.ModelVersion
	return nil
}

func (r *OrderRepo) findOne(ctx context.Context, filter bson.M) (*order.Order, error) {
	var o order.Order
	err := r.collection.FindOne(ctx, filter).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot get order: %w", err)
	}
	return &o, nil
}
