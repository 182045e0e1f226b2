package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Lixing-Zhang/service-marketplace/internal/models"
	"github.com/Lixing-Zhang/service-marketplace/internal/repository"
)

const (
	vouchersCollection = "vouchers"
	ordersCollection   = "orders"
	paymentsCollection = "payments"
)

// Store implements repository.Store on a mongo database.
type Store struct {
	client   *mongo.Client
	vouchers *VoucherRepository
	orders   *OrderRepository
	payments *PaymentRepository
}

// New wires the repositories on db and ensures the indexes they rely on.
func New(ctx context.Context, client *mongo.Client, db *mongo.Database) (*Store, error) {
	s := &Store{
		client:   client,
		vouchers: &VoucherRepository{Collection: NewCollection[models.Voucher](db.Collection(vouchersCollection))},
		orders:   &OrderRepository{Collection: NewCollection[models.Order](db.Collection(ordersCollection))},
		payments: &PaymentRepository{Collection: NewCollection[models.Payment](db.Collection(paymentsCollection))},
	}
	if err := s.ensureIndexes(ctx, db); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Vouchers() repository.VoucherRepository { return s.vouchers }
func (s *Store) Orders() repository.OrderRepository     { return s.orders }
func (s *Store) Payments() repository.PaymentRepository { return s.payments }

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		vouchersCollection: {
			{
				Keys:    bson.D{{Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true).SetName("uniq_code"),
			},
			{
				Keys:    bson.D{{Key: "isActive", Value: 1}, {Key: "endDate", Value: 1}},
				Options: options.Index().SetName("active_window"),
			},
		},
		ordersCollection: {
			{Keys: bson.D{{Key: "customerId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "assignedMechanicId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "assignedStaffId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "voucherId", Value: 1}}},
		},
		paymentsCollection: {
			{
				Keys: bson.D{{Key: "orderId", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName("uniq_success_per_order").
					SetPartialFilterExpression(bson.M{"status": string(models.PaymentSuccess)}),
			},
			{Keys: bson.D{{Key: "payerId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
	}

	for name, idx := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// hasRedemptionsLeft matches vouchers without a limit or with usageCount < usageLimit.
var hasRedemptionsLeft = bson.A{
	bson.M{"usageLimit": nil},
	bson.M{"$expr": bson.M{"$lt": bson.A{"$usageCount", "$usageLimit"}}},
}

// VoucherRepository stores vouchers in mongo.
type VoucherRepository struct {
	*Collection[models.Voucher]
}

// IncrementUsage performs a conditional $inc on usageCount
func (r *VoucherRepository) IncrementUsage(ctx context.Context, id string, at time.Time) error {
	return r.conditionalUpdate(ctx, id,
		bson.M{"$or": hasRedemptionsLeft},
		bson.M{
			"$inc": bson.M{"usageCount": 1},
			"$set": bson.M{"updatedAt": at},
		},
	)
}

// ListAvailable returns redeemable vouchers, newest first
func (r *VoucherRepository) ListAvailable(ctx context.Context, now time.Time) ([]models.Voucher, error) {
	filter := bson.M{
		"isActive":  true,
		"startDate": bson.M{"$lte": now},
		"endDate":   bson.M{"$gte": now},
		"$or":       hasRedemptionsLeft,
	}
	return r.find(ctx, filter, options.Find().SetSort(newestFirst))
}

// OrderRepository stores orders in mongo.
type OrderRepository struct {
	*Collection[models.Order]
}

// PaymentRepository stores payments in mongo.
type PaymentRepository struct {
	*Collection[models.Payment]
}

// TransitionStatus updates status only if the payment is still in from.
// The partial unique index turns a second SUCCESS for an order into a duplicate key error.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, id string, from, to models.PaymentStatus, at time.Time) error {
	return r.conditionalUpdate(ctx, id,
		bson.M{"status": from},
		bson.M{"$set": bson.M{"status": to, "updatedAt": at}},
	)
}
