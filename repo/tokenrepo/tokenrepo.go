//go:generate mockgen -destination mock_tokenrepo/mock_tokenrepo.go github.com/gatherly/social-push-server/repo/tokenrepo TokenRepo

package tokenrepo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/anyproto/any-sync/app"
	"github.com/anyproto/any-sync/app/logger"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/gatherly/social-push-server/db"
	"github.com/gatherly/social-push-server/domain"
)

const CName = "push.tokenrepo"

const collName = "device_tokens"

var log = logger.NewNamed(CName)

var (
	ErrInvalidInput = errors.New("invalid input")
)

func New() TokenRepo {
	return new(tokenRepo)
}

// TokenRepo is the durable store of device tokens. A token value owns at
// most one row; a user may own many rows (one per device).
type TokenRepo interface {
	Store(ctx context.Context, userId, token string, platform domain.Platform) error
	Remove(ctx context.Context, token string) error
	Deactivate(ctx context.Context, token string) error
	GetActiveTokens(ctx context.Context, userId string) ([]domain.DeviceToken, error)
	SweepExpired(ctx context.Context, retentionDays int) (removed int64, err error)
	Touch(ctx context.Context, token string)
	app.ComponentRunnable
}

type tokenRepo struct {
	coll *mongo.Collection
}

func (t *tokenRepo) Init(a *app.App) (err error) {
	t.coll = a.MustComponent(db.CName).(db.Database).Db().Collection(collName)
	return
}

func (t *tokenRepo) Run(ctx context.Context) error {
	_, err := t.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "active", Value: 1}},
		},
	})
	return err
}

func (t *tokenRepo) Name() (name string) {
	return CName
}

// Store upserts by token value. If the token is already registered to
// another user the row is reassigned to the new owner and reactivated:
// a device that logs into a different account keeps one row.
func (t *tokenRepo) Store(ctx context.Context, userId, token string, platform domain.Platform) (err error) {
	if strings.TrimSpace(userId) == "" || strings.TrimSpace(token) == "" {
		return ErrInvalidInput
	}
	now := time.Now().Unix()
	opts := options.Update().SetUpsert(true)
	_, err = t.coll.UpdateOne(
		ctx,
		bson.D{{Key: "token", Value: token}},
		bson.D{
			{Key: "$set", Value: bson.D{
				{Key: "userId", Value: userId},
				{Key: "platform", Value: platform},
				{Key: "active", Value: true},
				{Key: "updated", Value: now},
			}},
			{Key: "$setOnInsert", Value: bson.D{
				{Key: "_id", Value: uuid.NewString()},
				{Key: "lastUsedAt", Value: now},
				{Key: "created", Value: now},
			}},
		},
		opts,
	)
	return
}

func (t *tokenRepo) Remove(ctx context.Context, token string) (err error) {
	return t.Deactivate(ctx, token)
}

// Deactivate soft-deletes so the row stays around for the audit trail.
// Deactivating an unknown or already inactive token is not an error.
func (t *tokenRepo) Deactivate(ctx context.Context, token string) (err error) {
	_, err = t.coll.UpdateOne(
		ctx,
		bson.D{{Key: "token", Value: token}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "active", Value: false},
			{Key: "updated", Value: time.Now().Unix()},
		}}})
	return
}

func (t *tokenRepo) GetActiveTokens(ctx context.Context, userId string) (tokens []domain.DeviceToken, err error) {
	cur, err := t.coll.Find(ctx,
		bson.D{
			{Key: "userId", Value: userId},
			{Key: "active", Value: true},
		},
		options.Find().SetSort(bson.D{{Key: "lastUsedAt", Value: -1}}),
	)
	if err != nil {
		return
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	err = cur.All(ctx, &tokens)
	return
}

// SweepExpired purges inactive rows not used within the retention window.
func (t *tokenRepo) SweepExpired(ctx context.Context, retentionDays int) (removed int64, err error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Unix()
	res, err := t.coll.DeleteMany(ctx, bson.D{
		{Key: "active", Value: false},
		{Key: "lastUsedAt", Value: bson.D{{Key: "$lt", Value: cutoff}}},
	})
	if err != nil {
		return
	}
	return res.DeletedCount, nil
}

// Touch refreshes lastUsedAt after a delivery. Best effort: the dispatch
// hot path never fails because of it.
func (t *tokenRepo) Touch(ctx context.Context, token string) {
	_, err := t.coll.UpdateOne(
		ctx,
		bson.D{{Key: "token", Value: token}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "lastUsedAt", Value: time.Now().Unix()}}}})
	if err != nil {
		log.Warn("touch failed", zap.String("token", token), zap.Error(err))
	}
}

func (t *tokenRepo) Close(ctx context.Context) (err error) {
	return nil
}
