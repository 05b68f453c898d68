package mongosink

import (
	"context"

	"github.com/anyproto/any-sync/app"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/gatherly/social-push-server/audit"
	"github.com/gatherly/social-push-server/db"
	"github.com/gatherly/social-push-server/domain"
)

const collName = "notification_audit_log"

// New returns a durable audit sink. It registers under the same component
// name as the in-memory sink; production wiring picks one of the two.
func New() audit.Sink {
	return new(mongoSink)
}

type mongoSink struct {
	coll *mongo.Collection
}

func (s *mongoSink) Init(a *app.App) (err error) {
	s.coll = a.MustComponent(db.CName).(db.Database).Db().Collection(collName)
	return
}

func (s *mongoSink) Name() (name string) {
	return audit.CName
}

func (s *mongoSink) Run(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "timestamp", Value: -1}},
	})
	return err
}

func (s *mongoSink) Record(ctx context.Context, entry domain.AuditEntry) error {
	_, err := s.coll.InsertOne(ctx, entry)
	return err
}

func (s *mongoSink) Query(ctx context.Context, userId string, limit int) (entries []domain.AuditEntry, err error) {
	filter := bson.D{}
	if userId != "" {
		filter = bson.D{{Key: "userId", Value: userId}}
	}
	cur, err := s.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return
	}
	defer func() {
		_ = cur.Close(ctx)
	}()
	err = cur.All(ctx, &entries)
	return
}

func (s *mongoSink) Close(ctx context.Context) (err error) {
	return nil
}
