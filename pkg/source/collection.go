package source

import (
	"context"
	"io"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	shrederrors "github.com/ajitpratap0/shredder/pkg/errors"
)

// CollectionConfig names a MongoDB collection and how to read it.
type CollectionConfig struct {
	URI        string
	Database   string
	Collection string
	// Filter selects documents; nil matches all
	Filter bson.D
	// Projection limits the fields the server returns; nil returns whole documents
	Projection     bson.D
	BatchSize      int32
	ConnectTimeout time.Duration
}

// CollectionSource reads documents through a find cursor.
type CollectionSource struct {
	client *mongo.Client
	cursor *mongo.Cursor
	name   string
	logger *zap.Logger
}

var _ Source = (*CollectionSource)(nil)

// NewCollectionSource connects to MongoDB and opens a cursor over the
// collection.
func NewCollectionSource(ctx context.Context, cfg CollectionConfig, logger *zap.Logger) (*CollectionSource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	name := cfg.Database + "." + cfg.Collection

	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeConnection, "connect to MongoDB")
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeConnection, "ping MongoDB")
	}

	filter := cfg.Filter
	if filter == nil {
		filter = bson.D{}
	}
	findOpts := options.Find()
	if cfg.Projection != nil {
		findOpts.SetProjection(cfg.Projection)
	}
	if cfg.BatchSize > 0 {
		findOpts.SetBatchSize(cfg.BatchSize)
	}

	cursor, err := client.Database(cfg.Database).Collection(cfg.Collection).Find(ctx, filter, findOpts)
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeConnection, "open cursor").
			WithDetail("collection", name)
	}

	logger = logger.With(zap.String("source", name))
	logger.Info("opened MongoDB cursor", zap.Int32("batch_size", cfg.BatchSize))

	return &CollectionSource{client: client, cursor: cursor, name: name, logger: logger}, nil
}

// Name returns "database.collection".
func (s *CollectionSource) Name() string {
	return s.name
}

// Next returns the cursor's next document.
func (s *CollectionSource) Next(ctx context.Context) (bson.Raw, error) {
	if s.cursor.Next(ctx) {
		return s.cursor.Current, nil
	}
	if err := s.cursor.Err(); err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeConnection, "read cursor").
			WithDetail("collection", s.name)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close closes the cursor and disconnects the client.
func (s *CollectionSource) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.cursor.Close(ctx); err != nil {
		s.logger.Warn("failed to close cursor", zap.Error(err))
	}
	if err := s.client.Disconnect(ctx); err != nil {
		return shrederrors.Wrap(err, shrederrors.ErrorTypeConnection, "disconnect from MongoDB")
	}
	return nil
}

// BuildProjection returns a projection that fetches only the top-level
// fields of the schema. Struct fields are fetched whole. _id is excluded
// unless the schema names it, since the server returns it by default.
func BuildProjection(fields []arrow.Field) bson.D {
	proj := make(bson.D, 0, len(fields)+1)
	hasID := false
	for _, f := range fields {
		if f.Name == "_id" {
			hasID = true
		}
		proj = append(proj, bson.E{Key: f.Name, Value: 1})
	}
	if !hasID {
		proj = append(proj, bson.E{Key: "_id", Value: 0})
	}
	return proj
}

// ParseFilter decodes a query written in relaxed extended JSON. The empty
// string matches every document.
func ParseFilter(s string) (bson.D, error) {
	if s == "" {
		return bson.D{}, nil
	}
	var filter bson.D
	if err := bson.UnmarshalExtJSON([]byte(s), false, &filter); err != nil {
		return nil, shrederrors.Wrap(err, shrederrors.ErrorTypeConfig, "parse input.filter")
	}
	return filter, nil
}
