package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/warden/waitlist"
)

// changeModel is the subset of a change event Warden reads.
type changeModel struct {
	OperationType string `bson:"operationType"`
	FullDocument  bson.M `bson:"fullDocument"`
}

// Watch opens a change stream over inserts into the waitlist collection.
func (s *Store) Watch(ctx context.Context, resumeAfter []byte) (waitlist.ChangeStream, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "operationType", Value: waitlist.OperationInsert}}}},
	}

	opts := options.ChangeStream()
	if len(resumeAfter) > 0 {
		opts.SetResumeAfter(bson.Raw(resumeAfter))
	}

	cs, err := s.col.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, fmt.Errorf("warden/mongo: watch: %w", err)
	}
	return &changeStream{cs: cs}, nil
}

type changeStream struct {
	cs    *mongo.ChangeStream
	event waitlist.ChangeEvent
	err   error
}

func (c *changeStream) Next(ctx context.Context) bool {
	if !c.cs.Next(ctx) {
		return false
	}

	var m changeModel
	if err := c.cs.Decode(&m); err != nil {
		c.err = fmt.Errorf("warden/mongo: decode change: %w", err)
		return false
	}

	c.event = waitlist.ChangeEvent{
		Operation:   m.OperationType,
		Entry:       waitlist.FromDocument(normalizeDoc(m.FullDocument)),
		ResumeToken: append([]byte(nil), c.cs.ResumeToken()...),
	}
	return true
}

func (c *changeStream) Event() waitlist.ChangeEvent { return c.event }

func (c *changeStream) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.cs.Err()
}

func (c *changeStream) Close(ctx context.Context) error {
	return c.cs.Close(ctx)
}
