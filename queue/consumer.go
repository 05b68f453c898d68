package queue

import (
	"context"

	"github.com/anyproto/any-sync/app"

	"github.com/gatherly/social-push-server/push"
)

const ConsumerCName = "push.queue.consumer"

// NewConsumer bridges queued dispatch requests into the orchestrator.
func NewConsumer() Consumer {
	return new(consumer)
}

type Consumer interface {
	app.ComponentRunnable
}

type consumer struct {
	queue Queue
	push  push.Push
}

func (c *consumer) Init(a *app.App) (err error) {
	c.queue = a.MustComponent(CName).(Queue)
	c.push = a.MustComponent(push.CName).(push.Push)
	return
}

func (c *consumer) Name() (name string) {
	return ConsumerCName
}

func (c *consumer) Run(ctx context.Context) (err error) {
	// TODO: move the num runners to the config
	for range 10 {
		if err = c.queue.Consume(ctx, c.handle); err != nil {
			return
		}
	}
	return
}

// handle always acks: DispatchSocial folds every failure into the audit
// trail, so there is nothing a redelivery could fix that a retry inside
// the dispatcher has not already tried.
func (c *consumer) handle(msg Message) error {
	c.push.DispatchSocial(context.Background(), msg.UserId, msg.Type, msg.Payload)
	return nil
}

func (c *consumer) Close(ctx context.Context) (err error) {
	return nil
}
