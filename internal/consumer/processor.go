package consumer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"
)

// Reader exposes the minimal kafka.Reader interface needed by the processor.
type Reader interface {
	FetchMessage(context.Context) (kafka.Message, error)
	CommitMessages(context.Context, ...kafka.Message) error
	Close() error
}

// Handler receives decoded events from Kafka.
type Handler interface {
	Handle(context.Context, Event) error
}

// DeadLetterer forwards messages that cannot be decoded or handled to a
// dead-letter topic.
type DeadLetterer interface {
	Publish(ctx context.Context, msg kafka.Message, reason string) error
}

// Option configures optional behaviour for the Processor.
type Option func(*Processor)

// WithLogger overrides the logger used to report errors.
func WithLogger(logger *log.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithDeadLetterer enables dead-lettering of failed messages. Without it the
// processor stops at the first failure so nothing is committed past it.
func WithDeadLetterer(dlq DeadLetterer) Option {
	return func(p *Processor) {
		p.dlq = dlq
	}
}

// Processor pulls messages from Kafka, decodes the bus envelope, and dispatches
// to a Handler. A failed message is dead-lettered and committed so the stream
// keeps moving; skipping it without a commit is not an option, since committing
// any later offset on the partition would advance the group past it for good.
type Processor struct {
	reader  Reader
	handler Handler
	dlq     DeadLetterer
	logger  *log.Logger
}

// NewProcessor constructs a Processor with the provided reader and handler.
func NewProcessor(reader Reader, handler Handler, opts ...Option) *Processor {
	p := &Processor{
		reader:  reader,
		handler: handler,
		logger:  log.New(log.Writer(), "[consumer] ", log.LstdFlags|log.Lshortfile),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run starts a blocking loop that processes Kafka messages until the context is
// cancelled. Offsets are committed only for messages that were fully handled or
// dead-lettered. On a failure that cannot be dead-lettered Run returns without
// committing, so the broker redelivers from the last committed offset.
func (p *Processor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Printf("fetch error: %v", err)
			continue
		}

		event, decodeErr := decodeEnvelope(msg.Value)
		if decodeErr != nil {
			recordDecodeError(msg.Topic)
			if deadLetterErr := p.deadLetter(ctx, msg, decodeErr); deadLetterErr != nil {
				return deadLetterErr
			}
			p.logger.Printf("dead-lettered undecodable message (topic=%s, offset=%d): %v", msg.Topic, msg.Offset, decodeErr)
			continue
		}

		if handleErr := p.handler.Handle(ctx, event); handleErr != nil {
			p.logger.Printf("handler error (event_type=%s, event_id=%s): %v", event.Type, event.ID, handleErr)
			recordHandlerError(msg.Topic, event.Type)
			if deadLetterErr := p.deadLetter(ctx, msg, handleErr); deadLetterErr != nil {
				return deadLetterErr
			}
			continue
		}

		if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
			p.logger.Printf("commit error: %v", commitErr)
		} else {
			recordProcessed(msg.Topic, event.Type, msg.Time)
		}
	}
}

// deadLetter forwards a failed message to the DLQ and commits its offset. It
// returns an error when the message could not be parked, in which case the
// offset stays uncommitted and the caller must stop consuming the partition.
func (p *Processor) deadLetter(ctx context.Context, msg kafka.Message, cause error) error {
	if p.dlq == nil {
		return fmt.Errorf("no dead-letter writer for failed message (topic=%s, offset=%d): %w", msg.Topic, msg.Offset, cause)
	}
	if dlqErr := p.dlq.Publish(ctx, msg, cause.Error()); dlqErr != nil {
		return fmt.Errorf("dead-letter publish failed (topic=%s, offset=%d): %w", msg.Topic, msg.Offset, dlqErr)
	}
	if commitErr := p.reader.CommitMessages(ctx, msg); commitErr != nil {
		p.logger.Printf("commit error after dead-letter: %v", commitErr)
	}
	return nil
}
