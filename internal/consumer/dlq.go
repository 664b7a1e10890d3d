package consumer

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Headers attached to dead-lettered messages so they can be re-driven later.
const (
	HeaderOriginTopic = "origin_topic"
	HeaderError       = "error"
)

// DLQWriter forwards failed messages to a dead-letter topic, preserving
// the original value and key and recording where the message came from.
type DLQWriter struct {
	writer *kafka.Writer
}

// NewDLQWriter constructs a writer targeting the given dead-letter topic.
func NewDLQWriter(brokers []string, topic string) *DLQWriter {
	return &DLQWriter{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// Publish writes the raw message to the dead-letter topic.
func (w *DLQWriter) Publish(ctx context.Context, msg kafka.Message, reason string) error {
	return w.writer.WriteMessages(ctx, deadLetterMessage(msg, reason))
}

func deadLetterMessage(msg kafka.Message, reason string) kafka.Message {
	headers := append([]kafka.Header(nil), msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderOriginTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderError, Value: []byte(reason)},
	)
	return kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

// Close flushes and closes the underlying writer.
func (w *DLQWriter) Close() error {
	return w.writer.Close()
}

// RedriveMessage builds the message that puts a dead-lettered entry back onto
// its origin topic. The dead-letter markers are stripped and every other header
// is restored, so a re-driven message is indistinguishable from first delivery.
// ok is false when the entry carries no origin topic header.
func RedriveMessage(msg kafka.Message) (out kafka.Message, ok bool) {
	origin := headerValue(msg, HeaderOriginTopic)
	if origin == "" {
		return kafka.Message{}, false
	}

	headers := make([]kafka.Header, 0, len(msg.Headers))
	for _, header := range msg.Headers {
		if header.Key == HeaderOriginTopic || header.Key == HeaderError {
			continue
		}
		headers = append(headers, header)
	}

	return kafka.Message{
		Topic:   origin,
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}, true
}

func headerValue(msg kafka.Message, key string) string {
	for _, header := range msg.Headers {
		if header.Key == key {
			return string(header.Value)
		}
	}
	return ""
}
