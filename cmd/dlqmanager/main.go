// Command dlqmanager re-drives dead-lettered envelopes back onto their source
// topic. Messages missing an origin header are logged and dropped.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"example.com/activity/internal/config"
	"example.com/activity/internal/consumer"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		GroupID:        cfg.ConsumerGroupID + "-dlqmanager",
		Topic:          cfg.DLQTopic,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers...),
		Balancer: &kafka.LeastBytes{},
	}
	defer writer.Close()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Printf("dlq manager metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("dlq manager shutdown requested")
		cancel()
	}()

	log.Printf("dlq manager started (topic=%s)", cfg.DLQTopic)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			log.Printf("fetch error: %v", err)
			continue
		}

		out, ok := consumer.RedriveMessage(msg)
		if !ok {
			log.Printf("dropping dlq entry without origin topic (offset=%d)", msg.Offset)
			if err := reader.CommitMessages(ctx, msg); err != nil {
				log.Printf("commit error: %v", err)
			}
			continue
		}

		if err := writer.WriteMessages(ctx, out); err != nil {
			log.Printf("re-drive failed (origin=%s, offset=%d): %v", out.Topic, msg.Offset, err)
			continue
		}

		log.Printf("re-drove message to %s (offset=%d)", out.Topic, msg.Offset)
		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Printf("commit error: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}
