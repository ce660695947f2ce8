package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// AuditFile is the file, under the configured log directory, that the
// consumer appends one line per event to.
const AuditFile = "workflow.log"

// Consumer drains the workflow queue into an append-only audit log.
type Consumer struct {
	URL    string
	Queue  string
	LogDir string
	Log    zerolog.Logger
}

// Run connects, consumes and reconnects with exponential backoff (capped
// at 30s) until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("workflow consumer: dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn().Err(err).Msg("workflow consumer: loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.Log.Warn().Err(err).Msg("workflow consumer: set qos failed")
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	c.Log.Info().Str("queue", c.Queue).Msg("workflow consumer: listening")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.Log.Error().Err(err).Str("message_id", d.MessageId).Msg("workflow consumer: handle failed")
				// reject without requeue to avoid a poison-message loop
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and appends its audit line.
func (c *Consumer) Handle(body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(c.LogDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.LogDir, err)
	}
	f, err := os.OpenFile(filepath.Join(c.LogDir, AuditFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatLine(ev)); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// FormatLine renders an event as one human-readable, newline-terminated
// line.
func FormatLine(ev Event) string {
	parts := []string{
		fmt.Sprintf("[%s] %s", ev.OccurredAt.UTC().Format(time.RFC3339), ev.Type),
		"id=" + ev.ID,
	}
	if ev.ActorID != 0 {
		parts = append(parts, fmt.Sprintf("actor_id=%d", ev.ActorID))
	}
	if ev.PatientID != 0 {
		parts = append(parts, fmt.Sprintf("patient_id=%d", ev.PatientID))
	}
	if ev.PatientCode != "" {
		parts = append(parts, "patient="+ev.PatientCode)
	}
	if ev.BillID != 0 {
		parts = append(parts, fmt.Sprintf("bill_id=%d", ev.BillID))
	}
	if ev.InvoiceNumber != "" {
		parts = append(parts, "invoice="+ev.InvoiceNumber)
	}
	if ev.FinalAmount != "" {
		parts = append(parts, "final="+ev.FinalAmount)
	}
	if len(ev.PatientTestIDs) > 0 {
		ids := make([]string, len(ev.PatientTestIDs))
		for i, id := range ev.PatientTestIDs {
			ids[i] = fmt.Sprint(id)
		}
		parts = append(parts, "patient_tests=["+strings.Join(ids, ",")+"]")
	}
	if ev.ResultCount > 0 {
		parts = append(parts, fmt.Sprintf("results=%d", ev.ResultCount))
	}
	return strings.Join(parts, " | ") + "\n"
}
