package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"
)

// AuditLog appends one line per confirmed booking to a file.
type AuditLog struct {
    path string
    mu   sync.Mutex
}

func NewAuditLog(path string) *AuditLog {
    if path == "" {
        path = filepath.Join("logs", "booking.log")
    }
    return &AuditLog{path: path}
}

// Handle decodes a delivery body and appends its audit line.
func (a *AuditLog) Handle(body []byte) error {
    var ev BookingConfirmedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.BookingID == 0 {
        return errors.New("event without booking_id")
    }

    a.mu.Lock()
    defer a.mu.Unlock()

    if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatAuditLine renders ev as a single newline-terminated log line.
func FormatAuditLine(ev BookingConfirmedEvent) string {
    seats := "[]"
    if len(ev.SeatLabels) > 0 {
        seats = fmt.Sprintf("[%s]", strings.Join(ev.SeatLabels, ","))
    }
    return fmt.Sprintf("[%s] Booking confirmed | booking_id=%d | show_id=%d | hall=%q | movie=%q | starts_at=%s | total=%d cents | seats=%s | message_id=%s\n",
        ev.ConfirmedAt, ev.BookingID, ev.ShowID, ev.HallName, ev.MovieName, ev.StartsAt, ev.TotalCents, seats, ev.MessageID)
}

// StartBookingConsumer consumes the booking queue into audit until ctx
// is cancelled, redialing the broker with backoff whenever the
// connection drops.  A message that cannot be handled is rejected
// without requeue so it cannot loop.
func StartBookingConsumer(ctx context.Context, url string, audit *AuditLog, logger *logrus.Logger) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            logger.WithFields(logrus.Fields{
                "error": err.Error(),
                "retry": backoff.String(),
            }).Warn("booking-consumer: failed to dial broker")
            if err := sleep(ctx, backoff); err != nil {
                return err
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        err = consumeLoop(ctx, conn, audit, logger)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        logger.WithField("error", err.Error()).Warn("booking-consumer: consume loop ended, reconnecting")
        if err := sleep(ctx, 2*time.Second); err != nil {
            return err
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, audit *AuditLog, logger *logrus.Logger) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        logger.WithField("error", err.Error()).Warn("booking-consumer: set QoS failed")
    }

    if _, err := ch.QueueDeclare(BookingQueue, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    msgs, err := ch.Consume(BookingQueue, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }
    logger.WithField("queue", BookingQueue).Info("booking-consumer: consuming")

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := audit.Handle(d.Body); err != nil {
                logger.WithFields(logrus.Fields{
                    "message_id": d.MessageId,
                    "error":      err.Error(),
                }).Error("booking-consumer: handle message failed")
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func sleep(ctx context.Context, d time.Duration) error {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-t.C:
        return nil
    }
}
