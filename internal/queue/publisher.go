package queue

import (
    "context"
    "encoding/json"
    "fmt"
    "time"

    "github.com/google/uuid"
    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/cinema-booking-engine/internal/model"
    "github.com/iliyamo/cinema-booking-engine/internal/service/ports"
)

// ShowDirectory resolves the names printed in a confirmation.
type ShowDirectory interface {
    GetHall(ctx context.Context, hallID uint64) (*model.Hall, error)
    GetMovie(ctx context.Context, movieID uint64) (*model.Movie, error)
}

// Publisher sends BookingConfirmedEvent messages to the booking queue.
// Every publish dials its own connection so a broker outage never
// leaves a broken channel behind.
type Publisher struct {
    url     string
    shows   ShowDirectory
    logger  *logrus.Logger
    timeout time.Duration

    send func(ctx context.Context, msg amqp.Publishing) error
}

var _ ports.BookingNotifier = (*Publisher)(nil)

// NewPublisher returns a publisher for the broker at url.
func NewPublisher(url string, shows ShowDirectory, logger *logrus.Logger) *Publisher {
    p := &Publisher{url: url, shows: shows, logger: logger, timeout: 5 * time.Second}
    p.send = p.publish
    return p
}

// NotifyBookingConfirmed publishes the confirmation for b.  Errors are
// logged and returned; the booking itself is already committed.
func (p *Publisher) NotifyBookingConfirmed(ctx context.Context, b *model.Booking, show *model.Show) error {
    ctx, cancel := context.WithTimeout(ctx, p.timeout)
    defer cancel()

    hall, err := p.shows.GetHall(ctx, show.HallID)
    if err != nil {
        return fmt.Errorf("get hall: %w", err)
    }
    movie, err := p.shows.GetMovie(ctx, show.MovieID)
    if err != nil {
        return fmt.Errorf("get movie: %w", err)
    }

    msgID := uuid.NewString()
    body, err := json.Marshal(NewBookingConfirmedEvent(msgID, b, show, hall, movie))
    if err != nil {
        return fmt.Errorf("marshal event: %w", err)
    }

    msg := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent, // store on disk
        MessageId:    msgID,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := p.send(ctx, msg); err != nil {
        p.logger.WithFields(logrus.Fields{
            "booking_id": b.ID,
            "message_id": msgID,
            "error":      err.Error(),
        }).Error("rabbitmq: publish failed")
        return err
    }
    p.logger.WithFields(logrus.Fields{
        "booking_id": b.ID,
        "message_id": msgID,
    }).Debug("booking confirmation published")
    return nil
}

func (p *Publisher) publish(ctx context.Context, msg amqp.Publishing) error {
    conn, err := amqp.DialConfig(p.url, amqp.Config{
        Locale: "en_US",
        Dial:   amqp.DefaultDial(p.timeout),
    })
    if err != nil {
        return fmt.Errorf("dial: %w", err)
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    // Idempotent.  Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(
        BookingQueue, // name
        true,         // durable
        false,        // autoDelete
        false,        // exclusive
        false,        // noWait
        nil,          // args
    ); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }

    return ch.PublishWithContext(ctx,
        "",           // default exchange
        BookingQueue, // routing key = queue name
        false,        // mandatory
        false,        // immediate
        msg,
    )
}
