package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

type JetStreamConfig struct {
	Stream     string
	Subject    string
	Durable    string
	MaxDeliver int
	AckWait    time.Duration
	// DuplicateWindow bounds how long a DedupID suppresses republishing.
	DuplicateWindow time.Duration
	Backoff         Backoff
	// FetchWait is how long one pull waits for messages before looping.
	FetchWait time.Duration
	// Slots, when set, is taken before each pull so that waiting for
	// capacity never counts as a delivery attempt.
	Slots Slots
	// SlotWait is the pause between Acquire calls while Slots is full.
	SlotWait time.Duration
}

// JetStream is a work queue on a NATS JetStream stream. Publishes carry the
// task's DedupID as Nats-Msg-Id, and each task is delivered to one consumer
// of the durable pull subscription.
type JetStream struct {
	js  nats.JetStreamContext
	cfg JetStreamConfig
	log *slog.Logger
}

func NewJetStream(nc *nats.Conn, cfg JetStreamConfig, log *slog.Logger) (*JetStream, error) {
	if cfg.Stream == "" || cfg.Subject == "" || cfg.Durable == "" {
		return nil, errors.New("queue: stream, subject and durable are required")
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = 8
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 5 * time.Minute
	}
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = 24 * time.Hour
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.FetchWait <= 0 {
		cfg.FetchWait = 5 * time.Second
	}
	if cfg.SlotWait <= 0 {
		cfg.SlotWait = time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	q := &JetStream{js: js, cfg: cfg, log: log.With("component", "queue", "stream", cfg.Stream)}
	if err := q.ensureStream(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *JetStream) ensureStream() error {
	_, err := q.js.StreamInfo(q.cfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info: %w", err)
	}
	_, err = q.js.AddStream(&nats.StreamConfig{
		Name:       q.cfg.Stream,
		Subjects:   []string{q.cfg.Subject},
		Retention:  nats.WorkQueuePolicy,
		Storage:    nats.FileStorage,
		Duplicates: q.cfg.DuplicateWindow,
	})
	if err != nil {
		return fmt.Errorf("add stream: %w", err)
	}
	return nil
}

func (q *JetStream) ensureConsumer() error {
	_, err := q.js.ConsumerInfo(q.cfg.Stream, q.cfg.Durable)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrConsumerNotFound) {
		return fmt.Errorf("consumer info: %w", err)
	}
	_, err = q.js.AddConsumer(q.cfg.Stream, &nats.ConsumerConfig{
		Durable:       q.cfg.Durable,
		AckPolicy:     nats.AckExplicitPolicy,
		AckWait:       q.cfg.AckWait,
		MaxDeliver:    q.cfg.MaxDeliver,
		FilterSubject: q.cfg.Subject,
	})
	if err != nil {
		return fmt.Errorf("add consumer: %w", err)
	}
	return nil
}

func (q *JetStream) Enqueue(ctx context.Context, t Task) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(q.cfg.Subject)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, t.DedupID())

	ack, err := q.js.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("publish task: %w", err)
	}
	if ack.Duplicate {
		q.log.Debug("task already queued", "call_sid", t.CallSid, "dedup_id", t.DedupID())
	}
	return nil
}

// Consume pulls tasks and runs h on up to concurrency of them at once until
// ctx is cancelled. With Slots configured a slot is held from before the pull
// until h returns. In-flight handlers finish before Consume returns.
func (q *JetStream) Consume(ctx context.Context, concurrency int, h Handler) error {
	if concurrency <= 0 {
		concurrency = 1
	}
	if err := q.ensureConsumer(); err != nil {
		return err
	}
	sub, err := q.js.PullSubscribe(q.cfg.Subject, q.cfg.Durable, nats.Bind(q.cfg.Stream, q.cfg.Durable))
	if err != nil {
		return fmt.Errorf("pull subscribe: %w", err)
	}

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case sem <- struct{}{}:
		}
		token, ok := q.takeSlot(ctx)
		if !ok {
			<-sem
			return nil
		}

		fetchCtx, cancel := context.WithTimeout(ctx, q.cfg.FetchWait)
		msgs, err := sub.Fetch(1, nats.Context(fetchCtx))
		cancel()
		if err != nil {
			q.releaseSlot(ctx, token)
			<-sem
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
				continue
			}
			q.log.Warn("fetch failed", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if len(msgs) == 0 {
			q.releaseSlot(ctx, token)
			<-sem
			continue
		}

		msg := msgs[0]
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer q.releaseSlot(ctx, token)
			q.handle(ctx, msg, h)
		}()
	}
}

// takeSlot blocks until Slots grants a slot or ctx ends.
func (q *JetStream) takeSlot(ctx context.Context) (string, bool) {
	if q.cfg.Slots == nil {
		return "", true
	}
	for {
		token, ok, err := q.cfg.Slots.Acquire(ctx)
		if err == nil && ok {
			return token, true
		}
		if err != nil && ctx.Err() == nil {
			q.log.Warn("acquire slot failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(q.cfg.SlotWait):
		}
	}
}

func (q *JetStream) releaseSlot(ctx context.Context, token string) {
	if q.cfg.Slots == nil {
		return
	}
	if err := q.cfg.Slots.Release(context.WithoutCancel(ctx), token); err != nil {
		q.log.Warn("release slot failed", "err", err)
	}
}

func (q *JetStream) handle(ctx context.Context, msg *nats.Msg, h Handler) {
	var t Task
	if err := json.Unmarshal(msg.Data, &t); err != nil {
		q.log.Error("dropping undecodable task", "err", err)
		_ = msg.Term()
		return
	}
	attempt := 1
	if meta, err := msg.Metadata(); err == nil {
		attempt = int(meta.NumDelivered)
	}
	log := q.log.With("call_sid", t.CallSid, "attempt", attempt)

	d := h(ctx, t, attempt)
	var err error
	switch d {
	case Ack:
		err = msg.Ack()
	case Retry:
		if attempt >= q.cfg.MaxDeliver {
			log.Error("task retries exhausted")
			err = msg.Term()
			break
		}
		delay := q.cfg.Backoff.Delay(attempt)
		log.Info("task will be redelivered", "delay", delay)
		err = msg.NakWithDelay(delay)
	default:
		err = msg.Term()
	}
	if err != nil {
		log.Warn("task settlement failed", "disposition", d.String(), "err", err)
	}
}
