package softphone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"edu-crm/internal/ledger"
)

type State int

const (
	StateIdle State = iota
	StateDialing
	StateRingingIncoming
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDialing:
		return "dialing"
	case StateRingingIncoming:
		return "ringing_incoming"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

var (
	ErrClosed       = errors.New("softphone: bridge closed")
	ErrNotStarted   = errors.New("softphone: bridge not started")
	ErrInvalidState = errors.New("softphone: action not valid in current state")
	ErrNoCall       = errors.New("softphone: no active call")
)

// Snapshot is what the UI renders.
type Snapshot struct {
	State    State
	CallSid  string
	Peer     string
	Composed string
	Duration time.Duration
	// Record is the latest ledger state for CallSid.
	Record ledger.CallRecord
	Err    error
}

type Options struct {
	// Tick is the duration counter resolution.
	Tick   time.Duration
	Now    func() time.Time
	Logger *slog.Logger
}

// Bridge owns the softphone call state for one signed-in session. All state
// is confined to the goroutine started by Start; public methods hand work to
// it and wait for the result.
//
// A call moves to Connected on whichever arrives first: the SDK accept event
// or a ledger record marked as an answer. It returns to Idle on local hangup,
// SDK disconnect, or a ledger record marked as ended. Leaving a call always
// disconnects the SDK call and closes its ledger subscription.
//
// SDK events are queued by Post and never block, so an SDK that reports a
// disconnect from inside Call.Disconnect cannot stall the loop.
type Bridge struct {
	device Device
	ledger ledger.Subscriber
	opts   Options
	log    *slog.Logger

	cmds    chan func()
	done    chan struct{}
	updates chan Snapshot
	started bool

	// Events posted by the SDK, drained by the loop in order.
	evMu    sync.Mutex
	pending []Event
	wake    chan struct{}

	// Owned by the loop goroutine.
	ctx         context.Context
	state       State
	call        Call
	callSid     string
	peer        string
	composed    string
	gen         int
	sub         ledger.Subscription
	record      ledger.CallRecord
	connectedAt time.Time
	duration    time.Duration
	ticker      *time.Ticker
	lastErr     error
	closing     bool
}

func NewBridge(device Device, sub ledger.Subscriber, opts Options) *Bridge {
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Bridge{
		device:  device,
		ledger:  sub,
		opts:    opts,
		log:     opts.Logger.With("component", "softphone"),
		cmds:    make(chan func()),
		done:    make(chan struct{}),
		updates: make(chan Snapshot, 16),
		wake:    make(chan struct{}, 1),
	}
}

// Start runs the bridge until ctx is cancelled or Close is called.
func (b *Bridge) Start(ctx context.Context) {
	if b.started {
		return
	}
	b.started = true
	b.ctx = ctx
	go b.loop(ctx)
}

// Close hangs up any active call and stops the bridge.
func (b *Bridge) Close() error {
	if !b.started {
		return nil
	}
	err := b.do(func() error {
		b.teardown()
		return nil
	})
	if errors.Is(err, ErrClosed) {
		return nil
	}
	return err
}

// Updates delivers a snapshot after every change. Slow readers lose
// intermediate snapshots, never the latest.
func (b *Bridge) Updates() <-chan Snapshot { return b.updates }

func (b *Bridge) Snapshot() Snapshot {
	var s Snapshot
	if err := b.do(func() error { s = b.snapshot(); return nil }); err != nil {
		return Snapshot{State: StateIdle, Err: err}
	}
	return s
}

// MakeCall places an outgoing call. Idle → Dialing.
func (b *Bridge) MakeCall(params CallParams) error {
	return b.do(func() error {
		if b.state != StateIdle {
			return ErrInvalidState
		}
		if params.To == "" {
			return errors.New("softphone: destination required")
		}
		call, err := b.device.Connect(b.ctx, params)
		if err != nil {
			b.lastErr = fmt.Errorf("connect: %w", err)
			b.publish()
			return b.lastErr
		}
		b.lastErr = nil
		b.call = call
		b.peer = params.To
		b.composed = ""
		b.state = StateDialing
		if sid, ok := call.SID(); ok {
			b.observe(sid)
		}
		b.publish()
		return nil
	})
}

// Accept answers the ringing incoming call. The bridge moves to Connected
// when the SDK confirms with EventAccepted or the ledger reports the answer.
func (b *Bridge) Accept() error {
	return b.do(func() error {
		if b.state != StateRingingIncoming {
			return ErrInvalidState
		}
		return b.call.Accept()
	})
}

// Reject declines the ringing incoming call. RingingIncoming → Idle.
func (b *Bridge) Reject() error {
	return b.do(func() error {
		if b.state != StateRingingIncoming {
			return ErrInvalidState
		}
		if err := b.call.Reject(); err != nil {
			b.log.Warn("reject failed", "call_sid", b.callSid, "err", err)
		}
		b.call = nil
		b.toIdle()
		return nil
	})
}

// Hangup ends the call from any non-idle state.
func (b *Bridge) Hangup() error {
	return b.do(func() error {
		if b.state == StateIdle {
			return ErrNoCall
		}
		b.toIdle()
		return nil
	})
}

// SendDigit sends DTMF while connected. While dialing it extends the number
// shown as being composed instead.
func (b *Bridge) SendDigit(d string) error {
	return b.do(func() error {
		switch b.state {
		case StateConnected:
			return b.call.SendDigits(d)
		case StateDialing:
			b.composed += d
			b.publish()
			return nil
		default:
			return ErrInvalidState
		}
	})
}

// Post queues an SDK event and returns without waiting for it to be handled.
// It is safe to call from inside Call methods the bridge invokes. Events are
// handled in order, before any command issued after Post returns.
func (b *Bridge) Post(ev Event) error {
	if !b.started {
		return ErrNotStarted
	}
	select {
	case <-b.done:
		return ErrClosed
	default:
	}
	b.evMu.Lock()
	b.pending = append(b.pending, ev)
	b.evMu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

// drainEvents handles queued SDK events, including ones queued while
// handling.
func (b *Bridge) drainEvents() {
	for {
		b.evMu.Lock()
		evs := b.pending
		b.pending = nil
		b.evMu.Unlock()
		if len(evs) == 0 {
			return
		}
		for _, ev := range evs {
			if b.closing {
				return
			}
			b.handle(ev)
		}
	}
}

func (b *Bridge) do(fn func() error) error {
	if !b.started {
		return ErrNotStarted
	}
	errc := make(chan error, 1)
	select {
	case b.cmds <- func() { errc <- fn() }:
	case <-b.done:
		return ErrClosed
	}
	select {
	case err := <-errc:
		return err
	case <-b.done:
		return ErrClosed
	}
}

func (b *Bridge) loop(ctx context.Context) {
	defer close(b.done)
	for {
		var tick <-chan time.Time
		if b.ticker != nil {
			tick = b.ticker.C
		}
		select {
		case <-ctx.Done():
			b.teardown()
			return
		case fn := <-b.cmds:
			b.drainEvents()
			fn()
			b.drainEvents()
			if b.closing {
				return
			}
		case <-b.wake:
			b.drainEvents()
		case <-tick:
			b.duration = b.opts.Now().Sub(b.connectedAt).Truncate(time.Second)
			b.publish()
		}
	}
}

func (b *Bridge) handle(ev Event) {
	switch e := ev.(type) {
	case EventIncoming:
		if b.state != StateIdle {
			// One call at a time.
			if err := e.Call.Reject(); err != nil {
				b.log.Warn("reject busy call failed", "err", err)
			}
			return
		}
		b.call = e.Call
		b.peer = e.From
		if e.CallerName != "" {
			b.peer = e.CallerName
		}
		b.state = StateRingingIncoming
		if sid, ok := e.Call.SID(); ok {
			b.observe(sid)
		}
		b.publish()
	case EventAccepted:
		if !b.current(e.Call) {
			return
		}
		b.connect()
	case EventDisconnected:
		if !b.current(e.Call) {
			return
		}
		b.toIdle()
	case EventSIDResolved:
		if !b.current(e.Call) || e.SID == "" || b.callSid == e.SID {
			return
		}
		b.observe(e.SID)
		b.publish()
	case EventError:
		if !b.current(e.Call) {
			return
		}
		b.lastErr = e.Err
		b.toIdle()
	}
}

func (b *Bridge) current(c Call) bool {
	return b.call != nil && c == b.call
}

// observe (re)keys the ledger subscription to sid. Subscribing runs off the
// loop; a result that arrives after the call changed is discarded.
func (b *Bridge) observe(sid string) {
	b.closeSub()
	b.gen++
	b.callSid = sid
	if b.ledger == nil {
		return
	}
	gen := b.gen
	ctx := b.ctx
	go func() {
		sub, err := b.ledger.Subscribe(ctx, sid)
		delivered := b.send(func() {
			if err != nil {
				b.log.Warn("ledger subscribe failed", "call_sid", sid, "err", err)
				return
			}
			if gen != b.gen {
				_ = sub.Close()
				return
			}
			b.sub = sub
			go b.forward(gen, sub)
		})
		if !delivered && err == nil {
			_ = sub.Close()
		}
	}()
}

func (b *Bridge) forward(gen int, sub ledger.Subscription) {
	for rec := range sub.Updates() {
		b.send(func() { b.onRecord(gen, rec) })
	}
}

// send queues fn on the loop unless the bridge has stopped.
func (b *Bridge) send(fn func()) bool {
	select {
	case b.cmds <- fn:
		return true
	case <-b.done:
		return false
	}
}

func (b *Bridge) onRecord(gen int, rec ledger.CallRecord) {
	if gen != b.gen || b.state == StateIdle {
		return
	}
	b.record = rec
	switch {
	case rec.IsCallEnded:
		b.toIdle()
		return
	case rec.IsAnswerEvent && (b.state == StateDialing || b.state == StateRingingIncoming):
		b.connect()
		return
	}
	b.publish()
}

func (b *Bridge) connect() {
	if b.state == StateConnected || b.state == StateIdle {
		return
	}
	b.state = StateConnected
	b.connectedAt = b.opts.Now()
	b.duration = 0
	b.ticker = time.NewTicker(b.opts.Tick)
	b.publish()
}

// toIdle tears down the call object and the ledger subscription and resets
// the duration counter.
func (b *Bridge) toIdle() {
	if b.call != nil {
		if err := b.call.Disconnect(); err != nil {
			b.log.Debug("disconnect failed", "call_sid", b.callSid, "err", err)
		}
	}
	b.closeSub()
	b.gen++
	if b.ticker != nil {
		b.ticker.Stop()
		b.ticker = nil
	}
	b.state = StateIdle
	b.call = nil
	b.callSid = ""
	b.peer = ""
	b.composed = ""
	b.record = ledger.CallRecord{}
	b.connectedAt = time.Time{}
	b.duration = 0
	b.publish()
}

func (b *Bridge) teardown() {
	if b.state != StateIdle {
		b.toIdle()
	}
	b.closing = true
}

func (b *Bridge) closeSub() {
	if b.sub != nil {
		_ = b.sub.Close()
		b.sub = nil
	}
}

func (b *Bridge) snapshot() Snapshot {
	return Snapshot{
		State:    b.state,
		CallSid:  b.callSid,
		Peer:     b.peer,
		Composed: b.composed,
		Duration: b.duration,
		Record:   b.record,
		Err:      b.lastErr,
	}
}

func (b *Bridge) publish() {
	s := b.snapshot()
	for {
		select {
		case b.updates <- s:
			return
		default:
		}
		select {
		case <-b.updates:
		default:
		}
	}
}
