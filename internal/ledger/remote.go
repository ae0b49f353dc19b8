package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"edu-crm/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	remotePongWait  = 45 * time.Second
	remoteReadLimit = 1 << 16
)

// RemoteSubscriber follows ledger entries through the API's websocket stream
// (GET /v1/calls/:call_sid/stream). It is what a softphone outside the API
// process uses to observe calls.
type RemoteSubscriber struct {
	baseURL string
	token   func() string
	dialer  *websocket.Dialer
}

// NewRemoteSubscriber targets an API base URL such as https://crm.example.com.
// token returns the bearer access token to present; it may be nil.
func NewRemoteSubscriber(baseURL string, token func() string) *RemoteSubscriber {
	return &RemoteSubscriber{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (r *RemoteSubscriber) streamURL(callSid string) (string, error) {
	u, err := url.Parse(r.baseURL + "/v1/calls/" + url.PathEscape(callSid) + "/stream")
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func (r *RemoteSubscriber) Subscribe(ctx context.Context, callSid string) (Subscription, error) {
	if callSid == "" {
		return nil, ErrInvalidKey
	}
	target, err := r.streamURL(callSid)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if r.token != nil {
		if tok := r.token(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	conn, resp, err := r.dialer.DialContext(ctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ledger stream dial: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("ledger stream dial: %w", err)
	}

	sub := &remoteSub{conn: conn, ch: make(chan CallRecord, subscriptionBuffer)}
	go sub.readLoop(logger.From(ctx).With("call_sid", callSid))
	return sub, nil
}

type remoteSub struct {
	conn *websocket.Conn
	ch   chan CallRecord
	once sync.Once
}

func (s *remoteSub) readLoop(l *slog.Logger) {
	defer close(s.ch)
	s.conn.SetReadLimit(remoteReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(remotePongWait))
	s.conn.SetPingHandler(func(data string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(remotePongWait))
		return s.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		var rec CallRecord
		if err := s.conn.ReadJSON(&rec); err != nil {
			l.Debug("ledger stream closed", "err", err)
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(remotePongWait))
		offer(s.ch, rec)
	}
}

func (s *remoteSub) Updates() <-chan CallRecord { return s.ch }

func (s *remoteSub) Close() error {
	var err error
	s.once.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}
