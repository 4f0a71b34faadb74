package hyperliquid

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"hyperliquid-alert-bot/internal/types"
)

const (
	reconnectDelay = 10 * time.Second
	writeTimeout   = 10 * time.Second
	updateBuffer   = 64
)

type subscribeRequest struct {
	Method       string       `json:"method"`
	Subscription subscription `json:"subscription"`
}

type subscription struct {
	Type string `json:"type"`
	Coin string `json:"coin"`
}

type feedMessage struct {
	Channel string `json:"channel"`
	Data    struct {
		Coin string `json:"coin"`
		Ctx  struct {
			MarkPx string `json:"markPx"`
		} `json:"ctx"`
	} `json:"data"`
}

// Feed streams live mark price updates over the Hyperliquid websocket.
// A dropped connection is redialed with a fixed delay and every active
// subscription replayed, so callers only ever subscribe once per token.
type Feed struct {
	wsURL   string
	updates chan types.PriceUpdate
	done    chan struct{}

	mutex      sync.Mutex
	conn       *websocket.Conn
	subscribed map[string]bool
	closed     bool
}

func NewFeed(wsURL string) *Feed {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &Feed{
		wsURL:      wsURL,
		updates:    make(chan types.PriceUpdate, updateBuffer),
		done:       make(chan struct{}),
		subscribed: make(map[string]bool),
	}
}

// Dial establishes the websocket connection and starts the read loop.
func (f *Feed) Dial() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
	if err != nil {
		return errors.Wrapf(err, "could not dial %s", f.wsURL)
	}

	f.mutex.Lock()
	f.conn = conn
	f.mutex.Unlock()

	go f.readLoop()
	return nil
}

// Subscribe starts streaming mark prices for a token. Subscribing to a
// token twice is a no-op.
func (f *Feed) Subscribe(token string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.subscribed[token] {
		return nil
	}
	if err := f.writeRequest("subscribe", token); err != nil {
		return err
	}
	f.subscribed[token] = true
	log.Debugf("subscribed to price updates for %s", token)
	return nil
}

// Updates returns the stream of mark price updates. The channel is closed
// when the feed is closed.
func (f *Feed) Updates() <-chan types.PriceUpdate {
	return f.updates
}

// Close unsubscribes every token and releases the connection. Safe to call
// once regardless of how the read loop exits.
func (f *Feed) Close() error {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true
	close(f.done)

	for token := range f.subscribed {
		// best effort, the socket is going away anyway
		_ = f.writeRequest("unsubscribe", token)
	}
	if f.conn != nil {
		return f.conn.Close()
	}
	return nil
}

// writeRequest sends a subscribe/unsubscribe frame. Callers hold f.mutex,
// which also serializes writers on the connection.
func (f *Feed) writeRequest(method, token string) error {
	if f.conn == nil {
		return errors.New("feed is not connected")
	}
	f.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := f.conn.WriteJSON(subscribeRequest{
		Method:       method,
		Subscription: subscription{Type: "activeAssetCtx", Coin: token},
	})
	return errors.Wrapf(err, "could not %s %s", method, token)
}

func (f *Feed) readLoop() {
	for {
		f.mutex.Lock()
		conn := f.conn
		f.mutex.Unlock()

		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.done:
				close(f.updates)
				return
			default:
			}
			log.Errorf("feed connection lost: %v, reconnecting in %s", err, reconnectDelay)
			if !f.reconnect() {
				close(f.updates)
				return
			}
			continue
		}

		f.handleMessage(raw)
	}
}

func (f *Feed) handleMessage(raw []byte) {
	var msg feedMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Debugf("ignoring unparsable feed message: %v", err)
		return
	}

	if msg.Channel != "activeAssetCtx" && msg.Channel != "activeSpotAssetCtx" {
		return
	}

	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("feed message: %s", spew.Sdump(msg))
	}

	markPrice, err := strconv.ParseFloat(msg.Data.Ctx.MarkPx, 64)
	if err != nil {
		log.Warnf("unparsable mark price %q for %s", msg.Data.Ctx.MarkPx, msg.Data.Coin)
		return
	}

	update := types.PriceUpdate{
		Token:     msg.Data.Coin,
		MarkPrice: markPrice,
		Time:      time.Now().UTC(),
	}

	select {
	case f.updates <- update:
	default:
		log.Warnf("price update channel full, dropping tick for %s", update.Token)
	}
}

// reconnect redials until it succeeds or the feed is closed, then replays
// the active subscriptions.
func (f *Feed) reconnect() bool {
	for {
		select {
		case <-f.done:
			return false
		case <-time.After(reconnectDelay):
		}

		conn, _, err := websocket.DefaultDialer.Dial(f.wsURL, nil)
		if err != nil {
			log.Errorf("feed redial failed: %v, retrying in %s", err, reconnectDelay)
			continue
		}

		f.mutex.Lock()
		if f.closed {
			f.mutex.Unlock()
			conn.Close()
			return false
		}
		f.conn = conn
		var failed []string
		for token := range f.subscribed {
			if err := f.writeRequest("subscribe", token); err != nil {
				failed = append(failed, token)
			}
		}
		f.mutex.Unlock()

		if len(failed) > 0 {
			log.Errorf("failed to resubscribe %v after reconnect", failed)
		}
		return true
	}
}
