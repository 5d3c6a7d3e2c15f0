package transport

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/orbitalrush/grid/internal/observability"
	"github.com/orbitalrush/grid/internal/rules"
)

const (
	// ReadDeadline bounds how long a spectator connection may stay
	// silent before it is considered dead.
	ReadDeadline = 60 * time.Second
	// WriteDeadline bounds a single websocket write.
	WriteDeadline = 10 * time.Second
	// PongWait is the read deadline each pong pushes out; it is the
	// same 60s as ReadDeadline.
	PongWait = 60 * time.Second
	// PingPeriod must be less than PongWait.
	PingPeriod = (PongWait * 9) / 10
)

// spectatorUpgrader permits any origin: a read-only debug/dashboard
// feed has no CSRF surface worth locking down beyond what the
// authoritative UDP channel already enforces.
var spectatorUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SnapshotSource is polled once per spectator tick for the world's
// current wire-visible state.
type SnapshotSource interface {
	State() *rules.State
}

// SpectatorFeed streams a low-rate JSON encoding of the world snapshot
// to a single websocket client, following the usual
// upgrade/ping-pong/bounded-write-channel/one-writer-goroutine
// Connection/writePump lifecycle (ws.go) almost unchanged — but
// carries no input path at all: §4.F's authoritative gameplay channel
// is the UDP peer layer (udp.go); this is a read-only spectator/
// dashboard surface, not a second way to play.
type SpectatorFeed struct {
	conn      *websocket.Conn
	done      chan struct{}
	writeChan chan []byte
}

// NewSpectatorFeed wraps an already-upgraded websocket connection.
func NewSpectatorFeed(conn *websocket.Conn) *SpectatorFeed {
	f := &SpectatorFeed{
		conn:      conn,
		done:      make(chan struct{}),
		writeChan: make(chan []byte, 16),
	}
	conn.SetReadDeadline(time.Now().Add(PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(PongWait))
		return nil
	})
	go f.writePump()
	go f.readPump() // drains/discards client frames so pong handling still fires
	return f
}

// Close shuts the feed down; safe to call more than once.
func (f *SpectatorFeed) Close() error {
	select {
	case <-f.done:
		return nil
	default:
		close(f.done)
		close(f.writeChan)
		return f.conn.Close()
	}
}

// Send enqueues one snapshot frame. Non-blocking: a slow spectator
// drops frames rather than stalling the broadcaster, since this feed
// is best-effort by design.
func (f *SpectatorFeed) Send(data []byte) {
	select {
	case <-f.done:
	case f.writeChan <- data:
	default:
		// writeChan full: spectator is behind, drop this frame.
	}
}

func (f *SpectatorFeed) readPump() {
	defer f.Close()
	for {
		if _, _, err := f.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *SpectatorFeed) writePump() {
	pingTicker := time.NewTicker(PingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-f.done:
			return
		case data, ok := <-f.writeChan:
			if !ok {
				_ = f.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := f.write(data); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := f.write(nil); err != nil {
				return
			}
		}
	}
}

func (f *SpectatorFeed) write(data []byte) error {
	f.conn.SetWriteDeadline(time.Now().Add(WriteDeadline))
	if data == nil {
		return f.conn.WriteMessage(websocket.PingMessage, nil)
	}
	if err := f.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	if bytesCounter := observability.GetConnectionBytesCounter(); bytesCounter != nil {
		bytesCounter.WithLabelValues("out").Add(float64(len(data)))
	}
	return nil
}

// SpectatorHandler upgrades an HTTP request to a websocket and streams
// rules.ToSnapshot(source.State()) to it at subsampleInterval until the
// client disconnects.
func SpectatorHandler(source SnapshotSource, subsampleInterval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := observability.NewLogger().WithValues("component", "transport", "handler", "spectator")

		conn, err := spectatorUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error(err, "spectator upgrade failed")
			return
		}
		feed := NewSpectatorFeed(conn)

		if eventsCounter := observability.GetConnectionEventsCounter(); eventsCounter != nil {
			eventsCounter.WithLabelValues("connect").Inc()
		}
		if activeGauge := observability.GetActiveConnectionsGauge(); activeGauge != nil {
			activeGauge.Inc()
		}
		start := time.Now()
		defer func() {
			feed.Close()
			if eventsCounter := observability.GetConnectionEventsCounter(); eventsCounter != nil {
				eventsCounter.WithLabelValues("disconnect").Inc()
			}
			if activeGauge := observability.GetActiveConnectionsGauge(); activeGauge != nil {
				activeGauge.Dec()
			}
			if durationHist := observability.GetConnectionDurationHistogram(); durationHist != nil {
				durationHist.Observe(time.Since(start).Seconds())
			}
		}()

		ticker := time.NewTicker(subsampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-feed.done:
				return
			case <-ticker.C:
				snap := rules.ToSnapshot(source.State())
				data, err := json.Marshal(&snap)
				if err != nil {
					logger.Error(err, "failed to marshal spectator snapshot")
					continue
				}
				feed.Send(data)
			}
		}
	}
}
