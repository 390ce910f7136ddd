// Package export forwards the engine's host-export payloads to a remote
// collector over a websocket.
//
// The engine invokes HostExport callbacks synchronously on the merger thread,
// so the bridge must never block there: Notify* only enqueue onto a bounded
// channel and a writer goroutine owns the connection. Frames are dropped,
// counted, when the collector cannot keep up.
package export

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/randomizedcoder/go-present-mon/internal/engine"
)

const (
	sendBufferSize   = 1024
	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second
)

// frame is one websocket message. Exactly one payload field is set.
type frame struct {
	Console *engine.ConsoleData `json:"console,omitempty"`
	CsvRow  *engine.CsvData     `json:"csv_row,omitempty"`
}

// WebsocketExport implements engine.HostExport by streaming JSON frames to a
// collector.
type WebsocketExport struct {
	url    string
	logger *slog.Logger

	sendChan chan frame
	done     chan struct{}

	framesSent    atomic.Uint64
	framesDropped atomic.Uint64
}

// NewWebsocketExport dials the collector and starts the writer goroutine.
func NewWebsocketExport(url string, logger *slog.Logger) (*WebsocketExport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}

	w := &WebsocketExport{
		url:      url,
		logger:   logger,
		sendChan: make(chan frame, sendBufferSize),
		done:     make(chan struct{}),
	}

	go w.writePump(conn)

	logger.Info("host_export_connected", "url", url)
	return w, nil
}

// NotifyConsoleSnapshot implements engine.HostExport.
func (w *WebsocketExport) NotifyConsoleSnapshot(data engine.ConsoleData) {
	w.enqueue(frame{Console: &data})
}

// NotifyCsvRow implements engine.HostExport.
func (w *WebsocketExport) NotifyCsvRow(data engine.CsvData) {
	w.enqueue(frame{CsvRow: &data})
}

// enqueue hands a frame to the writer without ever blocking the merger.
func (w *WebsocketExport) enqueue(f frame) {
	select {
	case w.sendChan <- f:
	case <-w.done:
		w.framesDropped.Add(1)
	default:
		w.framesDropped.Add(1)
	}
}

// writePump owns the connection: serializes frames in order until Close or a
// write error.
func (w *WebsocketExport) writePump(conn *websocket.Conn) {
	defer conn.Close()

	for {
		select {
		case f := <-w.sendChan:
			payload, err := json.Marshal(f)
			if err != nil {
				w.framesDropped.Add(1)
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				w.logger.Error("host_export_write_failed", "error", err)
				return
			}
			w.framesSent.Add(1)

		case <-w.done:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Close stops the writer and closes the connection.
func (w *WebsocketExport) Close() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}

// Stats returns frames sent and dropped.
func (w *WebsocketExport) Stats() (sent, dropped uint64) {
	return w.framesSent.Load(), w.framesDropped.Load()
}
