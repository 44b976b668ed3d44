package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lehigh-university-libraries/sketchguess/internal/canvas"
	"github.com/lehigh-university-libraries/sketchguess/internal/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 64 << 10
)

// handleStream upgrades to a WebSocket that carries pointer events from the
// client and change notifications back to every client viewing the board.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request, board *models.Board) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "board_id", board.ID, "err", err)
		return
	}
	defer conn.Close()

	changes, unsubscribe := board.Subscribe()
	defer unsubscribe()

	replies := make(chan models.StreamMessage, 8)
	done := make(chan struct{})
	defer close(done)

	go h.streamWriter(conn, board, changes, replies, done)

	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	client := &streamClient{board: board}
	slog.Debug("WebSocket connected", "board_id", board.ID, "remote", r.RemoteAddr)
	for {
		var msg models.StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read failed", "board_id", board.ID, "err", err)
			}
			client.abandon()
			return
		}
		if err := client.apply(msg); err != nil {
			select {
			case replies <- models.StreamMessage{Type: "error", Error: err.Error()}:
			default:
			}
		}
	}
}

// streamClient is the per-connection side of a board stream. It remembers
// the stroke this connection began so a dropped connection ends only that
// stroke.
type streamClient struct {
	board  *models.Board
	stroke string
}

func (c *streamClient) apply(msg models.StreamMessage) error {
	switch msg.Type {
	case "clear":
		c.board.Canvas.ClearAll()
		c.stroke = ""
		return nil
	case "settings":
		if msg.Settings == nil {
			return nil
		}
		return applySettings(c.board, *msg.Settings)
	}

	kind, err := pointerKind(msg.Type)
	if err != nil {
		return err
	}
	p := canvas.Point{X: msg.X, Y: msg.Y}
	switch kind {
	case pointerDown:
		if id, ok := c.board.Canvas.BeginStrokeID(p); ok {
			c.stroke = id
		}
	case pointerMove:
		c.board.Canvas.ExtendStroke(p)
	default:
		c.board.Canvas.EndStroke()
		c.stroke = ""
	}
	return nil
}

// abandon ends the connection's unfinished stroke, if it is still the one
// in progress.
func (c *streamClient) abandon() {
	if c.stroke != "" && c.board.Canvas.EndStrokeID(c.stroke) {
		slog.Debug("Ended abandoned stroke", "board_id", c.board.ID, "stroke_id", c.stroke)
	}
	c.stroke = ""
}

// streamWriter owns all writes to conn.
func (h *Handler) streamWriter(conn *websocket.Conn, board *models.Board, changes <-chan struct{}, replies <-chan models.StreamMessage, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	send := func(msg models.StreamMessage) bool {
		conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
		if err := conn.WriteJSON(msg); err != nil {
			slog.Debug("WebSocket write failed", "board_id", board.ID, "err", err)
			return false
		}
		return true
	}

	if !send(changedMessage(board)) {
		return
	}
	for {
		select {
		case <-done:
			return
		case <-changes:
			if !send(changedMessage(board)) {
				return
			}
		case msg := <-replies:
			if !send(msg) {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func changedMessage(board *models.Board) models.StreamMessage {
	state := board.Canvas.Snapshot()
	result := board.Analysis.Result()
	return models.StreamMessage{
		Type:     "changed",
		Strokes:  len(state.Strokes),
		Drawing:  state.Drawing,
		Analysis: &result,
	}
}
