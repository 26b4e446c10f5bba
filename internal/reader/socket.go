package reader

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/masskarem1/PHYS.101-Ebook/internal/viewer"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleViewer runs one viewer session per websocket connection. Browser
// events are read here and handed to the session goroutine in order.
func (rd *Reader) handleViewer(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		rd.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	emit := func(m viewer.Message) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(m); err != nil {
			rd.log.Debug().Err(err).Str("type", m.Type).Msg("websocket write")
		}
	}

	sess := viewer.New(viewer.Options{
		Book:        rd.cfg.Book,
		Settings:    rd.settings,
		Images:      rd.loader,
		Persistence: rd.persist,
		Search:      rd.search,
		Helper:      rd.helper,
		Log:         rd.log,
	}, emit)
	rd.log.Info().Str("session", sess.ID).Msg("viewer session opened")

	// The request context ends with server shutdown; closing the socket
	// unblocks the read loop below.
	ctx, cancel := context.WithCancel(r.Context())
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	events := make(chan viewer.Event)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sess.Run(ctx, events)
	}()
	defer func() {
		cancel()
		<-done
		rd.log.Info().Str("session", sess.ID).Msg("viewer session closed")
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				rd.log.Warn().Err(err).Str("session", sess.ID).Msg("websocket read")
			}
			return
		}

		var ev viewer.Event
		if err := json.Unmarshal(msg, &ev); err != nil {
			emit(viewer.Message{Type: viewer.MsgError, SessionID: sess.ID, Error: "invalid message format"})
			continue
		}
		select {
		case events <- ev:
		case <-done:
			return
		}
	}
}
