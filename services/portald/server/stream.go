package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"stakeportal/services/portald/journal"
)

const (
	wsWriteTimeout = 5 * time.Second
	streamPage     = 200
)

// handleJournalStream replays entries after the ?after cursor and then follows
// the journal head over a websocket.
func (s *Server) handleJournalStream(w http.ResponseWriter, r *http.Request) {
	after, err := parseInt("after", r.URL.Query().Get("after"), 0)
	if err != nil {
		s.fail(w, r, "journal stream", err)
		return
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := s.streamJournal(ctx, conn, after); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (s *Server) streamJournal(ctx context.Context, conn *websocket.Conn, after int64) error {
	// Subscribe before reading the backlog so nothing appended in between is lost.
	updates, cancel := s.backend.Journal.Subscribe()
	defer cancel()

	cursor := after
	for {
		backlog, err := s.backend.Journal.Entries(ctx, cursor, streamPage)
		if err != nil {
			return err
		}
		for _, entry := range backlog {
			if err := writeJournalEntry(ctx, conn, entry); err != nil {
				return err
			}
			cursor = entry.Seq
		}
		if len(backlog) < streamPage {
			break
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-updates:
			if !ok {
				return nil
			}
			if entry.Seq <= cursor {
				continue
			}
			if err := writeJournalEntry(ctx, conn, entry); err != nil {
				return err
			}
			cursor = entry.Seq
		}
	}
}

func writeJournalEntry(ctx context.Context, conn *websocket.Conn, entry journal.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
