package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ecosight/ecosight/pkg/pipeline"
	"github.com/ecosight/ecosight/pkg/threat"
)

const (
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
	streamWriteWait  = 10 * time.Second
)

// StreamRequest is one binary client frame on /stream, msgpack encoded.
type StreamRequest struct {
	ID        string   `msgpack:"id"`
	Filename  string   `msgpack:"filename"`
	Audio     []byte   `msgpack:"audio"`
	Latitude  *float64 `msgpack:"latitude,omitempty"`
	Longitude *float64 `msgpack:"longitude,omitempty"`
}

// StreamReply answers one StreamRequest. Code follows HTTP status
// semantics: 200 with a detection, or an error status with a message.
type StreamReply struct {
	ID        string            `msgpack:"id"`
	Code      int               `msgpack:"code"`
	Detection *threat.Detection `msgpack:"detection,omitempty"`
	Error     string            `msgpack:"error,omitempty"`
}

// handleStream upgrades to a WebSocket and answers clips in arrival order.
// A failing clip produces an error reply; the connection stays open.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	s.metrics.StreamConnected(1)
	defer s.metrics.StreamConnected(-1)
	s.logger.Info("stream client connected", "remote", r.RemoteAddr)
	defer s.logger.Info("stream client disconnected", "remote", r.RemoteAddr)

	conn.SetReadLimit(s.cfg.MaxUploadBytes)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	// Control frames may be written concurrently with data frames; data
	// frames are only written from this goroutine.
	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(streamPingPeriod)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	ctx := r.Context()
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("stream read failed", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(streamPongWait))

		reply := s.streamReply(ctx, mt, data)
		out, err := msgpack.Marshal(reply)
		if err != nil {
			s.logger.Error("stream encode failed", "error", err)
			return
		}
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
			s.logger.Warn("stream write failed", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

func (s *Server) streamReply(ctx context.Context, mt int, data []byte) StreamReply {
	if mt != websocket.BinaryMessage {
		return StreamReply{Code: http.StatusBadRequest, Error: "expected a binary msgpack frame"}
	}
	var req StreamRequest
	if err := msgpack.Unmarshal(data, &req); err != nil {
		return StreamReply{Code: http.StatusBadRequest, Error: fmt.Sprintf("invalid frame: %v", err)}
	}

	loc := s.pipeline.DefaultLocation()
	if req.Latitude != nil {
		loc.Latitude = *req.Latitude
	}
	if req.Longitude != nil {
		loc.Longitude = *req.Longitude
	}
	if !loc.Valid() {
		return StreamReply{ID: req.ID, Code: http.StatusBadRequest, Error: "location out of range"}
	}

	det, err := s.pipeline.Predict(ctx, pipeline.Item{Filename: req.Filename, Audio: req.Audio, Location: &loc})
	if err != nil {
		return StreamReply{ID: req.ID, Code: StatusCode(err), Error: detail(err)}
	}
	return StreamReply{ID: req.ID, Code: http.StatusOK, Detection: det}
}
