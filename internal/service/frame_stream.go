package service

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/noah-isme/gema-proctor-api/internal/dto"
)

const (
	streamSendBufferSize = 8
	streamPingInterval   = 30 * time.Second
)

// Stream message types.
const (
	StreamMessageStatus = "status"
	StreamMessageError  = "error"
	StreamMessageClosed = "closed"
)

// FrameConn is the subset of a websocket connection the frame stream needs.
type FrameConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// FrameStreamOptions wraps metadata extracted during the HTTP upgrade.
type FrameStreamOptions struct {
	SessionID     string
	CandidateID   string
	CorrelationID string
	Context       context.Context
}

type frameStream struct {
	conn    FrameConn
	live    *liveSession
	service *proctoringService
	send    chan dto.StreamMessage
	closed  chan struct{}
	once    sync.Once
	ctx     context.Context
}

// ServeFrameStream reads landmark frames from conn and pushes live status
// back until either side goes away or the session stops.
func (s *proctoringService) ServeFrameStream(conn FrameConn, opts FrameStreamOptions) {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	live, err := s.obtain(ctx, opts.SessionID, opts.CandidateID)
	if err != nil {
		_ = conn.WriteJSON(dto.StreamMessage{Type: StreamMessageError, Error: err.Error()})
		_ = conn.Close()
		return
	}

	stream := &frameStream{
		conn:    conn,
		live:    live,
		service: s,
		send:    make(chan dto.StreamMessage, streamSendBufferSize),
		closed:  make(chan struct{}),
		ctx:     ctx,
	}

	s.logger.Debug().
		Str("session_id", opts.SessionID).
		Str("correlation_id", opts.CorrelationID).
		Msg("frame stream opened")

	go stream.writer()
	stream.reader()
}

func (f *frameStream) reader() {
	defer f.close()

	for {
		var payload dto.FrameRequest
		if err := f.conn.ReadJSON(&payload); err != nil {
			f.service.logger.Debug().Err(err).Msg("frame stream read loop ended")
			return
		}

		if err := f.service.validator.Struct(payload); err != nil {
			f.enqueue(dto.StreamMessage{Type: StreamMessageError, Error: "invalid frame"})
			continue
		}

		// a closed feed means the monitor stopped; the writer reports it and hangs up
		_ = f.live.feed.Push(payload.Frame(f.service.now()))
	}
}

func (f *frameStream) writer() {
	defer f.close()

	status := time.NewTicker(f.service.cfg.StatusInterval)
	defer status.Stop()
	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case message := <-f.send:
			if err := f.conn.WriteJSON(message); err != nil {
				f.service.logger.Debug().Err(err).Msg("frame stream write loop terminated")
				return
			}
		case <-status.C:
			current := f.live.monitor.Status()
			if err := f.conn.WriteJSON(dto.StreamMessage{Type: StreamMessageStatus, Status: &current}); err != nil {
				f.service.logger.Debug().Err(err).Msg("frame stream write loop terminated")
				return
			}
		case <-ping.C:
			if err := f.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				f.service.logger.Debug().Err(err).Msg("frame stream ping failed")
				return
			}
		case <-f.live.monitor.Done():
			final := f.live.monitor.Status()
			_ = f.conn.WriteJSON(dto.StreamMessage{Type: StreamMessageClosed, Status: &final})
			return
		case <-f.closed:
			return
		case <-f.ctx.Done():
			return
		}
	}
}

func (f *frameStream) enqueue(message dto.StreamMessage) {
	select {
	case <-f.closed:
		return
	default:
	}
	select {
	case f.send <- message:
	default:
		f.service.logger.Warn().Str("session_id", f.live.publicID).Msg("frame stream queue full, dropping message")
	}
}

func (f *frameStream) close() {
	f.once.Do(func() {
		close(f.closed)
		_ = f.conn.Close()
	})
}
