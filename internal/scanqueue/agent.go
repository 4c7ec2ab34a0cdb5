package scanqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"cardsync/internal/logging"
)

const (
	agentSource     = "nfc-agent"
	wsTypeTagData   = "tagData"
	agentReadLimit  = 64 * 1024
	agentPongWindow = 60 * time.Second
	agentPingPeriod = 30 * time.Second
	agentWriteWait  = 10 * time.Second
)

type agentMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type tagDataPayload struct {
	UID       string  `json:"uid"`
	Type      string  `json:"type"`
	ScannedAt string  `json:"scannedAt"`
	Error     *string `json:"err"`
}

// AgentSource reads tag scans from an NFC agent websocket and pushes them onto
// a queue. It reconnects after a fixed delay until its context ends.
type AgentSource struct {
	url       string
	queue     Pusher
	reconnect time.Duration
	logger    *slog.Logger
	observe   ScanObserver
	dialer    *websocket.Dialer

	// pongWindow is how long the connection may stay silent, pings and pongs
	// included, before it is treated as dead. pingPeriod must be shorter.
	pongWindow time.Duration
	pingPeriod time.Duration
}

// NewAgentSource builds a source for the agent at url.
func NewAgentSource(url string, queue Pusher, reconnect time.Duration, observe ScanObserver, logger *slog.Logger) *AgentSource {
	if reconnect <= 0 {
		reconnect = 5 * time.Second
	}
	return &AgentSource{
		url:       url,
		queue:     queue,
		reconnect: reconnect,
		logger:    logging.NewComponentLogger(logger, "nfc-agent"),
		observe:   observe,
		dialer:    websocket.DefaultDialer,

		pongWindow: agentPongWindow,
		pingPeriod: agentPingPeriod,
	}
}

// Run blocks until ctx is cancelled.
func (s *AgentSource) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		logging.WarnWithContext(s.logger, "nfc agent disconnected", "agent_disconnected",
			logging.String("url", s.url),
			logging.Error(err),
			logging.Duration("retry_in", s.reconnect),
			logging.String(logging.FieldErrorHint, "check that the NFC agent is running and scanner.agent_url is correct"),
			logging.String(logging.FieldImpact, "scans from the reader are not received until reconnect"),
		)
		timer := time.NewTimer(s.reconnect)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *AgentSource) session(ctx context.Context) error {
	conn, resp, err := s.dialer.DialContext(ctx, s.url, http.Header{})
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial agent: %w", err)
	}
	defer conn.Close()
	s.logger.Info("nfc agent connected",
		logging.String("url", s.url),
		logging.String(logging.FieldEventType, "agent_connected"),
	)

	conn.SetReadLimit(agentReadLimit)
	extend := func() error { return conn.SetReadDeadline(time.Now().Add(s.pongWindow)) }
	_ = extend()
	conn.SetPongHandler(func(string) error { return extend() })
	conn.SetPingHandler(func(data string) error {
		if err := extend(); err != nil {
			return err
		}
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(agentWriteWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil
		}
		return err
	})

	done := make(chan struct{})
	defer close(done)
	go s.keepalive(ctx, conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("agent closed connection")
			}
			return fmt.Errorf("read agent message: %w", err)
		}
		_ = extend()
		s.handle(data)
	}
}

// keepalive pings the agent so idle but healthy connections keep producing
// pongs, and sends a close frame when ctx ends.
func (s *AgentSource) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutting down"),
				time.Now().Add(time.Second))
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(agentWriteWait)); err != nil {
				s.logger.Debug("agent ping failed", logging.Error(err))
				conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

func (s *AgentSource) handle(data []byte) {
	var msg agentMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Debug("ignoring undecodable agent message", logging.Error(err))
		return
	}
	if msg.Type != wsTypeTagData {
		return
	}
	var payload tagDataPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.logger.Debug("ignoring malformed tag payload", logging.Error(err))
		return
	}
	if payload.Error != nil && *payload.Error != "" {
		s.logger.Debug("agent reported read error", logging.String("agent_error", *payload.Error))
		return
	}
	_, _ = Submit(s.queue, payload.UID, agentSource, s.observe, s.logger)
}
