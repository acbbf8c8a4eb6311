package httpserver

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/skobkin/amdgpu-metrics-web/internal/api"
	"github.com/skobkin/amdgpu-metrics-web/internal/sampler"
)

const (
	wsSendQueueSize    = 16
	wsInboundQueueSize = 8
)

var errQueueClosed = errors.New("websocket outbound queue closed")

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	reqLogger := s.loggerFromContext(r.Context())
	if !s.reserveWS() {
		reqLogger.Warn("websocket rejected", "reason", "capacity")
		http.Error(w, "websocket capacity reached", http.StatusServiceUnavailable)
		return
	}
	defer s.releaseWS()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(s.cfg.AllowedOrigins),
	})
	if err != nil {
		reqLogger.Warn("websocket accept failed", "err", err)
		return
	}
	defer func() {
		if err := conn.Close(websocket.StatusNormalClosure, ""); err != nil {
			reqLogger.Debug("websocket close failed", "err", err)
		}
	}()

	s.wsTotal.Add(1)
	session := &wsSession{
		srv:        s,
		conn:       conn,
		logger:     reqLogger.With("ws_id", s.wsConnIDs.Add(1)),
		out:        newWSOutbound(wsSendQueueSize, &s.wsDropped),
		defaultGPU: s.defaultGPU(),
	}
	session.run(r.Context())
}

// wsSession is one connected client. Only the goroutine running run touches
// the subscription fields.
type wsSession struct {
	srv        *Server
	conn       *websocket.Conn
	logger     *slog.Logger
	out        *wsOutbound
	defaultGPU string

	gpuID       string
	withTable   bool
	samples     <-chan sampler.Sample
	unsubscribe func()
}

func (ws *wsSession) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	writerDone := make(chan struct{})
	go ws.writeLoop(ctx, cancel, writerDone)

	defer func() {
		ws.dropSubscription()
		ws.out.close()
		cancel()
		<-writerDone
	}()

	if err := ws.send(ws.hello()); err != nil {
		return
	}

	inbound := make(chan []byte, wsInboundQueueSize)
	readErr := make(chan error, 1)
	go ws.readLoop(ctx, inbound, readErr)

	switch {
	case ws.defaultGPU != "":
		if err := ws.subscribe(ws.defaultGPU, false); err != nil {
			ws.logger.Warn("failed to subscribe default gpu", "gpu_id", ws.defaultGPU, "err", err)
			_ = ws.sendError(fmt.Sprintf("failed to subscribe default gpu: %v", err))
		}
	case len(ws.srv.gpus) == 0:
		_ = ws.sendError("no GPUs detected")
	}

	for {
		select {
		case sample, ok := <-ws.samples:
			if !ok {
				ws.samples = nil
				ws.gpuID = ""
				continue
			}
			if err := ws.forward(sample); err != nil {
				return
			}
		case data, ok := <-inbound:
			if !ok {
				inbound = nil
				continue
			}
			if err := ws.handle(data); err != nil {
				ws.logger.Warn("client message handling error", "err", err)
				return
			}
		case err := <-readErr:
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				ws.logger.Warn("websocket read error", "err", err)
			}
			return
		case <-ctx.Done():
			return
		}
	}
}

func (ws *wsSession) hello() api.HelloMessage {
	cfg := ws.srv.cfg
	return api.NewHelloMessage(
		int(cfg.SampleInterval/time.Millisecond),
		ws.srv.gpus,
		map[string]bool{
			"gpu_metrics": cfg.GPUMetrics.Enable,
			"prometheus":  cfg.EnablePrometheus,
		},
	)
}

// forward sends the stats frame for sample, followed by the decoded table
// when the client opted in.
func (ws *wsSession) forward(sample sampler.Sample) error {
	if err := ws.send(api.NewStatsMessage(sample)); err != nil {
		return err
	}
	if !ws.withTable {
		return nil
	}
	if msg, ok := api.NewGPUMetricsMessage(sample); ok {
		return ws.send(msg)
	}
	return nil
}

func (ws *wsSession) subscribe(target string, table bool) error {
	if _, ok := ws.srv.gpuIndex[target]; !ok {
		return fmt.Errorf("unknown gpu %q", target)
	}
	if ws.srv.sampler == nil {
		return errors.New("sampler unavailable")
	}
	ws.withTable = table && ws.srv.cfg.GPUMetrics.Enable
	if target == ws.gpuID {
		return nil
	}

	ws.dropSubscription()
	ch, cancel, err := ws.srv.sampler.Subscribe(target)
	if err != nil {
		return err
	}
	ws.samples, ws.unsubscribe, ws.gpuID = ch, cancel, target
	ws.logger.Info("ws subscribed", "gpu_id", target, "gpu_metrics", ws.withTable)
	return nil
}

func (ws *wsSession) dropSubscription() {
	if ws.unsubscribe != nil {
		ws.unsubscribe()
	}
	ws.samples, ws.unsubscribe, ws.gpuID = nil, nil, ""
}

// handle processes one inbound text frame. Malformed input is reported to
// the client; only a dead outbound queue ends the session.
func (ws *wsSession) handle(data []byte) error {
	var envelope api.ClientMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		ws.logger.Debug("invalid client message", "err", err)
		return nil
	}

	switch envelope.Type {
	case "subscribe":
		var msg api.SubscribeMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return ws.sendError("invalid subscribe payload")
		}
		target := cmp.Or(msg.GPUId, ws.defaultGPU)
		if target == "" {
			return ws.sendError("no gpu_id provided and no default available")
		}
		if err := ws.subscribe(target, msg.GPUMetrics); err != nil {
			return ws.sendError(err.Error())
		}
	case "ping":
		return ws.send(api.PongMessage{Type: "pong"})
	default:
		ws.logger.Debug("unknown message type", "type", envelope.Type)
	}
	return nil
}

func (ws *wsSession) send(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		ws.logger.Error("failed to marshal websocket payload", "err", err)
		return fmt.Errorf("marshal websocket payload: %w", err)
	}
	if !ws.out.enqueue(data) {
		ws.logger.Warn("websocket outbound queue unavailable")
		return errQueueClosed
	}
	return nil
}

func (ws *wsSession) sendError(msg string) error {
	return ws.send(api.ErrorMessage{Type: "error", Message: msg})
}

func (ws *wsSession) readLoop(ctx context.Context, out chan<- []byte, errCh chan<- error) {
	defer close(out)
	timeout := ws.srv.cfg.WS.ReadTimeout
	for {
		readCtx, cancel := withOptionalTimeout(ctx, timeout)
		msgType, data, err := ws.conn.Read(readCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				err = fmt.Errorf("client idle for %s: %w", timeout, err)
			}
			errCh <- err
			return
		}
		if msgType != websocket.MessageText {
			continue
		}
		select {
		case out <- data:
		case <-ctx.Done():
			return
		}
	}
}

func (ws *wsSession) writeLoop(ctx context.Context, cancel context.CancelFunc, done chan<- struct{}) {
	defer close(done)
	timeout := ws.srv.cfg.WS.WriteTimeout
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ws.out.channel():
			if !ok {
				return
			}
			writeCtx, cancelWrite := withOptionalTimeout(ctx, timeout)
			err := ws.conn.Write(writeCtx, websocket.MessageText, msg)
			cancelWrite()
			if err != nil {
				if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
					ws.logger.Warn("websocket write failed", "err", err)
				}
				cancel()
				return
			}
			ws.srv.wsSent.Add(1)
		}
	}
}

func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Server) defaultGPU() string {
	if id := s.cfg.DefaultGPU; id != "" && id != "auto" {
		if _, ok := s.gpuIndex[id]; ok {
			return id
		}
		s.logger.Warn("configured default gpu not found", "gpu_id", id)
	}
	if len(s.gpus) > 0 {
		return s.gpus[0].ID
	}
	return ""
}

func (s *Server) reserveWS() bool {
	if s.maxWSClients <= 0 {
		s.wsActive.Add(1)
		return true
	}
	for {
		current := s.wsActive.Load()
		if current >= s.maxWSClients {
			s.wsRejected.Add(1)
			return false
		}
		if s.wsActive.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

func (s *Server) releaseWS() {
	s.wsActive.Add(-1)
}

// wsOutbound is a bounded queue that evicts the oldest frame when full. It
// has a single producer, the session loop, which is also the only caller of
// close.
type wsOutbound struct {
	ch     chan []byte
	closed bool
	drops  *atomic.Uint64
}

func newWSOutbound(size int, dropCounter *atomic.Uint64) *wsOutbound {
	return &wsOutbound{
		ch:    make(chan []byte, max(size, 1)),
		drops: dropCounter,
	}
}

func (o *wsOutbound) enqueue(msg []byte) bool {
	if o.closed {
		o.countDrop()
		return false
	}
	for {
		select {
		case o.ch <- msg:
			return true
		default:
		}
		select {
		case <-o.ch:
			o.countDrop()
		default:
		}
	}
}

func (o *wsOutbound) close() {
	if !o.closed {
		o.closed = true
		close(o.ch)
	}
}

func (o *wsOutbound) channel() <-chan []byte {
	return o.ch
}

func (o *wsOutbound) countDrop() {
	if o.drops != nil {
		o.drops.Add(1)
	}
}
