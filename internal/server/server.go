// Package server exposes the operation registry over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"powertools-agent/internal/api"
	"powertools-agent/internal/core"

	"github.com/gorilla/websocket"
)

// Operations queried to build the snapshot sent on connect.
var batteryStateMethods = []string{
	api.MethodGetChargeRate,
	api.MethodGetChargeMode,
	api.MethodCurrentNow,
	api.MethodChargeNow,
	api.MethodChargeFull,
	api.MethodChargeDesign,
}

var forwardedEvents = []core.EventType{
	core.ChargeRateChangedEvent,
	core.ChargeModeChangedEvent,
	core.ScriptChangedEvent,
	core.ScheduleChangedEvent,
}

const (
	methodListScripts   = "list_scripts"
	methodListSchedules = "list_schedules"
)

// Server manages the HTTP and WebSocket services.
type Server struct {
	Hub        *Hub
	ctx        context.Context
	caller     api.Caller
	eventBus   *core.EventBus
	httpServer *http.Server

	staticFilesDir string
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewServer creates a new server instance. Bus events are forwarded to
// WebSocket clients until ctx is done.
func NewServer(ctx context.Context, caller api.Caller, eb *core.EventBus, port, staticFilesDir string, allowedOrigins []string) *Server {
	s := &Server{
		Hub:            NewHub(),
		ctx:            ctx,
		caller:         caller,
		eventBus:       eb,
		staticFilesDir: staticFilesDir,
		allowedOrigins: allowedOrigins,
	}

	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(s.staticFilesDir)))
	mux.HandleFunc("POST /api/{method}", s.handleAPI)
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: ":" + port, Handler: mux}

	if eb != nil {
		sub := eb.Subscribe(forwardedEvents...)
		go s.forwardEvents(ctx, sub)
	}
	return s
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		log.Println("[Server] Warning: WebSocket CheckOrigin is disabled.")
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.allowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	log.Printf("[Server] WebSocket connection blocked: Origin '%s' not in allowed list.", origin)
	return false
}

func (s *Server) forwardEvents(ctx context.Context, sub core.Subscriber) {
	defer s.eventBus.Unsubscribe(sub, forwardedEvents...)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sub:
			if ev.Type == core.ScheduleChangedEvent {
				if msg, ok := s.listMessage(ctx, TypeScheduleList, methodListSchedules); ok {
					s.Hub.Broadcast(msg)
				}
				continue
			}
			if msg, ok := eventMessage(ev); ok {
				s.Hub.Broadcast(msg)
			}
		}
	}
}

// handleAPI serves POST /api/{method}. The body is a JSON array of
// arguments; an empty body means no arguments.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")

	var args core.Params
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid arguments: " + err.Error()})
		return
	}

	out, err := s.caller.Call(r.Context(), method, args)
	if err != nil {
		writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
		return
	}
	if out == nil {
		out = core.Values()
	}
	writeJSON(w, http.StatusOK, out)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, api.ErrUnknownMethod):
		return http.StatusNotFound
	case errors.Is(err, core.ErrChannelClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeJSON encodes v before touching the response so an encoding failure
// still reaches the client as a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[Server] Error encoding response: %v", err)
		status = http.StatusInternalServerError
		data, _ = json.Marshal(map[string]string{"error": "encode response: " + err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("[Server] Error writing response: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] WebSocket upgrade error: %v", err)
		return
	}
	c := newClient(conn)

	_ = c.WriteJSON(NewMessage(TypeBatteryState, s.batteryState(s.ctx)))
	if msg, ok := s.listMessage(s.ctx, TypeScriptList, methodListScripts); ok {
		_ = c.WriteJSON(msg)
	}
	if msg, ok := s.listMessage(s.ctx, TypeScheduleList, methodListSchedules); ok {
		_ = c.WriteJSON(msg)
	}

	s.Hub.add(c)
	defer s.Hub.remove(c)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[Server] WebSocket read error: %v", err)
			}
			return
		}
		if err := c.WriteJSON(NewMessage(TypeResult, s.dispatch(data))); err != nil {
			return
		}
	}
}

// dispatch runs one WebSocket request. Requests on a connection are handled
// in arrival order.
func (s *Server) dispatch(data []byte) Result {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Result{Error: "invalid request: " + err.Error()}
	}
	out, err := s.caller.Call(s.ctx, req.Method, req.Args)
	if err != nil {
		return Result{ID: req.ID, Error: err.Error()}
	}
	if out == nil {
		out = core.Values()
	}
	if _, err := json.Marshal(out); err != nil {
		return Result{ID: req.ID, Error: "encode result: " + err.Error()}
	}
	return Result{ID: req.ID, Result: out}
}

// batteryState collects the first result of each snapshot operation.
// Operations that fail are left out.
func (s *Server) batteryState(ctx context.Context) map[string]core.Primitive {
	state := make(map[string]core.Primitive, len(batteryStateMethods))
	for _, method := range batteryStateMethods {
		out, err := s.caller.Call(ctx, method, nil)
		if err != nil {
			log.Printf("[Server] Snapshot %s failed: %v", method, err)
			continue
		}
		v := out.At(0)
		if _, err := json.Marshal(v); err != nil {
			log.Printf("[Server] Snapshot %s not encodable: %v", method, err)
			v = core.Empty()
		}
		state[strings.TrimPrefix(method, "get_")] = v
	}
	return state
}

func (s *Server) listMessage(ctx context.Context, msgType, method string) (Message, bool) {
	out, err := s.caller.Call(ctx, method, nil)
	if err != nil {
		if !errors.Is(err, api.ErrUnknownMethod) {
			log.Printf("[Server] %s failed: %v", method, err)
		}
		return Message{}, false
	}
	if out == nil {
		out = core.Values()
	}
	return NewMessage(msgType, out), true
}
