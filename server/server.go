package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"
	"github.com/wfunc/spyserver/broadcast"
	"github.com/wfunc/spyserver/config"
	"github.com/wfunc/spyserver/logger"
	"github.com/wfunc/spyserver/models"
	"github.com/wfunc/spyserver/monitor"
	"github.com/wfunc/spyserver/network"
	"github.com/wfunc/spyserver/persistence"
	"github.com/wfunc/spyserver/room"
	"github.com/wfunc/spyserver/rpc"
	"github.com/wfunc/spyserver/services"
	"github.com/wfunc/spyserver/session"
	"github.com/wfunc/spyserver/state"
	"github.com/wfunc/spyserver/timer"
	"golang.org/x/time/rate"
)

const (
	heartbeatInterval = 30 * time.Second
	tokenTTL          = 7 * 24 * time.Hour
	wordFetchTimeout  = 5 * time.Second
)

// handlerFunc handles one client command. The returned value is the ack payload.
type handlerFunc func(sess *session.Session, env *network.Envelope) (interface{}, error)

// GameServer 会话协调器: 所有房间的变更都在 mu 下串行执行, 包括定时器回调
type GameServer struct {
	cfg         config.Config
	registry    *room.Registry
	engine      *state.Engine
	sessions    *session.Manager
	broadcaster broadcast.Broadcaster
	timers      *timer.TimerManager
	tokens      *session.TokenManager
	words       *services.WordService
	monitor     *monitor.Monitor
	cron        *cron.Cron
	upgrader    websocket.Upgrader
	handlers    map[string]handlerFunc
	now         func() time.Time

	// drafts[code][playerID] 发言草稿, 超时时自动提交
	drafts map[string]map[string]string

	httpServer   *http.Server
	rpcServer    *rpc.Server
	mu           sync.Mutex
	shutdownChan chan struct{}
	shutdownOnce sync.Once
}

type Option func(*options)

type options struct {
	rng *rand.Rand
	now func() time.Time
}

// WithRand fixes the source used for room codes, roles and word pairs.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) { o.rng = rng }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func NewGameServer(cfg config.Config, store persistence.WordPairStore, opts ...Option) *GameServer {
	o := options{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &GameServer{
		cfg: cfg,
		now: o.now,
		registry: room.NewRegistry(
			room.WithClock(o.now),
			room.WithRand(rand.New(rand.NewSource(o.rng.Int63()))),
			room.WithIdleTimeout(cfg.Game.IdleTimeout),
			room.WithMaxSpectatorSeats(cfg.Game.MaxSpectatorSeats),
		),
		engine:       state.NewEngine(store, state.WithEngineClock(o.now), state.WithEngineRand(o.rng)),
		sessions:     session.NewManager(),
		timers:       timer.NewTimerManager(),
		tokens:       session.NewTokenManager(cfg.Server.TokenSecret, tokenTTL),
		words:        services.NewWordService(store),
		monitor:      monitor.NewMonitor("spy"),
		cron:         cron.New(),
		drafts:       make(map[string]map[string]string),
		shutdownChan: make(chan struct{}),
	}
	s.broadcaster = broadcast.NewRoomBroadcaster(s.sessions)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.handlers = map[string]handlerFunc{
		network.CmdPing:                s.handlePing,
		network.CmdCreateRoom:          s.handleCreateRoom,
		network.CmdJoinRoom:            s.handleJoinRoom,
		network.CmdRejoinRoom:          s.handleRejoinRoom,
		network.CmdLeaveRoom:           s.handleLeaveRoom,
		network.CmdToggleReady:         s.handleToggleReady,
		network.CmdRestartGame:         s.handleRestartGame,
		network.CmdStartGame:           s.handleStartGame,
		network.CmdSubmitDescription:   s.handleSubmitDescription,
		network.CmdSetDescriptionDraft: s.handleSetDescriptionDraft,
		network.CmdSubmitVote:          s.handleSubmitVote,
		network.CmdSendVoteMessage:     s.handleSendVoteMessage,
	}

	if _, err := s.cron.AddFunc(cfg.Game.CleanupSpec, s.cleanupInactiveRooms); err != nil {
		logger.Log.Warnw("invalid cleanup schedule, idle rooms will not be evicted", "spec", cfg.Game.CleanupSpec, "error", err)
	}
	return s
}

// Start runs the optional RPC endpoint, the cleanup schedule and the HTTP server.
// It blocks until the HTTP server stops.
func (s *GameServer) Start() error {
	if s.cfg.Server.RPCAddress != "" {
		rpcServer, err := rpc.NewServer(s.cfg.Server.RPCAddress, rpc.NewStatsService(s))
		if err != nil {
			return fmt.Errorf("create rpc server: %w", err)
		}
		s.rpcServer = rpcServer
		go s.rpcServer.Start()
	}

	s.cron.Start()

	s.httpServer = &http.Server{
		Addr:    s.cfg.Server.HTTPAddress,
		Handler: s.Router(),
	}
	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, closes live sockets and drops every timer.
func (s *GameServer) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		if s.httpServer != nil {
			err = s.httpServer.Shutdown(ctx)
		}
		if s.rpcServer != nil {
			s.rpcServer.Stop()
		}
		<-s.cron.Stop().Done()
		s.mu.Lock()
		if codes := s.registry.Codes(); len(codes) > 0 {
			logger.Log.Infow("closing with open rooms", "count", len(codes), "rooms", codes)
		}
		s.mu.Unlock()
		for _, sess := range s.sessions.All() {
			sess.Close()
		}
		s.timers.Stop()
	})
	return err
}

func (s *GameServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(heartbeatInterval)

	done := make(chan struct{})
	go s.pingLoop(wsConn, done)
	s.Serve(wsConn, r.URL.Query().Get("token"))
	close(done)
}

func (s *GameServer) pingLoop(conn network.Connection, done <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.Ping(); err != nil {
				return
			}
		case <-done:
			return
		case <-s.shutdownChan:
			return
		}
	}
}

// Serve runs one client connection until it closes. token is the identity
// token from a previous connected event; an invalid or empty one gets a new identity.
func (s *GameServer) Serve(conn network.Connection, token string) {
	playerID, err := s.tokens.Verify(token)
	if err != nil {
		playerID = uuid.New().String()
	}
	token, err = s.tokens.Generate(playerID)
	if err != nil {
		logger.Log.Errorw("failed to issue identity token", "error", err)
		conn.Close()
		return
	}

	sess := session.NewSession(uuid.New().String(), playerID, conn, s.newLimiter())
	s.sessions.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infow("new connection", "remote", conn.RemoteAddr(), "session", sess.GetID(), "player", playerID)

	defer func() {
		logger.Log.Infow("connection closed", "remote", conn.RemoteAddr(), "session", sess.GetID(), "player", playerID)
		s.sessions.Remove(sess.GetID())
		s.monitor.DecOnlinePlayers()
		s.handleDisconnect(sess)
		sess.Close()
	}()

	if err := sess.Send(network.EvtConnected, network.ConnectedEvent{PlayerID: playerID, Token: token}); err != nil {
		return
	}
	s.resumeMembership(sess)

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
		}
		env, err := conn.ReadEnvelope()
		if err != nil {
			return
		}
		s.dispatch(sess, env)
	}
}

func (s *GameServer) newLimiter() *rate.Limiter {
	if s.cfg.Rate.PerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(s.cfg.Rate.PerSecond), s.cfg.Rate.Burst)
}

// dispatch runs one command and answers it. A panicking handler only fails that command.
func (s *GameServer) dispatch(sess *session.Session, env *network.Envelope) {
	start := time.Now()
	s.monitor.IncMessagesReceived(env.Event)
	defer func() {
		s.monitor.ObserveMessageLatency(time.Since(start))
	}()

	if !sess.Allow() {
		s.monitor.IncRateLimited()
		s.respondError(sess, env, models.ErrRateLimited, "rate_limited")
		return
	}

	handler, ok := s.handlers[env.Event]
	if !ok {
		s.respondError(sess, env, models.Validation("Unknown event: "+env.Event), "")
		return
	}

	payload, err := s.invoke(handler, sess, env)
	if err != nil {
		s.respondError(sess, env, err, "")
		return
	}
	if env.Ack != 0 {
		if err := sess.Reply(env.Ack, payload); err != nil {
			logger.Log.Debugw("reply failed", "session", sess.GetID(), "event", env.Event, "error", err)
		}
	} else if env.Event == network.CmdPing {
		sess.Send(network.EvtPong, nil)
	}
}

func (s *GameServer) invoke(handler handlerFunc, sess *session.Session, env *network.Envelope) (payload interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorw("handler panic", "event", env.Event, "session", sess.GetID(), "panic", r, "stack", string(debug.Stack()))
			payload, err = nil, models.ErrInternal
		}
	}()
	return handler(sess, env)
}

// respondError answers through the ack when there is one, else as an error event.
// Only GameError messages reach the client.
func (s *GameServer) respondError(sess *session.Session, env *network.Envelope, err error, code string) {
	var gameErr *models.GameError
	if !errors.As(err, &gameErr) {
		logger.Log.Errorw("command failed", "event", env.Event, "session", sess.GetID(), "player", sess.PlayerID, "error", err)
		gameErr = models.ErrInternal
	}
	if code == "" {
		code = gameErr.Kind.String()
	}

	if env.Ack != 0 {
		sess.Reply(env.Ack, network.Fail(gameErr.Message, code))
		return
	}
	sess.Send(network.EvtError, network.ErrorEvent{Message: gameErr.Message, Code: code})
}

func decode(env *network.Envelope, v interface{}) error {
	if err := env.Decode(v); err != nil {
		return models.Validation("Invalid payload")
	}
	return nil
}
