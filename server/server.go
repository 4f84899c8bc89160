package server

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/wfunc/bopserver/broadcast"
	"github.com/wfunc/bopserver/deck"
	"github.com/wfunc/bopserver/game"
	"github.com/wfunc/bopserver/logger"
	"github.com/wfunc/bopserver/monitor"
	"github.com/wfunc/bopserver/network"
	"github.com/wfunc/bopserver/protocol"
	"github.com/wfunc/bopserver/room"
	"github.com/wfunc/bopserver/session"
)

// Options configure the HTTP surface.
type Options struct {
	Addr           string
	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
	Heartbeat      time.Duration
}

type GameServer struct {
	opts           Options
	engine         *gin.Engine
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	broadcaster    *broadcast.Broadcaster
	monitor        *monitor.Monitor
	catalog        *deck.Catalog
	newID          func() string
}

func NewGameServer(opts Options, rooms *room.Manager, bc *broadcast.Broadcaster, mon *monitor.Monitor, catalog *deck.Catalog) *GameServer {
	s := &GameServer{
		opts:           opts,
		roomManager:    rooms,
		sessionManager: session.NewManager(),
		broadcaster:    bc,
		monitor:        mon,
		catalog:        catalog,
		newID:          newPlayerID,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.engine = s.routes()
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// newPlayerID issues a time-ordered opaque id.
func newPlayerID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (s *GameServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	corsConfig := cors.Config{
		AllowMethods: []string{http.MethodGet},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(s.opts.AllowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = s.opts.AllowedOrigins
	}
	r.Use(cors.New(corsConfig))

	r.GET("/ws", s.handleWebSocket)
	r.GET("/healthz", s.handleHealth)
	r.GET("/packs", s.handlePacks)
	r.GET("/metrics", gin.WrapH(s.monitor.Handler()))
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log.Debugw("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *GameServer) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.opts.AllowedOrigins, origin)
}

// Handler exposes the router, mainly for tests.
func (s *GameServer) Handler() http.Handler {
	return s.engine
}

// Start serves HTTP until Shutdown is called.
func (s *GameServer) Start() error {
	logger.Log.Infof("Game server listening on %s", s.opts.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections, then closes every websocket and room.
func (s *GameServer) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.sessionManager.CloseAll()
	s.roomManager.CloseAll()
	return err
}

func (s *GameServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"rooms":       s.roomManager.Count(),
		"connections": s.sessionManager.Count(),
	})
}

func (s *GameServer) handlePacks(c *gin.Context) {
	c.JSON(http.StatusOK, s.catalog.Info())
}

func (s *GameServer) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(network.NewWSConnection(conn))
}

func (s *GameServer) handleConnection(wsConn *network.WSConnection) {
	if s.opts.Heartbeat > 0 {
		wsConn.SetHeartbeat(s.opts.Heartbeat)
	}
	wsConn.Start()

	sess := session.NewSession(uuid.NewString(), wsConn, rate.Limit(s.opts.RateLimit), s.opts.RateBurst)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlineConnections()
	logger.Log.Infow("connection opened", "session", sess.GetID(), "remote", wsConn.RemoteAddr().String())

	defer func() {
		s.release(sess)
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecOnlineConnections()
		wsConn.Close()
		logger.Log.Infow("connection closed", "session", sess.GetID())
	}()

	for {
		data, err := wsConn.ReadMessage()
		if err != nil {
			return
		}
		s.handleMessage(sess, data)
	}
}

func (s *GameServer) handleMessage(sess *session.Session, data []byte) {
	start := time.Now()
	defer func() { s.monitor.ObserveMessageLatency(time.Since(start)) }()

	if !sess.Allow() {
		s.reply(sess, protocol.NewError(game.Validationf("Too many messages, slow down")))
		return
	}
	cmd, err := protocol.Decode(data)
	if err != nil {
		s.monitor.IncMessagesReceived("invalid")
		s.reply(sess, protocol.NewError(err))
		return
	}
	s.monitor.IncMessagesReceived(string(cmd.Kind()))

	switch c := cmd.(type) {
	case *protocol.CreateRoom:
		s.handleCreateRoom(sess, c)
	case *protocol.JoinRoom:
		s.handleJoinRoom(sess, c)
	case *protocol.LeaveRoom:
		s.handleLeaveRoom(sess)
	default:
		s.forward(sess, cmd)
	}
}

func (s *GameServer) reply(sess *session.Session, msg protocol.Message) {
	s.broadcaster.ToOne(sess.GetID(), sess, msg)
}

func (s *GameServer) handleCreateRoom(sess *session.Session, c *protocol.CreateRoom) {
	playerID := c.PlayerID
	if playerID == "" {
		playerID = s.newID()
	}
	rm, err := s.roomManager.CreateRoom(game.Player{ID: playerID, Name: c.PlayerName}, c.Settings, c.VoiceEnabled, sess)
	if err != nil {
		s.reply(sess, protocol.NewError(err))
		return
	}
	s.rebind(sess, playerID, rm.Code)
}

func (s *GameServer) handleJoinRoom(sess *session.Session, c *protocol.JoinRoom) {
	rm, ok := s.roomManager.GetRoom(c.Code)
	if !ok {
		s.reply(sess, protocol.NewError(game.ErrRoomNotFound))
		return
	}

	playerID := c.PlayerID
	if playerID == "" {
		playerID = s.newID()
	}
	if err := rm.Join(playerID, c.PlayerName, sess); err != nil {
		s.reply(sess, protocol.NewError(err))
		return
	}
	s.rebind(sess, playerID, rm.Code)
}

func (s *GameServer) handleLeaveRoom(sess *session.Session) {
	playerID, code := sess.Binding()
	if playerID == "" {
		s.reply(sess, protocol.NewError(game.ErrNotInRoom))
		return
	}
	if rm, ok := s.roomManager.GetRoom(code); ok {
		rm.Leave(playerID, sess)
	}
	sess.Unbind()
}

// forward hands an in-room command to the session's room.
func (s *GameServer) forward(sess *session.Session, cmd protocol.Command) {
	playerID, code := sess.Binding()
	if playerID == "" {
		s.reply(sess, protocol.NewError(game.ErrNotInRoom))
		return
	}
	rm, ok := s.roomManager.GetRoom(code)
	if !ok || !rm.Handle(playerID, sess, cmd) {
		sess.Unbind()
		s.reply(sess, protocol.NewError(game.ErrRoomNotFound))
	}
}

// release drops the session's current room binding, keeping the player's seat.
func (s *GameServer) release(sess *session.Session) {
	playerID, code := sess.Binding()
	if playerID == "" {
		return
	}
	if rm, ok := s.roomManager.GetRoom(code); ok {
		rm.Disconnect(playerID, sess)
	}
	sess.Unbind()
}

// rebind moves the session to its new seat after a successful create or join. The
// previous seat is released unless it is the one just rejoined.
func (s *GameServer) rebind(sess *session.Session, playerID, code string) {
	oldID, oldCode := sess.Binding()
	if oldID != "" && (oldID != playerID || oldCode != code) {
		if rm, ok := s.roomManager.GetRoom(oldCode); ok {
			rm.Disconnect(oldID, sess)
		}
	}
	sess.Bind(playerID, code)
}
