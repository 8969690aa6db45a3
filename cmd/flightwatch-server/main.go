// flightwatch-server is the HTTP + WebSocket control plane in front of a
// trackfactory.Factory: read-only REST introspection for every tracked
// aircraft, a live WebSocket feed of the five observable event streams, and
// JWT-gated admin actions (detach, force-expire).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/soarwatch/flighttrack/internal/auth"
	"github.com/soarwatch/flighttrack/internal/tracklog"
	"github.com/soarwatch/flighttrack/pkg/config"
	"github.com/soarwatch/flighttrack/pkg/flightcontext"
	"github.com/soarwatch/flighttrack/pkg/trackfactory"
)

var (
	configPath = flag.String("config", "configs/flighttrack.json", "Path to configuration file")
	port       = flag.Int("port", 8080, "HTTP server port")
)

// Server wires a trackfactory.Factory to chi's router.
type Server struct {
	router   *chi.Mux
	factory  *trackfactory.Factory
	authSvc  *auth.Service
	logger   *log.Logger
	upgrader websocket.Upgrader
	users    map[string]demoUser

	attachMu sync.Mutex
	// attachedBy records, for each aircraft ID attached through this control
	// plane, the user ID of the duty pilot who attached it. An aircraft ID
	// absent from this map was never explicitly attached (it was
	// materialised implicitly by an incoming report) and is unowned.
	attachedBy map[string]int
}

type demoUser struct {
	ID           int
	Username     string
	PasswordHash string
	Role         string
}

func main() {
	flag.Parse()

	logger := tracklog.New("flightwatch-server")
	logger.Printf("starting flightwatch-server")

	opts, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}

	factory := trackfactory.New(opts, logger)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()
	go factory.Run(runCtx)

	authSvc := auth.NewService(auth.Config{
		JWTSecret:     getEnvOrDefault("JWT_SECRET", "dev-secret-change-in-production"),
		TokenDuration: 24 * time.Hour,
	})

	srv := &Server{
		router:  chi.NewRouter(),
		factory: factory,
		authSvc: authSvc,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		users:      seedDemoUsers(authSvc, logger),
		attachedBy: make(map[string]int),
	}
	srv.setupRoutes()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      srv.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on http://localhost:%d", *port)
		logger.Printf("demo login: admin / admin")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Printf("shutting down")
	cancelRun()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("server forced to shutdown: %v", err)
	}
	logger.Printf("stopped")
}

// seedDemoUsers mirrors the teacher's runMigrations seeding a default admin
// account: there is no persisted user table in this module, so the control
// plane's login endpoint checks against a small fixed set of accounts
// hashed at startup instead of a database round trip.
func seedDemoUsers(authSvc *auth.Service, logger *log.Logger) map[string]demoUser {
	plain := map[string]struct {
		id   int
		role string
	}{
		"admin":      {1, auth.RoleAdmin},
		"dutypilot1": {2, auth.RoleDutyPilot},
		"dutypilot2": {3, auth.RoleDutyPilot},
		"viewer1":    {4, auth.RoleViewer},
	}
	users := make(map[string]demoUser, len(plain))
	for username, u := range plain {
		hash, err := authSvc.HashPassword(username) // demo password == username
		if err != nil {
			logger.Printf("hashing demo password for %s: %v", username, err)
			continue
		}
		users[username] = demoUser{ID: u.id, Username: username, PasswordHash: hash, Role: u.role}
	}
	return users
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleGetCurrentUser)
			r.Get("/aircraft", s.handleListAircraft)
			r.Get("/aircraft/{id}", s.handleGetAircraft)

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(auth.RoleDutyPilot))
				r.Post("/aircraft/{id}/attach", s.handleAttach)
				r.Post("/aircraft/{id}/detach", s.handleDetach)
				r.Post("/contexts/{id}/expire-now", s.handleExpireNow)
			})
		})

		r.Get("/ws/events", s.handleWebSocket)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}
		var token string
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		} else {
			http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
			return
		}

		claims, err := s.authSvc.ValidateToken(token)
		if err != nil {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyRole, claims.Role)
		ctx = context.WithValue(ctx, ctxKeyUsername, claims.Username)
		ctx = context.WithValue(ctx, ctxKeyUserID, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type ctxKey int

const (
	ctxKeyRole ctxKey = iota
	ctxKeyUsername
	ctxKeyUserID
)

func (s *Server) requireRole(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := r.Context().Value(ctxKeyRole).(string)
			if !auth.HasRole(role, required) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	user, ok := s.users[req.Username]
	if !ok {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err := s.authSvc.ComparePassword(user.PasswordHash, req.Password); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := s.authSvc.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		http.Error(w, "failed to generate token", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":       user.ID,
			"username": user.Username,
			"role":     user.Role,
		},
	})
}

func (s *Server) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	username, _ := r.Context().Value(ctxKeyUsername).(string)
	role, _ := r.Context().Value(ctxKeyRole).(string)
	respondJSON(w, http.StatusOK, map[string]interface{}{"username": username, "role": role})
}

func (s *Server) handleListAircraft(w http.ResponseWriter, r *http.Request) {
	snaps := s.factory.Nearby("") // no aircraft excluded: a snapshot of everything tracked
	respondJSON(w, http.StatusOK, snaps)
}

func (s *Server) handleGetAircraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx, ok := s.factory.GetContext(id)
	if !ok {
		http.Error(w, "aircraft not tracked", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, ctx.Snapshot())
}

// handleAttach records the calling duty pilot as the owner of aircraftID's
// context, materialising one via AttachNew if none is tracked yet. Once
// attached, only this duty pilot (or an admin) may detach or expire it.
func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID, _ := r.Context().Value(ctxKeyUserID).(int)

	s.attachMu.Lock()
	if _, ok := s.factory.GetContext(id); !ok {
		s.factory.AttachNew(id)
	}
	s.attachedBy[id] = userID
	s.attachMu.Unlock()

	respondJSON(w, http.StatusOK, map[string]interface{}{"attached": id})
}

// ownerCheck reports whether the requester may manage aircraftID's
// attachment, per auth.CanManageAttachment, and writes a 403 if not.
func (s *Server) ownerCheck(w http.ResponseWriter, r *http.Request, aircraftID string) bool {
	role, _ := r.Context().Value(ctxKeyRole).(string)
	requesterID, _ := r.Context().Value(ctxKeyUserID).(int)

	s.attachMu.Lock()
	ownerID := s.attachedBy[aircraftID]
	s.attachMu.Unlock()

	if !auth.CanManageAttachment(role, requesterID, ownerID) {
		http.Error(w, "forbidden: attached by another duty pilot", http.StatusForbidden)
		return false
	}
	return true
}

func (s *Server) handleDetach(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.ownerCheck(w, r, id) {
		return
	}
	if _, ok := s.factory.Detach(id); !ok {
		http.Error(w, "aircraft not tracked", http.StatusNotFound)
		return
	}
	s.attachMu.Lock()
	delete(s.attachedBy, id)
	s.attachMu.Unlock()
	respondJSON(w, http.StatusOK, map[string]interface{}{"detached": id})
}

// handleExpireNow disposes a context immediately, bypassing the idle-sweep
// cutoff, for operator-initiated cleanup (e.g. a known-scrapped aircraft ID).
func (s *Server) handleExpireNow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.ownerCheck(w, r, id) {
		return
	}
	ctx, ok := s.factory.Detach(id)
	if !ok {
		http.Error(w, "aircraft not tracked", http.StatusNotFound)
		return
	}
	s.attachMu.Lock()
	delete(s.attachedBy, id)
	s.attachMu.Unlock()
	ctx.Dispose()
	respondJSON(w, http.StatusOK, map[string]interface{}{"expired": id})
}

// handleWebSocket upgrades the connection and streams every factory event
// as JSON. Each connection gets its own bounded outbound queue; a slow
// reader has events dropped rather than blocking the factory's dispatch
// goroutine, per the at-most-once delivery contract of the event streams.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	outbound := make(chan flightcontext.Event, 64)
	dropped := 0

	var unsubs []func()
	for _, t := range []flightcontext.EventType{
		flightcontext.EventTakeoff,
		flightcontext.EventLanding,
		flightcontext.EventRadarContact,
		flightcontext.EventCompletedWithErrors,
		flightcontext.EventContextDisposed,
	} {
		unsubs = append(unsubs, s.factory.Subscribe(t, func(e flightcontext.Event) {
			select {
			case outbound <- e:
			default:
				dropped++
			}
		}))
	}
	defer func() {
		for _, u := range unsubs {
			u()
		}
		if dropped > 0 {
			s.logger.Printf("websocket client dropped %d events", dropped)
		}
	}()

	for e := range outbound {
		if err := conn.WriteJSON(e); err != nil {
			return
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
