package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/hearthquest/internal/auth"
	"github.com/dukerupert/hearthquest/internal/backup"
	"github.com/dukerupert/hearthquest/internal/challenge"
	"github.com/dukerupert/hearthquest/internal/handler"
	"github.com/dukerupert/hearthquest/internal/middleware"
	"github.com/dukerupert/hearthquest/internal/push"
	"github.com/dukerupert/hearthquest/internal/store"
	"github.com/dukerupert/hearthquest/internal/sync"
	ws "github.com/dukerupert/hearthquest/internal/websocket"
	"github.com/dukerupert/hearthquest/internal/workflow"
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	feed        *sync.Feed
	issuer      *auth.TokenIssuer
	pairingH    *handler.PairingHandler
	profileH    *handler.ProfileHandler
	missionH    *handler.MissionHandler
	dayH        *handler.DayHandler
	challengeH  *handler.ChallengeHandler
	settingsH   *handler.SettingsHandler
	pushH       *handler.PushHandler
	rateLimiter *middleware.RateLimiter

	notifier      *push.Notifier
	pushScheduler *push.Scheduler
	backupManager *backup.Manager
	logger        *slog.Logger
}

func New(db *sql.DB, issuer *auth.TokenIssuer, backupCfg backup.Config, pushCfg push.Config, logger *slog.Logger) *Server {
	feed := sync.NewFeed(logger.With("component", "feed"))
	hub := ws.NewHub(logger.With("component", "websocket"))

	familyStore := store.NewFamilyStore(db)
	profileStore := store.NewProfileStore(db)
	missionStore := store.NewMissionStore(db)
	logStore := store.NewDailyLogStore(db)
	challengeStore := store.NewChallengeStore(db)
	settingsStore := store.NewSettingsStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	tracker := challenge.NewTracker(challengeStore, logStore, profileStore, feed, logger.With("component", "challenge"))
	flow := workflow.NewService(logStore, missionStore, profileStore, tracker, feed, logger.With("component", "workflow"))

	pushLogger := logger.With("component", "push")
	var pushSvc *push.Service
	var notifier *push.Notifier
	var pushSched *push.Scheduler
	var pushH *handler.PushHandler
	if pushCfg.VAPIDPublicKey != "" && pushCfg.VAPIDPrivateKey != "" {
		pushSvc = push.NewService(pushCfg)
		notifier = push.NewNotifier(pushSvc, flow, pushStore, profileStore, challengeStore, feed, pushLogger)
		pushSched = push.NewScheduler(pushSvc, notifier, familyStore, missionStore, profileStore, logStore, pushLogger)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
	}

	backupMgr := backup.NewManager(backupCfg, db, backupStore, logger.With("component", "backup"))

	return &Server{
		db:            db,
		hub:           hub,
		feed:          feed,
		issuer:        issuer,
		pairingH:      handler.NewPairingHandler(familyStore, profileStore, issuer, logger.With("component", "pairing")),
		profileH:      handler.NewProfileHandler(profileStore, logger.With("component", "profile")),
		missionH:      handler.NewMissionHandler(missionStore, feed, logger.With("component", "mission")),
		dayH:          handler.NewDayHandler(flow, logger.With("component", "day")),
		challengeH:    handler.NewChallengeHandler(tracker, logger.With("component", "challenge_handler")),
		settingsH:     handler.NewSettingsHandler(settingsStore, logger.With("component", "settings")),
		pushH:         pushH,
		rateLimiter:   middleware.NewRateLimiter(),
		notifier:      notifier,
		pushScheduler: pushSched,
		backupManager: backupMgr,
		logger:        logger,
	}
}

// Feed exposes the event feed so the hub bridge and background consumers
// can subscribe.
func (s *Server) Feed() *sync.Feed {
	return s.feed
}

// Hub returns the websocket hub for the feed bridge.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Notifier returns the push notifier, nil when VAPID keys are absent.
func (s *Server) Notifier() *push.Notifier {
	return s.notifier
}

// PushScheduler returns the reminder scheduler, nil when push is disabled.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("POST /api/setup", s.rateLimitedHandler(s.pairingH.Setup))
	outerMux.HandleFunc("POST /api/pair", s.rateLimitedHandler(s.pairingH.Pair))

	// Authenticated routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.issuer)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	parent := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireParent(h)
	}

	// Profiles
	mux.HandleFunc("GET /api/profiles", s.profileH.List)
	mux.Handle("POST /api/profiles", parent(s.profileH.Create))
	mux.Handle("PUT /api/profiles/{id}", parent(s.profileH.Update))
	mux.Handle("DELETE /api/profiles/{id}", parent(s.profileH.Delete))
	mux.Handle("POST /api/profiles/{id}/invite-code", parent(s.profileH.RotateInviteCode))
	mux.Handle("POST /api/profiles/{id}/pin", parent(s.profileH.SetPIN))
	mux.HandleFunc("POST /api/profiles/{id}/pin/verify", s.profileH.VerifyPIN)

	// Missions
	mux.HandleFunc("GET /api/missions", s.missionH.List)
	mux.Handle("POST /api/missions", parent(s.missionH.Create))
	mux.Handle("PUT /api/missions/{id}", parent(s.missionH.Update))
	mux.Handle("DELETE /api/missions/{id}", parent(s.missionH.Delete))
	mux.Handle("PUT /api/missions/sort", parent(s.missionH.Reorder))

	// Daily workflow
	mux.HandleFunc("GET /api/days/{date}/logs", s.dayH.GetDay)
	mux.HandleFunc("POST /api/missions/{id}/toggle", s.dayH.ToggleMission)
	mux.HandleFunc("POST /api/days/{date}/request-validation", s.dayH.RequestValidation)
	mux.Handle("POST /api/missions/{id}/validate", parent(s.dayH.ValidateMission))
	mux.Handle("POST /api/days/{date}/close", parent(s.dayH.CloseDay))
	mux.HandleFunc("POST /api/days/{date}/acknowledge", s.dayH.AcknowledgeResult)

	// Challenge
	mux.HandleFunc("GET /api/challenge", s.challengeH.Get)
	mux.Handle("POST /api/challenge/renew", parent(s.challengeH.Renew))
	mux.HandleFunc("POST /api/challenge/acknowledge", s.challengeH.Acknowledge)

	// Settings
	mux.HandleFunc("GET /api/settings", s.settingsH.GetAll)
	mux.Handle("PUT /api/settings", parent(s.settingsH.Set))

	// Push notifications
	if s.pushH != nil {
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
	}

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.logger.With("component", "ws_handler")))
}
