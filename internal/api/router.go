package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/contractorhub/internal/account"
	"github.com/nikhilbhutani/contractorhub/internal/api/handlers"
	"github.com/nikhilbhutani/contractorhub/internal/api/middleware"
	"github.com/nikhilbhutani/contractorhub/internal/audit"
	"github.com/nikhilbhutani/contractorhub/internal/auth"
	"github.com/nikhilbhutani/contractorhub/internal/cache"
	"github.com/nikhilbhutani/contractorhub/internal/config"
	"github.com/nikhilbhutani/contractorhub/internal/dispatch"
	"github.com/nikhilbhutani/contractorhub/internal/invite"
	"github.com/nikhilbhutani/contractorhub/internal/models"
	"github.com/nikhilbhutani/contractorhub/internal/notification"
	"github.com/nikhilbhutani/contractorhub/internal/push"
	"github.com/nikhilbhutani/contractorhub/internal/queue"
	"github.com/nikhilbhutani/contractorhub/internal/roles"
	"github.com/nikhilbhutani/contractorhub/internal/webhook"
)

// Services is everything the HTTP surface calls into.
type Services struct {
	Accounts      *account.Service
	Evaluator     *roles.Evaluator
	Roles         *roles.Service
	Audit         *audit.Recorder
	Invites       *invite.Service
	Notifications *notification.Service
	Webhooks      *webhook.Service
	// Push is nil when push delivery is disabled.
	Push       *push.Subscriptions
	Dispatcher handlers.EventDispatcher
	Health     map[string]handlers.Pinger
}

// NewServices wires the production graph. gateway may be nil to disable push.
func NewServices(db *pgxpool.Pool, rdb *redis.Client, qc *queue.Client, gateway *push.Gateway, cfg *config.Config) *Services {
	accounts := account.NewService(db)
	recorder := audit.NewRecorder(db)

	store := roles.NewPGStore(db)
	snapshots := roles.NewCachedSource(store, cache.NewCache(rdb), cfg.Cache.RoleSnapshotTTL)
	eval := roles.NewEvaluator(snapshots)

	notifications := notification.NewService(db)
	webhooks := webhook.NewService(db, qc, recorder)

	var sender push.Sender = push.NopSender{}
	var subs *push.Subscriptions
	if gateway != nil {
		sender = push.NewQueueSender(qc, cfg.Dispatch.PushConcurrency, cfg.Dispatch.PushTimeout)
		subs = push.NewSubscriptions(db, gateway)
	}

	dispatcher := dispatch.New(notifications, eval, accounts, sender, webhooks)

	return &Services{
		Accounts:      accounts,
		Evaluator:     eval,
		Roles:         roles.NewService(store, eval, recorder, snapshots),
		Audit:         recorder,
		Invites:       invite.NewService(db, eval, recorder, dispatcher, snapshots),
		Notifications: notifications,
		Webhooks:      webhooks,
		Push:          subs,
		Dispatcher:    dispatcher,
		Health: map[string]handlers.Pinger{
			"database": db,
			"redis":    handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		},
	}
}

type Router struct {
	mux     *chi.Mux
	cfg     *config.Config
	svc     *Services
	jwt     *auth.JWTMiddleware
	svcKey  *auth.ServiceKeyMiddleware
	guard   *auth.ContractorGuard
	limiter *middleware.RateLimiter
}

func NewRouter(svc *Services, cfg *config.Config) *Router {
	return &Router{
		mux:     chi.NewRouter(),
		cfg:     cfg,
		svc:     svc,
		jwt:     auth.NewJWTMiddleware(cfg.Auth.JWTSecret, svc.Accounts),
		svcKey:  auth.NewServiceKeyMiddleware(cfg.Auth.ServiceKeyHeader, cfg.Auth.ServiceKeyHash),
		guard:   auth.NewContractorGuard(svc.Accounts, svc.Evaluator),
		limiter: middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
}

// Limiter exposes the rate limiter so the caller can run its cleanup loop.
func (rt *Router) Limiter() *middleware.RateLimiter {
	return rt.limiter
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.AllowedOrigins, rt.cfg.Auth.ServiceKeyHeader))

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.svc.Health)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	// Event ingress from the marketplace backend
	events := handlers.NewEventHandler(rt.svc.Dispatcher)
	r.Route("/internal", func(r chi.Router) {
		r.Use(rt.svcKey.Authenticate)
		r.Post("/events/{kind}", events.Post)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.limiter.Limit)
		r.Use(rt.jwt.Authenticate)

		roleH := handlers.NewRoleHandler(rt.svc.Roles)
		inviteH := handlers.NewInviteHandler(rt.svc.Invites)
		auditH := handlers.NewAuditHandler(rt.svc.Audit)
		webhookH := handlers.NewWebhookHandler(rt.svc.Webhooks)
		notifH := handlers.NewNotificationHandler(rt.svc.Notifications)

		// Contractor-scoped routes
		r.Route("/contractors/{"+auth.ContractorParam+"}", func(r chi.Router) {
			// Role and member rules are enforced by roles.Service.
			r.Group(func(r chi.Router) {
				r.Use(rt.guard.Resolve)
				r.Get("/roles", roleH.List)
				r.Post("/roles", roleH.Create)
				r.Put("/roles/{role_id}", roleH.Update)
				r.Delete("/roles/{role_id}", roleH.Delete)
				r.Get("/members", roleH.ListMembers)
				r.Put("/members/{user_id}/roles/{role_id}", roleH.AssignRole)
				r.Delete("/members/{user_id}/roles/{role_id}", roleH.RemoveRole)
				r.Delete("/members/{user_id}", roleH.Kick)
				r.Post("/transfer-ownership", roleH.TransferOwnership)
				r.Get("/invites", inviteH.ListForContractor)
				r.Post("/invites", inviteH.Create)
			})

			r.With(rt.guard.RequirePermission(models.PermManageOrgDetails)).Get("/audit-logs", auditH.ContractorLogs)

			r.Route("/webhooks", func(r chi.Router) {
				r.Use(rt.guard.RequirePermission(models.PermManageWebhooks))
				r.Post("/", webhookH.Create)
				r.Get("/", webhookH.List)
				r.Delete("/{webhook_id}", webhookH.Delete)
			})
		})

		// Caller-scoped routes
		r.Route("/me", func(r chi.Router) {
			r.Get("/invites", inviteH.ListMine)
			r.Post("/invites/{invite_id}/accept", inviteH.Accept)
			r.Post("/invites/{invite_id}/decline", inviteH.Decline)

			r.Route("/webhooks", func(r chi.Router) {
				r.Post("/", webhookH.Create)
				r.Get("/", webhookH.List)
				r.Delete("/{webhook_id}", webhookH.Delete)
			})

			if rt.svc.Push != nil {
				pushH := handlers.NewPushHandler(rt.svc.Push)
				r.Post("/push-subscriptions", pushH.Subscribe)
				r.Get("/push-subscriptions", pushH.List)
				r.Delete("/push-subscriptions/{subscription_id}", pushH.Unsubscribe)
			}
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", notifH.List)
			r.Get("/unread-count", notifH.UnreadCount)
			r.Post("/read", notifH.MarkRead)
			r.Post("/read-all", notifH.MarkAllRead)
			r.Delete("/{notification_id}", notifH.Delete)
		})

		// Site admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireSiteAdmin)
			r.Get("/audit-logs", auditH.AllLogs)
		})
	})

	return r
}
