package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tiketahq/tiketa-backend/api/controllers"
	"github.com/tiketahq/tiketa-backend/api/middleware"
	"github.com/tiketahq/tiketa-backend/internal/discounts"
	"github.com/tiketahq/tiketa-backend/internal/notifications"
	"github.com/tiketahq/tiketa-backend/internal/points"
	"github.com/tiketahq/tiketa-backend/internal/transactions"
	"github.com/tiketahq/tiketa-backend/pkg/config"
	"github.com/tiketahq/tiketa-backend/pkg/enums"
	"github.com/tiketahq/tiketa-backend/pkg/logger"
)

// RouterParams collects everything the HTTP surface depends on.
type RouterParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	ReadyChecks   map[string]controllers.Pinger
	Transactions  *transactions.Service
	Points        points.Ledger
	Coupons       discounts.Catalog
	Notifications notifications.Service
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, p.ReadyChecks))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/transactions", func(r chi.Router) {
			r.Post("/", controllers.CreateTransaction(p.Transactions, logg))
			r.Get("/", controllers.ListMyTransactions(p.Transactions, logg))
			r.Get("/{transactionId}", controllers.TransactionDetail(p.Transactions, logg))
			r.Post("/{transactionId}/payment-proof", controllers.UploadPaymentProof(p.Transactions, logg, cfg.Checkout.MaxProofSizeMB))
			r.Post("/{transactionId}/cancel", controllers.CancelTransaction(p.Transactions, logg))
		})

		r.Route("/v1/points", func(r chi.Router) {
			r.Get("/", controllers.PointsBalance(p.Points, logg))
			r.Get("/history", controllers.PointsHistory(p.Points, logg))
		})

		r.Route("/v1/coupons", func(r chi.Router) {
			r.Get("/", controllers.ListMyCoupons(p.Coupons, logg))
		})

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
		})

		r.Route("/v1/organizer", func(r chi.Router) {
			r.Use(middleware.RequireRole(string(enums.UserRoleOrganizer), logg))
			r.Get("/transactions", controllers.ListOrganizerTransactions(p.Transactions, logg))
			r.Post("/transactions/{transactionId}/decision", controllers.DecideTransaction(p.Transactions, logg))
		})
	})

	return r
}
