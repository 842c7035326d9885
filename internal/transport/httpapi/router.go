package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// NewRouter собирает REST-маршруты ядра заказов.
func NewRouter(handler *Handler, logger *log.Entry) http.Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(withCaller)

	r.Route("/order", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireMember)

			r.Post("/buy", handler.CreateOrder)
			r.Get("/{ordersID}", handler.GetOrder)
			r.Get("/{ordersID}/events", handler.OrderEvents)
			r.Get("/members/{memberID}", handler.ListMemberOrders)
			r.Patch("/{ordersID}/status", handler.ChangeStatus)
			r.Patch("/{ordersID}/address", handler.UpdateAddress)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)

			r.Get("/", handler.ListOrders)
			r.Get("/admin/erp", handler.ERPReport)
			r.Post("/admin/{ordersID}/status", handler.AdminChangeStatus)
		})
	})

	r.Route("/api/pay/toss", func(r chi.Router) {
		r.Use(requireMember)

		r.Post("/prepare", handler.PreparePayment)
		r.Post("/confirm", handler.ConfirmPayment)
	})

	return r
}
