package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	custommiddleware "github.com/mmeshcher/rentalhub/internal/middleware"
	"github.com/mmeshcher/rentalhub/internal/model"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса проката.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.Metrics(h.metrics))

	r.Get("/healthz", h.Health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
	r.Get("/invoice/public/{token}", h.PublicInvoice)

	requireAdmin := custommiddleware.RequireRole(model.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Get("/products", h.ListProducts)
		r.With(h.authMiddleware.Middleware, requireAdmin).Post("/products", h.CreateProduct)

		r.Route("/packages", func(r chi.Router) {
			r.Get("/", h.ListPackages)
			r.Get("/{id}", h.GetPackage)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.Middleware, requireAdmin)

				r.Post("/", h.CreatePackage)
				r.Put("/{id}", h.UpdatePackage)
				r.Delete("/{id}", h.DeletePackage)
			})
		})

		r.With(h.authMiddleware.Optional).Post("/orders", h.CreateOrder)
		r.With(h.authMiddleware.Middleware).Get("/orders/my-orders", h.MyOrders)

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware, requireAdmin)

			r.Get("/orders", h.ListOrders)
			r.Post("/orders/{id}/confirm-payment", h.ConfirmPayment)
			r.Post("/orders/{id}/status", h.UpdateOrderStatus)

			r.Get("/invoices", h.ListInvoices)
			r.Post("/invoices", h.CreateInvoice)

			r.Get("/users", h.ListUsers)
			r.Get("/notifications", h.SystemNotifications)

			r.Post("/workers", h.CreateWorker)
			r.Get("/workers/{id}", h.GetWorker)
			r.Post("/workers/{id}", h.AssignJob)
			r.Patch("/workers/{id}", h.UpdateWorker)
			r.Post("/workers/{id}/message", h.SendWorkerMessage)
		})

		r.Route("/worker", func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.With(custommiddleware.RequireRole(model.RoleWorker, model.RoleAdmin)).
				Patch("/schedules/{id}", h.UpdateScheduleStatus)

			r.Group(func(r chi.Router) {
				r.Use(custommiddleware.RequireRole(model.RoleWorker))

				r.Get("/schedules", h.WorkerSchedules)
				r.Get("/notifications", h.WorkerNotifications)
				r.Patch("/notifications", h.MarkNotificationRead)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "")
	})

	return r
}
