package httpx

import (
	"net/http"
	"time"

	"github.com/ariefcatur/go-pharmacy-store/internal/auth"
	"github.com/ariefcatur/go-pharmacy-store/internal/cart"
	"github.com/ariefcatur/go-pharmacy-store/internal/catalog"
	"github.com/ariefcatur/go-pharmacy-store/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// EventPublisher is the async producer as seen by the handlers.
type EventPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Handler struct {
	Catalog   catalog.Repository
	Orders    orders.Reader
	Finalizer *orders.Finalizer
	Carts     cart.Store
	// Redis guards checkout against concurrent submits of one session; nil disables it.
	Redis *redis.Client

	Auth     *auth.Service
	Sessions *auth.SessionStore
	Users    auth.UserStore

	// Events may be nil, then nothing is published.
	Events       EventPublisher
	Service      string
	CookieSecure bool
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(h.Sessions, h.Users))

		r.Post("/auth/signup", h.signup)
		r.Post("/auth/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)

			r.Post("/auth/logout", h.logout)
			r.Get("/me", h.me)

			r.Get("/categories", h.listCategories)
			r.Get("/categories/{id}", h.getCategory)
			r.Get("/medicines", h.listMedicines)
			r.Get("/medicines/{id}", h.getMedicine)
			r.Get("/search", h.search)

			r.Get("/cart", h.getCart)
			r.Post("/cart/items/{id}", h.addToCart)
			r.Put("/cart/items/{id}", h.setQuantity)
			r.Delete("/cart/items/{id}", h.removeFromCart)
			r.Post("/checkout", h.checkout)

			r.Get("/orders", h.listOrders)
			r.Get("/orders/{id}", h.getOrder)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Use(auth.RequireStaff)

			r.Get("/", h.dashboard)
			r.Get("/orders", h.dashboardOrders)
			r.Post("/categories", h.createCategory)
			r.Put("/categories/{id}", h.updateCategory)
			r.Delete("/categories/{id}", h.deleteCategory)
			r.Post("/medicines", h.createMedicine)
			r.Put("/medicines/{id}", h.updateMedicine)
			r.Delete("/medicines/{id}", h.deleteMedicine)
		})
	})
}
