package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/shopfront-backend/api/controllers"
	"github.com/angelmondragon/shopfront-backend/api/middleware"
	"github.com/angelmondragon/shopfront-backend/internal/cart"
	"github.com/angelmondragon/shopfront-backend/internal/catalog"
	"github.com/angelmondragon/shopfront-backend/internal/wishlist"
	"github.com/angelmondragon/shopfront-backend/pkg/auth/session"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/enums"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/shopfront-backend/pkg/redis"
)

// Dependencies are the services and infrastructure the HTTP surface is built from.
// Optional members (Redis, Sessions, Idempotency, MetricsHandler) may be left nil.
type Dependencies struct {
	DB             controllers.Pinger
	Redis          controllers.Pinger
	Sessions       session.AccessSessionChecker
	Idempotency    pkgredis.IdempotencyStore
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler

	Catalog  catalog.Service
	Cart     cart.Service
	Wishlist wishlist.Service
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.App),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/api/public/v1", func(r chi.Router) {
		r.Get("/products", controllers.CatalogList(deps.Catalog, logg))
		r.Get("/products/{slug}", controllers.CatalogProduct(deps.Catalog, logg))
		r.Get("/collections", controllers.CollectionList(deps.Catalog, logg))
		r.Get("/collections/{slug}", controllers.CollectionDetail(deps.Catalog, logg))
		r.Get("/collections/{slug}/products", controllers.CollectionProducts(deps.Catalog, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		// idempotency needs the full route pattern, so it wraps endpoints rather than the group
		idempotent := middleware.Idempotency(deps.Idempotency, logg)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartFetch(deps.Cart, logg))
			r.With(idempotent).Post("/items", controllers.CartAddItem(deps.Cart, logg))
			r.Put("/items/{itemId}", controllers.CartUpdateItem(deps.Cart, logg))
			r.Delete("/items/{itemId}", controllers.CartRemoveItem(deps.Cart, logg))
		})

		r.Route("/wishlist", func(r chi.Router) {
			r.Get("/", controllers.WishlistFetch(deps.Wishlist, logg))
			r.With(idempotent).Post("/items", controllers.WishlistAddItem(deps.Wishlist, logg))
			r.Delete("/items/{itemId}", controllers.WishlistRemoveItem(deps.Wishlist, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))

		r.Post("/products", controllers.AdminCreateProduct(deps.Catalog, logg))
		r.Patch("/products/{productId}", controllers.AdminUpdateProduct(deps.Catalog, logg))
		r.Post("/products/{productId}/sizes", controllers.AdminAddSize(deps.Catalog, logg))
		r.Put("/sizes/{sizeId}/stock", controllers.AdminSetStock(deps.Catalog, logg))

		r.Get("/collections", controllers.AdminListCollections(deps.Catalog, logg))
		r.Post("/collections", controllers.AdminCreateCollection(deps.Catalog, logg))
		r.Post("/collections/bulk-activate", controllers.AdminBulkSetCollectionsActive(deps.Catalog, logg, true))
		r.Post("/collections/bulk-deactivate", controllers.AdminBulkSetCollectionsActive(deps.Catalog, logg, false))
		r.Patch("/collections/{collectionId}", controllers.AdminUpdateCollection(deps.Catalog, logg))
		r.Delete("/collections/{collectionId}", controllers.AdminDeleteCollection(deps.Catalog, logg))
		r.Post("/collections/{collectionId}/activate", controllers.AdminSetCollectionActive(deps.Catalog, logg, true))
		r.Post("/collections/{collectionId}/deactivate", controllers.AdminSetCollectionActive(deps.Catalog, logg, false))
	})

	return r
}
