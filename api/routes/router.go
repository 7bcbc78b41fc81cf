package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pinielabera/thriftndrift-backend/api/controllers"
	"github.com/pinielabera/thriftndrift-backend/api/middleware"
	"github.com/pinielabera/thriftndrift-backend/internal/admins"
	"github.com/pinielabera/thriftndrift-backend/internal/catalog"
	"github.com/pinielabera/thriftndrift-backend/internal/cities"
	"github.com/pinielabera/thriftndrift-backend/internal/cityrequests"
	"github.com/pinielabera/thriftndrift-backend/internal/favorites"
	"github.com/pinielabera/thriftndrift-backend/internal/finds"
	"github.com/pinielabera/thriftndrift-backend/internal/notifications"
	"github.com/pinielabera/thriftndrift-backend/internal/submissions"
	"github.com/pinielabera/thriftndrift-backend/pkg/config"
	"github.com/pinielabera/thriftndrift-backend/pkg/logger"
	"github.com/pinielabera/thriftndrift-backend/pkg/redis"
)

// Services groups everything the router hands to controllers.
type Services struct {
	Catalog       *catalog.Service
	Cities        *cities.Service
	Submissions   submissions.Service
	Admins        admins.Service
	Favorites     favorites.Service
	Finds         finds.Service
	CityRequests  cityrequests.Service
	Notifications notifications.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	readiness map[string]controllers.Pinger,
	metricsHandler http.Handler,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	// Public catalog surface. Browsing needs no account.
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stores", controllers.ListStores(svcs.Catalog, logg))
		r.Get("/stores/search", controllers.SearchStores(svcs.Catalog, logg))
		r.Get("/states", controllers.ListStates(svcs.Catalog, logg))
		r.Post("/region", controllers.SwitchRegion(svcs.Catalog, logg))

		r.Get("/cities", controllers.ListCities(svcs.Cities, svcs.Catalog.Region, logg))
		r.Get("/cities/search", controllers.SearchCities(svcs.Cities, logg))
		r.Get("/cities/{cityId}/stores", controllers.StoresNearCity(svcs.Cities, logg))

		r.Get("/finds", controllers.ListFinds(svcs.Finds, logg))
	})

	// Authenticated user surface.
	r.Route("/api/v1/me", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/admin-flag", controllers.AdminFlag(svcs.Admins, logg))
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/api/v1/submissions", func(r chi.Router) {
			r.Post("/stores", controllers.SubmitStore(svcs.Submissions, logg))
			r.Post("/stores/{storeId}/photos", controllers.SubmitPhotos(svcs.Submissions, cfg.Submissions, logg))
		})

		r.Route("/api/v1/favorites", func(r chi.Router) {
			r.Get("/", controllers.ListFavorites(svcs.Favorites, logg))
			r.Put("/{storeId}", controllers.ToggleFavorite(svcs.Favorites, logg))
			r.Delete("/{storeId}", controllers.RemoveFavorite(svcs.Favorites, logg))
		})

		r.Route("/api/v1/finds", func(r chi.Router) {
			r.Post("/", controllers.CreateFind(svcs.Finds, logg))
			r.Post("/{findId}/like", controllers.ToggleFindLike(svcs.Finds, logg))
			r.Post("/{findId}/comments", controllers.AddFindComment(svcs.Finds, logg))
			r.Delete("/{findId}", controllers.DeleteFind(svcs.Finds, logg))
		})

		r.Route("/api/v1/city-requests", func(r chi.Router) {
			r.Get("/", controllers.ListCityRequests(svcs.CityRequests, logg))
			r.Post("/", controllers.SubmitCityRequest(svcs.CityRequests, logg))
			r.Delete("/{requestId}", controllers.CancelCityRequest(svcs.CityRequests, logg))
		})

		r.Route("/api/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
		})

		// Moderation surface. Auth here only authenticates; every
		// handler re-checks the admins collection through its service.
		r.Route("/api/admin/v1", func(r chi.Router) {
			r.Route("/submissions", func(r chi.Router) {
				r.Get("/photos", controllers.ListPhotoSubmissions(svcs.Submissions, logg))
				r.Post("/photos/{submissionId}/approve", controllers.ApprovePhotoSubmission(svcs.Submissions, logg))
				r.Post("/photos/{submissionId}/reject", controllers.RejectPhotoSubmission(svcs.Submissions, logg))

				r.Get("/stores", controllers.ListStoreSubmissions(svcs.Submissions, logg))
				r.Post("/stores/{submissionId}/approve", controllers.ApproveStoreSubmission(svcs.Submissions, logg))
				r.Post("/stores/{submissionId}/reject", controllers.RejectStoreSubmission(svcs.Submissions, logg))
			})

			r.Route("/admins", func(r chi.Router) {
				r.Get("/", controllers.ListAdmins(svcs.Admins, logg))
				r.Post("/", controllers.GrantAdmin(svcs.Admins, logg))
				r.Delete("/{userId}", controllers.RevokeAdmin(svcs.Admins, logg))
			})

			r.Route("/city-requests", func(r chi.Router) {
				r.Get("/", controllers.ListPendingCityRequests(svcs.CityRequests, logg))
				r.Post("/{requestId}/complete", controllers.CompleteCityRequest(svcs.CityRequests, logg))
				r.Post("/{requestId}/reject", controllers.RejectCityRequest(svcs.CityRequests, logg))
			})
		})
	})

	return r
}
