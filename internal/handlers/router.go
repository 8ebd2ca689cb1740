package handlers

import (
	"net/http"

	"realmkeeper-backend/internal/middleware"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterConfig holds every handler the API mounts
type RouterConfig struct {
	Auth      middleware.TokenValidator
	Realms    *RealmHandler
	Nooks     *NookHandler
	Treasures *TreasureHandler
	Tags      *TagHandler
	Media     *MediaHandler
	WebSocket *WebSocketHandler
	Health    *HealthHandler
	Metrics   http.Handler
	// RequestLog enables chi's request logger
	RequestLog bool
}

// NewRouter builds the HTTP API
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	if cfg.RequestLog {
		r.Use(chiMiddleware.Logger)
	}
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.Auth))

		r.Route("/realms", func(r chi.Router) {
			r.Get("/", cfg.Realms.ListRealms)
			r.Post("/", cfg.Realms.CreateRealm)
			r.Get("/nearby", cfg.Realms.NearbyRealms)
			r.Post("/pick/radius", cfg.Realms.PickRadius)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", cfg.Realms.GetRealm)
				r.Put("/", cfg.Realms.UpdateRealm)
				r.Delete("/", cfg.Realms.DeleteRealm)
				r.Put("/tags", cfg.Realms.SetRealmTags)
				r.Post("/pick", cfg.Realms.PickPoint)
				r.Post("/pick/current", cfg.Realms.PickCurrentLocation)
				r.Get("/nooks", cfg.Nooks.ListNooks)
				r.Post("/nooks", cfg.Nooks.CreateNook)
			})
		})

		r.Route("/nooks/{id}", func(r chi.Router) {
			r.Get("/", cfg.Nooks.GetNook)
			r.Put("/", cfg.Nooks.UpdateNook)
			r.Delete("/", cfg.Nooks.DeleteNook)
			r.Put("/tags", cfg.Nooks.SetNookTags)
			r.Get("/treasures", cfg.Treasures.ListTreasures)
			r.Post("/treasures", cfg.Treasures.CreateTreasure)
		})

		r.Get("/treasures", cfg.Treasures.ListAllTreasures)
		r.Route("/treasures/{id}", func(r chi.Router) {
			r.Get("/", cfg.Treasures.GetTreasure)
			r.Put("/", cfg.Treasures.UpdateTreasure)
			r.Delete("/", cfg.Treasures.DeleteTreasure)
			r.Put("/tags", cfg.Treasures.SetTreasureTags)
			r.Post("/tags/{tag_id}", cfg.Tags.AddTreasureTag)
			r.Delete("/tags/{tag_id}", cfg.Tags.RemoveTreasureTag)
		})

		r.Get("/tags", cfg.Tags.ListTags)
		r.Post("/tags", cfg.Tags.CreateTag)
		r.Put("/tags/{id}", cfg.Tags.UpdateTag)
		r.Delete("/tags/{id}", cfg.Tags.DeleteTag)
		r.Post("/locations/{id}/tags/{tag_id}", cfg.Tags.AddLocationTag)
		r.Delete("/locations/{id}/tags/{tag_id}", cfg.Tags.RemoveLocationTag)

		r.Get("/media", cfg.Media.ListMedia)
		r.Post("/media", cfg.Media.UploadMedia)
		r.Post("/media/presign", cfg.Media.PresignUpload)
		r.Post("/media/register", cfg.Media.RegisterMedia)
		r.Put("/media/{id}/primary", cfg.Media.SetPrimary)
		r.Delete("/media/{id}", cfg.Media.DeleteMedia)
	})

	// WebSocket route
	r.Get("/ws", cfg.WebSocket.HandleWebSocket)

	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Health)
	}
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	return r
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
