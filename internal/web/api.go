// Package web exposes the cafelist service over HTTP.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"cafelist/internal/auth"
	"cafelist/internal/metrics"
	"cafelist/internal/service"
	"cafelist/internal/throttle"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type API struct {
	svc         *service.Service
	sessions    *auth.Manager
	limiter     throttle.Limiter
	metrics     *metrics.Metrics
	db          Pinger
	logger      *logrus.Logger
	slowRequest time.Duration
}

type Options struct {
	Service     *service.Service
	Sessions    *auth.Manager
	Limiter     throttle.Limiter
	Metrics     *metrics.Metrics
	DB          Pinger
	Logger      *logrus.Logger
	SlowRequest time.Duration
}

func NewAPI(opts Options) *API {
	slow := opts.SlowRequest
	if slow <= 0 {
		slow = 2 * time.Second
	}
	return &API{
		svc:         opts.Service,
		sessions:    opts.Sessions,
		limiter:     opts.Limiter,
		metrics:     opts.Metrics,
		db:          opts.DB,
		logger:      opts.Logger,
		slowRequest: slow,
	}
}

// Router builds the route table. gatherer backs the /metrics endpoint.
func (api *API) Router(gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.Use(api.requestLogging)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET").Name("metrics")
	r.HandleFunc("/health", api.HealthHandler).Methods("GET").Name("health")

	// logout skips session restore so that a stale session can still log out
	r.Handle("/logout", api.countRequests(http.HandlerFunc(api.LogoutHandler))).Methods("GET", "POST").Name("logout")

	app := r.PathPrefix("/").Subrouter()
	app.Use(api.countRequests, api.sessions.Middleware)

	app.HandleFunc("/", api.HomeHandler).Methods("GET").Name("home")
	app.HandleFunc("/cafes", api.ListCafesHandler).Methods("GET").Name("list_cafes")
	app.HandleFunc("/cafes", api.CreateCafeHandler).Methods("POST").Name("create_cafe")
	app.HandleFunc("/cafes/{id:[0-9]+}", api.CafeDetailHandler).Methods("GET").Name("cafe_detail")
	app.HandleFunc("/cafes/{id:[0-9]+}", api.DeleteCafeHandler).Methods("DELETE").Name("delete_cafe")
	app.HandleFunc("/cafes/{id:[0-9]+}/comments", api.AddCommentHandler).Methods("POST").Name("add_comment")
	app.HandleFunc("/cafes/{id:[0-9]+}/edit", api.EditCafeHandler).Methods("POST").Name("edit_cafe")
	app.HandleFunc("/cafes/{id:[0-9]+}/delete", api.DeleteCafeHandler).Methods("POST").Name("delete_cafe")
	app.HandleFunc("/register", api.RegisterHandler).Methods("POST").Name("register")
	app.HandleFunc("/login", api.GetLoginHandler).Methods("GET").Name("get_login")
	app.HandleFunc("/login", api.PostLoginHandler).Methods("POST").Name("post_login")

	return r
}
