package web

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"cafelist/internal/apperrors"
	"cafelist/internal/auth"
	"cafelist/internal/forms"
	"cafelist/internal/models"
)

func (api *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if err := api.db.Ping(r.Context()); err != nil {
		api.logger.WithError(err).Error("Health check failed")
		http.Error(w, "Database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (api *API) HomeHandler(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	body := map[string]interface{}{
		"message":       "Welcome to cafelist",
		"authenticated": id.IsAuthenticated(),
	}
	if uid, ok := id.UserID(); ok {
		body["user_id"] = uid
	}
	respondWithJSON(w, http.StatusOK, body)
}

func (api *API) ListCafesHandler(w http.ResponseWriter, r *http.Request) {
	cafes, err := api.svc.ListCafes(r.Context())
	if err != nil {
		api.handleError(w, r, err)
		return
	}
	if cafes == nil {
		cafes = []models.Cafe{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"cafes": cafes})
}

func (api *API) CafeDetailHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.handleError(w, r, err)
		return
	}

	cafe, err := api.svc.CafeDetail(r.Context(), id)
	if err != nil {
		api.handleError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cafe)
}

func (api *API) AddCommentHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.handleError(w, r, err)
		return
	}
	form, err := forms.ParseComment(r)
	if err != nil {
		api.handleError(w, r, err)
		return
	}

	comment, err := api.svc.AddComment(r.Context(), auth.FromContext(r.Context()), id, form.Text)
	if err != nil {
		api.handleError(w, r, err)
		return
	}

	api.metrics.CommentsPosted.WithLabelValues("add_comment").Inc()
	respondWithJSON(w, http.StatusCreated, comment)
}

func (api *API) CreateCafeHandler(w http.ResponseWriter, r *http.Request) {
	form, err := forms.ParseCafe(r)
	if err != nil {
		api.handleError(w, r, err)
		return
	}

	cafe, err := api.svc.CreateCafe(r.Context(), auth.FromContext(r.Context()), form.Fields())
	if err != nil {
		api.handleError(w, r, err)
		return
	}

	api.metrics.CafesCreated.WithLabelValues("create_cafe").Inc()
	w.Header().Set("Location", "/cafes/"+strconv.FormatUint(uint64(cafe.ID), 10))
	respondWithJSON(w, http.StatusCreated, cafe)
}

func (api *API) EditCafeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.handleError(w, r, err)
		return
	}
	form, err := forms.ParseCafe(r)
	if err != nil {
		api.handleError(w, r, err)
		return
	}

	cafe, err := api.svc.EditCafe(r.Context(), auth.FromContext(r.Context()), id, form.Fields())
	if err != nil {
		api.handleError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, cafe)
}

func (api *API) DeleteCafeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.handleError(w, r, err)
		return
	}

	removed, err := api.svc.DeleteCafe(r.Context(), auth.FromContext(r.Context()), id)
	if err != nil {
		api.handleError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"deleted":          id,
		"removed_comments": removed,
	})
}

func (api *API) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	form, err := forms.ParseRegister(r)
	if err != nil {
		api.handleError(w, r, err)
		return
	}

	user, err := api.svc.Register(r.Context(), form.Email, form.Password, form.Name)
	if err != nil {
		api.handleError(w, r, err)
		return
	}

	if err := api.sessions.Login(w, r, user.ID); err != nil {
		api.handleError(w, r, apperrors.NewInternalError("register", err))
		return
	}
	respondWithJSON(w, http.StatusCreated, user)
}

// GetLoginHandler hands out the advisories queued for the login page.
func (api *API) GetLoginHandler(w http.ResponseWriter, r *http.Request) {
	flashes, err := api.sessions.Flashes(w, r)
	if err != nil {
		api.logger.WithError(err).Warn("Failed to read flash messages")
	}
	if flashes == nil {
		flashes = []string{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"flashes": flashes})
}

func (api *API) PostLoginHandler(w http.ResponseWriter, r *http.Request) {
	form, err := forms.ParseLogin(r)
	if err != nil {
		api.handleError(w, r, err)
		return
	}

	key := strings.ToLower(form.Email) + "|" + clientIP(r)
	if ok, retryAfter := api.limiter.Allow(r.Context(), key); !ok {
		api.logger.WithField("remote_ip", clientIP(r)).Warn("Too many login attempts")
		api.metrics.LoginFailures.WithLabelValues("throttled").Inc()
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		api.handleError(w, r, apperrors.New(apperrors.ErrorTypeTooManyRequests, "Too many login attempts, please try again later."))
		return
	}

	user, err := api.svc.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		switch apperrors.TypeOf(err) {
		case apperrors.ErrorTypeUserNotFound:
			api.metrics.LoginFailures.WithLabelValues("user_not_found").Inc()
		case apperrors.ErrorTypeBadCredential:
			api.metrics.LoginFailures.WithLabelValues("bad_credential").Inc()
		}
		api.handleError(w, r, err)
		return
	}

	api.limiter.Reset(r.Context(), key)
	if err := api.sessions.Login(w, r, user.ID); err != nil {
		api.handleError(w, r, apperrors.NewInternalError("login", err))
		return
	}
	api.logger.WithFields(logrus.Fields{"user_id": user.ID}).Info("Session started")
	respondWithJSON(w, http.StatusOK, user)
}

func (api *API) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	api.sessions.Logout(w, r)
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "You were logged out"})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
