package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/sirupsen/logrus"

	"cafelist/internal/apperrors"
	"cafelist/internal/models"
	"cafelist/internal/store"
)

const userIDKey = "user_id"

// UserLookup resolves a persisted user id.
type UserLookup interface {
	UserByID(ctx context.Context, id uint) (*models.User, error)
}

// Manager keeps the logged-in user id in a session cookie.
type Manager struct {
	sessions sessions.Store
	name     string
	users    UserLookup
	logger   *logrus.Logger
}

func NewManager(st sessions.Store, name string, users UserLookup, logger *logrus.Logger) *Manager {
	return &Manager{sessions: st, name: name, users: users, logger: logger}
}

// session returns the request's session. A cookie that fails to decode
// (rotated key, tampering) yields a fresh, empty session.
func (m *Manager) session(r *http.Request) *sessions.Session {
	sess, err := m.sessions.Get(r, m.name)
	if err != nil {
		m.logger.WithError(err).Debug("Discarding undecodable session cookie")
	}
	return sess
}

// Login persists userID in the session cookie.
func (m *Manager) Login(w http.ResponseWriter, r *http.Request, userID uint) error {
	sess := m.session(r)
	sess.Values[userIDKey] = userID
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Logout drops the session cookie. It never fails from the caller's point
// of view; a save error is only logged.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	sess := m.session(r)
	delete(sess.Values, userIDKey)
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil {
		m.logger.WithError(err).Warn("Failed to clear session cookie")
	}
}

// Restore returns the identity persisted in the request's session. An id
// that no longer resolves to a user is reported as unauthorized.
func (m *Manager) Restore(r *http.Request) (Identity, error) {
	sess := m.session(r)
	id, ok := sess.Values[userIDKey].(uint)
	if !ok {
		return Anonymous(), nil
	}

	if _, err := m.users.UserByID(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Anonymous(), apperrors.NewUnauthorizedError("Your session has expired, please log in again.")
		}
		return Anonymous(), apperrors.NewInternalError("failed to restore session", err)
	}
	return Authenticated(id), nil
}

// Middleware restores the identity of every request and stores it in the
// request context. Stale sessions are cleared and answered with 401.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.Restore(r)
		if err != nil {
			status := http.StatusInternalServerError
			if apperrors.Is(err, apperrors.ErrorTypeUnauthorized) {
				m.Logout(w, r)
				status = http.StatusUnauthorized
			} else {
				m.logger.WithError(err).Error("Failed to restore session")
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status":    status,
				"error_msg": apperrors.MessageOf(err),
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// AddFlash queues a message to be shown on the next page the user visits.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, message string) error {
	sess := m.session(r)
	sess.AddFlash(message)
	return sess.Save(r, w)
}

// Flashes pops all pending flash messages.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) ([]string, error) {
	sess := m.session(r)
	raw := sess.Flashes()
	if len(raw) == 0 {
		return nil, nil
	}
	if err := sess.Save(r, w); err != nil {
		return nil, err
	}
	messages := make([]string, 0, len(raw))
	for _, f := range raw {
		if s, ok := f.(string); ok {
			messages = append(messages, s)
		}
	}
	return messages, nil
}
