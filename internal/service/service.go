// Package service implements the cafelist use-cases on top of the entity
// store. Every failure a user can cause is returned as an
// *apperrors.AppError; anything else is logged and reported as internal.
package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"cafelist/internal/apperrors"
	"cafelist/internal/auth"
	"cafelist/internal/credential"
	"cafelist/internal/models"
	"cafelist/internal/store"
)

const (
	MsgDuplicateEmail     = "You've already signed up with that email, log in instead!"
	MsgUserNotFound       = "That email does not exist, please try again."
	MsgBadCredential      = "Password incorrect, please try again."
	MsgCommentLogin       = "You need to login or register to comment."
	MsgCreateLogin        = "You need to login or register to Add Your Best Coffe!."
	MsgEditLogin          = "You need to login or register to edit a cafe."
	MsgDuplicateName      = "A cafe with that name already exists."
	MsgCafeNotFound       = "That cafe does not exist."
	MsgSessionUserMissing = "Your account no longer exists, please register again."
)

// Store is the persistence the service needs.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, id uint, cred string) error
	ListCafes(ctx context.Context) ([]models.Cafe, error)
	CafeByID(ctx context.Context, id uint) (*models.Cafe, error)
	CreateCafe(ctx context.Context, c *models.Cafe) error
	UpdateCafe(ctx context.Context, c *models.Cafe) error
	DeleteCafe(ctx context.Context, id uint) (int64, error)
	CreateComment(ctx context.Context, cm *models.Comment) error
}

// Hasher turns plaintext passwords into stored credentials and back.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, cred string) bool
	NeedsRehash(cred string) bool
}

type Service struct {
	store  Store
	hasher Hasher
	authz  auth.Authorizer
	logger *logrus.Logger
}

func New(st Store, hasher Hasher, authz auth.Authorizer, logger *logrus.Logger) *Service {
	return &Service{store: st, hasher: hasher, authz: authz, logger: logger}
}

// internal logs err for operators and hides it from the user.
func (s *Service) internal(op string, err error) error {
	s.logger.WithError(err).WithField("op", op).Error("Store operation failed")
	return apperrors.NewInternalError(op+" failed", err)
}

// Register creates a user account. The caller is expected to log the new
// user in.
func (s *Service) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	// skip hashing for known emails; CreateUser still guards the race
	_, err := s.store.UserByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, apperrors.New(apperrors.ErrorTypeDuplicateEmail, MsgDuplicateEmail)
	case !errors.Is(err, store.ErrNotFound):
		return nil, s.internal("register", err)
	}

	cred, err := s.hasher.Hash(password)
	switch {
	case errors.Is(err, credential.ErrEmptyPassword):
		return nil, apperrors.NewValidationError("Please enter a password.")
	case errors.Is(err, credential.ErrPasswordTooLong):
		return nil, apperrors.NewValidationError("That password is too long.")
	case err != nil:
		return nil, s.internal("register", err)
	}

	u := &models.User{Email: email, Password: cred, Name: name}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, &apperrors.AppError{Type: apperrors.ErrorTypeDuplicateEmail, Message: MsgDuplicateEmail, Err: err}
		}
		return nil, s.internal("register", err)
	}

	s.logger.WithField("user_id", u.ID).Info("User registered successfully")
	return u, nil
}

// Login checks an email/password pair. Legacy or outdated credentials are
// re-hashed after a successful check.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.New(apperrors.ErrorTypeUserNotFound, MsgUserNotFound)
		}
		return nil, s.internal("login", err)
	}

	if !s.hasher.Verify(password, u.Password) {
		s.logger.WithField("user_id", u.ID).Warn("Invalid password attempt")
		return nil, apperrors.New(apperrors.ErrorTypeBadCredential, MsgBadCredential)
	}

	if s.hasher.NeedsRehash(u.Password) {
		s.rehash(ctx, u, password)
	}

	s.logger.WithField("user_id", u.ID).Info("User logged in successfully")
	return u, nil
}

// rehash upgrades the stored credential. Failures do not fail the login.
func (s *Service) rehash(ctx context.Context, u *models.User, password string) {
	cred, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to rehash credential")
		return
	}
	if err := s.store.UpdatePassword(ctx, u.ID, cred); err != nil {
		s.logger.WithError(err).WithField("user_id", u.ID).Warn("Failed to store upgraded credential")
		return
	}
	u.Password = cred
	s.logger.WithField("user_id", u.ID).Info("Upgraded stored credential")
}

// ListCafes returns every cafe in insertion order.
func (s *Service) ListCafes(ctx context.Context) ([]models.Cafe, error) {
	cafes, err := s.store.ListCafes(ctx)
	if err != nil {
		return nil, s.internal("list cafes", err)
	}
	return cafes, nil
}

// CafeDetail returns a cafe with its author and comments.
func (s *Service) CafeDetail(ctx context.Context, id uint) (*models.Cafe, error) {
	c, err := s.store.CafeByID(ctx, id)
	if err != nil {
		return nil, s.cafeError("cafe detail", err)
	}
	return c, nil
}

// AddComment posts text on a cafe as the identified user. An unknown cafe
// is reported before a missing login.
func (s *Service) AddComment(ctx context.Context, id auth.Identity, cafeID uint, text string) (*models.Comment, error) {
	uid, ok := id.UserID()
	if !ok {
		if _, err := s.store.CafeByID(ctx, cafeID); err != nil {
			return nil, s.cafeError("add comment", err)
		}
		return nil, apperrors.NewLoginRequiredError(MsgCommentLogin)
	}

	cm := &models.Comment{Text: text, AuthorID: uid, CafeID: cafeID}
	if err := s.store.CreateComment(ctx, cm); err != nil {
		return nil, s.cafeError("add comment", err)
	}

	s.logger.WithFields(logrus.Fields{"cafe_id": cafeID, "user_id": uid}).Info("Comment posted")
	return cm, nil
}

// CreateCafe adds a cafe authored by the identified user.
func (s *Service) CreateCafe(ctx context.Context, id auth.Identity, fields models.CafeFields) (*models.Cafe, error) {
	uid, ok := id.UserID()
	if !ok {
		return nil, apperrors.NewLoginRequiredError(MsgCreateLogin)
	}

	c := &models.Cafe{AuthorID: uid}
	fields.Apply(c)
	if err := s.store.CreateCafe(ctx, c); err != nil {
		return nil, s.cafeError("create cafe", err)
	}

	s.logger.WithFields(logrus.Fields{"cafe_id": c.ID, "user_id": uid}).Info("Cafe created")
	return s.reload(ctx, c), nil
}

// EditCafe overwrites every mutable field of a cafe and makes the editor
// its author.
func (s *Service) EditCafe(ctx context.Context, id auth.Identity, cafeID uint, fields models.CafeFields) (*models.Cafe, error) {
	c, err := s.store.CafeByID(ctx, cafeID)
	if err != nil {
		return nil, s.cafeError("edit cafe", err)
	}

	uid, ok := id.UserID()
	if !ok {
		return nil, apperrors.NewLoginRequiredError(MsgEditLogin)
	}

	fields.Apply(c)
	c.AuthorID = uid
	c.Author = nil
	c.Comments = nil
	if err := s.store.UpdateCafe(ctx, c); err != nil {
		return nil, s.cafeError("edit cafe", err)
	}

	s.logger.WithFields(logrus.Fields{"cafe_id": c.ID, "user_id": uid}).Info("Cafe edited")
	return s.reload(ctx, c), nil
}

// reload fetches c again with its associations. The write already
// succeeded, so a failed read falls back to c.
func (s *Service) reload(ctx context.Context, c *models.Cafe) *models.Cafe {
	fresh, err := s.store.CafeByID(ctx, c.ID)
	if err != nil {
		s.logger.WithError(err).WithField("cafe_id", c.ID).Warn("Failed to reload cafe")
		return c
	}
	return fresh
}

// DeleteCafe removes a cafe and its comments. Only the admin may do this.
// It returns the number of comments removed.
func (s *Service) DeleteCafe(ctx context.Context, id auth.Identity, cafeID uint) (int64, error) {
	if err := s.authz.RequireAdmin(id); err != nil {
		return 0, err
	}

	removed, err := s.store.DeleteCafe(ctx, cafeID)
	if err != nil {
		return 0, s.cafeError("delete cafe", err)
	}

	s.logger.WithFields(logrus.Fields{"cafe_id": cafeID, "comments": removed}).Info("Cafe deleted")
	return removed, nil
}

// cafeError maps store sentinels raised by cafe and comment operations.
func (s *Service) cafeError(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &apperrors.AppError{Type: apperrors.ErrorTypeNotFound, Message: MsgCafeNotFound, Err: err}
	case errors.Is(err, store.ErrDuplicateName):
		return &apperrors.AppError{Type: apperrors.ErrorTypeDuplicateName, Message: MsgDuplicateName, Err: err}
	case errors.Is(err, store.ErrUnknownAuthor):
		return &apperrors.AppError{Type: apperrors.ErrorTypeUnauthorized, Message: MsgSessionUserMissing, Err: err}
	default:
		return s.internal(op, err)
	}
}
