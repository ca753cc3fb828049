// Package forms decodes and validates the url-encoded forms posted by
// browsers.
package forms

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"cafelist/internal/apperrors"
	"cafelist/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	_ = v.RegisterValidation("availability", func(fl validator.FieldLevel) bool {
		return models.Availability(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("wifi", func(fl validator.FieldLevel) bool {
		return models.WifiQuality(fl.Field().String()).Valid()
	})
	return v
}

type RegisterForm struct {
	Email    string `form:"email" validate:"required,email,max=100"`
	Password string `form:"password" validate:"required"`
	Name     string `form:"name" validate:"required,max=100"`
}

type LoginForm struct {
	Email    string `form:"email" validate:"required"`
	Password string `form:"password" validate:"required"`
}

type CommentForm struct {
	Text string `form:"comment_text" validate:"required"`
}

type CafeForm struct {
	Name         string `form:"name" validate:"required,max=250"`
	MapURL       string `form:"map_url" validate:"required,url,max=250"`
	ImgURL       string `form:"img_url" validate:"required,url,max=250"`
	Location     string `form:"location" validate:"required,max=250"`
	HasSockets   string `form:"has_sockets" validate:"required,availability"`
	HasToilet    string `form:"has_toilet" validate:"required,availability"`
	HasWifi      string `form:"has_wifi" validate:"required,wifi"`
	CanTakeCalls string `form:"can_take_calls" validate:"required,availability"`
	Seats        int    `form:"seats" validate:"gte=0"`
	CoffeePrice  int    `form:"coffee_price" validate:"gte=0"`
}

// Fields converts a validated form into the cafe attributes it sets.
func (f CafeForm) Fields() models.CafeFields {
	return models.CafeFields{
		Name:         f.Name,
		MapURL:       f.MapURL,
		ImgURL:       f.ImgURL,
		Location:     f.Location,
		HasSockets:   models.Availability(f.HasSockets),
		HasToilet:    models.Availability(f.HasToilet),
		HasWifi:      models.WifiQuality(f.HasWifi),
		CanTakeCalls: models.Availability(f.CanTakeCalls),
		Seats:        f.Seats,
		CoffeePrice:  f.CoffeePrice,
	}
}

func ParseRegister(r *http.Request) (RegisterForm, error) {
	if err := r.ParseForm(); err != nil {
		return RegisterForm{}, badForm(err)
	}
	f := RegisterForm{
		Email:    field(r, "email"),
		Password: r.PostForm.Get("password"),
		Name:     field(r, "name"),
	}
	return f, check(f)
}

func ParseLogin(r *http.Request) (LoginForm, error) {
	if err := r.ParseForm(); err != nil {
		return LoginForm{}, badForm(err)
	}
	f := LoginForm{
		Email:    field(r, "email"),
		Password: r.PostForm.Get("password"),
	}
	return f, check(f)
}

func ParseComment(r *http.Request) (CommentForm, error) {
	if err := r.ParseForm(); err != nil {
		return CommentForm{}, badForm(err)
	}
	f := CommentForm{Text: field(r, "comment_text")}
	return f, check(f)
}

func ParseCafe(r *http.Request) (CafeForm, error) {
	if err := r.ParseForm(); err != nil {
		return CafeForm{}, badForm(err)
	}
	f := CafeForm{
		Name:         field(r, "name"),
		MapURL:       field(r, "map_url"),
		ImgURL:       field(r, "img_url"),
		Location:     field(r, "location"),
		HasSockets:   field(r, "has_sockets"),
		HasToilet:    field(r, "has_toilet"),
		HasWifi:      field(r, "has_wifi"),
		CanTakeCalls: field(r, "can_take_calls"),
	}

	var err error
	if f.Seats, err = number(r, "seats"); err != nil {
		return f, err
	}
	if f.CoffeePrice, err = number(r, "coffee_price"); err != nil {
		return f, err
	}
	return f, check(f)
}

func field(r *http.Request, name string) string {
	return strings.TrimSpace(r.PostForm.Get(name))
}

func number(r *http.Request, name string) (int, error) {
	raw := field(r, name)
	if raw == "" {
		return 0, apperrors.NewValidationError(fmt.Sprintf("%s is required", name))
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(fmt.Sprintf("%s must be a whole number", name))
	}
	return n, nil
}

func badForm(err error) error {
	return &apperrors.AppError{Type: apperrors.ErrorTypeValidation, Message: "Malformed form data.", Err: err}
}

// check runs the struct validations and reports the first failing field.
func check(form any) error {
	err := validate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return badForm(err)
	}
	return &apperrors.AppError{
		Type:    apperrors.ErrorTypeValidation,
		Message: describe(verrs[0]),
		Err:     err,
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	case "availability":
		return fmt.Sprintf("%s must be one of %q, %q", fe.Field(), models.AvailabilityNo, models.AvailabilityYes)
	case "wifi":
		return fmt.Sprintf("%s must be one of %q, %q, %q, %q", fe.Field(),
			models.WifiBad, models.WifiFairlyGood, models.WifiMedium, models.WifiExcellent)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must not be negative", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
