package forms

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cafelist/internal/apperrors"
	"cafelist/internal/models"
)

func postForm(values url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(values.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func validCafe() url.Values {
	return url.Values{
		"name":           {" Paludan "},
		"map_url":        {"https://maps.example.com/paludan"},
		"img_url":        {"https://img.example.com/paludan.jpg"},
		"location":       {"Copenhagen"},
		"has_sockets":    {"Pretty Yes"},
		"has_toilet":     {"No"},
		"has_wifi":       {"Excelent"},
		"can_take_calls": {"Pretty Yes"},
		"seats":          {"40"},
		"coffee_price":   {"32"},
	}
}

func TestParseCafe(t *testing.T) {
	f, err := ParseCafe(postForm(validCafe()))
	require.NoError(t, err)

	fields := f.Fields()
	assert.Equal(t, "Paludan", fields.Name)
	assert.Equal(t, models.WifiExcellent, fields.HasWifi)
	assert.Equal(t, models.AvailabilityYes, fields.HasSockets)
	assert.Equal(t, models.AvailabilityNo, fields.HasToilet)
	assert.Equal(t, 40, fields.Seats)
	assert.Equal(t, 32, fields.CoffeePrice)
}

func TestParseCafe_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		message string
	}{
		{"missing name", "name", "", "name is required"},
		{"bad map url", "map_url", "not a url", "map_url must be a valid URL"},
		{"unknown availability", "has_toilet", "Maybe", "has_toilet must be one of"},
		{"corrected wifi spelling", "has_wifi", "Excellent", "has_wifi must be one of"},
		{"seats not a number", "seats", "lots", "seats must be a whole number"},
		{"missing price", "coffee_price", "", "coffee_price is required"},
		{"negative seats", "seats", "-3", "seats must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := validCafe()
			values.Set(tt.key, tt.value)

			_, err := ParseCafe(postForm(values))
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
			assert.Contains(t, apperrors.MessageOf(err), tt.message)
		})
	}
}

func TestParseRegister(t *testing.T) {
	f, err := ParseRegister(postForm(url.Values{"email": {"a@x.com"}, "password": {" pw "}, "name": {"Ann"}}))
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", f.Email)
	// passwords are taken verbatim
	assert.Equal(t, " pw ", f.Password)

	_, err = ParseRegister(postForm(url.Values{"email": {"broken"}, "password": {"pw"}, "name": {"Ann"}}))
	assert.Equal(t, "email must be a valid email address", apperrors.MessageOf(err))

	_, err = ParseRegister(postForm(url.Values{"email": {"a@x.com"}, "name": {"Ann"}}))
	assert.Equal(t, "password is required", apperrors.MessageOf(err))
}

func TestParseLoginAndComment(t *testing.T) {
	f, err := ParseLogin(postForm(url.Values{"email": {"a@x.com"}, "password": {"pw"}}))
	require.NoError(t, err)
	assert.Equal(t, "pw", f.Password)

	_, err = ParseLogin(postForm(url.Values{"email": {"a@x.com"}}))
	assert.True(t, apperrors.Is(err, apperrors.ErrorTypeValidation))

	c, err := ParseComment(postForm(url.Values{"comment_text": {"<p>Lovely</p>"}}))
	require.NoError(t, err)
	assert.Equal(t, "<p>Lovely</p>", c.Text)

	_, err = ParseComment(postForm(url.Values{"comment_text": {"   "}}))
	assert.Equal(t, "comment_text is required", apperrors.MessageOf(err))
}
