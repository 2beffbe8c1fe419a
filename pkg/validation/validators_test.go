package validation_test

import (
	"testing"

	"go-dishlens-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type form struct {
	Name  string `validate:"omitempty,valid_name"`
	Phone string `validate:"omitempty,valid_phone"`
	Notes string `validate:"no_emoji"`
}

func newTestValidator() *validator.Validate {
	v := validator.New()
	validation.RegisterValidators(v)
	return v
}

func TestValidName(t *testing.T) {
	v := newTestValidator()

	valid := []string{
		"Falafel Gan Eden",
		"Joe's Diner",
		"Café Brücke", // non-ASCII letters are fine
		"Grill & Co. (TLV)",
		"מסעדת השף",
	}
	for _, name := range valid {
		assert.NoError(t, v.Struct(form{Name: name}), name)
	}

	invalid := []string{
		"Pasta <script>",
		"Name;DROP TABLE",
		"Tab\there",
	}
	for _, name := range invalid {
		assert.Error(t, v.Struct(form{Name: name}), name)
	}
}

func TestValidPhone(t *testing.T) {
	v := newTestValidator()

	assert.NoError(t, v.Struct(form{Phone: "+972541234567"}))
	assert.NoError(t, v.Struct(form{Phone: "0541234567"}))
	assert.Error(t, v.Struct(form{Phone: "054-123-4567"}), "separators are rejected")
	assert.Error(t, v.Struct(form{Phone: "12345"}), "too short")
	assert.Error(t, v.Struct(form{Phone: "not a phone"}))
}

func TestNoEmoji(t *testing.T) {
	v := newTestValidator()

	assert.NoError(t, v.Struct(form{Notes: "Best hummus in town, ask for Noa"}))
	assert.Error(t, v.Struct(form{Notes: "Great! 🍕"}))
	assert.Error(t, v.Struct(form{Notes: "five stars ⭐"}))
}

func TestFormatValidationErrors(t *testing.T) {
	v := newTestValidator()

	type lead struct {
		BusinessName string `validate:"required,min=2"`
		Email        string `validate:"required,email"`
	}

	err := v.Struct(lead{BusinessName: "x", Email: "nope"})
	require.Error(t, err)

	msgs := validation.FormatValidationErrors(err)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "Business name must be at least 2 characters")
	assert.Contains(t, msgs[1], "email")
}
