package accounts

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// defaultPhoneRegion is the region used to parse numbers without a country
// prefix.
const defaultPhoneRegion = "PL"

// ValidateRegistration checks the profile fields of a registration request.
func ValidateRegistration(input RegistrationInput) error {
	err := validation.ValidateStruct(&input,
		validation.Field(&input.Login, validation.Required, validation.Length(3, 32), is.Alphanumeric),
		validation.Field(&input.Password, validation.Required, validation.Length(8, 72)),
		validation.Field(&input.Email, validation.Required, is.Email),
		validation.Field(&input.FirstName, validation.Required, validation.Length(1, 64)),
		validation.Field(&input.LastName, validation.Required, validation.Length(1, 64)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload")
	}

	if input.Phone != "" {
		if err := ValidatePhone(input.Phone); err != nil {
			return err
		}
	}

	return nil
}

// ValidatePhone parses and validates a phone number.
func ValidatePhone(phone string) error {
	number, err := phonenumbers.Parse(phone, defaultPhoneRegion)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid phone number").
			WithTextCode("INVALID_PHONE_NUMBER")
	}

	if !phonenumbers.IsValidNumber(number) {
		return goerrors.New("invalid phone number", goerrors.CategoryValidation).
			WithTextCode("INVALID_PHONE_NUMBER").
			WithMetadata(map[string]any{"phone": phone})
	}

	return nil
}
