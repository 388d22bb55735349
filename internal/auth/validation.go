package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"mojgrad-go/internal/apperror"
)

const (
	minPasswordLength = 6
	minPhoneLength    = 8
	minNameLength     = 2
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9+._%\-]{1,256}@[a-zA-Z0-9][a-zA-Z0-9\-]{0,64}(\.[a-zA-Z0-9][a-zA-Z0-9\-]{0,25})+$`)

// Registration is the user input of a sign-up
type Registration struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	ProfileImageUrl string `json:"profileImageUrl"`
}

// Normalize trims surrounding whitespace from every field but the password
func (r *Registration) Normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.ProfileImageUrl = strings.TrimSpace(r.ProfileImageUrl)
}

// Validate returns the first invalid field as a validation AppError
func (r Registration) Validate() error {
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if err := ValidatePassword(r.Password); err != nil {
		return err
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Name)) < minNameLength {
		return apperror.ValidationFailed("name", "Ime mora imati najmanje 2 karaktera")
	}
	if strings.TrimSpace(r.Phone) == "" || utf8.RuneCountInString(r.Phone) < minPhoneLength {
		return apperror.ValidationFailed("phone", "Broj telefona mora imati najmanje 8 cifara")
	}
	return nil
}

func ValidateEmail(email string) error {
	switch {
	case email == "":
		return apperror.ValidationFailed("email", "Email je obavezan")
	case strings.TrimSpace(email) == "" || !emailPattern.MatchString(email):
		return apperror.ValidationFailed("email", "Unesite validan email")
	}
	return nil
}

func ValidatePassword(password string) error {
	switch {
	case password == "":
		return apperror.ValidationFailed("password", "Lozinka je obavezna")
	case utf8.RuneCountInString(password) < minPasswordLength:
		return apperror.ValidationFailed("password", "Lozinka mora imati najmanje 6 karaktera")
	}
	return nil
}
