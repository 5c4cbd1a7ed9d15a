package auth

import "conduit-backend/internal/validation"

// CredentialsField is the field key reported for failed sign-ins. It names
// both inputs so the response does not reveal which one was wrong.
const CredentialsField = "email or password"

// AuthenticationError is returned when credentials do not match a user.
// Like validation.ValidationError it is an expected, user-correctable
// outcome rather than an incident.
type AuthenticationError struct {
	Fields validation.FieldErrors
}

func (e *AuthenticationError) Error() string {
	return "authentication failed"
}

func invalidCredentials() *AuthenticationError {
	return &AuthenticationError{Fields: validation.FieldErrors{CredentialsField: {"is invalid"}}}
}
