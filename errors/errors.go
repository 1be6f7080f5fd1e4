package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrRoomNotFound       = fmt.Errorf("room not found")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrNotAMember         = fmt.Errorf("user is not a member of the room")
	ErrRoomFull           = fmt.Errorf("private room cannot hold more than two members")
	ErrNotCreator         = fmt.Errorf("only the room creator can perform this action")
	ErrEmptyMessage       = fmt.Errorf("message text is empty")
	ErrMessageTooLong     = fmt.Errorf("message text exceeds the maximum length")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrAnonymous          = fmt.Errorf("anonymous users are not allowed")
)

// MapToHTTPStatus translates domain errors into HTTP status codes for the
// request-response boundary. Unknown errors are reported as 500 so that
// infrastructure failures are never silently downgraded.
func MapToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNotAMember), errors.Is(err, ErrNotCreator), errors.Is(err, ErrAnonymous):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrRoomFull), errors.Is(err, ErrEmptyMessage),
		errors.Is(err, ErrMessageTooLong), errors.Is(err, ErrInvalidPassword):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
