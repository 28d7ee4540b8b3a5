package service

import (
	"errors"
	"net/http"
)

// 业务错误，handler 按 errors.Is 映射为 HTTP 状态码.
var (
	ErrNotAcceptable      = errors.New("not acceptable")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInternal           = errors.New("internal server error")
)

// RedirectError 要求客户端跳转到 Location.
type RedirectError struct {
	Location string
}

func (e *RedirectError) Error() string {
	return "redirect to " + e.Location
}

// StatusCode 返回错误对应的 HTTP 状态码，未知错误为 500.
func StatusCode(err error) int {
	var redirect *RedirectError

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &redirect):
		return http.StatusFound
	case errors.Is(err, ErrInternal):
		return http.StatusInternalServerError
	case errors.Is(err, ErrNotAcceptable):
		return http.StatusNotAcceptable
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrPreconditionFailed):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}
