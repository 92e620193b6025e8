package errutil

import "fmt"

type Detail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type BaseError struct {
	Code    CoreStatus `json:"code"`
	Message string     `json:"message"`
	Details []Detail   `json:"details,omitempty"`
	Err     error      `json:"-"`
}

func (e BaseError) Status() CoreStatus {
	return e.Code
}

// JSON is the body written to HTTP callers. The wrapped error stays internal.
func (e BaseError) JSON() map[string]interface{} {
	body := map[string]interface{}{
		"error": e.Message,
		"code":  e.Code,
	}
	if len(e.Details) > 0 {
		body["details"] = e.Details
	}
	return body
}

func (e BaseError) Unwrap() error {
	return e.Err
}

func (e BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s", e.Code, e.messageWithErr())
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e BaseError) messageWithErr() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

type Option func(*BaseError)

func WithDetail(field, message string) Option {
	return func(be *BaseError) { be.Details = append(be.Details, Detail{Field: field, Message: message}) }
}

func WithDetails(details ...Detail) Option {
	return func(be *BaseError) { be.Details = details }
}

func WithErr(err error) Option {
	return func(be *BaseError) { be.Err = err }
}

func New(code CoreStatus, message string, opts ...Option) error {
	be := BaseError{Code: code, Message: message}
	for _, opt := range opts {
		opt(&be)
	}
	return be
}

func NotFound(msg string, err error, options ...Option) error {
	return New(StatusNotFound, msg, append([]Option{WithErr(err)}, options...)...)
}

func UnprocessableEntity(msg string, err error, options ...Option) error {
	return New(StatusUnprocessableEntity, msg, append([]Option{WithErr(err)}, options...)...)
}

func UnsupportedMediaType(msg string, err error, options ...Option) error {
	return New(StatusUnsupportedMediaType, msg, append([]Option{WithErr(err)}, options...)...)
}

func Conflict(msg string, err error, options ...Option) error {
	return New(StatusConflict, msg, append([]Option{WithErr(err)}, options...)...)
}

func BadRequest(msg string, err error, options ...Option) error {
	return New(StatusBadRequest, msg, append([]Option{WithErr(err)}, options...)...)
}

func ValidationFailed(msg string, err error, options ...Option) error {
	return New(StatusValidationFailed, msg, append([]Option{WithErr(err)}, options...)...)
}

func Internal(msg string, err error, options ...Option) error {
	return New(StatusInternal, msg, append([]Option{WithErr(err)}, options...)...)
}

func Timeout(msg string, err error, options ...Option) error {
	return New(StatusTimeout, msg, append([]Option{WithErr(err)}, options...)...)
}

func Unauthorized(msg string, err error, options ...Option) error {
	return New(StatusUnauthorized, msg, append([]Option{WithErr(err)}, options...)...)
}

func Forbidden(msg string, err error, options ...Option) error {
	return New(StatusForbidden, msg, append([]Option{WithErr(err)}, options...)...)
}

func TooManyRequest(msg string, err error, options ...Option) error {
	return New(StatusTooManyRequests, msg, append([]Option{WithErr(err)}, options...)...)
}

func ClientClosedRequest(msg string, err error, options ...Option) error {
	return New(StatusClientClosedRequest, msg, append([]Option{WithErr(err)}, options...)...)
}

func NotImplemented(msg string, err error, options ...Option) error {
	return New(StatusNotImplemented, msg, append([]Option{WithErr(err)}, options...)...)
}

func BadGateway(msg string, err error, options ...Option) error {
	return New(StatusBadGateway, msg, append([]Option{WithErr(err)}, options...)...)
}
