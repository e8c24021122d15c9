package gateway

import (
	"errors"

	"github.com/spinsa/inventario/internal/auth"
	"github.com/spinsa/inventario/internal/database"
	"github.com/spinsa/inventario/internal/repository"
	"github.com/spinsa/inventario/internal/session"
)

// Kind classifies a failed command.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUnauthenticated    Kind = "unauthenticated"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindNoChange           Kind = "no_change"
	KindConflict           Kind = "conflict"
	KindInvalid            Kind = "invalid"
	KindThrottled          Kind = "throttled"
	KindConnection         Kind = "connection"
	KindInternal           Kind = "internal"
)

// Domain reports whether k is an expected outcome of a command rather than
// an infrastructure failure.
func (k Kind) Domain() bool { return k != KindConnection && k != KindInternal }

// Result is returned by every mutating command.  Domain failures are
// reported through Success and Kind, never as an error.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Kind    Kind   `json:"kind,omitempty"`
	ID      int64  `json:"id,omitempty"`
	View    string `json:"view,omitempty"`
}

// Error is returned by read commands that fail before reaching data: no
// session, wrong role, malformed payload, unknown command.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func invalid(msg string, err error) *Error { return &Error{Kind: KindInvalid, Message: msg, Err: err} }

// KindOf maps an error to its Kind.
func KindOf(err error) Kind {
	var gerr *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &gerr):
		return gerr.Kind
	case errors.Is(err, auth.ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, auth.ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, auth.ErrForbidden):
		return KindForbidden
	case errors.Is(err, auth.ErrThrottled):
		return KindThrottled
	case errors.Is(err, repository.ErrNotFound):
		return KindNotFound
	case errors.Is(err, repository.ErrNoChange):
		return KindNoChange
	case errors.Is(err, repository.ErrConflict):
		return KindConflict
	case errors.Is(err, repository.ErrInvalidReference), errors.Is(err, session.ErrCorrupt):
		return KindInvalid
	case errors.Is(err, database.ErrConnectionFailed):
		return KindConnection
	}
	return KindInternal
}

// messages are shown to the user when a command fails with a domain Kind.
var messages = map[Kind]string{
	KindInvalidCredentials: "Correo o contraseña incorrectos.",
	KindUnauthenticated:    "No hay una sesión activa.",
	KindForbidden:          "No tiene permiso para esta operación.",
	KindNotFound:           "El registro no existe.",
	KindNoChange:           "No se proporcionaron datos para actualizar.",
	KindConflict:           "El registro ya existe.",
	KindInvalid:            "Datos no válidos.",
	KindThrottled:          "Demasiados intentos fallidos. Intente más tarde.",
}

// Message returns the user facing text for k.
func Message(k Kind) string {
	if m, ok := messages[k]; ok {
		return m
	}
	return "Error interno."
}

// outcome turns the error of a mutation into a Result.  Infrastructure
// errors are returned unchanged for the transport to report.
func outcome(err error, success string, id int64) (any, error) {
	if err == nil {
		return Result{Success: true, Message: success, ID: id}, nil
	}
	k := KindOf(err)
	if !k.Domain() {
		return nil, err
	}
	msg := Message(k)
	var gerr *Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		msg = gerr.Message
	}
	return Result{Success: false, Message: msg, Kind: k}, nil
}
