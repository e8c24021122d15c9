package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/spinsa/inventario/internal/auth"
	"github.com/spinsa/inventario/internal/model"
)

type loginPayload struct {
	Correo   string `json:"correo" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (g *Gateway) registerSession() {
	g.handle("read-user-data", g.readUserData)
	g.handle("save-user-data", g.saveUserData)
	g.handle("clear-user-data", g.clearUserData)
	g.handle("request-user-data", g.requestUserData)
	g.handle("login-attempt", g.loginAttempt)
	g.handle("cerrar-sesion", g.logout)
}

func (g *Gateway) readUserData(ctx context.Context, _ json.RawMessage) (any, error) {
	u, err := g.Sessions.Read()
	if err != nil {
		if k := KindOf(err); k.Domain() {
			return nil, &Error{Kind: k, Message: "La sesión guardada no es válida.", Err: err}
		}
		return nil, err
	}
	if u == nil {
		return nil, nil
	}
	return u, nil
}

// saveUserData refreshes the profile of the signed-in user in the session.
// Identity, role and brand always come from the current session.
func (g *Gateway) saveUserData(ctx context.Context, payload json.RawMessage) (any, error) {
	var in model.User
	if err := json.Unmarshal(payload, &in); err != nil {
		return outcome(invalid("Datos de sesión no válidos.", err), "", 0)
	}
	cur, err := g.Auth.Require(ctx)
	if err != nil {
		return outcome(err, "", 0)
	}
	if in.ID != cur.ID {
		return outcome(&Error{Kind: KindForbidden, Message: "La sesión pertenece a otro usuario."}, "", 0)
	}
	in.RoleID, in.BrandID = cur.RoleID, cur.BrandID
	return outcome(g.Sessions.Save(in), "Sesión guardada.", 0)
}

func (g *Gateway) clearUserData(ctx context.Context, _ json.RawMessage) (any, error) {
	return outcome(g.Sessions.Clear(), "Sesión eliminada.", 0)
}

// requestUserData pushes the session user to the UI as a user-data event.
func (g *Gateway) requestUserData(ctx context.Context, _ json.RawMessage) (any, error) {
	u, err := g.readUserData(ctx, nil)
	if err != nil {
		return nil, err
	}
	if g.Shell != nil {
		g.Shell.Send(EventUserData, u)
	}
	return nil, nil
}

// loginAttempt reports denial explicitly and navigates to the dashboard of
// the user's role on success.
func (g *Gateway) loginAttempt(ctx context.Context, payload json.RawMessage) (any, error) {
	var in loginPayload
	if err := g.decode(payload, &in); err != nil {
		return outcome(err, "", 0)
	}
	res, err := g.Auth.Login(ctx, in.Correo, in.Password)
	if err != nil {
		var terr *auth.ThrottleError
		if errors.As(err, &terr) && terr.RetryAfter > 0 {
			return throttled(terr), nil
		}
		return outcome(err, "", 0)
	}
	if res.View == "" {
		return Result{Success: true, Message: "Sesión iniciada; el rol no tiene una vista asignada.", ID: res.User.ID}, nil
	}
	if g.Shell != nil {
		g.Shell.Navigate(res.View)
	}
	return Result{Success: true, Message: "Bienvenido.", ID: res.User.ID, View: res.View}, nil
}

func (g *Gateway) logout(ctx context.Context, _ json.RawMessage) (any, error) {
	view, err := g.Auth.Logout(ctx)
	if err != nil {
		return outcome(err, "", 0)
	}
	if g.Shell != nil {
		g.Shell.Navigate(view)
	}
	return Result{Success: true, Message: "Sesión cerrada.", View: view}, nil
}

// throttled tells the user when the next login attempt is allowed.
func throttled(e *auth.ThrottleError) Result {
	secs := int(math.Ceil(e.RetryAfter.Seconds()))
	return Result{
		Success: false,
		Kind:    KindThrottled,
		Message: fmt.Sprintf("Demasiados intentos fallidos. Intente de nuevo en %d segundos.", secs),
	}
}
