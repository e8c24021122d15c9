package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/spinsa/inventario/internal/auth"
	"github.com/spinsa/inventario/internal/model"
	"github.com/spinsa/inventario/internal/queue"
	"github.com/spinsa/inventario/internal/repository"
)

const entityUser = "usuario"

var userColumns = []string{"nombre_usuario", "ap_usuario", "am_usuario", "correo_usuario", "contrasena_usuario"}

func (g *Gateway) registerUsers() {
	g.handle("obtener-usuario-por-id", g.getUser)
	g.handle("actualizar-usuario", g.updateUser)
}

// canSee reports whether u may read or edit the profile of id.
func canSee(u *model.User, id int64) bool { return u.IsAdmin() || u.ID == id }

func (g *Gateway) getUser(ctx context.Context, payload json.RawMessage) (any, error) {
	u, err := g.require(ctx)
	if err != nil {
		return nil, err
	}
	id, err := decodeID(payload, "idUsuario")
	if err != nil {
		return nil, err
	}
	if !canSee(u, id) {
		return nil, &Error{Kind: KindForbidden, Message: Message(KindForbidden)}
	}
	found, err := g.Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return found, nil
}

// updateUser applies a partial profile update.  A blank password is
// ignored.  When users edit themselves the session copy is refreshed.
func (g *Gateway) updateUser(ctx context.Context, payload json.RawMessage) (any, error) {
	u, err := g.Auth.Require(ctx)
	if err != nil {
		return outcome(err, "", 0)
	}
	id, upd, err := g.userUpdate(payload)
	if err != nil {
		return outcome(err, "", 0)
	}
	if !canSee(u, id) {
		return outcome(auth.ErrForbidden, "", 0)
	}
	if err := g.Users.Update(ctx, id, upd); err != nil {
		return outcome(err, "", 0)
	}
	if id == u.ID {
		if fresh, err := g.Users.GetByID(ctx, id); err == nil {
			if err := g.Sessions.Save(*fresh); err != nil {
				g.Logger.Warn("session not refreshed after profile update", slog.Any("error", err))
			}
		}
	}
	g.changed(ctx, u, entityUser, queue.OpUpdate, id, nil)
	return outcome(nil, "Datos actualizados correctamente.", id)
}

func (g *Gateway) userUpdate(payload json.RawMessage) (int64, model.UserUpdate, error) {
	var upd model.UserUpdate
	var in map[string]json.RawMessage
	if err := json.Unmarshal(payload, &in); err != nil {
		return 0, upd, invalid("Datos no válidos.", err)
	}
	id, err := decodeID(payload, "idUsuario")
	if err != nil {
		return 0, upd, err
	}
	f, err := g.decodeFields(in["datos"], userColumns...)
	if err != nil {
		return 0, upd, err
	}
	upd.Name = field[string](f, "nombre_usuario", &err)
	upd.Surname1 = field[string](f, "ap_usuario", &err)
	upd.Surname2 = field[string](f, "am_usuario", &err)
	upd.Email = field[string](f, "correo_usuario", &err)
	upd.Password = field[string](f, "contrasena_usuario", &err)
	if err != nil {
		return 0, upd, err
	}
	if upd.Password != nil && strings.TrimSpace(*upd.Password) == "" {
		upd.Password = nil
	}
	if err := g.validate.Struct(upd); err != nil {
		return 0, upd, invalid("Correo no válido.", err)
	}
	return id, upd, nil
}
