package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/spinsa/inventario/internal/database"
	"github.com/spinsa/inventario/internal/model"
)

const userCols = `id_usuario, nombre_usuario, ap_usuario, am_usuario, correo_usuario, id_rol, id_marca`

// UserRepo reads and updates rows of the `usuario` table.  Password digests
// are computed and compared by the database engine.
type UserRepo struct{ conn *database.Provider }

func NewUserRepo(conn *database.Provider) *UserRepo { return &UserRepo{conn: conn} }

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var brand sql.NullInt64
	if err := row.Scan(&u.ID, &u.Name, &u.Surname1, &u.Surname2, &u.Email, &u.RoleID, &brand); err != nil {
		return nil, err
	}
	u.BrandID = int64Ptr(brand)
	return &u, nil
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// Insert provisions a user and returns its ID.  Users are created out of band
// (seeding, admin tooling); the command surface never calls this.
func (r *UserRepo) Insert(ctx context.Context, u model.User, password string) (int64, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return 0, err
	}
	q := `INSERT INTO usuario (nombre_usuario, ap_usuario, am_usuario, correo_usuario, contrasena_usuario, id_rol, id_marca)
	      VALUES (?, ?, ?, ?, ` + db.Dialect().Digest("?") + `, ?, ?)`
	res, err := db.ExecContext(ctx, q, u.Name, u.Surname1, u.Surname2, normalizeEmail(u.Email), password, u.RoleID, u.BrandID)
	if err != nil {
		return 0, translate(db, err)
	}
	return res.LastInsertId()
}

// Authenticate returns the user whose email and password digest both match.
// ErrUserNotFound covers a wrong email and a wrong password alike.
func (r *UserRepo) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + userCols + ` FROM usuario
	      WHERE correo_usuario = ? AND contrasena_usuario = ` + db.Dialect().Digest("?") + ` LIMIT 1`
	u, err := scanUser(db.QueryRowContext(ctx, q, normalizeEmail(email), password))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id int64) (*model.User, error) {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return nil, err
	}
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userCols+` FROM usuario WHERE id_usuario = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Update applies the non-nil fields of upd.  A blank password is treated as
// absent so profile forms can leave it empty.
func (r *UserRepo) Update(ctx context.Context, id int64, upd model.UserUpdate) error {
	db, err := r.conn.Get(ctx)
	if err != nil {
		return err
	}
	var set setList
	if upd.Name != nil {
		set.add("nombre_usuario", *upd.Name)
	}
	if upd.Surname1 != nil {
		set.add("ap_usuario", *upd.Surname1)
	}
	if upd.Surname2 != nil {
		set.add("am_usuario", *upd.Surname2)
	}
	if upd.Email != nil {
		set.add("correo_usuario", normalizeEmail(*upd.Email))
	}
	if upd.Password != nil && strings.TrimSpace(*upd.Password) != "" {
		set.addExpr("contrasena_usuario", db.Dialect().Digest("?"), *upd.Password)
	}
	return translate(db, updateExisting(ctx, db, "usuario", "id_usuario", id, &set, ErrUserNotFound))
}
