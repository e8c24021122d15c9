package model

// Role identifiers as stored in usuario.id_rol.  The values are bit flags in
// the original schema; only the two below are recognized by this backend.
const (
	RoleAdmin    = 128 // administrador: every brand, admin screens
	RoleEmployee = 64  // empleado: own brand only, employee screens
)

// User represents a row of the `usuario` table.  The password digest is
// never loaded into this struct; it stays in the database and is only
// compared there.  JSON tags use the column names because the UI reads the
// session document and command results with those keys.
//
// Fields:
//  ID       – primary key identifier.
//  Name     – given name.
//  Surname1 – paternal surname.
//  Surname2 – maternal surname.
//  Email    – unique login email.
//  RoleID   – role flag (RoleAdmin or RoleEmployee).
//  BrandID  – brand the user belongs to; nil for users not tied to a brand.
type User struct {
	ID       int64  `json:"id_usuario"`     // usuario.id_usuario
	Name     string `json:"nombre_usuario"` // usuario.nombre_usuario
	Surname1 string `json:"ap_usuario"`     // usuario.ap_usuario
	Surname2 string `json:"am_usuario"`     // usuario.am_usuario
	Email    string `json:"correo_usuario"` // usuario.correo_usuario
	RoleID   int    `json:"id_rol"`         // usuario.id_rol
	BrandID  *int64 `json:"id_marca"`       // usuario.id_marca (nullable)
}

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool { return u.RoleID == RoleAdmin }

// UserUpdate is a partial update of a user.  Nil fields are left untouched.
// Password is plain text on the way in; the repository hands it to the
// database digest function and never stores it as given.
type UserUpdate struct {
	Name     *string `json:"nombre_usuario"`
	Surname1 *string `json:"ap_usuario"`
	Surname2 *string `json:"am_usuario"`
	Email    *string `json:"correo_usuario" validate:"omitempty,email"`
	Password *string `json:"contrasena_usuario"`
}
