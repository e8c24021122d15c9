package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinsa/inventario/internal/auth"
	"github.com/spinsa/inventario/internal/database"
	"github.com/spinsa/inventario/internal/model"
	"github.com/spinsa/inventario/internal/queue"
	"github.com/spinsa/inventario/internal/repository"
	"github.com/spinsa/inventario/internal/session"
)

type sent struct {
	event   string
	payload any
}

type fakeShell struct {
	mu        sync.Mutex
	autoReady bool
	views     []string
	pending   []chan struct{}
	events    []sent
}

func (s *fakeShell) Navigate(view string) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.views = append(s.views, view)
	if s.autoReady {
		close(ch)
	} else {
		s.pending = append(s.pending, ch)
	}
	return ch
}

func (s *fakeShell) Send(event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sent{event, payload})
}

func (s *fakeShell) markReady() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.pending {
		close(ch)
	}
	s.pending = nil
}

func (s *fakeShell) named(event string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []any
	for _, e := range s.events {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

func (s *fakeShell) lastView() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.views) == 0 {
		return ""
	}
	return s.views[len(s.views)-1]
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.MovementEvent
}

func (p *fakePublisher) PublishMovement(_ context.Context, ev queue.MovementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type fixture struct {
	g     *Gateway
	shell *fakeShell
	pub   *fakePublisher
	store *session.Store
	conn  *database.Provider
}

func newFixtureWith(t *testing.T, conn *database.Provider) *fixture {
	t.Helper()
	store := session.NewStore(t.TempDir(), nil)
	users := repository.NewUserRepo(conn)
	shell := &fakeShell{autoReady: true}
	pub := &fakePublisher{}
	g := New(Deps{
		Auth:             auth.NewService(users, store, nil, nil),
		Sessions:         store,
		Users:            users,
		Brands:           repository.NewBrandRepo(conn),
		Pieces:           repository.NewPieceRepo(conn),
		Inventories:      repository.NewInventoryRepo(conn),
		Productions:      repository.NewProductionRepo(conn),
		Shell:            shell,
		Publisher:        pub,
		ViewReadyTimeout: time.Second,
	})
	t.Cleanup(g.Close)
	return &fixture{g: g, shell: shell, pub: pub, store: store, conn: conn}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(context.Background(), database.Options{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newFixtureWith(t, database.Static(db))
}

func (f *fixture) invoke(t *testing.T, name string, payload any) (any, error) {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		raw = b
	}
	return f.g.Invoke(context.Background(), name, raw)
}

func (f *fixture) result(t *testing.T, name string, payload any) Result {
	t.Helper()
	out, err := f.invoke(t, name, payload)
	require.NoError(t, err)
	res, ok := out.(Result)
	require.True(t, ok, "command %s returned %T", name, out)
	return res
}

// signIn provisions a user and logs in through the gateway.
func (f *fixture) signIn(t *testing.T, email string, role int, brand *int64) int64 {
	t.Helper()
	id, err := f.g.Users.Insert(context.Background(),
		model.User{Name: "N", Surname1: "A", Surname2: "B", Email: email, RoleID: role, BrandID: brand}, "clave")
	require.NoError(t, err)
	res := f.result(t, "login-attempt", map[string]string{"correo": email, "password": "clave"})
	require.True(t, res.Success, res.Message)
	return id
}

func brandp(b int64) *int64 { return &b }

func gwErr(t *testing.T, err error) *Error {
	t.Helper()
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	return gerr
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	_, err := f.invoke(t, "no-existe", nil)
	assert.Equal(t, KindNotFound, gwErr(t, err).Kind)
}

func TestCommandsAreRegistered(t *testing.T) {
	f := newFixture(t)
	for _, name := range []string{
		"read-user-data", "save-user-data", "clear-user-data", "request-user-data", "login-attempt", "cerrar-sesion",
		"obtener-marcas",
		"insertar-pieza", "obtener-piezas", "obtener-pieza-por-id", "eliminar-pieza", "actualizar-pieza",
		"obtener-piezas-sin-inventario", "redirigir-actualizar-pieza",
		"insertar-inventario", "obtener-inventarios", "obtener-todos-los-inventarios", "eliminar-inventario",
		"actualizar-inventario", "redirigir-actualizar-inventario",
		"insertar-produccion", "obtener-producciones", "obtener-todas-las-producciones",
		"obtener-producciones-por-dia-semana", "eliminar-produccion", "actualizar-produccion",
		"redirigir-actualizar-produccion",
		"obtener-usuario-por-id", "actualizar-usuario",
	} {
		assert.Contains(t, f.g.Commands(), name)
	}
}

func TestLoginDeniedIsExplicit(t *testing.T) {
	f := newFixture(t)
	_, err := f.g.Users.Insert(context.Background(), model.User{Name: "A", Email: "a@spinsa.mx", RoleID: model.RoleAdmin}, "clave")
	require.NoError(t, err)

	res := f.result(t, "login-attempt", map[string]string{"correo": "a@spinsa.mx", "password": "mala"})
	assert.False(t, res.Success)
	assert.Equal(t, KindInvalidCredentials, res.Kind)
	assert.NotEmpty(t, res.Message)
	assert.Empty(t, f.shell.views)

	u, err := f.store.Read()
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestLoginNavigatesByRole(t *testing.T) {
	f := newFixture(t)

	f.signIn(t, "admin@spinsa.mx", model.RoleAdmin, nil)
	assert.Equal(t, auth.ViewAdminDashboard, f.shell.lastView())

	f.signIn(t, "emp@spinsa.mx", model.RoleEmployee, brandp(1))
	assert.Equal(t, auth.ViewEmployeeDashboard, f.shell.lastView())

	views := len(f.shell.views)
	f.signIn(t, "odd@spinsa.mx", 32, nil)
	assert.Len(t, f.shell.views, views, "unknown role must not navigate")
	u, err := f.store.Read()
	require.NoError(t, err)
	assert.Equal(t, 32, u.RoleID)
}

func TestLoginValidatesPayload(t *testing.T) {
	f := newFixture(t)
	res := f.result(t, "login-attempt", map[string]string{"correo": "no-es-correo"})
	assert.Equal(t, KindInvalid, res.Kind)
}

func TestAnonymousIsRefused(t *testing.T) {
	f := newFixture(t)

	_, err := f.invoke(t, "obtener-piezas", nil)
	assert.Equal(t, KindUnauthenticated, gwErr(t, err).Kind)

	res := f.result(t, "insertar-pieza", map[string]string{"nombre": "X"})
	assert.False(t, res.Success)
	assert.Equal(t, KindUnauthenticated, res.Kind)
}

func TestRefusalLogCarriesErrorOnlyWhenPresent(t *testing.T) {
	f := newFixture(t)
	var buf bytes.Buffer
	f.g.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	res := f.result(t, "insertar-pieza", map[string]string{"nombre": "X"})
	require.Equal(t, KindUnauthenticated, res.Kind)
	assert.Contains(t, buf.String(), "kind=unauthenticated")
	assert.NotContains(t, buf.String(), "error=<nil>")

	buf.Reset()
	_, err := f.invoke(t, "obtener-piezas", nil)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "error=")
}

func TestPieceScenario(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "admin@spinsa.mx", model.RoleAdmin, nil)

	res := f.result(t, "insertar-pieza", map[string]string{"nombre": "Bearing-204", "descripcion": "front axle"})
	require.True(t, res.Success)
	assert.Equal(t, int64(1), res.ID)

	changed := f.shell.named(EventDataChanged)
	require.Len(t, changed, 1)
	assert.Equal(t, map[string]any{"entidad": "pieza", "id": int64(1), "operacion": "insert"}, changed[0])

	out, err := f.invoke(t, "obtener-pieza-por-id", 1)
	require.NoError(t, err)
	desc := "front axle"
	assert.Equal(t, &model.Piece{ID: 1, Name: "Bearing-204", Description: &desc}, out)

	res = f.result(t, "eliminar-pieza", 1)
	assert.True(t, res.Success)

	out, err = f.invoke(t, "obtener-pieza-por-id", map[string]int{"idPieza": 1})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestPieceCommandsAcceptFormKeys(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "admin@spinsa.mx", model.RoleAdmin, nil)

	res := f.result(t, "insertar-pieza", map[string]string{"nombrePieza": "Bearing-204", "descripcionPieza": "front axle"})
	require.True(t, res.Success, res.Message)

	res = f.result(t, "actualizar-pieza", map[string]any{"idPieza": res.ID, "nombrePieza": "Bearing-205", "descripcionPieza": ""})
	require.True(t, res.Success, res.Message)

	out, err := f.invoke(t, "obtener-pieza-por-id", res.ID)
	require.NoError(t, err)
	assert.Equal(t, &model.Piece{ID: res.ID, Name: "Bearing-205"}, out)

	res = f.result(t, "insertar-pieza", map[string]string{"descripcionPieza": "sin nombre"})
	assert.Equal(t, KindInvalid, res.Kind)
}

func TestMutationsOnMissingIDReportNotFound(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "admin@spinsa.mx", model.RoleAdmin, nil)

	for name, payload := range map[string]any{
		"actualizar-pieza":      map[string]any{"id": 9, "nombre": "x"},
		"eliminar-pieza":        9,
		"eliminar-inventario":   9,
		"eliminar-produccion":   9,
		"actualizar-inventario": map[string]any{"idInventario": 9, "datos": map[string]any{"cantidad_inventario": 1}},
		"actualizar-produccion": map[string]any{"idProduccion": 9, "datos": map[string]any{"nombre_produccion": "x"}},
		"actualizar-usuario":    map[string]any{"idUsuario": 99, "datos": map[string]any{"nombre_usuario": "x"}},
	} {
		t.Run(name, func(t *testing.T) {
			res := f.result(t, name, payload)
			assert.False(t, res.Success)
			assert.Equal(t, KindNotFound, res.Kind)
		})
	}
}

func TestEmployeeBrandScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pieceID, err := f.g.Pieces.Insert(ctx, "Gear", nil)
	require.NoError(t, err)
	otherInv, err := f.g.Inventories.Insert(ctx, model.Inventory{BrandID: 2, PieceID: pieceID, Quantity: 3, LastMovement: time.Now().UTC()})
	require.NoError(t, err)

	f.signIn(t, "emp@spinsa.mx", model.RoleEmployee, brandp(1))

	res := f.result(t, "insertar-inventario", map[string]any{"idPieza": pieceID, "cantidad": "8", "fecha": "2026-10-14"})
	require.True(t, res.Success, res.Message)
	inv, err := f.g.Inventories.GetByID(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), inv.BrandID)
	assert.Equal(t, 8, inv.Quantity)

	res = f.result(t, "insertar-inventario", map[string]any{"idMarca": 2, "idPieza": pieceID, "cantidad": 1})
	assert.Equal(t, KindForbidden, res.Kind)

	out, err := f.invoke(t, "obtener-inventarios", nil)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	_, err = f.invoke(t, "obtener-inventarios", 2)
	assert.Equal(t, KindForbidden, gwErr(t, err).Kind)

	_, err = f.invoke(t, "obtener-todos-los-inventarios", nil)
	assert.Equal(t, KindForbidden, gwErr(t, err).Kind)
	_, err = f.invoke(t, "obtener-todas-las-producciones", nil)
	assert.Equal(t, KindForbidden, gwErr(t, err).Kind)

	// Rows of another brand look missing.
	res = f.result(t, "eliminar-inventario", otherInv)
	assert.Equal(t, KindNotFound, res.Kind)
	_, err = f.g.Inventories.GetByID(ctx, otherInv)
	assert.NoError(t, err)
}

func TestAdminListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pieceID, err := f.g.Pieces.Insert(ctx, "Gear", nil)
	require.NoError(t, err)
	for _, brand := range []int64{1, 2} {
		_, err := f.g.Inventories.Insert(ctx, model.Inventory{BrandID: brand, PieceID: pieceID, LastMovement: time.Now().UTC()})
		require.NoError(t, err)
	}
	f.signIn(t, "admin@spinsa.mx", model.RoleAdmin, nil)

	_, err = f.invoke(t, "obtener-inventarios", nil)
	assert.Equal(t, KindInvalid, gwErr(t, err).Kind, "admins must name the brand")

	out, err := f.invoke(t, "obtener-inventarios", map[string]any{"idMarca": "2"})
	require.NoError(t, err)
	require.Len(t, out, 1)

	out, err = f.invoke(t, "obtener-todos-los-inventarios", nil)
	require.NoError(t, err)
	all := out.([]model.Inventory)
	require.Len(t, all, 2)
	assert.Equal(t, "VOLKSWAGEN", all[0].BrandName)

	out, err = f.invoke(t, "obtener-piezas-sin-inventario", 3)
	require.NoError(t, err)
	assert.Len(t, out, 1)
	out, err = f.invoke(t, "obtener-piezas-sin-inventario", 1)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = f.invoke(t, "obtener-marcas", nil)
	require.NoError(t, err)
	assert.Len(t, out, 4)
}

func TestUpdateInventoryIsPartial(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pieceID, err := f.g.Pieces.Insert(ctx, "Gear", nil)
	require.NoError(t, err)
	moved := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	id, err := f.g.Inventories.Insert(ctx, model.Inventory{BrandID: 1, PieceID: pieceID, Quantity: 5, LastMovement: moved})
	require.NoError(t, err)
	f.signIn(t, "emp@spinsa.mx", model.RoleEmployee, brandp(1))

	res := f.result(t, "actualizar-inventario", map[string]any{"idInventario": id, "datos": map[string]any{"cantidad_inventario": "15"}})
	require.True(t, res.Success, res.Message)
	inv, err := f.g.Inventories.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 15, inv.Quantity)
	assert.True(t, moved.Equal(inv.LastMovement))

	res = f.result(t, "actualizar-inventario", map[string]any{"idInventario": id, "datos": map[string]any{}})
	assert.Equal(t, KindNoChange, res.Kind)

	res = f.result(t, "actualizar-inventario", map[string]any{"idInventario": id, "datos": map[string]any{"id_inventario": 4}})
	assert.Equal(t, KindInvalid, res.Kind)

	res = f.result(t, "actualizar-inventario", map[string]any{"idInventario": id, "datos": map[string]any{"id_marca": 2}})
	assert.Equal(t, KindForbidden, res.Kind)

	res = f.result(t, "actualizar-inventario", map[string]any{"idInventario": id, "datos": map[string]any{"id_pieza": 999}})
	assert.Equal(t, KindInvalid, res.Kind, "missing piece reference")
}

func TestProductionCommands(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pieceID, err := f.g.Pieces.Insert(ctx, "Gear", nil)
	require.NoError(t, err)
	f.signIn(t, "admin@spinsa.mx", model.RoleAdmin, nil)

	res := f.result(t, "insertar-produccion", map[string]any{
		"idMarca": 3, "idPieza": pieceID, "folioProduccion": "PN-1", "cantidadProduccion": 40,
		"estatusProduccion": "en proceso", "aprobadoProduccion": 1, "nombreProduccion": "Lote 1",
		"fsProduccion": "2026-10-13",
	})
	require.True(t, res.Success, res.Message)
	id := res.ID
	assert.Len(t, f.shell.named(EventDataChanged), 1)

	p, err := f.g.Productions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.Approved)
	require.NotNil(t, p.Date)
	assert.Equal(t, time.Date(2026, 10, 13, 0, 0, 0, 0, time.UTC), *p.Date)

	res = f.result(t, "actualizar-produccion", map[string]any{
		"idProduccion": id,
		"datos":        map[string]any{"id_pieza": nil, "aprobado_produccion": false, "estatus_produccion": "terminado"},
	})
	require.True(t, res.Success, res.Message)
	p, err = f.g.Productions.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, p.PieceID)
	assert.False(t, p.Approved)
	assert.Equal(t, "terminado", p.Status)
	assert.Equal(t, "PN-1", p.Folio)
	assert.NotNil(t, p.Date)

	res = f.result(t, "actualizar-produccion", map[string]any{"idProduccion": id, "datos": map[string]any{"folio_produccion": " "}})
	assert.Equal(t, KindInvalid, res.Kind)

	res = f.result(t, "insertar-produccion", map[string]any{"idMarca": 3, "nombreProduccion": "sin folio"})
	assert.Equal(t, KindInvalid, res.Kind)

	f.g.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	out, err := f.invoke(t, "obtener-producciones-por-dia-semana", nil)
	require.NoError(t, err)
	assert.Equal(t, model.WeekdayCounts{0, 1, 0, 0, 0, 0, 0}, out)

	out, err = f.invoke(t, "obtener-producciones", 3)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	res = f.result(t, "eliminar-produccion", map[string]any{"idProduccion": id})
	assert.True(t, res.Success)
	out, err = f.invoke(t, "obtener-todas-las-producciones", nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestProductionUpdateClearsDescription(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "admin@spinsa.mx", model.RoleAdmin, nil)
	ctx := context.Background()

	for _, datos := range []map[string]any{
		{"descripcion_produccion": nil},
		{"descripcion_produccion": "  "},
	} {
		desc := "d"
		id, err := f.g.Productions.Insert(ctx, model.Production{BrandID: 3, Folio: "PN-2", Name: "run", Description: &desc})
		require.NoError(t, err)

		res := f.result(t, "actualizar-produccion", map[string]any{"idProduccion": id, "datos": datos})
		require.True(t, res.Success, res.Message)
		p, err := f.g.Productions.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, p.Description, "datos %v", datos)
	}
}

func TestWeekdayCountsUseUTCWeek(t *testing.T) {
	f := newFixture(t)
	f.signIn(t, "admin@spinsa.mx", model.RoleAdmin, nil)
	ctx := context.Background()

	sunday := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	_, err := f.g.Productions.Insert(ctx, model.Production{BrandID: 3, Folio: "PN-3", Name: "run", Date: &sunday})
	require.NoError(t, err)

	// Monday 01:00 at UTC+3 is still Sunday in UTC.
	east := time.FixedZone("UTC+3", 3*60*60)
	f.g.now = func() time.Time { return time.Date(2026, 10, 19, 1, 0, 0, 0, east) }
	out, err := f.invoke(t, "obtener-producciones-por-dia-semana", nil)
	require.NoError(t, err)
	assert.Equal(t, model.WeekdayCounts{0, 0, 0, 0, 0, 0, 1}, out)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := f.g.Users.Insert(ctx, model.User{Name: "Otro", Email: "otro@spinsa.mx", RoleID: model.RoleEmployee}, "x")
	require.NoError(t, err)
	me := f.signIn(t, "emp@spinsa.mx", model.RoleEmployee, brandp(1))

	res := f.result(t, "actualizar-usuario", map[string]any{
		"idUsuario": me,
		"datos":     map[string]any{"nombre_usuario": "Nuevo", "contrasena_usuario": "  "},
	})
	require.True(t, res.Success, res.Message)

	// Blank password left the old one working.
	_, err = f.g.Users.Authenticate(ctx, "emp@spinsa.mx", "clave")
	require.NoError(t, err)

	// The session copy follows the profile.
	u, err := f.store.Read()
	require.NoError(t, err)
	assert.Equal(t, "Nuevo", u.Name)

	res = f.result(t, "actualizar-usuario", map[string]any{"idUsuario": other, "datos": map[string]any{"nombre_usuario": "x"}})
	assert.Equal(t, KindForbidden, res.Kind)

	res = f.result(t, "actualizar-usuario", map[string]any{"idUsuario": me, "datos": map[string]any{"id_rol": 128}})
	assert.Equal(t, KindInvalid, res.Kind)

	res = f.result(t, "actualizar-usuario", map[string]any{"idUsuario": me, "datos": map[string]any{"correo_usuario": "otro@spinsa.mx"}})
	assert.Equal(t, KindConflict, res.Kind)

	res = f.result(t, "actualizar-usuario", map[string]any{"idUsuario": me, "datos": map[string]any{"correo_usuario": "roto"}})
	assert.Equal(t, KindInvalid, res.Kind)

	out, err := f.invoke(t, "obtener-usuario-por-id", me)
	require.NoError(t, err)
	assert.Equal(t, "Nuevo", out.(*model.User).Name)
	_, err = f.invoke(t, "obtener-usuario-por-id", other)
	assert.Equal(t, KindForbidden, gwErr(t, err).Kind)
}

func TestSessionCommands(t *testing.T) {
	f := newFixture(t)

	out, err := f.invoke(t, "read-user-data", nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	id := f.signIn(t, "emp@spinsa.mx", model.RoleEmployee, brandp(1))

	out, err = f.invoke(t, "read-user-data", nil)
	require.NoError(t, err)
	assert.Equal(t, id, out.(*model.User).ID)

	_, err = f.invoke(t, "request-user-data", nil)
	require.NoError(t, err)
	pushed := f.shell.named(EventUserData)
	require.Len(t, pushed, 1)
	assert.Equal(t, id, pushed[0].(*model.User).ID)

	// Saving cannot raise the role or move the brand.
	res := f.result(t, "save-user-data", model.User{ID: id, Name: "Editado", Email: "emp@spinsa.mx", RoleID: model.RoleAdmin, BrandID: brandp(2)})
	require.True(t, res.Success)
	u, err := f.store.Read()
	require.NoError(t, err)
	assert.Equal(t, "Editado", u.Name)
	assert.Equal(t, model.RoleEmployee, u.RoleID)
	assert.Equal(t, int64(1), *u.BrandID)

	res = f.result(t, "save-user-data", model.User{ID: id + 1, RoleID: model.RoleEmployee})
	assert.Equal(t, KindForbidden, res.Kind)

	res = f.result(t, "cerrar-sesion", nil)
	assert.True(t, res.Success)
	assert.Equal(t, auth.ViewIndex, f.shell.lastView())
	out, err = f.invoke(t, "read-user-data", nil)
	require.NoError(t, err)
	assert.Nil(t, out)

	res = f.result(t, "clear-user-data", nil)
	assert.True(t, res.Success)
}

func TestRedirectThenLoad(t *testing.T) {
	f := newFixture(t)
	f.shell.autoReady = false
	f.signIn(t, "admin@spinsa.mx", model.RoleAdmin, nil)
	id, err := f.g.Pieces.Insert(context.Background(), "Gear", nil)
	require.NoError(t, err)

	res := f.result(t, "redirigir-actualizar-pieza", id)
	require.True(t, res.Success)
	assert.Equal(t, "admin/actualizar-pieza", res.View)
	assert.Equal(t, "admin/actualizar-pieza", f.shell.lastView())

	// Nothing is pushed until the view reports ready.
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, f.shell.named("cargar-pieza"))

	f.shell.markReady()
	require.Eventually(t, func() bool { return len(f.shell.named("cargar-pieza")) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Gear", f.shell.named("cargar-pieza")[0].(*model.Piece).Name)

	res = f.result(t, "redirigir-actualizar-pieza", id+100)
	require.True(t, res.Success)
	f.shell.markReady()
	require.Eventually(t, func() bool { return len(f.shell.named("cargar-pieza-error")) == 1 }, time.Second, 5*time.Millisecond)
}

func TestRedirectToOtherBrandPushesError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.g.Productions.Insert(ctx, model.Production{BrandID: 2, Folio: "F", Name: "N"})
	require.NoError(t, err)
	f.signIn(t, "emp@spinsa.mx", model.RoleEmployee, brandp(1))

	res := f.result(t, "redirigir-actualizar-produccion", id)
	require.True(t, res.Success)
	assert.Equal(t, "empleado/actualizar-produccion", res.View)
	require.Eventually(t, func() bool { return len(f.shell.named("cargar-produccion-error")) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, f.shell.named("cargar-produccion"))
}

func TestRedirectTimesOut(t *testing.T) {
	f := newFixture(t)
	f.shell.autoReady = false
	f.g.ViewReadyTimeout = 10 * time.Millisecond
	f.signIn(t, "admin@spinsa.mx", model.RoleAdmin, nil)

	res := f.result(t, "redirigir-actualizar-inventario", 1)
	require.True(t, res.Success)
	time.Sleep(50 * time.Millisecond)
	f.shell.markReady()
	f.g.Close()
	assert.Empty(t, f.shell.named("cargar-inventario"))
	assert.Empty(t, f.shell.named("cargar-inventario-error"))
}

func TestRedirectRefusals(t *testing.T) {
	f := newFixture(t)

	res := f.result(t, "redirigir-actualizar-pieza", 1)
	assert.Equal(t, KindUnauthenticated, res.Kind)

	f.signIn(t, "odd@spinsa.mx", 32, nil)
	res = f.result(t, "redirigir-actualizar-pieza", 1)
	assert.Equal(t, KindForbidden, res.Kind)

	res = f.result(t, "redirigir-actualizar-pieza", "abc")
	assert.Equal(t, KindInvalid, res.Kind)
}

func TestMovementEventsArePublished(t *testing.T) {
	f := newFixture(t)
	userID := f.signIn(t, "emp@spinsa.mx", model.RoleEmployee, brandp(2))
	pieceID, err := f.g.Pieces.Insert(context.Background(), "Gear", nil)
	require.NoError(t, err)

	res := f.result(t, "insertar-inventario", map[string]any{"idPieza": pieceID, "cantidad": 4})
	require.True(t, res.Success)
	res = f.result(t, "eliminar-inventario", res.ID)
	require.True(t, res.Success)
	f.g.Close()

	f.pub.mu.Lock()
	defer f.pub.mu.Unlock()
	require.Len(t, f.pub.events, 2)
	ops := []string{f.pub.events[0].Operation, f.pub.events[1].Operation}
	assert.ElementsMatch(t, []string{queue.OpInsert, queue.OpDelete}, ops)
	for _, ev := range f.pub.events {
		assert.Equal(t, "inventario", ev.Entity)
		assert.Equal(t, userID, ev.UserID)
		require.NotNil(t, ev.BrandID)
		assert.Equal(t, int64(2), *ev.BrandID)
		assert.NotEmpty(t, ev.EventID)
	}
}

func TestConnectionFailurePropagates(t *testing.T) {
	broken := database.NewProvider(database.Options{Driver: "oracle"}, nil)
	f := newFixtureWith(t, broken)
	brand := int64(1)
	require.NoError(t, f.store.Save(model.User{ID: 1, Name: "A", RoleID: model.RoleEmployee, BrandID: &brand}))

	_, err := f.invoke(t, "obtener-piezas", nil)
	require.Error(t, err)
	assert.Equal(t, KindConnection, KindOf(err))

	out, err := f.invoke(t, "insertar-pieza", map[string]string{"nombre": "X"})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, database.ErrConnectionFailed)

	out, err = f.invoke(t, "login-attempt", map[string]string{"correo": "a@spinsa.mx", "password": "x"})
	assert.Nil(t, out)
	assert.ErrorIs(t, err, database.ErrConnectionFailed, "a dead database is not a denied login")
}
