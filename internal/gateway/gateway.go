// Package gateway exposes every session and repository operation as a named
// command.  It owns the role checks, the brand scoping of employees, the
// redirect-then-load flow and the change notifications pushed to the UI.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/spinsa/inventario/internal/auth"
	"github.com/spinsa/inventario/internal/model"
	"github.com/spinsa/inventario/internal/queue"
	"github.com/spinsa/inventario/internal/repository"
)

// Events pushed to the UI.
const (
	EventDataChanged = "datos-actualizados"
	EventUserData    = "user-data"
)

// Shell is the window that hosts the UI.  Navigate loads a view and returns
// a channel closed once that view reports it finished loading.
type Shell interface {
	Navigate(view string) <-chan struct{}
	Send(event string, payload any)
}

// SessionStore is the persisted session.  *session.Store satisfies it.
type SessionStore interface {
	Read() (*model.User, error)
	Save(u model.User) error
	Clear() error
}

// MovementPublisher publishes domain events.  A nil publisher disables them.
type MovementPublisher interface {
	PublishMovement(ctx context.Context, ev queue.MovementEvent) error
}

// Deps are the collaborators of a Gateway.
type Deps struct {
	Auth        *auth.Service
	Sessions    SessionStore
	Users       *repository.UserRepo
	Brands      *repository.BrandRepo
	Pieces      *repository.PieceRepo
	Inventories *repository.InventoryRepo
	Productions *repository.ProductionRepo
	Shell       Shell
	Publisher   MovementPublisher
	Logger      *slog.Logger

	// ViewReadyTimeout bounds the wait for a redirected view to load.
	ViewReadyTimeout time.Duration
}

type handlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Gateway dispatches named commands.
type Gateway struct {
	Deps
	validate *validator.Validate
	now      func() time.Time
	commands map[string]handlerFunc

	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once
}

// New builds the gateway and its command table.
func New(d Deps) *Gateway {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	d.Logger = d.Logger.With(slog.String("component", "gateway"))
	if d.ViewReadyTimeout <= 0 {
		d.ViewReadyTimeout = 10 * time.Second
	}
	g := &Gateway{
		Deps:     d,
		validate: newValidator(),
		now:      time.Now,
		commands: make(map[string]handlerFunc),
		done:     make(chan struct{}),
	}
	g.registerSession()
	g.registerBrands()
	g.registerPieces()
	g.registerInventories()
	g.registerProductions()
	g.registerUsers()
	return g
}

func (g *Gateway) handle(name string, h handlerFunc) {
	if _, dup := g.commands[name]; dup {
		panic("gateway: duplicate command " + name)
	}
	g.commands[name] = h
}

// Commands lists the registered command names in order.
func (g *Gateway) Commands() []string {
	names := make([]string, 0, len(g.commands))
	for n := range g.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the command name with payload.  See Result and Error for the
// shape of failures.
func (g *Gateway) Invoke(ctx context.Context, name string, payload json.RawMessage) (any, error) {
	h, ok := g.commands[name]
	if !ok {
		return nil, &Error{Kind: KindNotFound, Message: fmt.Sprintf("Comando desconocido: %s.", name)}
	}
	start := time.Now()
	out, err := h(ctx, payload)
	attrs := []any{slog.String("command", name), slog.Duration("took", time.Since(start))}
	k := KindOf(err)
	if res, ok := out.(Result); ok && !res.Success {
		k = res.Kind
	}
	switch {
	case k == "":
		g.Logger.Debug("command", attrs...)
	case k.Domain():
		attrs = append(attrs, slog.String("kind", string(k)))
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		}
		g.Logger.Info("command refused", attrs...)
	default:
		g.Logger.Error("command failed", append(attrs, slog.Any("error", err))...)
	}
	return out, err
}

// Close stops pending redirect waits and background publishes.
func (g *Gateway) Close() {
	g.once.Do(func() { close(g.done) })
	g.wg.Wait()
}

// goBackground runs fn in the background, tracked by Close.
func (g *Gateway) goBackground(fn func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

// require resolves the session for a read command, mapping refusals to *Error.
func (g *Gateway) require(ctx context.Context, roles ...int) (*model.User, error) {
	u, err := g.Auth.Require(ctx, roles...)
	if err != nil {
		if k := KindOf(err); k.Domain() {
			return nil, &Error{Kind: k, Message: Message(k), Err: err}
		}
		return nil, err
	}
	return u, nil
}

var errNoShell = errors.New("no shell attached")

var staff = []int{model.RoleAdmin, model.RoleEmployee}

// scopeBrand resolves the brand a brand-scoped command acts on.  Admins
// must name one; employees get their own and may not name another.
func scopeBrand(u *model.User, requested *flexInt) (int64, error) {
	if u.IsAdmin() {
		if requested == nil || *requested <= 0 {
			return 0, invalid("Falta la marca.", nil)
		}
		return int64(*requested), nil
	}
	if u.BrandID == nil {
		return 0, &Error{Kind: KindForbidden, Message: "El usuario no tiene una marca asignada."}
	}
	if requested != nil && int64(*requested) != *u.BrandID {
		return 0, &Error{Kind: KindForbidden, Message: Message(KindForbidden)}
	}
	return *u.BrandID, nil
}

// ownsBrand reports whether u may act on a row of brand.
func ownsBrand(u *model.User, brand int64) bool {
	return u.IsAdmin() || (u.BrandID != nil && *u.BrandID == brand)
}

// changed pushes the list refresh notice and publishes the movement event.
func (g *Gateway) changed(ctx context.Context, u *model.User, entity, op string, id int64, brand *int64) {
	if g.Shell != nil {
		g.Shell.Send(EventDataChanged, map[string]any{"entidad": entity, "id": id, "operacion": op})
	}
	if g.Publisher == nil {
		return
	}
	ev := queue.MovementEvent{
		EventID:    uuid.NewString(),
		Entity:     entity,
		Operation:  op,
		EntityID:   id,
		BrandID:    brand,
		UserID:     u.ID,
		OccurredAt: g.now().UTC(),
	}
	pubCtx := context.WithoutCancel(ctx)
	g.goBackground(func() {
		ctx, cancel := context.WithTimeout(pubCtx, 5*time.Second)
		defer cancel()
		if err := g.Publisher.PublishMovement(ctx, ev); err != nil {
			g.Logger.Warn("movement event not published", slog.String("entity", entity), slog.Int64("id", id), slog.Any("error", err))
		}
	})
}

// redirect navigates to the update screen of entity and, once the view is
// ready, pushes the record found by load as event, or event+"-error".
func (g *Gateway) redirect(ctx context.Context, payload json.RawMessage, entity, event string, idKeys []string,
	load func(ctx context.Context, u *model.User, id int64) (any, error)) (any, error) {

	id, err := decodeID(payload, idKeys...)
	if err != nil {
		return outcome(err, "", 0)
	}
	u, err := g.Auth.Require(ctx)
	if err != nil {
		return outcome(err, "", 0)
	}
	view, err := auth.UpdateView(u.RoleID, entity)
	if err != nil {
		return outcome(err, "", 0)
	}
	if g.Shell == nil {
		return nil, errNoShell
	}

	ready := g.Shell.Navigate(view)
	loadCtx := context.WithoutCancel(ctx)
	g.goBackground(func() {
		timer := time.NewTimer(g.ViewReadyTimeout)
		defer timer.Stop()
		select {
		case <-ready:
		case <-timer.C:
			g.Logger.Warn("view did not report ready", slog.String("view", view), slog.Duration("timeout", g.ViewReadyTimeout))
			return
		case <-g.done:
			return
		}
		rec, err := load(loadCtx, u, id)
		if err != nil {
			if KindOf(err) != KindNotFound && KindOf(err) != KindForbidden {
				g.Logger.Error("redirect load failed", slog.String("entity", entity), slog.Int64("id", id), slog.Any("error", err))
			}
			g.Shell.Send(event+"-error", fmt.Sprintf("No se encontró el registro %s con ID %d.", entity, id))
			return
		}
		g.Shell.Send(event, rec)
	})
	return Result{Success: true, Message: "Redirigiendo.", View: view, ID: id}, nil
}
