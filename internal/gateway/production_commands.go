package gateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spinsa/inventario/internal/auth"
	"github.com/spinsa/inventario/internal/model"
	"github.com/spinsa/inventario/internal/queue"
	"github.com/spinsa/inventario/internal/repository"
)

type insertProductionPayload struct {
	IDMarca               *flexInt  `json:"idMarca"`
	IDPieza               *flexInt  `json:"idPieza"`
	FolioProduccion       string    `json:"folioProduccion" validate:"required,max=50"`
	CantidadProduccion    flexInt   `json:"cantidadProduccion"`
	EstatusProduccion     string    `json:"estatusProduccion" validate:"max=50"`
	AprobadoProduccion    flexBool  `json:"aprobadoProduccion"`
	NombreProduccion      string    `json:"nombreProduccion" validate:"required,max=150"`
	DescripcionProduccion *string   `json:"descripcionProduccion"`
	FSProduccion          *flexTime `json:"fsProduccion"`
}

var productionColumns = []string{
	"id_marca", "id_pieza", "folio_produccion", "cantidad_produccion", "estatus_produccion",
	"aprobado_produccion", "nombre_produccion", "descripcion_produccion", "FS_produccion",
}

func (g *Gateway) registerProductions() {
	g.handle("insertar-produccion", g.insertProduction)
	g.handle("obtener-producciones", g.listProductions)
	g.handle("obtener-todas-las-producciones", func(ctx context.Context, _ json.RawMessage) (any, error) {
		if _, err := g.require(ctx, model.RoleAdmin); err != nil {
			return nil, err
		}
		return g.Productions.ListAll(ctx)
	})
	g.handle("obtener-producciones-por-dia-semana", func(ctx context.Context, _ json.RawMessage) (any, error) {
		if _, err := g.require(ctx, staff...); err != nil {
			return nil, err
		}
		return g.Productions.CountByWeekday(ctx, g.now().UTC())
	})
	g.handle("eliminar-produccion", g.deleteProduction)
	g.handle("actualizar-produccion", g.updateProduction)
	g.handle("redirigir-actualizar-produccion", func(ctx context.Context, payload json.RawMessage) (any, error) {
		return g.redirect(ctx, payload, auth.EntityProduction, "cargar-produccion", []string{"idProduccion"},
			func(ctx context.Context, u *model.User, id int64) (any, error) {
				return g.visibleProduction(ctx, u, id)
			})
	})
}

// visibleProduction loads a production the user may act on.
func (g *Gateway) visibleProduction(ctx context.Context, u *model.User, id int64) (*model.Production, error) {
	p, err := g.Productions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ownsBrand(u, p.BrandID) {
		return nil, repository.ErrProductionNotFound
	}
	return p, nil
}

func (g *Gateway) insertProduction(ctx context.Context, payload json.RawMessage) (any, error) {
	u, err := g.Auth.Require(ctx, staff...)
	if err != nil {
		return outcome(err, "", 0)
	}
	var in insertProductionPayload
	if err := g.decode(payload, &in); err != nil {
		return outcome(err, "", 0)
	}
	brand, err := scopeBrand(u, in.IDMarca)
	if err != nil {
		return outcome(err, "", 0)
	}
	p := model.Production{
		BrandID:     brand,
		Folio:       strings.TrimSpace(in.FolioProduccion),
		Quantity:    int(in.CantidadProduccion),
		Status:      in.EstatusProduccion,
		Approved:    bool(in.AprobadoProduccion),
		Name:        strings.TrimSpace(in.NombreProduccion),
		Description: blankToNil(in.DescripcionProduccion),
	}
	if in.IDPieza != nil && *in.IDPieza > 0 {
		piece := int64(*in.IDPieza)
		p.PieceID = &piece
	}
	if in.FSProduccion != nil {
		d := in.FSProduccion.Time
		p.Date = &d
	}
	id, err := g.Productions.Insert(ctx, p)
	if err == nil {
		g.changed(ctx, u, auth.EntityProduction, queue.OpInsert, id, &brand)
	}
	return outcome(err, "Producción registrada con éxito.", id)
}

func (g *Gateway) listProductions(ctx context.Context, payload json.RawMessage) (any, error) {
	u, err := g.require(ctx, staff...)
	if err != nil {
		return nil, err
	}
	requested, err := brandArg(payload)
	if err != nil {
		return nil, err
	}
	brand, err := scopeBrand(u, requested)
	if err != nil {
		return nil, err
	}
	return g.Productions.ListByBrand(ctx, brand)
}

func (g *Gateway) deleteProduction(ctx context.Context, payload json.RawMessage) (any, error) {
	u, err := g.Auth.Require(ctx, staff...)
	if err != nil {
		return outcome(err, "", 0)
	}
	id, err := decodeID(payload, "idProduccion")
	if err != nil {
		return outcome(err, "", 0)
	}
	p, err := g.visibleProduction(ctx, u, id)
	if err == nil {
		err = g.Productions.Delete(ctx, id)
	}
	if err == nil {
		g.changed(ctx, u, auth.EntityProduction, queue.OpDelete, id, &p.BrandID)
	}
	return outcome(err, "Producción eliminada correctamente.", id)
}

func (g *Gateway) updateProduction(ctx context.Context, payload json.RawMessage) (any, error) {
	u, err := g.Auth.Require(ctx, staff...)
	if err != nil {
		return outcome(err, "", 0)
	}
	id, upd, err := g.productionUpdate(payload)
	if err != nil {
		return outcome(err, "", 0)
	}
	p, err := g.visibleProduction(ctx, u, id)
	if err != nil {
		return outcome(err, "", 0)
	}
	if upd.BrandID != nil && !ownsBrand(u, *upd.BrandID) {
		return outcome(auth.ErrForbidden, "", 0)
	}
	if err := g.Productions.Update(ctx, id, upd); err != nil {
		return outcome(err, "", 0)
	}
	brand := p.BrandID
	if upd.BrandID != nil {
		brand = *upd.BrandID
	}
	g.changed(ctx, u, auth.EntityProduction, queue.OpUpdate, id, &brand)
	return outcome(nil, "Producción actualizada con éxito.", id)
}

// productionUpdate decodes {idProduccion, datos}.  A null id_pieza or
// FS_produccion clears the column.
func (g *Gateway) productionUpdate(payload json.RawMessage) (int64, model.ProductionUpdate, error) {
	var upd model.ProductionUpdate
	var in map[string]json.RawMessage
	if err := json.Unmarshal(payload, &in); err != nil {
		return 0, upd, invalid("Datos no válidos.", err)
	}
	id, err := decodeID(payload, "idProduccion")
	if err != nil {
		return 0, upd, err
	}
	f, err := g.decodeFields(in["datos"], productionColumns...)
	if err != nil {
		return 0, upd, err
	}

	brand := field[flexInt](f, "id_marca", &err)
	piece := field[flexInt](f, "id_pieza", &err)
	folio := field[string](f, "folio_produccion", &err)
	qty := field[flexInt](f, "cantidad_produccion", &err)
	status := field[string](f, "estatus_produccion", &err)
	approved := field[flexBool](f, "aprobado_produccion", &err)
	name := field[string](f, "nombre_produccion", &err)
	desc := field[string](f, "descripcion_produccion", &err)
	date := field[flexTime](f, "FS_produccion", &err)
	if err != nil {
		return 0, upd, err
	}

	if brand != nil {
		v := int64(*brand)
		upd.BrandID = &v
	}
	if piece != nil {
		v := int64(*piece)
		upd.PieceID = &v
	}
	upd.ClearPiece = f.null("id_pieza")
	if folio != nil {
		if strings.TrimSpace(*folio) == "" {
			return 0, upd, invalid("El folio no puede quedar vacío.", nil)
		}
		upd.Folio = folio
	}
	if qty != nil {
		v := int(*qty)
		upd.Quantity = &v
	}
	upd.Status = status
	if approved != nil {
		v := bool(*approved)
		upd.Approved = &v
	}
	if name != nil {
		if strings.TrimSpace(*name) == "" {
			return 0, upd, invalid("El nombre no puede quedar vacío.", nil)
		}
		upd.Name = name
	}
	upd.Description = blankToNil(desc)
	upd.ClearDescription = f.null("descripcion_produccion") || (desc != nil && upd.Description == nil)
	if date != nil {
		upd.Date = &date.Time
	}
	upd.ClearDate = f.null("FS_produccion")
	return id, upd, nil
}
