package gateway

import (
	"context"
	"encoding/json"

	"github.com/spinsa/inventario/internal/auth"
	"github.com/spinsa/inventario/internal/model"
	"github.com/spinsa/inventario/internal/queue"
	"github.com/spinsa/inventario/internal/repository"
)

type insertInventoryPayload struct {
	IDMarca  *flexInt  `json:"idMarca"`
	IDPieza  flexInt   `json:"idPieza" validate:"gt=0"`
	Cantidad flexInt   `json:"cantidad"`
	Fecha    *flexTime `json:"fecha"`
}

var inventoryColumns = []string{"id_marca", "id_pieza", "cantidad_inventario", "fecha_ultimo_movimiento"}

func (g *Gateway) registerInventories() {
	g.handle("insertar-inventario", g.insertInventory)
	g.handle("obtener-inventarios", g.listInventories)
	g.handle("obtener-todos-los-inventarios", func(ctx context.Context, _ json.RawMessage) (any, error) {
		if _, err := g.require(ctx, model.RoleAdmin); err != nil {
			return nil, err
		}
		return g.Inventories.ListAll(ctx)
	})
	g.handle("eliminar-inventario", g.deleteInventory)
	g.handle("actualizar-inventario", g.updateInventory)
	g.handle("redirigir-actualizar-inventario", func(ctx context.Context, payload json.RawMessage) (any, error) {
		return g.redirect(ctx, payload, auth.EntityInventory, "cargar-inventario", []string{"idInventario"},
			func(ctx context.Context, u *model.User, id int64) (any, error) {
				return g.visibleInventory(ctx, u, id)
			})
	})
}

// visibleInventory loads an inventory row the user may act on.  Rows of
// other brands look missing to employees.
func (g *Gateway) visibleInventory(ctx context.Context, u *model.User, id int64) (*model.Inventory, error) {
	inv, err := g.Inventories.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ownsBrand(u, inv.BrandID) {
		return nil, repository.ErrInventoryNotFound
	}
	return inv, nil
}

func (g *Gateway) insertInventory(ctx context.Context, payload json.RawMessage) (any, error) {
	u, err := g.Auth.Require(ctx, staff...)
	if err != nil {
		return outcome(err, "", 0)
	}
	var in insertInventoryPayload
	if err := g.decode(payload, &in); err != nil {
		return outcome(err, "", 0)
	}
	brand, err := scopeBrand(u, in.IDMarca)
	if err != nil {
		return outcome(err, "", 0)
	}
	moved := g.now().UTC()
	if in.Fecha != nil {
		moved = in.Fecha.Time
	}
	inv := model.Inventory{BrandID: brand, PieceID: int64(in.IDPieza), Quantity: int(in.Cantidad), LastMovement: moved}
	id, err := g.Inventories.Insert(ctx, inv)
	if err == nil {
		g.changed(ctx, u, auth.EntityInventory, queue.OpInsert, id, &brand)
	}
	return outcome(err, "Inventario registrado con éxito.", id)
}

func (g *Gateway) listInventories(ctx context.Context, payload json.RawMessage) (any, error) {
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
	return g.Inventories.ListByBrand(ctx, brand)
}

func (g *Gateway) deleteInventory(ctx context.Context, payload json.RawMessage) (any, error) {
	u, err := g.Auth.Require(ctx, staff...)
	if err != nil {
		return outcome(err, "", 0)
	}
	id, err := decodeID(payload, "idInventario")
	if err != nil {
		return outcome(err, "", 0)
	}
	inv, err := g.visibleInventory(ctx, u, id)
	if err == nil {
		err = g.Inventories.Delete(ctx, id)
	}
	if err == nil {
		g.changed(ctx, u, auth.EntityInventory, queue.OpDelete, id, &inv.BrandID)
	}
	return outcome(err, "Inventario eliminado correctamente.", id)
}

func (g *Gateway) updateInventory(ctx context.Context, payload json.RawMessage) (any, error) {
	u, err := g.Auth.Require(ctx, staff...)
	if err != nil {
		return outcome(err, "", 0)
	}
	id, upd, err := g.inventoryUpdate(payload)
	if err != nil {
		return outcome(err, "", 0)
	}
	inv, err := g.visibleInventory(ctx, u, id)
	if err != nil {
		return outcome(err, "", 0)
	}
	if upd.BrandID != nil && !ownsBrand(u, *upd.BrandID) {
		return outcome(auth.ErrForbidden, "", 0)
	}
	if err := g.Inventories.Update(ctx, id, upd); err != nil {
		return outcome(err, "", 0)
	}
	brand := inv.BrandID
	if upd.BrandID != nil {
		brand = *upd.BrandID
	}
	g.changed(ctx, u, auth.EntityInventory, queue.OpUpdate, id, &brand)
	return outcome(nil, "Inventario actualizado con éxito.", id)
}

// inventoryUpdate decodes {idInventario, datos}; datos is keyed by column.
func (g *Gateway) inventoryUpdate(payload json.RawMessage) (int64, model.InventoryUpdate, error) {
	var upd model.InventoryUpdate
	var in map[string]json.RawMessage
	if err := json.Unmarshal(payload, &in); err != nil {
		return 0, upd, invalid("Datos no válidos.", err)
	}
	id, err := decodeID(payload, "idInventario")
	if err != nil {
		return 0, upd, err
	}
	f, err := g.decodeFields(in["datos"], inventoryColumns...)
	if err != nil {
		return 0, upd, err
	}
	brand := field[flexInt](f, "id_marca", &err)
	piece := field[flexInt](f, "id_pieza", &err)
	qty := field[flexInt](f, "cantidad_inventario", &err)
	moved := field[flexTime](f, "fecha_ultimo_movimiento", &err)
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
	if qty != nil {
		v := int(*qty)
		upd.Quantity = &v
	}
	if moved != nil {
		upd.LastMovement = &moved.Time
	}
	return id, upd, nil
}
