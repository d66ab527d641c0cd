package entity

import "time"

// Warehouse representa una bodega o sucursal donde se almacenan lotes.
// Es dato de referencia: el núcleo de stock solo la lee.
type Warehouse struct {
	ID        string
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
