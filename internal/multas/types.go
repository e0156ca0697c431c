package multas

// Fine states the upstream API uses.
const (
	EstadoPendiente = "pendiente"
	EstadoPagado    = "pagado"
)

// Multa is a fine record as the upstream API returns it.
type Multa struct {
	ID            int    `json:"id"`
	Usuario       int    `json:"usuario"`
	UsuarioNombre string `json:"usuario_nombre,omitempty"`
	Motivo        string `json:"motivo"`
	Descripcion   string `json:"descripcion,omitempty"`
	Monto         int64  `json:"monto"`
	FechaCreacion string `json:"fecha_creacion,omitempty"`
	FechaPago     string `json:"fecha_pago,omitempty"`
	Estado        string `json:"estado"`
}

// Form is the create/update payload. Fines are assigned to residents
// by the administrator.
type Form struct {
	Usuario     int    `json:"usuario" binding:"required"`
	Motivo      string `json:"motivo" binding:"required"`
	Descripcion string `json:"descripcion"`
	Monto       int64  `json:"monto" binding:"required"`
	Estado      string `json:"estado"`
	FechaPago   string `json:"fecha_pago,omitempty"`
}

// Estadisticas are the admin-only fine totals.
type Estadisticas struct {
	TotalMultas      int   `json:"total_multas"`
	MultasPendientes int   `json:"multas_pendientes"`
	MultasPagadas    int   `json:"multas_pagadas"`
	MontoPendiente   int64 `json:"monto_pendiente"`
	MontoPagado      int64 `json:"monto_pagado"`
}
