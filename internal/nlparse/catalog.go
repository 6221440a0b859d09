package nlparse

import "github.com/dvloznov/gestapp/internal/domain"

// CatalogEntry lists the descripciones allowed for one categoria.
type CatalogEntry struct {
	Categoria     domain.Categoria `json:"categoria"`
	Descripciones []string         `json:"descripciones"`
}

// Catalog is the fixed categoria → descripcion list the model must choose from.
var Catalog = []CatalogEntry{
	{
		Categoria: domain.CategoriaNecesidad,
		Descripciones: []string{
			"Alimentacion necesaria",
			"Aseo (casa o personal)",
			"Medicina",
			"Vivienda",
			"Pago de servicios",
			"Transporte",
			"No alimentarios",
			"Impuesto",
			"Cargos / tarifas",
			"Ropa",
			"Gasolina",
			"Dinero a mi madre",
			"Trabajo",
			"Parqueadero",
			"Peluqueada",
			"Otro",
		},
	},
	{
		Categoria: domain.CategoriaLujo,
		Descripciones: []string{
			"Ropa",
			"Comida rica",
			"Actividad recreativa",
			"Dispositivo electrónico",
			"Regalos",
			"Membresias",
			"Ajuste de gastos",
			"Transporte",
			"Inversion personal",
			"Gym",
			"Otro",
		},
	},
	{
		Categoria:     domain.CategoriaAhorro,
		Descripciones: []string{"Valor ahorrado", "Otro"},
	},
	{
		Categoria:     domain.CategoriaEntrada,
		Descripciones: []string{"Salario", "Dinero extra", "Rendimientos", "Otro"},
	},
}
