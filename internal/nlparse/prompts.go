package nlparse

import (
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gestapp/internal/domain"
)

// buildPrompt renders the Spanish classification prompt for input, with
// today used to resolve relative dates ("ayer", "hoy", "mañana").
func buildPrompt(input string, today civil.Date) (string, error) {
	catalog, err := json.MarshalIndent(Catalog, "", "  ")
	if err != nil {
		return "", fmt.Errorf("buildPrompt: marshal catalog: %w", err)
	}

	tipos := make([]string, 0, 3)
	for _, t := range []domain.Tipo{domain.TipoIngreso, domain.TipoEgreso, domain.TipoAhorro} {
		tipos = append(tipos, fmt.Sprintf("%q", t))
	}
	medios := make([]string, 0, len(domain.Medios))
	for _, m := range domain.Medios {
		medios = append(medios, fmt.Sprintf("%q", m))
	}

	var b strings.Builder
	b.WriteString("Eres un asistente que ayuda a clasificar transacciones financieras en español.\n\n")
	b.WriteString("Contexto:\n")
	b.WriteString("- La moneda es COP (pesos colombianos)\n")
	b.WriteString("- Fecha actual: " + today.String() + "\n\n")

	b.WriteString("Categorías válidas y sus descripciones OBLIGATORIAS (DEBES elegir UNA descripción de la lista correspondiente):\n")
	b.Write(catalog)
	b.WriteString("\n\n")

	b.WriteString("Tipos válidos: " + strings.Join(tipos, ", ") + "\n\n")
	b.WriteString("Medios de pago válidos: " + strings.Join(medios, ", ") + "\n\n")

	b.WriteString("Reglas ESTRICTAS:\n")
	b.WriteString("1. Si la categoría es \"Entrada\", el tipo debe ser \"Ingreso\"\n")
	b.WriteString("2. Si la categoría es \"Ahorro\", el tipo debe ser \"Ahorro\"\n")
	b.WriteString("3. Si la categoría es \"Necesidad\" o \"Lujo\", el tipo debe ser \"Egreso\"\n")
	b.WriteString("4. Calcula fechas relativas (ayer, hoy, mañana) desde la fecha actual\n")
	b.WriteString("5. Si no se menciona el medio de pago, usa \"Efectivo\" por defecto\n")
	b.WriteString("6. Extrae el monto numérico sin símbolos\n")
	b.WriteString("7. El campo \"descripcion\" DEBE ser EXACTAMENTE uno de los valores de la lista de la categoría elegida. Si no estás seguro, usa \"Otro\".\n")
	b.WriteString("8. El campo \"observaciones\" describe qué es el gasto o ingreso, dónde se hizo y cualquier contexto útil. ")
	b.WriteString("Si el texto no da información adicional, usa null. Nunca uses observaciones genéricas como \"Gasto realizado\".\n\n")

	b.WriteString("Ejemplos:\n")
	b.WriteString("- \"Ayer gasté 2500 en helado\" → categoria: \"Lujo\", descripcion: \"Comida rica\", observaciones: \"Helado comprado ayer\"\n")
	b.WriteString("- \"Pagué 50000 de luz en el Éxito\" → categoria: \"Necesidad\", descripcion: \"Pago de servicios\", observaciones: \"Pago de servicio de luz en Supermercado Éxito\"\n")
	b.WriteString("- \"Recibí 500000 de salario\" → categoria: \"Entrada\", descripcion: \"Salario\", observaciones: null\n\n")

	b.WriteString("Entrada del usuario: " + fmt.Sprintf("%q", input) + "\n\n")

	b.WriteString("Responde ÚNICAMENTE con un objeto JSON válido (sin markdown, sin comillas triples), siguiendo este formato exacto:\n")
	b.WriteString(`{
  "categoria": "string",
  "descripcion": "string",
  "tipo": "string",
  "monto": number,
  "medio": "string",
  "fecha": "YYYY-MM-DD",
  "observaciones": "string o null"
}
`)
	return b.String(), nil
}
