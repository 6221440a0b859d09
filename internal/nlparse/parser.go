package nlparse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/gestapp/internal/domain"
	"github.com/dvloznov/gestapp/internal/logger"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used when none is configured.
const DefaultModelName = "gemini-2.5-flash"

// ErrModelResponse marks a reply from the model that is not a usable transaction.
var ErrModelResponse = errors.New("respuesta de Gemini incompleta")

// ParsedTransaction is the structured form of a free-text transaction. It is
// a suggestion for the client form and is never persisted directly.
type ParsedTransaction struct {
	Categoria     domain.Categoria `json:"categoria"`
	Descripcion   string           `json:"descripcion"`
	Tipo          domain.Tipo      `json:"tipo"`
	Monto         decimal.Decimal  `json:"monto"`
	Medio         domain.Medio     `json:"medio"`
	Fecha         string           `json:"fecha"`
	Observaciones *string          `json:"observaciones"`
}

// Parser turns free text into a ParsedTransaction.
type Parser interface {
	ParseTransaction(ctx context.Context, input string) (*ParsedTransaction, error)
}

// Generator sends a prompt to a language model and returns its text reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey string
	Model  string
}

type geminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Generator backed by the Gemini API.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (Generator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiGenerator: create genai client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModelName
	}
	return &geminiGenerator{client: client, model: model}, nil
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// GeminiParser implements Parser on top of a Generator.
type GeminiParser struct {
	gen Generator
	now func() time.Time
}

// NewGeminiParser creates a parser that prompts gen.
func NewGeminiParser(gen Generator) *GeminiParser {
	return &GeminiParser{gen: gen, now: time.Now}
}

// ParseTransaction classifies input. Blank input is a validation error; a
// failed call or malformed reply is returned wrapped.
func (p *GeminiParser) ParseTransaction(ctx context.Context, input string) (*ParsedTransaction, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, domain.NewValidationError("userInput", "userInput es requerido")
	}

	log := logger.FromContext(ctx)

	prompt, err := buildPrompt(input, civil.DateOf(p.now()))
	if err != nil {
		return nil, err
	}

	raw, err := p.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("Error al procesar con Gemini: %w", err)
	}
	log.Debug().Str("raw", raw).Msg("Gemini response received")

	parsed, err := decodeParsed(raw)
	if err != nil {
		log.Warn().Err(err).Str("raw", raw).Msg("Unusable Gemini response")
		return nil, fmt.Errorf("Error al procesar con Gemini: %w", err)
	}
	return parsed, nil
}

// decodeParsed cleans the model reply, decodes it and checks it against the
// domain enumerations.
func decodeParsed(raw string) (*ParsedTransaction, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, fmt.Errorf("%w: respuesta vacía", ErrModelResponse)
	}

	var fields struct {
		Categoria     string          `json:"categoria"`
		Descripcion   string          `json:"descripcion"`
		Tipo          string          `json:"tipo"`
		Monto         decimal.Decimal `json:"monto"`
		Medio         string          `json:"medio"`
		Fecha         string          `json:"fecha"`
		Observaciones *string         `json:"observaciones"`
	}
	if err := json.Unmarshal([]byte(clean), &fields); err != nil {
		return nil, fmt.Errorf("%w: JSON inválido: %v", ErrModelResponse, err)
	}

	var missing []string
	for name, v := range map[string]string{
		"categoria":   fields.Categoria,
		"descripcion": fields.Descripcion,
		"tipo":        fields.Tipo,
		"medio":       fields.Medio,
		"fecha":       fields.Fecha,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if fields.Monto.IsZero() {
		missing = append(missing, "monto")
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("%w: faltan campos %s", ErrModelResponse, strings.Join(missing, ", "))
	}

	categoria, err := domain.ParseCategoria(fields.Categoria)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelResponse, err)
	}
	tipo, err := domain.ParseTipo(fields.Tipo)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelResponse, err)
	}
	medio, err := domain.ParseMedio(fields.Medio)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelResponse, err)
	}
	if err := domain.ValidatePair(categoria, tipo); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelResponse, err)
	}
	fecha, err := domain.ParseFecha(fields.Fecha)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelResponse, err)
	}

	var notes *string
	if fields.Observaciones != nil {
		if s := strings.TrimSpace(*fields.Observaciones); s != "" {
			notes = &s
		}
	}

	return &ParsedTransaction{
		Categoria:     categoria,
		Descripcion:   strings.TrimSpace(fields.Descripcion),
		Tipo:          tipo,
		Monto:         fields.Monto.Abs(),
		Medio:         medio,
		Fecha:         fecha.String(),
		Observaciones: notes,
	}, nil
}

// cleanModelJSON strips Markdown fences and any text around the JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return strings.Trim(s, "`")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
