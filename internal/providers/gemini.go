package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"omrflow/internal/models"
	"omrflow/internal/sheet"
	"omrflow/internal/util"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini reads sheets with a Gemini vision model. It serves both answers
// and headers and is the oracle of the reconciliation step.
type Gemini struct {
	keyName string
	apiKey  string
	model   string
}

func NewGemini(keyName, model string) *Gemini {
	if strings.TrimSpace(model) == "" {
		model = "gemini-1.5-flash"
	}
	return &Gemini{
		keyName: keyName,
		apiKey:  resolveGeminiKey(keyName),
		model:   strings.TrimSpace(model),
	}
}

func (g *Gemini) Supports(kind ReadKind) bool {
	return kind == ReadAnswers || kind == ReadHeader
}

func (g *Gemini) info() ProviderInfo {
	return ProviderInfo{Name: "gemini", Model: g.model, Key: g.keyName}
}

func (g *Gemini) Read(ctx context.Context, req ReadRequest) (ReadResult, ProviderInfo, error) {
	if g.apiKey == "" {
		return ReadResult{}, g.info(), fmt.Errorf("%w: gemini key missing for alias %q", util.ErrPermanent, g.keyName)
	}
	if len(req.Image) == 0 {
		return ReadResult{}, g.info(), fmt.Errorf("%w: gemini read: empty image", util.ErrPermanent)
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return ReadResult{}, g.info(), fmt.Errorf("gemini client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(g.model)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	system, user, err := geminiPrompts(req)
	if err != nil {
		return ReadResult{}, g.info(), err
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	mime := req.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	resp, err := m.GenerateContent(ctx, genai.Text(user), &genai.Blob{MIMEType: mime, Data: req.Image})
	if err != nil {
		return ReadResult{}, g.info(), Tag(fmt.Errorf("gemini %s: %w", req.Kind, err))
	}
	txt := firstText(resp)
	if txt == "" {
		return ReadResult{}, g.info(), fmt.Errorf("%w: gemini %s: empty response", util.ErrTransient, req.Kind)
	}

	out := ReadResult{Raw: txt}
	switch req.Kind {
	case ReadAnswers:
		out.Answers, err = ParseAnswerText(txt)
	case ReadHeader:
		out.Header, err = ParseHeaderJSON(txt)
	}
	if err != nil {
		return ReadResult{}, g.info(), fmt.Errorf("gemini %s: %w (response %q)", req.Kind, err, util.Snippet(txt, 160))
	}
	return out, g.info(), nil
}

func geminiPrompts(req ReadRequest) (string, string, error) {
	switch req.Kind {
	case ReadAnswers:
		if req.Geometry.IsZero() {
			return "", "", fmt.Errorf("gemini answers: %w", sheet.ErrGeometryUnspecified)
		}
		return answerSystemPrompt(req.Geometry, req.Role),
			fmt.Sprintf(`Responda apenas {"answers": [...]} com exatamente %d elementos.`, req.Geometry.Questions()), nil
	case ReadHeader:
		return headerSystemPrompt, `Responda apenas o JSON pedido.`, nil
	default:
		return "", "", fmt.Errorf("%w: gemini read kind %q", util.ErrUnsupported, req.Kind)
	}
}

func answerSystemPrompt(g sheet.Geometry, role Role) string {
	rows := g.RowsPerColumn()
	cols := make([]string, 0, g.Columns())
	for c := 0; c < g.Columns(); c++ {
		first := c*rows + 1
		last := first + rows - 1
		if last > g.Questions() {
			last = g.Questions()
		}
		cols = append(cols, fmt.Sprintf("%d-%d", first, last))
	}
	who := "do ALUNO"
	ignore := "Ignore correções do professor em outras cores, rabiscos e riscos."
	if role == RoleKey {
		who = "do GABARITO"
		ignore = "Ignore marcações que não sejam tinta preta sólida."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Você lê um cartão-resposta %s e identifica apenas as bolinhas PRETAS preenchidas.\n", who)
	fmt.Fprintf(&b, "O cartão tem %d questões em %d colunas (%s), cada uma com alternativas A, B, C, D.\n",
		g.Questions(), g.Columns(), strings.Join(cols, ", "))
	b.WriteString("Ignore círculos vazios ou apenas contornados. " + ignore + "\n")
	b.WriteString(`Para cada questão, em ordem, use a letra marcada; "?" se nenhuma bolinha estiver preenchida; ` +
		`as letras separadas por "/" (ex.: "A/C") se houver mais de uma.` + "\n")
	b.WriteString(`Formato: {"answers": ["A", "?", "B/D", ...]}. Nenhum texto fora do JSON.`)
	return b.String()
}

const headerSystemPrompt = `Você lê o cabeçalho de um cartão-resposta escolar.
Extraia: nome da escola ("Nome da Escola:", "Escola:"), nome completo do aluno ("Nome completo:", "Nome:", "Aluno:"),
turma ("Turma:", "Série:", "Ano:") e data de nascimento ("Data de nascimento:", "Nascimento:").
Use "N/A" para campos ausentes ou ilegíveis.
Formato: {"escola": "...", "aluno": "...", "turma": "...", "nascimento": "..."}. Nenhum texto fora do JSON.`

// ParseAnswerText accepts {"answers": [...]}, a bare JSON list or a list
// buried in prose.
func ParseAnswerText(txt string) ([]string, error) {
	txt = util.StripCodeFences(txt)
	var obj struct {
		Answers []string `json:"answers"`
	}
	if err := json.Unmarshal([]byte(txt), &obj); err == nil && obj.Answers != nil {
		return obj.Answers, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(txt), &list); err == nil {
		return list, nil
	}
	if items, ok := util.ExtractList(txt); ok {
		return items, nil
	}
	return nil, errors.New("no answer list in response")
}

// ParseHeaderJSON decodes the header object, treating "N/A" as empty.
func ParseHeaderJSON(txt string) (models.Header, error) {
	txt = util.StripCodeFences(txt)
	if obj, ok := util.ExtractJSONObject(txt); ok {
		txt = obj
	}
	var raw struct {
		School    string `json:"escola"`
		Student   string `json:"aluno"`
		Class     string `json:"turma"`
		BirthDate string `json:"nascimento"`
	}
	if err := json.Unmarshal([]byte(txt), &raw); err != nil {
		return models.Header{}, fmt.Errorf("bad header JSON: %w", err)
	}
	return models.Header{
		School:    headerValue(raw.School),
		Student:   headerValue(raw.Student),
		Class:     headerValue(raw.Class),
		BirthDate: headerValue(raw.BirthDate),
	}, nil
}

func headerValue(s string) string {
	s = util.CleanField(s)
	if strings.EqualFold(s, "N/A") || s == "-" {
		return ""
	}
	return s
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }

func resolveGeminiKey(alias string) string {
	if alias != "" {
		if v := os.Getenv("OMR_GEMINI_KEY_" + strings.ToUpper(alias)); v != "" {
			return v
		}
	}
	return os.Getenv("GEMINI_API_KEY")
}
