package reminder

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const DefaultDisclaimer = "Esta é uma mensagem automática do setor financeiro do escritório. " +
	"Caso o pagamento já tenha sido efetuado, por favor desconsidere este aviso."

var stageTemplates = map[string]string{
	"before_10": `Olá, {{.FirstName}}! Tudo bem?
Passando para lembrar que o boleto no valor de *{{.Amount}}* vence em *{{.DueDate}}*, daqui a 10 dias.`,

	"before_3": `Olá, {{.FirstName}}!
Lembrete: o boleto no valor de *{{.Amount}}* vence em *{{.DueDate}}*, daqui a 3 dias.`,

	"due_date": `Olá, {{.FirstName}}.
O boleto no valor de *{{.Amount}}* vence hoje, *{{.DueDate}}*. Evite juros e multa realizando o pagamento até o fim do dia.`,

	"after_1": `Olá, {{.FirstName}}.
Não identificamos o pagamento do boleto no valor de *{{.Amount}}*, vencido em *{{.DueDate}}*. Se precisar de uma segunda via, estamos à disposição.`,

	"after_5": `Prezado(a) {{.FirstName}},
Consta em aberto o boleto no valor de *{{.Amount}}*, vencido em *{{.DueDate}}*, com 5 dias em atraso. Pedimos que regularize o pagamento.`,

	"after_10": `Prezado(a) {{.FirstName}},
O boleto no valor de *{{.Amount}}*, vencido em *{{.DueDate}}*, encontra-se com 10 dias em atraso. Solicitamos a regularização com urgência.`,

	"after_20": `Prezado(a) {{.FirstName}},
Informamos que o boleto no valor de *{{.Amount}}*, vencido em *{{.DueDate}}*, permanece em aberto há 20 dias. Solicitamos contato imediato com o setor financeiro.`,

	"after_30": `Prezado(a) {{.FirstName}},
O boleto no valor de *{{.Amount}}*, vencido em *{{.DueDate}}*, está com 30 dias em atraso. Na ausência de regularização, o débito poderá ser encaminhado para as medidas de cobrança cabíveis.`,
}

const fallbackTemplate = `Olá, {{.FirstName}}.
Há um boleto no valor de *{{.Amount}}* com vencimento em *{{.DueDate}}*.`

const linkTemplate = `{{if .PaymentLink}}

Para pagar, acesse: {{.PaymentLink}}{{end}}`

type messageData struct {
	FirstName   string
	Amount      string
	DueDate     string
	PaymentLink string
}

// Renderer maps a stage to its message body. Safe for concurrent use.
type Renderer struct {
	templates  map[string]*template.Template
	fallback   *template.Template
	disclaimer string
}

func NewRenderer(disclaimer string) *Renderer {
	if disclaimer == "" {
		disclaimer = DefaultDisclaimer
	}

	templates := make(map[string]*template.Template, len(stageTemplates))
	for id, body := range stageTemplates {
		templates[id] = template.Must(template.New(id).Parse(body + linkTemplate))
	}

	return &Renderer{
		templates:  templates,
		fallback:   template.Must(template.New("fallback").Parse(fallbackTemplate + linkTemplate)),
		disclaimer: disclaimer,
	}
}

// Render builds the message for stageID. Unknown stages use a generic template.
func (r *Renderer) Render(stageID, customerName string, value decimal.Decimal, dueDate time.Time, paymentLink string) string {
	data := messageData{
		FirstName:   FirstName(customerName),
		Amount:      FormatBRL(value),
		DueDate:     FormatDate(dueDate),
		PaymentLink: strings.TrimSpace(paymentLink),
	}

	tmpl, ok := r.templates[stageID]
	if !ok {
		tmpl = r.fallback
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		sb.Reset()
		sb.WriteString(fmt.Sprintf("Olá, %s. Há um boleto no valor de %s com vencimento em %s.",
			data.FirstName, data.Amount, data.DueDate))
	}

	sb.WriteString("\n\n_")
	sb.WriteString(r.disclaimer)
	sb.WriteString("_")

	return sb.String()
}

// FirstName returns the first word of name in title case.
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "cliente"
	}

	return cases.Title(language.BrazilianPortuguese).String(fields[0])
}

// FormatBRL formats value as Brazilian currency, e.g. "R$ 1.234,56".
func FormatBRL(value decimal.Decimal) string {
	v := value.Round(2)

	sign := ""
	if v.IsNegative() {
		sign = "-"
		v = v.Abs()
	}

	units := v.IntPart()
	cents := v.Sub(decimal.NewFromInt(units)).Mul(decimal.NewFromInt(100)).IntPart()

	p := message.NewPrinter(language.BrazilianPortuguese)

	return fmt.Sprintf("%sR$ %s,%02d", sign, p.Sprintf("%d", units), cents)
}

// FormatDate formats a due date as dd/mm/yyyy.
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}
