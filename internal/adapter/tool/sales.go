package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"teller/internal/domain"
)

// annualRate is the fixed APR quoted for loan calculations.
const annualRate = 0.05

// offerLimit caps how many offers one reply includes.
const offerLimit = 3

// OfferTool answers product questions from the offer catalog.
type OfferTool struct {
	offers domain.OfferStore
	logger *slog.Logger
}

func NewOfferTool(offers domain.OfferStore, logger *slog.Logger) *OfferTool {
	return &OfferTool{offers: offers, logger: logger}
}

func (t *OfferTool) Name() string { return domain.ToolOfferInformation }

func (t *OfferTool) Description() string {
	return "Provide information about banking products and offers based on the user's question."
}

func (t *OfferTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"userPrompt": {"type": "string", "description": "The user's question, verbatim"},
				"accountType": {"type": "string", "description": "Product category filter: credit_card, loan, or savings", "enum": ["credit_card", "loan", "savings", ""]}
			},
			"required": ["userPrompt"]
		}`),
	}
}

type offerParams struct {
	UserPrompt  string `json:"userPrompt"`
	AccountType string `json:"accountType"`
}

func (t *OfferTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.get_offer_information", t.logger, params,
		func(ctx context.Context, span trace.Span, p offerParams) (any, error) {
			offers, err := t.offers.SearchOffers(ctx, p.UserPrompt, p.AccountType, offerLimit)
			if err != nil {
				return nil, err
			}
			if len(offers) == 0 {
				return "No matching offers found.", nil
			}

			var b strings.Builder
			b.WriteString("Current offers:\n")
			for _, o := range offers {
				fmt.Fprintf(&b, "- %s: %s\n", o.Name, o.Text)
			}
			return b.String(), nil
		})
}

// MonthlyPaymentTool computes the amortized monthly payment for a loan at
// the fixed APR.
type MonthlyPaymentTool struct {
	logger *slog.Logger
}

func NewMonthlyPaymentTool(logger *slog.Logger) *MonthlyPaymentTool {
	return &MonthlyPaymentTool{logger: logger}
}

func (t *MonthlyPaymentTool) Name() string { return domain.ToolMonthlyPayment }

func (t *MonthlyPaymentTool) Description() string {
	return "Calculate the monthly payment for a loan amount over a term in years at 5% APR."
}

func (t *MonthlyPaymentTool) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"loanAmount": {"type": "number", "description": "Principal in dollars"},
				"years": {"type": "integer", "description": "Loan term in years"}
			},
			"required": ["loanAmount", "years"]
		}`),
	}
}

type monthlyPaymentParams struct {
	LoanAmount float64 `json:"loanAmount"`
	Years      int     `json:"years"`
}

func (t *MonthlyPaymentTool) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool.calculate_monthly_payment", t.logger, params,
		func(ctx context.Context, span trace.Span, p monthlyPaymentParams) (any, error) {
			if p.LoanAmount <= 0 {
				return ErrResult("loan amount must be greater than zero")
			}
			if p.Years <= 0 {
				return ErrResult("loan term must be greater than zero years")
			}

			payment := MonthlyPayment(p.LoanAmount, p.Years)
			return fmt.Sprintf("Monthly payment for a $%.2f loan over %d years at 5%% APR: $%.2f",
				p.LoanAmount, p.Years, payment), nil
		})
}

// MonthlyPayment amortizes principal over years*12 payments at annualRate,
// rounded to cents.
func MonthlyPayment(principal float64, years int) float64 {
	monthlyRate := annualRate / 12
	n := float64(years * 12)
	growth := math.Pow(1+monthlyRate, n)
	payment := principal * monthlyRate * growth / (growth - 1)
	return math.Round(payment*100) / 100
}
