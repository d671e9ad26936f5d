package http

import (
	"time"

	"github.com/shopspring/decimal"

	"finwise/internal/core"
	"finwise/internal/importer"
	"finwise/internal/services"
)

type categoryRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type categoryResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      core.Kind `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// transactionRequest is shared by create and edit. Choice and Policy are
// only read on create.
type transactionRequest struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	CategoryID  string          `json:"category_id"`
	Date        string          `json:"date"`
	Choice      string          `json:"choice,omitempty"`
	Policy      string          `json:"policy,omitempty"`
}

type transactionResponse struct {
	ID           string          `json:"id"`
	Type         core.Kind       `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Date         string          `json:"date"`
	CreatedAt    time.Time       `json:"created_at"`
}

type summaryResponse struct {
	TotalIncome  decimal.Decimal `json:"total_income"`
	TotalExpense decimal.Decimal `json:"total_expense"`
	Balance      decimal.Decimal `json:"balance"`
	ByCategory   []categoryTotal `json:"by_category"`
}

type categoryTotal struct {
	CategoryID string          `json:"category_id"`
	Name       string          `json:"name"`
	Type       core.Kind       `json:"type"`
	Total      decimal.Decimal `json:"total"`
}

type assessmentResponse struct {
	Policy      core.Policy     `json:"policy"`
	Balance     decimal.Decimal `json:"balance"`
	Prospective decimal.Decimal `json:"prospective_balance"`
}

type submitResponse struct {
	Decision    string               `json:"decision"`
	Assessment  assessmentResponse   `json:"assessment"`
	Transaction *transactionResponse `json:"transaction,omitempty"`
	Correction  *transactionResponse `json:"correction,omitempty"`

	// Choices lists the accepted answers when a choice is required.
	Choices []core.Choice `json:"choices,omitempty"`
	Message string        `json:"message,omitempty"`
}

type importResponse struct {
	*importer.Outcome
	Message string `json:"message"`
}

func (req transactionRequest) toTransaction(id string) (core.Transaction, error) {
	kind, err := core.ParseKind(req.Type)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:          id,
		Kind:        kind,
		Amount:      req.Amount,
		Description: sanitizeInput(req.Description),
		CategoryID:  sanitizeInput(req.CategoryID),
		Date:        sanitizeInput(req.Date),
	}, nil
}

func (req transactionRequest) toSubmit() (services.SubmitRequest, error) {
	t, err := req.toTransaction("")
	if err != nil {
		return services.SubmitRequest{}, err
	}
	choice, err := core.ParseChoice(req.Choice)
	if err != nil {
		return services.SubmitRequest{}, err
	}
	var policy core.Policy
	if req.Policy != "" {
		if policy, err = core.ParsePolicy(req.Policy); err != nil {
			return services.SubmitRequest{}, err
		}
	}
	return services.SubmitRequest{Transaction: t, Choice: choice, Policy: policy}, nil
}

func newCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Type: c.Kind, CreatedAt: c.CreatedAt}
}

func newTransactionResponse(t core.Transaction, names map[string]string) transactionResponse {
	return transactionResponse{
		ID:           t.ID,
		Type:         t.Kind,
		Amount:       t.Amount,
		Description:  t.Description,
		CategoryID:   t.CategoryID,
		CategoryName: names[t.CategoryID],
		Date:         t.Date,
		CreatedAt:    t.CreatedAt,
	}
}

func newSummaryResponse(s core.LedgerSummary, cats []core.Category) summaryResponse {
	resp := summaryResponse{
		TotalIncome:  s.TotalIncome,
		TotalExpense: s.TotalExpense,
		Balance:      s.Balance,
		ByCategory:   make([]categoryTotal, 0, len(cats)),
	}
	for _, c := range cats {
		total, ok := s.CategoryTotal(c.ID)
		if !ok {
			continue
		}
		resp.ByCategory = append(resp.ByCategory, categoryTotal{CategoryID: c.ID, Name: c.Name, Type: c.Kind, Total: total})
	}
	return resp
}

func newSubmitResponse(res *services.SubmitResult, names map[string]string) submitResponse {
	resp := submitResponse{
		Decision: res.Decision.String(),
		Assessment: assessmentResponse{
			Policy:      res.Assessment.Policy,
			Balance:     res.Assessment.Balance,
			Prospective: res.Assessment.Prospective,
		},
	}
	if res.Transaction != nil {
		t := newTransactionResponse(*res.Transaction, names)
		resp.Transaction = &t
	}
	if res.Correction != nil {
		c := newTransactionResponse(*res.Correction, names)
		resp.Correction = &c
	}
	return resp
}

func categoryNames(cats []core.Category) map[string]string {
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names
}
