package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"finwise/internal/core"
	applog "finwise/internal/log"
)

// choices are the answers accepted after an awaiting_choice response.
var choices = []core.Choice{core.ChoiceCancel, core.ChoiceIgnore, core.ChoiceCorrect}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userID(ctx)

	summary, err := s.ledger.Summary(ctx, user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	cats, err := s.ledger.ListCategories(ctx, user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSummaryResponse(summary, cats))
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.ListCategories(r.Context(), userID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, newCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := core.ParseKind(req.Type)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	created, err := s.ledger.CreateCategory(r.Context(), userID(r.Context()),
		core.NewCategory{Name: sanitizeInput(req.Name), Kind: kind})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newCategoryResponse(created))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := core.ParseKind(req.Type)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated, err := s.ledger.UpdateCategory(r.Context(), userID(r.Context()), core.Category{
		ID:   chi.URLParam(r, "id"),
		Name: sanitizeInput(req.Name),
		Kind: kind,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newCategoryResponse(updated))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, core.CategoryTarget(chi.URLParam(r, "id")))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(w, r, core.TransactionTarget(chi.URLParam(r, "id")))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, target core.DeletionTarget) {
	if err := s.ledger.Delete(r.Context(), userID(r.Context()), target); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListTransactions supports ?type=income|expense and ?q=<search>.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var kind core.Kind
	if v := sanitizeInput(q.Get("type")); v != "" && v != "all" {
		k, err := core.ParseKind(v)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		kind = k
	}

	txs, cats, err := s.ledger.ListTransactions(r.Context(), userID(r.Context()), kind, sanitizeInput(q.Get("q")))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	names := categoryNames(cats)
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionResponse(t, names))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleSubmitTransaction runs the negative balance guard. A blocked
// transaction or one awaiting a choice answers 409 with the assessment.
func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userID(ctx)

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	submit, err := req.toSubmit()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	res, err := s.ledger.Submit(ctx, user, submit)
	if errors.Is(err, core.ErrChoiceRequired) && res != nil {
		resp := newSubmitResponse(res, nil)
		resp.Choices = choices
		resp.Message = "This transaction makes the balance negative. Choose cancel, ignore or correct."
		writeJSON(w, http.StatusConflict, resp)
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	cats, err := s.ledger.ListCategories(ctx, user)
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Could not load category names", applog.FieldError, err.Error())
	}
	resp := newSubmitResponse(res, categoryNames(cats))

	switch {
	case res.Transaction == nil && submit.Choice == core.ChoiceCancel:
		resp.Message = "Transaction cancelled."
		writeJSON(w, http.StatusOK, resp)
	case res.Transaction == nil:
		resp.Message = "Transaction blocked: the balance would become negative."
		writeJSON(w, http.StatusConflict, resp)
	default:
		writeJSON(w, http.StatusCreated, resp)
	}
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userID(ctx)

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := req.toTransaction(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	updated, err := s.ledger.UpdateTransaction(ctx, user, t)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	cats, _ := s.ledger.ListCategories(ctx, user)
	writeJSON(w, http.StatusOK, newTransactionResponse(updated, categoryNames(cats)))
}
