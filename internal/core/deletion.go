package core

import "errors"

const (
	DeleteTransaction TargetKind = "transaction"
	DeleteCategory    TargetKind = "category"
)

type (
	TargetKind string

	// DeletionTarget names the item a delete request refers to.
	DeletionTarget struct {
		Kind TargetKind
		ID   string
	}
)

var ErrInvalidTarget = errors.New("invalid deletion target")

func TransactionTarget(id string) DeletionTarget {
	return DeletionTarget{Kind: DeleteTransaction, ID: id}
}

func CategoryTarget(id string) DeletionTarget {
	return DeletionTarget{Kind: DeleteCategory, ID: id}
}

func (t DeletionTarget) Validate() error {
	if t.ID == "" {
		return ErrInvalidTarget
	}
	switch t.Kind {
	case DeleteTransaction, DeleteCategory:
		return nil
	default:
		return ErrInvalidTarget
	}
}
