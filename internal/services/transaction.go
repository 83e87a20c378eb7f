package services

import (
	"context"
	"errors"

	"lab-management-platform/internal/models"
	"lab-management-platform/internal/store"
)

// writeTx collects the writes of one access operation together with the
// classified error each write maps to when its predicate trips.
type writeTx struct {
	writes []store.Write
	onFail []error
}

func (t *writeTx) add(w store.Write, onFail error) {
	t.writes = append(t.writes, w)
	t.onFail = append(t.onFail, onFail)
}

func (t *writeTx) len() int { return len(t.writes) }

// commit submits the collected writes as one atomic transaction. A canceled
// transaction is reported as the error registered for the first write whose
// predicate failed.
func (t *writeTx) commit(ctx context.Context, st store.Store) error {
	if len(t.writes) > st.MaxTransactItems() {
		return models.ErrTransactionTooLarge
	}

	err := st.TransactWrite(ctx, t.writes)
	if err == nil {
		return nil
	}

	var canceled *store.TransactionCanceledError
	if errors.As(err, &canceled) {
		for i := range t.writes {
			if canceled.Failed(i) {
				return t.onFail[i]
			}
		}
	}
	if errors.Is(err, store.ErrTooManyItems) {
		return models.ErrTransactionTooLarge
	}
	return models.NewStorageError("transact write", err)
}

// releaseFailure is registered for releases of reservations the entity
// claims to hold. A missing reservation means the registry drifted.
func releaseFailure(entity, value string) error {
	return &models.DataIntegrityError{Entity: entity, Detail: "reservation for " + value + " is missing"}
}
