package models

import (
	"errors"
	"fmt"
	"strings"
)

// Classified failures returned by repositories and services. Callers match
// them with errors.Is and never inspect error text.
var (
	ErrAlreadyExists              = errors.New("already exists")
	ErrNameTaken                  = errors.New("name already taken")
	ErrEmailTaken                 = errors.New("email already taken")
	ErrNotFound                   = errors.New("not found")
	ErrOrganizationAccessRequired = errors.New("organization access required")
	ErrTokenExpired               = errors.New("token expired")
	ErrTokenInvalid               = errors.New("token invalid")
	ErrHasDependents              = errors.New("entity still has dependents")
	ErrInvalidState               = errors.New("invalid state transition")
	ErrTransactionTooLarge        = errors.New("transaction exceeds store item limit")
	ErrDataIntegrity              = errors.New("data integrity violation")
	ErrStorage                    = errors.New("storage failure")
	ErrValidation                 = errors.New("validation failed")
)

// ValidationError lists the payload problems found before any store call.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DataIntegrityError reports stored data that breaks an invariant the store
// cannot enforce, such as two rows behind one unique secondary key.
type DataIntegrityError struct {
	Entity string
	Detail string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation on %s: %s", e.Entity, e.Detail)
}

// Is matches ErrDataIntegrity.
func (e *DataIntegrityError) Is(target error) bool {
	return target == ErrDataIntegrity
}

// StorageError wraps an unclassified store failure.
type StorageError struct {
	Op  string
	Err error
}

// NewStorageError wraps err unless it is already a StorageError.
func NewStorageError(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches ErrStorage.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
