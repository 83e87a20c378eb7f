// Package store defines the keyed collection store the repositories are built
// on: per-item conditional writes plus a bounded, all-or-nothing multi-item
// transaction. Backends live in the sub-packages.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrItemNotFound is returned by Get when no item has the key.
	ErrItemNotFound = errors.New("store: item not found")
	// ErrConditionFailed is returned when a single-item write predicate fails.
	// TransactionCanceledError also matches it.
	ErrConditionFailed = errors.New("store: conditional check failed")
	// ErrTooManyItems is returned when a transaction exceeds MaxTransactItems.
	ErrTooManyItems = errors.New("store: transaction exceeds item limit")
	// ErrDuplicateTarget is returned when a transaction touches one item twice.
	ErrDuplicateTarget = errors.New("store: transaction targets the same item more than once")
)

// DefaultMaxTransactItems mirrors the small fixed transaction size the
// access services are designed around.
const DefaultMaxTransactItems = 25

// Key identifies one item. Sort is empty for collections keyed by partition only.
type Key struct {
	Collection string
	Partition  string
	Sort       string
}

func (k Key) String() string {
	if k.Sort == "" {
		return k.Collection + "/" + k.Partition
	}
	return k.Collection + "/" + k.Partition + "/" + k.Sort
}

// Item is a stored document. Data holds the JSON encoding of the entity and
// Indexes the secondary index values the store maintains for it.
type Item struct {
	Key     Key
	Data    []byte
	Indexes map[string]string
}

// Clone returns a copy that shares no memory with the receiver.
func (i Item) Clone() Item {
	cp := Item{Key: i.Key}
	if i.Data != nil {
		cp.Data = append([]byte(nil), i.Data...)
	}
	if i.Indexes != nil {
		cp.Indexes = make(map[string]string, len(i.Indexes))
		for k, v := range i.Indexes {
			cp.Indexes[k] = v
		}
	}
	return cp
}

// Condition is the existence predicate attached to a write.
type Condition int

const (
	// ConditionNone writes unconditionally.
	ConditionNone Condition = iota
	// MustNotExist fails when an item already has the key.
	MustNotExist
	// MustExist fails when no item has the key.
	MustExist
)

func (c Condition) String() string {
	switch c {
	case MustNotExist:
		return "must-not-exist"
	case MustExist:
		return "must-exist"
	default:
		return "none"
	}
}

// Holds reports whether the predicate is satisfied given whether the item exists.
func (c Condition) Holds(exists bool) bool {
	switch c {
	case MustNotExist:
		return !exists
	case MustExist:
		return exists
	default:
		return true
	}
}

// WriteKind distinguishes the operations allowed inside a transaction.
type WriteKind int

const (
	WritePut WriteKind = iota
	WriteDelete
	WriteConditionCheck
)

func (k WriteKind) String() string {
	switch k {
	case WritePut:
		return "put"
	case WriteDelete:
		return "delete"
	case WriteConditionCheck:
		return "condition-check"
	default:
		return fmt.Sprintf("write-kind(%d)", int(k))
	}
}

// Write is one element of a transaction.
type Write struct {
	Kind      WriteKind
	Item      Item
	Key       Key
	Condition Condition
}

// Put writes item subject to cond.
func Put(item Item, cond Condition) Write {
	return Write{Kind: WritePut, Item: item, Key: item.Key, Condition: cond}
}

// Delete removes the item at key subject to cond.
func Delete(key Key, cond Condition) Write {
	return Write{Kind: WriteDelete, Key: key, Condition: cond}
}

// Check asserts cond on the item at key without writing it.
func Check(key Key, cond Condition) Write {
	return Write{Kind: WriteConditionCheck, Key: key, Condition: cond}
}

// Target returns the key the write applies to.
func (w Write) Target() Key {
	if w.Kind == WritePut {
		return w.Item.Key
	}
	return w.Key
}

// CancellationReason explains the fate of one write in a canceled transaction.
type CancellationReason string

const (
	ReasonNone            CancellationReason = "None"
	ReasonConditionFailed CancellationReason = "ConditionalCheckFailed"
)

// TransactionCanceledError reports which writes of a transaction tripped
// their predicate. Reasons is parallel to the submitted writes.
type TransactionCanceledError struct {
	Reasons []CancellationReason
}

func (e *TransactionCanceledError) Error() string {
	failed := make([]string, 0, len(e.Reasons))
	for i, r := range e.Reasons {
		if r != ReasonNone && r != "" {
			failed = append(failed, fmt.Sprintf("%d:%s", i, r))
		}
	}
	return "store: transaction canceled [" + strings.Join(failed, ", ") + "]"
}

// Failed reports whether the write at index i tripped its predicate.
func (e *TransactionCanceledError) Failed(i int) bool {
	return i >= 0 && i < len(e.Reasons) && e.Reasons[i] == ReasonConditionFailed
}

// Is matches ErrConditionFailed.
func (e *TransactionCanceledError) Is(target error) bool {
	return target == ErrConditionFailed
}

// NewCanceled builds a cancellation for n writes with the given failed indexes.
func NewCanceled(n int, failed ...int) *TransactionCanceledError {
	reasons := make([]CancellationReason, n)
	for i := range reasons {
		reasons[i] = ReasonNone
	}
	for _, i := range failed {
		reasons[i] = ReasonConditionFailed
	}
	return &TransactionCanceledError{Reasons: reasons}
}

// Query selects items of one collection either by primary partition (Index
// empty) or by equality on a secondary index.
type Query struct {
	Index string
	Value string
}

// Store is the keyed collection store consumed by the repositories.
type Store interface {
	Get(ctx context.Context, key Key) (Item, error)
	Put(ctx context.Context, item Item, cond Condition) error
	Delete(ctx context.Context, key Key, cond Condition) error
	Query(ctx context.Context, collection string, q Query) ([]Item, error)
	Scan(ctx context.Context, collection string) ([]Item, error)
	TransactWrite(ctx context.Context, writes []Write) error
	MaxTransactItems() int
	Ping(ctx context.Context) error
	Close() error
}

// ValidateWrites rejects transactions the backends cannot execute atomically.
func ValidateWrites(writes []Write, max int) error {
	if len(writes) == 0 {
		return errors.New("store: empty transaction")
	}
	if max > 0 && len(writes) > max {
		return fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(writes), max)
	}
	seen := make(map[Key]struct{}, len(writes))
	for _, w := range writes {
		k := w.Target()
		if k.Collection == "" || k.Partition == "" {
			return fmt.Errorf("store: write %s has an incomplete key %s", w.Kind, k)
		}
		if _, dup := seen[k]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTarget, k)
		}
		seen[k] = struct{}{}
	}
	return nil
}
