// Package sqlstore implements the keyed collection store on a relational
// database through gorm. Items live in one table; secondary index values are
// mirrored into a lookup table inside the same database transaction.
package sqlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lab-management-platform/internal/store"
)

// ItemRow is one stored item.
type ItemRow struct {
	Collection string    `gorm:"primaryKey;size:64"`
	PartKey    string    `gorm:"primaryKey;size:512"`
	SortKey    string    `gorm:"primaryKey;size:512"`
	Data       string    `gorm:"type:text;not null"`
	Indexes    string    `gorm:"type:text"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName overrides the gorm default.
func (ItemRow) TableName() string { return "items" }

// IndexRow maps a secondary index value to an item key.
type IndexRow struct {
	Collection string `gorm:"primaryKey;size:64;index:idx_item_indexes_lookup,priority:1"`
	IndexName  string `gorm:"primaryKey;size:64;index:idx_item_indexes_lookup,priority:2"`
	PartKey    string `gorm:"primaryKey;size:512"`
	SortKey    string `gorm:"primaryKey;size:512"`
	Value      string `gorm:"size:512;not null;index:idx_item_indexes_lookup,priority:3"`
}

// TableName overrides the gorm default.
func (IndexRow) TableName() string { return "item_indexes" }

// Models lists the tables the store needs migrated.
func Models() []interface{} {
	return []interface{}{&ItemRow{}, &IndexRow{}}
}

const keyClause = "collection = ? AND part_key = ? AND sort_key = ?"

// Store implements store.Store on gorm.
type Store struct {
	db       *gorm.DB
	maxItems int
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

// New wraps a gorm connection. The connection should be opened with
// TranslateError so duplicate keys surface as gorm.ErrDuplicatedKey.
func New(db *gorm.DB, maxTransactItems int) *Store {
	if maxTransactItems <= 0 {
		maxTransactItems = store.DefaultMaxTransactItems
	}
	return &Store{db: db, maxItems: maxTransactItems, now: time.Now}
}

// Migrate creates or updates the store tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(Models()...)
}

func toItem(row ItemRow) (store.Item, error) {
	it := store.Item{
		Key:  store.Key{Collection: row.Collection, Partition: row.PartKey, Sort: row.SortKey},
		Data: []byte(row.Data),
	}
	if row.Indexes != "" {
		if err := json.Unmarshal([]byte(row.Indexes), &it.Indexes); err != nil {
			return store.Item{}, fmt.Errorf("decode indexes of %s: %w", it.Key, err)
		}
	}
	return it, nil
}

func toItems(rows []ItemRow) ([]store.Item, error) {
	items := make([]store.Item, 0, len(rows))
	for _, row := range rows {
		it, err := toItem(row)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// Get returns the item at key.
func (s *Store) Get(ctx context.Context, key store.Key) (store.Item, error) {
	var row ItemRow
	err := s.db.WithContext(ctx).
		Where(keyClause, key.Collection, key.Partition, key.Sort).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.Item{}, store.ErrItemNotFound
	}
	if err != nil {
		return store.Item{}, fmt.Errorf("sql get %s: %w", key, err)
	}
	return toItem(row)
}

// Put writes a single item subject to cond.
func (s *Store) Put(ctx context.Context, item store.Item, cond store.Condition) error {
	return single(s.TransactWrite(ctx, []store.Write{store.Put(item, cond)}))
}

// Delete removes a single item subject to cond.
func (s *Store) Delete(ctx context.Context, key store.Key, cond store.Condition) error {
	return single(s.TransactWrite(ctx, []store.Write{store.Delete(key, cond)}))
}

func single(err error) error {
	var canceled *store.TransactionCanceledError
	if errors.As(err, &canceled) {
		return store.ErrConditionFailed
	}
	return err
}

// Query reads a partition or a secondary index.
func (s *Store) Query(ctx context.Context, collection string, q store.Query) ([]store.Item, error) {
	var rows []ItemRow
	db := s.db.WithContext(ctx)
	var err error
	if q.Index == "" {
		err = db.Where("collection = ? AND part_key = ?", collection, q.Value).
			Order("part_key, sort_key").
			Find(&rows).Error
	} else {
		err = db.Model(&ItemRow{}).
			Select("items.*").
			Joins("JOIN item_indexes ix ON ix.collection = items.collection AND ix.part_key = items.part_key AND ix.sort_key = items.sort_key").
			Where("ix.collection = ? AND ix.index_name = ? AND ix.value = ?", collection, q.Index, q.Value).
			Order("items.part_key, items.sort_key").
			Find(&rows).Error
	}
	if err != nil {
		return nil, fmt.Errorf("sql query %s: %w", collection, err)
	}
	return toItems(rows)
}

// Scan reads every item of a collection.
func (s *Store) Scan(ctx context.Context, collection string) ([]store.Item, error) {
	var rows []ItemRow
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order("part_key, sort_key").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sql scan %s: %w", collection, err)
	}
	return toItems(rows)
}

// TransactWrite runs the writes inside one database transaction. Predicates
// are evaluated up front so every failing write is reported, and each
// statement is guarded again by a duplicate key or rows-affected check to
// catch a concurrent writer that slipped in between. Condition checks on
// existing rows hold a row lock from that second pass until commit.
func (s *Store) TransactWrite(ctx context.Context, writes []store.Write) error {
	if err := store.ValidateWrites(writes, s.maxItems); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var failed []int
		for i, w := range writes {
			exists, err := s.exists(tx, w.Target())
			if err != nil {
				return err
			}
			if !w.Condition.Holds(exists) {
				failed = append(failed, i)
			}
		}
		if len(failed) > 0 {
			return store.NewCanceled(len(writes), failed...)
		}
		for i, w := range writes {
			held, err := s.apply(tx, w)
			if err != nil {
				return err
			}
			if !held {
				return store.NewCanceled(len(writes), i)
			}
		}
		return nil
	})
}

func (s *Store) exists(tx *gorm.DB, key store.Key) (bool, error) {
	var n int64
	err := tx.Model(&ItemRow{}).
		Where(keyClause, key.Collection, key.Partition, key.Sort).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("sql exists %s: %w", key, err)
	}
	return n > 0, nil
}

// recheck re-evaluates a condition check at write time. A MustExist target
// is touched with a no-op update so the row stays locked until commit and a
// delete committed after the predicate pass leaves zero rows affected.
func (s *Store) recheck(tx *gorm.DB, key store.Key, cond store.Condition) (bool, error) {
	switch cond {
	case store.MustExist:
		res := tx.Model(&ItemRow{}).
			Where(keyClause, key.Collection, key.Partition, key.Sort).
			UpdateColumn("updated_at", gorm.Expr("updated_at"))
		if res.Error != nil {
			return false, fmt.Errorf("sql lock %s: %w", key, res.Error)
		}
		return res.RowsAffected > 0, nil
	case store.MustNotExist:
		exists, err := s.exists(tx, key)
		if err != nil {
			return false, err
		}
		return !exists, nil
	default:
		return true, nil
	}
}

// apply executes one write and reports whether its predicate still held.
func (s *Store) apply(tx *gorm.DB, w store.Write) (bool, error) {
	key := w.Target()
	switch w.Kind {
	case store.WriteConditionCheck:
		return s.recheck(tx, key, w.Condition)
	case store.WriteDelete:
		res := tx.Where(keyClause, key.Collection, key.Partition, key.Sort).Delete(&ItemRow{})
		if res.Error != nil {
			return false, fmt.Errorf("sql delete %s: %w", key, res.Error)
		}
		if w.Condition == store.MustExist && res.RowsAffected == 0 {
			return false, nil
		}
		return true, s.replaceIndexes(tx, key, nil)
	}

	row, err := s.toRow(w.Item)
	if err != nil {
		return false, err
	}
	switch w.Condition {
	case store.MustNotExist:
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return false, nil
			}
			return false, fmt.Errorf("sql insert %s: %w", key, err)
		}
	case store.MustExist:
		res := tx.Model(&ItemRow{}).
			Where(keyClause, key.Collection, key.Partition, key.Sort).
			Updates(map[string]interface{}{"data": row.Data, "indexes": row.Indexes, "updated_at": row.UpdatedAt})
		if res.Error != nil {
			return false, fmt.Errorf("sql update %s: %w", key, res.Error)
		}
		if res.RowsAffected == 0 {
			return false, nil
		}
	default:
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "collection"}, {Name: "part_key"}, {Name: "sort_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "indexes", "updated_at"}),
		}).Create(&row).Error
		if err != nil {
			return false, fmt.Errorf("sql upsert %s: %w", key, err)
		}
	}
	return true, s.replaceIndexes(tx, key, w.Item.Indexes)
}

func (s *Store) toRow(it store.Item) (ItemRow, error) {
	row := ItemRow{
		Collection: it.Key.Collection,
		PartKey:    it.Key.Partition,
		SortKey:    it.Key.Sort,
		Data:       string(it.Data),
		UpdatedAt:  s.now().UTC(),
	}
	if len(it.Indexes) > 0 {
		raw, err := json.Marshal(it.Indexes)
		if err != nil {
			return ItemRow{}, fmt.Errorf("encode indexes of %s: %w", it.Key, err)
		}
		row.Indexes = string(raw)
	}
	return row, nil
}

func (s *Store) replaceIndexes(tx *gorm.DB, key store.Key, indexes map[string]string) error {
	if err := tx.Where(keyClause, key.Collection, key.Partition, key.Sort).Delete(&IndexRow{}).Error; err != nil {
		return fmt.Errorf("sql clear indexes %s: %w", key, err)
	}
	if len(indexes) == 0 {
		return nil
	}
	rows := make([]IndexRow, 0, len(indexes))
	for name, value := range indexes {
		rows = append(rows, IndexRow{
			Collection: key.Collection,
			IndexName:  name,
			PartKey:    key.Partition,
			SortKey:    key.Sort,
			Value:      value,
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("sql write indexes %s: %w", key, err)
	}
	return nil
}

// MaxTransactItems returns the configured transaction size limit.
func (s *Store) MaxTransactItems() int { return s.maxItems }

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
