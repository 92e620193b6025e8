package option

import (
	"fmt"
	"strings"
	"time"

	"naano-tracking/pkg/db/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption is a gorm scope applied by the generic repository.
type QueryOption func(db *gorm.DB) *gorm.DB

type Operator string

const (
	EQ     Operator = "="
	NEQ    Operator = "<>"
	GT     Operator = ">"
	GTE    Operator = ">="
	LT     Operator = "<"
	LTE    Operator = "<="
	IN     Operator = "IN"
	ISNULL Operator = "IS NULL"
	NOTNUL Operator = "IS NOT NULL"
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

func ApplyOperator(conds ...Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		for _, c := range conds {
			col := clause.Column{Name: c.Field}
			switch c.Operator {
			case ISNULL, NOTNUL:
				db = db.Where(fmt.Sprintf("? %s", c.Operator), col)
			case IN:
				db = db.Where("? IN ?", col, c.Value)
			default:
				db = db.Where(fmt.Sprintf("? %s ?", c.Operator), col, c.Value)
			}
		}
		return db
	}
}

// WithSortBy orders by SortBy when it is allow-listed, otherwise by id.
func WithSortBy(s QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		column := "id"
		if s.SortBy != "" && s.Allow[s.SortBy] {
			column = s.SortBy
		}
		return db.Order(clause.OrderByColumn{
			Column: clause.Column{Name: column},
			Desc:   strings.EqualFold(s.OrderBy, "desc"),
		})
	}
}

// ApplyPagination walks a created_at/id cursor newest first and fetches one
// extra row so callers can tell whether more pages exist.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		limit := p.Limit
		if limit <= 0 {
			limit = 20
		}

		if p.Cursor != "" {
			if cursor, err := pagination.DecodeCursor(p.Cursor); err == nil {
				if createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt); err == nil {
					db = db.Where("(created_at < ?) OR (created_at = ? AND id < ?)", createdAt, createdAt, cursor.ID)
				}
			}
		}

		return db.Order("created_at DESC").Order("id DESC").Limit(limit + 1)
	}
}

func WithLimit(n int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		return db.Limit(n)
	}
}

func WithLockingUpdate() QueryOption {
	return LockingUpdate
}

// LockingUpdate adds SELECT ... FOR UPDATE. Dialects without row locks
// (sqlite) drop the clause.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate})
}
