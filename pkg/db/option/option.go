package option

import "gorm.io/gorm"

// QueryOption mutates a gorm query before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

// Condition applies a single field comparison.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

type conditionOption struct {
	cond Condition
}

func (o conditionOption) Apply(db *gorm.DB) *gorm.DB {
	return db.Where(o.cond.Field+" "+string(o.cond.Operator)+" ?", o.cond.Value)
}

func ApplyOperator(cond Condition) QueryOption {
	return conditionOption{cond: cond}
}

// QuerySortBy restricts ordering to an allow-listed set of columns.
type QuerySortBy struct {
	Allow   map[string]bool
	Field   string
	Desc    bool
	Default string
}

type sortOption struct {
	sort QuerySortBy
}

func (o sortOption) Apply(db *gorm.DB) *gorm.DB {
	field := o.sort.Field
	if field == "" || !o.sort.Allow[field] {
		field = o.sort.Default
	}
	if field == "" {
		return db
	}
	if o.sort.Desc {
		return db.Order(field + " DESC")
	}
	return db.Order(field + " ASC")
}

func WithSortBy(sort QuerySortBy) QueryOption {
	return sortOption{sort: sort}
}

type limitOption struct {
	limit int
}

func (o limitOption) Apply(db *gorm.DB) *gorm.DB {
	if o.limit <= 0 {
		return db
	}
	return db.Limit(o.limit)
}

func WithLimit(limit int) QueryOption {
	return limitOption{limit: limit}
}
