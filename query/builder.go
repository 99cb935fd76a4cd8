// Package query compiles flat request parameters into a SQL query
// specification: a combined filter expression list, a sort order, a
// projection and pagination bounds. Every list endpoint runs its fetch and
// its count from the same Spec, so the pagination metadata can never be
// computed against a different filter than the one that produced the page.
package query

import (
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
)

const (
	dialect      = "postgres"
	defaultPage  = 1
	defaultLimit = 10
)

// reservedKeys never become generic filter predicates.
var reservedKeys = []string{"q", "searchTerm", "page", "limit", "sort", "fields", "fromDate", "toDate"}

// operatorNames fixes the order bracket operators are checked in, so the
// emitted predicate order is stable.
var operatorNames = []string{"gt", "gte", "lt", "lte", "ne"}

var operators = map[string]func(exp.IdentifierExpression, any) goqu.Expression{
	"gt":  func(c exp.IdentifierExpression, v any) goqu.Expression { return c.Gt(v) },
	"gte": func(c exp.IdentifierExpression, v any) goqu.Expression { return c.Gte(v) },
	"lt":  func(c exp.IdentifierExpression, v any) goqu.Expression { return c.Lt(v) },
	"lte": func(c exp.IdentifierExpression, v any) goqu.Expression { return c.Lte(v) },
	"ne":  func(c exp.IdentifierExpression, v any) goqu.Expression { return c.Neq(v) },
}

// Options declares, per resource, which fields are exposed to the generic
// parameter set and which predicates are already decided by the caller.
type Options struct {
	// Fields maps exposed API field names to their columns. Parameters
	// naming anything else are dropped, never errored on.
	Fields map[string]string
	// Searchable lists the API fields the searchTerm/q parameter matches
	// against (case-insensitive substring, OR-ed).
	Searchable []string
	// DateField, when set, is the API field a fromDate/toDate pair ranges
	// over.
	DateField string
	// Reserved adds caller-specific keys to the reserved set.
	Reserved []string
	// Base holds predicates decided before anything user-supplied is looked
	// at, e.g. role scoping. They are AND-ed in front of the generic filter.
	Base []goqu.Expression
	// DefaultSort is applied when no sort parameter is present. Falls back
	// to "-createdAt" when empty.
	DefaultSort string
	// DefaultColumns is the projection used when no fields parameter is
	// present. Empty means all columns.
	DefaultColumns []string
}

// Spec is a compiled query. The expression list is shared between SelectSQL
// and CountSQL by construction.
type Spec struct {
	where []goqu.Expression
	order []exp.OrderedExpression
	cols  []any

	Page  int
	Limit int
}

// Meta is the pagination summary returned next to every list.
type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// Params flattens url.Values to the single-valued map Compile consumes,
// keeping the first value of each key.
func Params(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			params[key] = vals[0]
		}
	}
	return params
}

// Compile turns the raw parameters into a Spec. Malformed values degrade to
// defaults; user-supplied filter noise must never break a listing.
func Compile(params map[string]string, opts Options) Spec {
	s := Spec{
		where: append([]goqu.Expression{}, opts.Base...),
		Page:  defaultPage,
		Limit: defaultLimit,
	}

	reserved := make(map[string]bool, len(reservedKeys)+len(opts.Reserved))
	for _, k := range reservedKeys {
		reserved[k] = true
	}
	for _, k := range opts.Reserved {
		reserved[k] = true
	}

	s.where = append(s.where, compileFilters(params, opts, reserved)...)
	s.where = append(s.where, compileDateRange(params, opts)...)
	if search := compileSearch(params, opts); search != nil {
		s.where = append(s.where, search)
	}
	s.order = compileSort(params, opts)
	s.cols = compileProjection(params, opts)
	s.Page, s.Limit = compilePagination(params)

	return s
}

func compileFilters(params map[string]string, opts Options, reserved map[string]bool) []goqu.Expression {
	// Walk the declared fields in sorted order rather than ranging over the
	// parameter map, so the emitted predicate order is stable.
	fields := make([]string, 0, len(opts.Fields))
	for field := range opts.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	exprs := make([]goqu.Expression, 0)
	for _, field := range fields {
		if reserved[field] {
			continue
		}
		column := opts.Fields[field]
		if raw, ok := params[field]; ok {
			exprs = append(exprs, goqu.C(column).Eq(coerceValue(raw)))
		}
		for _, op := range operatorNames {
			if raw, ok := params[field+"["+op+"]"]; ok {
				exprs = append(exprs, operators[op](goqu.C(column), coerceValue(raw)))
			}
		}
	}
	return exprs
}

func compileDateRange(params map[string]string, opts Options) []goqu.Expression {
	if opts.DateField == "" {
		return nil
	}
	column, ok := opts.Fields[opts.DateField]
	if !ok {
		return nil
	}
	exprs := make([]goqu.Expression, 0, 2)
	if from := params["fromDate"]; from != "" {
		exprs = append(exprs, goqu.C(column).Gte(from))
	}
	if to := params["toDate"]; to != "" {
		exprs = append(exprs, goqu.C(column).Lte(to))
	}
	return exprs
}

// compileSearch builds the OR-ed case-insensitive substring clause. An
// absent or empty term yields no clause at all.
func compileSearch(params map[string]string, opts Options) goqu.Expression {
	term := params["searchTerm"]
	if term == "" {
		term = params["q"]
	}
	if term == "" || len(opts.Searchable) == 0 {
		return nil
	}
	pattern := "%" + term + "%"
	ors := make([]goqu.Expression, 0, len(opts.Searchable))
	for _, field := range opts.Searchable {
		if column, ok := opts.Fields[field]; ok {
			ors = append(ors, goqu.C(column).ILike(pattern))
		}
	}
	if len(ors) == 0 {
		return nil
	}
	return goqu.Or(ors...)
}

func compileSort(params map[string]string, opts Options) []exp.OrderedExpression {
	raw := params["sort"]
	if raw == "" {
		raw = opts.DefaultSort
	}
	if raw == "" {
		raw = "-createdAt"
	}

	order := make([]exp.OrderedExpression, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		field := strings.TrimPrefix(part, "-")
		column, ok := opts.Fields[field]
		if !ok {
			continue
		}
		if desc {
			order = append(order, goqu.C(column).Desc())
		} else {
			order = append(order, goqu.C(column).Asc())
		}
	}
	return order
}

func compileProjection(params map[string]string, opts Options) []any {
	fields := params["fields"]
	names := opts.DefaultColumns
	if fields != "" {
		names = strings.Split(fields, ",")
	}

	cols := make([]any, 0, len(names))
	for _, name := range names {
		if column, ok := opts.Fields[strings.TrimSpace(name)]; ok {
			cols = append(cols, column)
		}
	}
	return cols
}

func compilePagination(params map[string]string) (page, limit int) {
	page = defaultPage
	limit = defaultLimit
	if n, err := strconv.Atoi(params["page"]); err == nil && n >= 1 {
		page = n
	}
	if n, err := strconv.Atoi(params["limit"]); err == nil && n >= 1 {
		limit = n
	}
	return page, limit
}

// coerceValue turns the literal strings "true"/"false" into booleans and
// numeric strings into numbers; anything else stays a string.
func coerceValue(raw string) any {
	if raw == "true" {
		return true
	}
	if raw == "false" {
		return false
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	return raw
}

// Offset is (page-1)*limit.
func (s Spec) Offset() int {
	return (s.Page - 1) * s.Limit
}

// SelectSQL renders the prepared fetch statement for the given table.
func (s Spec) SelectSQL(table string) (string, []any, error) {
	ds := goqu.Dialect(dialect).From(table).Prepared(true)
	if len(s.cols) > 0 {
		ds = ds.Select(s.cols...)
	}
	if len(s.where) > 0 {
		ds = ds.Where(s.where...)
	}
	if len(s.order) > 0 {
		ds = ds.Order(s.order...)
	}
	return ds.Limit(uint(s.Limit)).Offset(uint(s.Offset())).ToSQL()
}

// CountSQL renders the prepared count statement over exactly the same
// combined filter as SelectSQL, search clause included.
func (s Spec) CountSQL(table string) (string, []any, error) {
	ds := goqu.Dialect(dialect).From(table).Prepared(true).
		Select(goqu.COUNT(goqu.Star()))
	if len(s.where) > 0 {
		ds = ds.Where(s.where...)
	}
	return ds.ToSQL()
}

// Meta builds the pagination summary for a total produced by CountSQL.
func (s Spec) Meta(total int) Meta {
	totalPages := 0
	if total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(s.Limit)))
	}
	return Meta{Page: s.Page, Limit: s.Limit, Total: total, TotalPages: totalPages}
}
