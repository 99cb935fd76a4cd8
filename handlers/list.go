package handlers

import (
	"context"

	"booking-svc/query"

	"github.com/jmoiron/sqlx"
)

// fetchList is the shared tail of every list endpoint: run the compiled
// fetch, then run the count over the identical filter, and fold both into
// the {data, meta} response parts. dest must be a pointer to a slice.
func fetchList(ctx context.Context, db *sqlx.DB, table string, spec query.Spec, dest any) (query.Meta, error) {
	listSQL, args, err := spec.SelectSQL(table)
	if err != nil {
		return query.Meta{}, err
	}
	if err := db.SelectContext(ctx, dest, listSQL, args...); err != nil {
		return query.Meta{}, err
	}

	countSQL, countArgs, err := spec.CountSQL(table)
	if err != nil {
		return query.Meta{}, err
	}
	var total int
	if err := db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return query.Meta{}, err
	}

	return spec.Meta(total), nil
}
