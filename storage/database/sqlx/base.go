package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/masomofees/core"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// repository holds the executor used when a call is not given one.
type repository struct {
	exec core.DBExecutor
}

func (repo repository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// get scans the single row selected by b into dest; sql.ErrNoRows becomes notFound.
func (repo repository) get(ctx context.Context, exec []core.DBExecutor, dest interface{}, b sq.Sqlizer, notFound error) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if err = sqlx.GetContext(ctx, repo.getExec(exec), dest, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return notFound
		}
		return err
	}
	return nil
}

func (repo repository) selectAll(ctx context.Context, exec []core.DBExecutor, dest interface{}, b sq.Sqlizer) error {
	query, args, err := b.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, repo.getExec(exec), dest, query, args...)
}

// execute runs b and returns the number of affected rows.
func (repo repository) execute(ctx context.Context, exec []core.DBExecutor, b sq.Sqlizer) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := repo.getExec(exec).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func orderBy(b sq.SelectBuilder, ordering []core.DBOrdering, allowed map[string]struct{}) sq.SelectBuilder {
	for _, ord := range ordering {
		if _, ok := allowed[ord.Field]; ok {
			b = b.OrderBy(ord.String())
		}
	}
	return b
}

func newID() string { return uuid.New().String() }

// validUUID guards lookups on uuid columns against malformed ids.
func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
