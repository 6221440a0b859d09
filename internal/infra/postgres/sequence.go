package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/gestapp/internal/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// primaryKeyCollision reports the table whose "<table>_pkey" constraint was
// violated by err. Other unique violations (e.g. users.email) are not a
// sequence problem and are left alone.
func primaryKeyCollision(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return "", false
	}
	if pgErr.TableName == "" || pgErr.ConstraintName != pgErr.TableName+"_pkey" {
		return "", false
	}
	return pgErr.TableName, true
}

// withSequenceRepair runs op. If op fails on a primary key collision the id
// sequence of that table is moved past MAX(id) and op runs exactly once more;
// a second failure is returned as is.
//
// Two requests colliding at the same moment may both resync and retry; the
// second retry can still fail. That race is accepted.
func withSequenceRepair(ctx context.Context, resync func(ctx context.Context, table string) error, op func(ctx context.Context) error) error {
	err := op(ctx)
	table, ok := primaryKeyCollision(err)
	if !ok {
		return err
	}

	log := logger.FromContext(ctx)
	log.Warn().Err(err).Str("table", table).Msg("Primary key collision, resynchronizing id sequence")

	if rerr := resync(ctx, table); rerr != nil {
		return fmt.Errorf("resync %s id sequence: %w (after: %v)", table, rerr, err)
	}

	if err := op(ctx); err != nil {
		log.Error().Err(err).Str("table", table).Msg("Insert failed again after sequence resync")
		return err
	}
	log.Info().Str("table", table).Msg("Insert succeeded after sequence resync")
	return nil
}

// resyncSequence moves the serial sequence of table to MAX(id)+1. nextval is
// folded into GREATEST so the sequence never moves backwards.
func resyncSequence(ctx context.Context, q querier, table string) error {
	sql := fmt.Sprintf(`
		SELECT setval(
			pg_get_serial_sequence($1, 'id'),
			GREATEST(
				(SELECT COALESCE(MAX(id), 0) + 1 FROM %s),
				nextval(pg_get_serial_sequence($1, 'id'))
			),
			false
		)`, pgx.Identifier{table}.Sanitize())

	var next int64
	if err := q.QueryRow(ctx, sql, table).Scan(&next); err != nil {
		return err
	}

	log := logger.FromContext(ctx)
	log.Info().Str("table", table).Int64("next_id", next).Msg("Id sequence resynchronized")
	return nil
}
