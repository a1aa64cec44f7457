package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/heartmarshall/questline-reconciler/internal/docstore"
	"github.com/heartmarshall/questline-reconciler/internal/domain"
)

// mapError converts pgx/pgconn errors to store error classes.
// context.DeadlineExceeded and context.Canceled are not mapped; they pass through.
func mapError(err error, collection, id string) error {
	if err == nil {
		return nil
	}

	where := strings.TrimSpace(collection + " " + id)
	wrap := func(e error) error {
		if where == "" {
			return e
		}
		return fmt.Errorf("%s: %w", where, e)
	}

	// context errors pass through as-is
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return wrap(err)
	}

	// pgx.ErrNoRows → domain.ErrNotFound
	if errors.Is(err, pgx.ErrNoRows) {
		return wrap(domain.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", // serialization_failure
			pgErr.Code == "40P01", // deadlock_detected
			pgErr.Code == "53300", // too_many_connections
			pgErr.Code == "57014", // query_canceled (statement_timeout)
			pgErr.Code == "55P03", // lock_not_available
			pgErr.Code == "57P01", // admin_shutdown
			strings.HasPrefix(pgErr.Code, "08"): // connection_exception
			return wrap(docstore.Transient(err))
		case pgErr.Code == "28P01", // invalid_password
			pgErr.Code == "28000", // invalid_authorization_specification
			pgErr.Code == "42501", // insufficient_privilege
			pgErr.Code == "3D000", // invalid_catalog_name
			pgErr.Code == "42P01": // undefined_table
			return wrap(docstore.Fatal(err))
		}
		return wrap(err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return wrap(docstore.Transient(err))
	}

	// Everything else: wrap with context
	return wrap(err)
}
