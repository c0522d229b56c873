package repository

import "context"

type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside a database transaction and hands the backend's
// transaction handle to repositories through tx.
//
// Repositories detect the handle (pgx.Tx, *sql.Tx) and use it for every statement, so the
// conditional status write, the user upgrade and the billing insert commit or roll back
// together. Repositories MUST accept NoTX (nil) for the non-transactional path.
type TransactionManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
