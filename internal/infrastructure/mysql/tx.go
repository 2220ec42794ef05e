package mysql

import (
	"context"
	"database/sql"
)

// TxOptions allows the caller of withTx to control the transaction.
type TxOptions func(o *sql.TxOptions) *sql.TxOptions

// TxWithIsolation tells the DB driver the isolation level of the transaction.
func TxWithIsolation(level sql.IsolationLevel) TxOptions {
	return func(o *sql.TxOptions) *sql.TxOptions {
		o.Isolation = level
		return o
	}
}

// withTx runs f in a transaction. The transaction is committed if f returns
// no error, and rolled back otherwise.
func withTx(ctx context.Context, db *sql.DB, f func(*sql.Tx) error, opts ...TxOptions) (err error) {
	o := &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	for _, opt := range opts {
		o = opt(o)
	}

	var txn *sql.Tx
	txn, err = db.BeginTx(ctx, o)
	if err != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			_ = txn.Rollback()
			panic(r)
		}
		if err != nil {
			// intentionally ignore the error to avoid shadowing the
			// real error causing the rollback.
			_ = txn.Rollback()
		} else {
			err = txn.Commit()
		}
	}()
	err = f(txn)
	return
}
