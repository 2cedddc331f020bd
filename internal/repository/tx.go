package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// withTx はfnをトランザクション内で実行する。fnがエラーを返した場合はロールバックする。
func withTx(ctx context.Context, db TxBeginner, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// requireOneRow は条件付き更新が1行に作用したことを確認する。
// 0行の場合はErrConflictを返す。
func requireOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
