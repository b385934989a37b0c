package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/uma-arai/sbcntr-calendar/internal/model"
)

// uniqueViolation は PostgreSQL の一意制約違反コードです
const uniqueViolation = "23505"

// Transactor はコンテキストに紐づくトランザクションの中で処理を実行します
// 既にトランザクション中のコンテキストで呼ばれた場合は外側のトランザクションに参加します
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

type DB struct {
	*sqlx.DB
}

// NewDB wraps an opened connection.
func NewDB(conn *sqlx.DB) *DB {
	return &DB{DB: conn}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// WithinTx runs fn inside a transaction bound to ctx.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	ctx, seg := xray.BeginSubsegment(ctx, "DB.WithinTx")
	defer func() { seg.Close(err) }()

	tx, err := db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// エラーまたはpanicの場合はロールバック
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("rollback failed: %v, original error: %w", rbErr, err)
			}
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// withSavepoint isolates fn inside the bound transaction so that a failed
// statement does not abort the whole transaction. Without a transaction fn runs as is.
func (db *DB) withSavepoint(ctx context.Context, name string, fn func() error) error {
	tx, ok := ctx.Value(txKey{}).(*sqlx.Tx)
	if !ok {
		return fn()
	}
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback to savepoint failed: %v, original error: %w", rbErr, err)
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

// ext returns the transaction bound to ctx, or the pool.
func (db *DB) ext(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return db.DB
}

// SelectContext wraps sqlx.SelectContext with X-Ray tracing
func (db *DB) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.Select")
	if seg == nil {
		return sqlx.SelectContext(ctx, db.ext(ctx), dest, query, args...)
	}
	defer seg.Close(nil)

	// クエリをメタデータとして追加
	if err := seg.AddMetadata("query", query); err != nil {
		log.Printf("Failed to add query metadata: %v", err)
	}

	if err := sqlx.SelectContext(ctx, db.ext(ctx), dest, query, args...); err != nil {
		seg.Close(err)
		return err
	}
	return nil
}

// GetContext wraps sqlx.GetContext with X-Ray tracing
func (db *DB) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.Get")
	if seg == nil {
		return sqlx.GetContext(ctx, db.ext(ctx), dest, query, args...)
	}
	defer seg.Close(nil)

	if err := seg.AddMetadata("query", query); err != nil {
		log.Printf("Failed to add query metadata: %v", err)
	}

	if err := sqlx.GetContext(ctx, db.ext(ctx), dest, query, args...); err != nil {
		// 0件はエラーとしてセグメントに記録しない
		if !errors.Is(err, sql.ErrNoRows) {
			seg.Close(err)
		}
		return err
	}
	return nil
}

// ExecContext wraps ExecContext with X-Ray tracing
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.Exec")
	if seg == nil {
		return db.ext(ctx).ExecContext(ctx, query, args...)
	}
	defer seg.Close(nil)

	if err := seg.AddMetadata("query", query); err != nil {
		log.Printf("Failed to add query metadata: %v", err)
	}

	result, err := db.ext(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		seg.Close(err)
		return nil, err
	}
	return result, nil
}

// NamedExecContext wraps sqlx.NamedExecContext with X-Ray tracing
func (db *DB) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.NamedExec")
	if seg == nil {
		return sqlx.NamedExecContext(ctx, db.ext(ctx), query, arg)
	}
	defer seg.Close(nil)

	if err := seg.AddMetadata("query", query); err != nil {
		log.Printf("Failed to add query metadata: %v", err)
	}

	result, err := sqlx.NamedExecContext(ctx, db.ext(ctx), query, arg)
	if err != nil {
		seg.Close(err)
		return nil, err
	}
	return result, nil
}

// translateError maps driver errors onto the domain taxonomy.
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", model.ErrConflict, pqErr.Constraint)
	}
	return err
}
