package data

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PgxIface is the part of *pgxpool.Pool the data client needs.
type PgxIface interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

type DataClient struct {
	pg     PgxIface
	rdb    *redis.Client
	logger *zap.SugaredLogger
}

// NewDataClient wires Postgres and an optional Redis cache; rdb may be nil.
func NewDataClient(db PgxIface, rdb *redis.Client, logger *zap.SugaredLogger) *DataClient {
	return &DataClient{
		pg:     db,
		rdb:    rdb,
		logger: logger,
	}
}
