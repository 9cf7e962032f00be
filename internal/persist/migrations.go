package persist

import (
	"context"
	"embed"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrations embed.FS

// gooseLogger 把 goose 的輸出導向 zap。
type gooseLogger struct {
	log *zap.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.log.Fatal(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// RunMigrations 套用所有尚未執行的 fog schema 遷移，回傳套用後的版本。
func RunMigrations(ctx context.Context, db *DB) (int64, error) {
	goose.SetLogger(gooseLogger{log: db.log.Named("migrate")})
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return 0, fmt.Errorf("set dialect: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	before, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return 0, fmt.Errorf("run migrations: %w", err)
	}
	after, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if after != before {
		db.log.Info("fog schema migrated", zap.Int64("from", before), zap.Int64("to", after))
	}
	return after, nil
}
