package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/codepacceproduct/clausify/internal/config"
	"github.com/codepacceproduct/clausify/internal/log"
)

//go:embed migrations/sqlite3/*.sql migrations/mysql/*.sql
var embedMigrations embed.FS

// Open connects to the database selected by driver.
func Open(ctx context.Context, driver string, dbCfg config.DatabaseConfig) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)

	switch dialect(driver) {
	case "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// a single connection keeps ":memory:" databases coherent and
		// serializes writers
		db.SetMaxOpenConns(1)
	case "mysql":
		dsn, err := mysqlDSN(dbCfg)
		if err != nil {
			return nil, err
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate applies the embedded goose migrations for the driver's dialect.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	d := dialect(driver)
	if d == "" {
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(log.NewGooseLoggerFromCtx(ctx))

	if err := goose.SetDialect(d); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations/"+d); err != nil {
		return fmt.Errorf("migrate (%s): %w", d, err)
	}
	return nil
}

func dialect(driver string) string {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "mysql":
		return "mysql"
	}
	return ""
}

// mysqlDSN prefers an explicit DSN and otherwise assembles one from parts.
// parseTime is always forced so DATETIME columns scan into time.Time.
func mysqlDSN(dbCfg config.DatabaseConfig) (string, error) {
	var mc *mysql.Config
	if dbCfg.DSN != "" {
		parsed, err := mysql.ParseDSN(dbCfg.DSN)
		if err != nil {
			return "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		mc = parsed
	} else {
		mc = mysql.NewConfig()
		mc.User = dbCfg.Username
		mc.Passwd = dbCfg.Password
		mc.Net = "tcp"
		port := dbCfg.Port
		if port == 0 {
			port = 3306
		}
		mc.Addr = net.JoinHostPort(dbCfg.Host, strconv.Itoa(port))
		mc.DBName = dbCfg.DBName
		if dbCfg.Params != "" {
			values, err := url.ParseQuery(dbCfg.Params)
			if err != nil {
				return "", fmt.Errorf("parse mysql params: %w", err)
			}
			if mc.Params == nil {
				mc.Params = map[string]string{}
			}
			for k := range values {
				mc.Params[k] = values.Get(k)
			}
		}
	}
	mc.ParseTime = true
	delete(mc.Params, "parseTime")
	return mc.FormatDSN(), nil
}
