package database

import (
	"context"
	"fmt"
	"time"

	"github.com/diwise/space-monitor/internal/pkg/infrastructure/logging"
	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type ConnectorConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	DbName   string
	Password string
	SslMode  string
	File     string
}

type ConnectorFunc func() (*gorm.DB, zerolog.Logger, error)

// NewConnector picks a connector based on cfg.Driver. Unknown drivers are an error.
// sqlite keeps its data in cfg.File, or in memory when no file is given.
func NewConnector(ctx context.Context, cfg ConnectorConfig) (ConnectorFunc, error) {
	switch cfg.Driver {
	case "", "sqlite":
		if cfg.File != "" {
			return NewSQLiteFileConnector(ctx, cfg.File), nil
		}
		return NewSQLiteConnector(ctx), nil
	case "postgres":
		return NewPostgreSQLConnector(ctx, cfg), nil
	case "mysql":
		return NewMySQLConnector(ctx, cfg), nil
	default:
		return nil, fmt.Errorf("unknown database driver %s", cfg.Driver)
	}
}

func NewSQLiteConnector(ctx context.Context) ConnectorFunc {
	log := logging.GetLoggerFromContext(ctx)

	return func() (*gorm.DB, zerolog.Logger, error) {
		db, err := openSQLite("file::memory:?_foreign_keys=on", logger.Default.LogMode(logger.Silent))
		return db, log, err
	}
}

// NewSQLiteFileConnector opens, or creates, the sqlite database at path.
func NewSQLiteFileConnector(ctx context.Context, path string) ConnectorFunc {
	log := logging.GetLoggerFromContext(ctx)

	return func() (*gorm.DB, zerolog.Logger, error) {
		sublogger := log.With().Str("driver", "sqlite").Str("file", path).Logger()
		sublogger.Info().Msg("opening database file")

		db, err := openSQLite(fmt.Sprintf("file:%s?_foreign_keys=on", path), newGormLogger(sublogger))
		if err != nil {
			sublogger.Error().Err(err).Msg("failed to open database file")
			return nil, sublogger, err
		}

		return db, sublogger, nil
	}
}

func openSQLite(dsn string, gormLogger logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	db.Exec("PRAGMA foreign_keys = ON")

	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqldb.SetMaxOpenConns(1)

	return db, nil
}

func NewPostgreSQLConnector(ctx context.Context, cfg ConnectorConfig) ConnectorFunc {
	dbURI := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=%s password=%s", cfg.Host, cfg.Port, cfg.Username, cfg.DbName, cfg.SslMode, cfg.Password)

	return newConnector(ctx, cfg, func() gorm.Dialector {
		return postgres.Open(dbURI)
	})
}

func NewMySQLConnector(ctx context.Context, cfg ConnectorConfig) ConnectorFunc {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DbName)

	return newConnector(ctx, cfg, func() gorm.Dialector {
		return mysql.Open(dsn)
	})
}

func newConnector(ctx context.Context, cfg ConnectorConfig, dialector func() gorm.Dialector) ConnectorFunc {
	log := logging.GetLoggerFromContext(ctx)

	return func() (*gorm.DB, zerolog.Logger, error) {
		sublogger := log.With().Str("driver", cfg.Driver).Str("host", cfg.Host).Str("database", cfg.DbName).Logger()

		sublogger.Info().Msg("connecting to database host")

		db, err := gorm.Open(dialector(), &gorm.Config{
			Logger: newGormLogger(sublogger),
		})
		if err != nil {
			sublogger.Error().Err(err).Msg("failed to connect to database")
			return nil, sublogger, err
		}

		return db, sublogger, nil
	}
}

func newGormLogger(log zerolog.Logger) logger.Interface {
	return logger.New(
		&logadapter{logger: log},
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// logadapter provides a Printf interface to the gorm logger
// so that we can forward the log data to zerolog
type logadapter struct {
	logger zerolog.Logger
}

func (adapter *logadapter) Printf(format string, args ...interface{}) {
	adapter.logger.Info().Msgf(format, args...)
}
