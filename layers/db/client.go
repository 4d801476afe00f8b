package db

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/fuad-daoud/discord-archiver/logger/dlog"
	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	Charset      string
	MaxOpenConns int
}

// DSN renders the go-sql-driver/mysql data source name for c.
func (c Config) DSN() string {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	dsn := mysql.NewConfig()
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.DBName = c.Name
	dsn.Collation = charset + "_general_ci"
	dsn.ParseTime = true
	dsn.Params = map[string]string{"charset": charset}
	return dsn.FormatDSN()
}

type Connection struct {
	gorm *gorm.DB
}

// Open connects to MySQL and verifies the server is reachable.
func Open(ctx context.Context, config Config) (*Connection, error) {
	conn, err := OpenDialector(gormmysql.Open(config.DSN()))
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.gorm.DB()
	if err != nil {
		return nil, err
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		dlog.Error("Error connecting to MySQL", "addr", net.JoinHostPort(config.Host, strconv.Itoa(config.Port)), "err", err)
		_ = sqlDB.Close()
		return nil, err
	}
	dlog.Info("Connection established.", "host", config.Host, "db", config.Name)
	return conn, nil
}

// OpenDialector opens a connection over any gorm dialector.
func OpenDialector(dialector gorm.Dialector) (*Connection, error) {
	g, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	return &Connection{gorm: g}, nil
}

type TransactionExecute func(tx *gorm.DB) error

// Transaction runs execute in one transaction. Any error from execute, or from commit,
// rolls the transaction back and is returned as is.
func (conn *Connection) Transaction(ctx context.Context, execute TransactionExecute) (err error) {
	tx := conn.gorm.WithContext(ctx).Begin()
	if tx.Error != nil {
		dlog.Error("Transaction failed", "err", tx.Error)
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err = execute(tx); err != nil {
		rollback(tx)
		return err
	}
	if err = tx.Commit().Error; err != nil {
		rollback(tx)
		dlog.Error("Transaction failed", "err", err)
		return err
	}
	return nil
}

func rollback(tx *gorm.DB) {
	if err := tx.Rollback().Error; err != nil {
		dlog.Error("Rollback failed", "err", err)
	}
}

// Gorm exposes the underlying handle for schema work and reads.
func (conn *Connection) Gorm() *gorm.DB {
	return conn.gorm
}

func (conn *Connection) Close() error {
	dlog.Info("Closing db connection")
	sqlDB, err := conn.gorm.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return err
	}
	dlog.Info("db Connection closed.")
	return nil
}
