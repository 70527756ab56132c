package models

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	sqliteEncrypt "github.com/Daskott/gorm-sqlite-cipher"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/snzark/crm/server/logger"
	"github.com/snzark/crm/shared"
	"github.com/snzark/crm/utils"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const DB_NAME = "crm.db"

var logg = logger.NewLogger()
var db *gorm.DB

// sqliteFilePath is set when the sqlite driver is in use, for backups.
var sqliteFilePath string

// AutoMigrate opens the configured database, migrates the schema and inserts seed data
func AutoMigrate(config shared.DatabaseConfig) error {
	err := openDB(config)
	if err != nil {
		return err
	}

	err = db.AutoMigrate(
		&Role{}, &JobStatus{}, &Job{},
		&User{}, &Contact{}, &Company{}, &Task{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %v", err)
	}

	return populateDBWithSeedData()
}

// InitializeTestDb creates a fresh encrypted sqlite db in a temp directory.
func InitializeTestDb() {
	dir, err := os.MkdirTemp("", "crm-test-*")
	if err != nil {
		log.Panic(err)
	}

	err = AutoMigrate(shared.DatabaseConfig{
		Driver:     shared.SQLITE_DRIVER,
		PassPhrase: "test-passphrase",
		Dir:        dir,
	})
	if err != nil {
		log.Panic(err)
	}
}

// SqliteFilePath returns the location of the sqlite db file, or "" for other drivers.
func SqliteFilePath() string {
	return sqliteFilePath
}

// Ping checks the database connection is alive.
func Ping() error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Checkpoint flushes the sqlite write-ahead log into the db file. It is a no-op for other drivers.
func Checkpoint() error {
	if sqliteFilePath == "" {
		return nil
	}
	return db.Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error
}

func Close() error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func openDB(config shared.DatabaseConfig) error {
	dialector, err := dialectorFor(config)
	if err != nil {
		return err
	}

	db, err = gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormLogger.Silent,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	})
	if err != nil {
		return fmt.Errorf("failed to connect database: %v", err)
	}

	if config.Driver == shared.SQLITE_DRIVER {
		// sqlite allows a single writer
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return nil
}

func dialectorFor(config shared.DatabaseConfig) (gorm.Dialector, error) {
	switch config.Driver {
	case shared.SQLITE_DRIVER, "":
		dsn, err := sqliteDSN(config.PassPhrase, config.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to set sqlite DSN: %v", err)
		}
		return sqliteEncrypt.Open(dsn), nil

	case shared.POSTGRES_DRIVER:
		if config.Dsn == "" {
			return nil, errors.New("database.dsn is required for postgres")
		}
		return postgres.Open(config.Dsn), nil

	case shared.MYSQL_DRIVER:
		return mysql.Open(mysqlDSN(config)), nil
	}

	return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
}

func mysqlDSN(config shared.DatabaseConfig) string {
	if config.Dsn != "" {
		return config.Dsn
	}

	mysqlConfig := mysqlDriver.NewConfig()
	mysqlConfig.Net = "tcp"
	mysqlConfig.Addr = config.Host
	mysqlConfig.User = config.User
	mysqlConfig.Passwd = config.Password
	mysqlConfig.DBName = config.Name
	mysqlConfig.ParseTime = true
	mysqlConfig.Params = map[string]string{"charset": "utf8mb4"}

	return mysqlConfig.FormatDSN()
}

func sqliteDSN(passPhrase string, dbRootDir string) (string, error) {
	if passPhrase == "" {
		return "", errors.New("database.passPhrase is required for sqlite")
	}

	dbDir, err := DbDirectory(dbRootDir)
	if err != nil {
		return "", err
	}

	sqliteFilePath = filepath.Join(dbDir, DB_NAME)
	dbName := fmt.Sprintf("file:%v", sqliteFilePath)

	return fmt.Sprintf(
		"%v?_pragma_key=%s&_pragma_cipher_page_size=4096&_journal_mode=WAL&_busy_timeout=5000",
		dbName,
		passPhrase,
	), nil
}

func DbDirectory(dbRootDir string) (string, error) {
	dbDir := filepath.Join(dbRootDir, "db")

	err := utils.CreateDirIfNotExist(dbDir)
	if err != nil {
		return "", err
	}

	return dbDir, nil
}

func populateDBWithSeedData() error {
	if err := db.First(&JobStatus{}).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		logg.Info("Inserting seed data into 'JobStatus'")
		err = db.Create(&[]JobStatus{{Name: ENQUEUED_JOB}, {Name: IN_PROGRESS_JOB}, {Name: SUCCESSFUL_JOB}, {Name: DEAD_JOB}}).Error
		if err != nil {
			return err
		}
	}

	if err := db.First(&Role{}).Error; errors.Is(err, gorm.ErrRecordNotFound) {
		logg.Info("Inserting seed data into 'Role'")
		err = db.Create(&[]Role{{Name: ADMIN_USER_ROLE}, {Name: BASIC_USER_ROLE}}).Error
		if err != nil {
			return err
		}
	}

	return nil
}
