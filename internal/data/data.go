package data

import (
	"context"
	"fmt"
	"time"

	"xinyuan_tech/checkout-service/internal/biz"
	"xinyuan_tech/checkout-service/internal/conf"
	"xinyuan_tech/checkout-service/internal/data/model"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewDB,
	NewRedis,
	NewRedsync,
	NewLedgerRepo,
	NewOrderRelationRepo,
	NewOrderRepo,
	NewRecipientRepo,
	NewLedgerLocker,
	NewPayPalClient,
	NewNotificationQueue,
	wire.Bind(new(biz.Transaction), new(*Data)),
	wire.Bind(new(biz.Notifier), new(*NotificationQueue)),
)

// Data .
type Data struct {
	db  *gorm.DB
	rdb *redis.Client
}

type contextTxKey struct{}

// Exec 执行事务，fn 内通过 DB(ctx) 取到同一个事务
func (d *Data) Exec(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ctx = context.WithValue(ctx, contextTxKey{}, tx)
		return fn(ctx)
	})
}

// DB 返回当前上下文中的事务，不在事务中时返回普通连接
func (d *Data) DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(contextTxKey{}).(*gorm.DB); ok {
		return tx
	}
	return d.db.WithContext(ctx)
}

// NewData .
func NewData(c *conf.Bootstrap, logger log.Logger, db *gorm.DB, rdb *redis.Client) (*Data, func(), error) {
	cleanup := func() {
		log.NewHelper(logger).Info("closing the data resources")
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
		if rdb != nil {
			_ = rdb.Close()
		}
	}
	return &Data{db: db, rdb: rdb}, cleanup, nil
}

// NewDB .
func NewDB(c *conf.Bootstrap) (*gorm.DB, error) {
	if c == nil || c.Data == nil || c.Data.Database.Source == "" {
		return nil, fmt.Errorf("database source is required")
	}
	dbConf := c.Data.Database

	var dialector gorm.Dialector
	switch dbConf.Driver {
	case "", "mysql":
		dialector = mysql.Open(dbConf.Source)
	case "postgres":
		dialector = postgres.Open(dbConf.Source)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", dbConf.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if dbConf.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConf.MaxIdleConns)
	}
	if dbConf.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConf.MaxOpenConns)
	}
	if d := conf.MustDuration(dbConf.ConnMaxLifetime, 0); d > 0 {
		sqlDB.SetConnMaxLifetime(d)
	}
	return db, nil
}

// Migrate 建表（运维命令与测试使用，线上表结构由 DBA 维护）
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.PaymentLedger{},
		&model.OrderRelation{},
		&model.Order{},
		&model.Recipient{},
	)
}

// NewRedis .
func NewRedis(c *conf.Bootstrap) *redis.Client {
	var addr, password string
	var db int32
	var readTimeout, writeTimeout, dialTimeout time.Duration

	if c != nil && c.Data != nil {
		redisConf := c.Data.Redis
		addr = redisConf.Addr
		password = redisConf.Password
		db = redisConf.Db
		readTimeout = conf.MustDuration(redisConf.ReadTimeout, 0)
		writeTimeout = conf.MustDuration(redisConf.WriteTimeout, 0)
		dialTimeout = conf.MustDuration(redisConf.DialTimeout, 0)
	}

	if addr == "" {
		addr = "localhost:6379"
	}

	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           int(db),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		DialTimeout:  dialTimeout,
	})
}

// NewRedsync 创建 redsync 实例
func NewRedsync(rdb *redis.Client) *redsync.Redsync {
	pool := goredis.NewPool(rdb)
	return redsync.New(pool)
}
