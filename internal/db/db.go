package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"yatube/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/mdobak/go-xerrors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database; driver is one of postgres, mysql, sqlite.
func Open(driver, dsn string, log *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, xerrors.Newf("unsupported database driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(slogWriter{log: log}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, xerrors.Newf("failed to connect to database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, xerrors.New(err)
	}
	if driver == "sqlite" {
		// sqlite 只允许单写者，内存库更要求所有查询共享同一连接
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(10 * time.Second)
	}

	log.Info("Database connection established", slog.String("driver", driver))
	return gdb, nil
}

// Migrate creates or updates every table the application uses.
func Migrate(gdb *gorm.DB) error {
	err := gdb.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.Post{},
		&models.Comment{},
		&models.Follow{},
	)
	if err != nil {
		return xerrors.Newf("failed to migrate database: %w", err)
	}
	return nil
}

// DefaultGroups are created on first start when the groups table is empty.
var DefaultGroups = []models.Group{
	{Title: "Новости", Slug: "news", Description: "Что происходит вокруг"},
	{Title: "Технологии", Slug: "tech", Description: "Код, железо и всё между ними"},
	{Title: "Разное", Slug: "misc", Description: "Обо всём остальном"},
}

// SeedDefaultGroups 检查是否已有分组数据，没有则写入预设分组
func SeedDefaultGroups(ctx context.Context, gdb *gorm.DB, log *slog.Logger) error {
	var count int64
	if err := gdb.WithContext(ctx).Model(&models.Group{}).Count(&count).Error; err != nil {
		return xerrors.New(err)
	}
	if count > 0 {
		log.Debug("Groups already seeded, skipping")
		return nil
	}
	if _, err := UpsertGroups(ctx, gdb, DefaultGroups); err != nil {
		return err
	}
	log.Info("Initial groups created", slog.Int("count", len(DefaultGroups)))
	return nil
}

// UpsertGroups creates groups whose slug doesn't exist yet and returns all of them.
func UpsertGroups(ctx context.Context, gdb *gorm.DB, groups []models.Group) ([]models.Group, error) {
	out := make([]models.Group, 0, len(groups))
	for _, g := range groups {
		group := g
		err := gdb.WithContext(ctx).
			Where(models.Group{Slug: group.Slug}).
			Attrs(models.Group{Title: group.Title, Description: group.Description}).
			FirstOrCreate(&group).Error
		if err != nil {
			return nil, xerrors.Newf("create group %s: %w", g.Slug, err)
		}
		out = append(out, group)
	}
	return out, nil
}

type slogWriter struct {
	log *slog.Logger
}

func (w slogWriter) Printf(format string, args ...interface{}) {
	w.log.Warn(fmt.Sprintf(format, args...), slog.String("component", "gorm"))
}
