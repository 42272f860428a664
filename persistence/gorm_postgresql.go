// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/spyserver/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,   // 慢SQL阈值
			LogLevel:      logger.Silent, // 日志级别
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(DSN(host, port, user, password, dbname)), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewGormStore(db)
}

// NewGormStore wraps an open *gorm.DB and migrates the word_pairs table.
func NewGormStore(db *gorm.DB) (*GormPostgreSQL, error) {
	if err := db.AutoMigrate(&models.GormWordPair{}); err != nil {
		return nil, err
	}
	return &GormPostgreSQL{db: db}, nil
}

func (p *GormPostgreSQL) FindMany(ctx context.Context, opts models.FindOptions) ([]models.WordPair, error) {
	q := p.db.WithContext(ctx).Model(&models.GormWordPair{})
	if opts.EnabledOnly {
		q = q.Where("enabled = ?", true)
	}
	if len(opts.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", opts.ExcludeIDs)
	}

	var rows []models.GormWordPair
	if err := q.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.WordPair, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToWordPair())
	}
	return out, nil
}

func (p *GormPostgreSQL) FindByID(ctx context.Context, id string) (models.WordPair, error) {
	return p.first(ctx, "id = ?", id)
}

func (p *GormPostgreSQL) FindByWords(ctx context.Context, wordA, wordB string) (models.WordPair, error) {
	return p.first(ctx, "word_a = ? AND word_b = ?", wordA, wordB)
}

func (p *GormPostgreSQL) first(ctx context.Context, query string, args ...interface{}) (models.WordPair, error) {
	var row models.GormWordPair
	if err := p.db.WithContext(ctx).Where(query, args...).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.WordPair{}, ErrRecordNotFound
		}
		return models.WordPair{}, err
	}
	return row.ToWordPair(), nil
}

func (p *GormPostgreSQL) Create(ctx context.Context, input models.WordPairInput) (models.WordPair, error) {
	row := newGormRow(input)
	if err := p.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return models.WordPair{}, ErrDuplicate
		}
		return models.WordPair{}, err
	}
	return row.ToWordPair(), nil
}

// CreateMany inserts all inputs in one transaction.
func (p *GormPostgreSQL) CreateMany(ctx context.Context, inputs []models.WordPairInput) ([]models.WordPair, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	rows := make([]models.GormWordPair, 0, len(inputs))
	for _, input := range inputs {
		rows = append(rows, newGormRow(input))
	}

	err := p.Transaction(func(tx *gorm.DB) error {
		return tx.WithContext(ctx).Create(&rows).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}

	out := make([]models.WordPair, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToWordPair())
	}
	return out, nil
}

func (p *GormPostgreSQL) Update(ctx context.Context, id string, update models.WordPairUpdate) (models.WordPair, error) {
	var out models.WordPair
	err := p.Transaction(func(tx *gorm.DB) error {
		var row models.GormWordPair
		if err := tx.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
			return err
		}
		next := applyUpdate(row.ToWordPair(), update)
		row.WordA, row.WordB, row.Enabled = next.WordA, next.WordB, next.Enabled
		if err := tx.WithContext(ctx).Save(&row).Error; err != nil {
			return err
		}
		out = row.ToWordPair()
		return nil
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.WordPair{}, ErrRecordNotFound
	case isUniqueViolation(err):
		return models.WordPair{}, ErrDuplicate
	case err != nil:
		return models.WordPair{}, err
	}
	return out, nil
}

func (p *GormPostgreSQL) Delete(ctx context.Context, id string) error {
	result := p.db.WithContext(ctx).Where("id = ?", id).Delete(&models.GormWordPair{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgreSQL) Count(ctx context.Context) (int64, error) {
	var n int64
	err := p.db.WithContext(ctx).Model(&models.GormWordPair{}).Count(&n).Error
	return n, err
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// 添加事务支持
func (p *GormPostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}

func newGormRow(input models.WordPairInput) models.GormWordPair {
	now := time.Now()
	return models.GormWordPair{
		ID:        uuid.NewString(),
		WordA:     input.WordA,
		WordB:     input.WordB,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
