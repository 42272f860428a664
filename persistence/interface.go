// persistence/interface.go
package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/wfunc/spyserver/models"
)

// WordPairStore 词组存储接口, 游戏开始时只读, 管理接口负责写入
type WordPairStore interface {
	FindMany(ctx context.Context, opts models.FindOptions) ([]models.WordPair, error)
	FindByID(ctx context.Context, id string) (models.WordPair, error)
	FindByWords(ctx context.Context, wordA, wordB string) (models.WordPair, error)
	Create(ctx context.Context, input models.WordPairInput) (models.WordPair, error)
	CreateMany(ctx context.Context, inputs []models.WordPairInput) ([]models.WordPair, error)
	Update(ctx context.Context, id string, update models.WordPairUpdate) (models.WordPair, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
	ErrDuplicate      = fmt.Errorf("word pair already exists")
)

// DSN builds a lib/pq keyword connection string.
func DSN(host string, port int, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}

func excludeSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "23505"))
}
