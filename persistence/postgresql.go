// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/wfunc/spyserver/models"
)

// PostgreSQL 基于 database/sql + lib/pq 的实现, 表结构由 migrate 命令创建
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", DSN(host, port, user, password, dbname))
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgreSQL{db: db}, nil
}

const pairColumns = `id, word_a, word_b, enabled, created_at`

func scanPair(row interface{ Scan(...interface{}) error }) (models.WordPair, error) {
	var p models.WordPair
	err := row.Scan(&p.ID, &p.WordA, &p.WordB, &p.Enabled, &p.CreatedAt)
	return p, err
}

func (p *PostgreSQL) FindMany(ctx context.Context, opts models.FindOptions) ([]models.WordPair, error) {
	exclude := opts.ExcludeIDs
	if exclude == nil {
		exclude = []string{}
	}
	query := `SELECT ` + pairColumns + ` FROM word_pairs
        WHERE ($1 = false OR enabled = true) AND NOT (id = ANY($2))
        ORDER BY created_at, id`

	rows, err := p.db.QueryContext(ctx, query, opts.EnabledOnly, pq.Array(exclude))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.WordPair
	for rows.Next() {
		pair, err := scanPair(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pair)
	}
	return out, rows.Err()
}

func (p *PostgreSQL) FindByID(ctx context.Context, id string) (models.WordPair, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+pairColumns+` FROM word_pairs WHERE id = $1`, id)
	return notFound(scanPair(row))
}

func (p *PostgreSQL) FindByWords(ctx context.Context, wordA, wordB string) (models.WordPair, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+pairColumns+` FROM word_pairs WHERE word_a = $1 AND word_b = $2`, wordA, wordB)
	return notFound(scanPair(row))
}

func (p *PostgreSQL) Create(ctx context.Context, input models.WordPairInput) (models.WordPair, error) {
	return p.insert(ctx, p.db, input)
}

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (p *PostgreSQL) insert(ctx context.Context, q execQuerier, input models.WordPairInput) (models.WordPair, error) {
	query := `
        INSERT INTO word_pairs (id, word_a, word_b, enabled, created_at, updated_at)
        VALUES ($1, $2, $3, true, $4, $4)
        RETURNING ` + pairColumns

	pair, err := scanPair(q.QueryRowContext(ctx, query, uuid.NewString(), input.WordA, input.WordB, time.Now()))
	if isUniqueViolation(err) {
		return models.WordPair{}, ErrDuplicate
	}
	return pair, err
}

// CreateMany inserts all inputs in one transaction.
func (p *PostgreSQL) CreateMany(ctx context.Context, inputs []models.WordPairInput) ([]models.WordPair, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	out := make([]models.WordPair, 0, len(inputs))
	for _, input := range inputs {
		pair, err := p.insert(ctx, tx, input)
		if err != nil {
			return nil, err
		}
		out = append(out, pair)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgreSQL) Update(ctx context.Context, id string, update models.WordPairUpdate) (models.WordPair, error) {
	query := `
        UPDATE word_pairs SET
            word_a = COALESCE($2, word_a),
            word_b = COALESCE($3, word_b),
            enabled = COALESCE($4, enabled),
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1
        RETURNING ` + pairColumns

	pair, err := scanPair(p.db.QueryRowContext(ctx, query, id,
		nullString(update.WordA), nullString(update.WordB), nullBool(update.Enabled)))
	if isUniqueViolation(err) {
		return models.WordPair{}, ErrDuplicate
	}
	return notFound(pair, err)
}

func (p *PostgreSQL) Delete(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM word_pairs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *PostgreSQL) Count(ctx context.Context) (int64, error) {
	var n int64
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM word_pairs`).Scan(&n)
	return n, err
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}

func notFound(pair models.WordPair, err error) (models.WordPair, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return models.WordPair{}, ErrRecordNotFound
	}
	return pair, err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}
