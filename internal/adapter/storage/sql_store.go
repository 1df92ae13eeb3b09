package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/rl1809/shop-order/internal/port"
)

type Dialect string

const (
	DialectMySQL  Dialect = "mysql"
	DialectSQLite Dialect = "sqlite"
)

// timestamps are written as fixed-width UTC text, which both MySQL DATETIME(6)
// and SQLite TEXT columns accept and sort correctly
const timeLayout = "2006-01-02 15:04:05.000000"

// querier is implemented by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements port.Store on database/sql. All queries use only
// portable SQL so the same code serves MySQL and SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

var _ port.Store = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Products() port.ProductRepository {
	return repositories{q: s.db}.Products()
}

func (s *SQLStore) Members() port.MemberRepository {
	return repositories{q: s.db}.Members()
}

func (s *SQLStore) Orders() port.OrderRepository {
	return repositories{q: s.db}.Orders()
}

func (s *SQLStore) Images() port.ImageRepository {
	return repositories{q: s.db}.Images()
}

func (s *SQLStore) Execute(ctx context.Context, fn func(repos port.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(repositories{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

type repositories struct {
	q querier
}

func (r repositories) Products() port.ProductRepository {
	return &productRepository{q: r.q}
}

func (r repositories) Members() port.MemberRepository {
	return &memberRepository{q: r.q}
}

func (r repositories) Orders() port.OrderRepository {
	return &orderRepository{q: r.q}
}

func (r repositories) Images() port.ImageRepository {
	return &imageRepository{q: r.q}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// dbTime scans DATETIME values from MySQL (time.Time or bytes, depending on
// parseTime) and TEXT values from SQLite.
type dbTime struct {
	t time.Time
}

func (d *dbTime) Scan(value any) error {
	switch v := value.(type) {
	case time.Time:
		d.t = v.UTC()
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	case nil:
		d.t = time.Time{}
		return nil
	}
	return errors.Errorf("unsupported time value %T", value)
}

func (d *dbTime) parse(s string) error {
	for _, layout := range []string{timeLayout, "2006-01-02 15:04:05", time.RFC3339Nano} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			d.t = t
			return nil
		}
	}
	return errors.Errorf("unparseable time %q", s)
}
