package store

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteCache implements GeocodeCache using modernc.org/sqlite.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the cache database at the given path and
// configures WAL mode.
func NewSQLite(path string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteCache{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocache (
	lat_round    TEXT NOT NULL,
	lon_round    TEXT NOT NULL,
	street       TEXT,
	raw_response TEXT,
	PRIMARY KEY (lat_round, lon_round)
);
`

func (s *SQLiteCache) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteCache) Close() error {
	return s.db.Close()
}

func (s *SQLiteCache) Get(ctx context.Context, key CacheKey) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT street, raw_response FROM geocache WHERE lat_round = ? AND lon_round = ?`,
		key.Lat, key.Lon,
	)

	var street sql.NullString
	var raw sql.NullString
	err := row.Scan(&street, &raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get entry")
	}

	e := &Entry{Key: key, RawResponse: raw.String}
	if street.Valid {
		e.Street = &street.String
	}
	return e, nil
}

func (s *SQLiteCache) Put(ctx context.Context, entry Entry) error {
	var street any
	if entry.Street != nil {
		street = *entry.Street
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO geocache (lat_round, lon_round, street, raw_response)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (lat_round, lon_round) DO UPDATE SET
			street = excluded.street,
			raw_response = excluded.raw_response`,
		entry.Key.Lat, entry.Key.Lon, street, entry.truncated(),
	)
	return eris.Wrap(err, "sqlite: put entry")
}

func (s *SQLiteCache) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM geocache`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count entries")
}

func (s *SQLiteCache) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM geocache`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: clear entries")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}
