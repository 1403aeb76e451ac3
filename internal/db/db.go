package db

import (
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// Both option sets configure SQLite for this app:
	// - WAL mode so that reads and writes don't block each other.
	// - A busy timeout, the duration a connection waits for a lock.
	// - Enforced foreign keys.
	// Writes additionally use immediate transactions to prevent lock upgrades.
	writeOptions = "?_foreign_keys=on&_journal_mode=wal&_busy_timeout=5000&_txlock=immediate"
	readOptions  = "?_foreign_keys=on&_journal_mode=wal&_busy_timeout=5000&_query_only=true"
)

// OpenSQLite opens a pool of SQLite connections. Different settings
// are appropriate for reading and writing, so this function needs to know
// what the sql.DB will be used for.
//
// See this comment for more information:
// https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995
func OpenSQLite(dbFile string, write bool) (*sql.DB, error) {
	optsPostfix := readOptions
	if write {
		optsPostfix = writeOptions
	}

	db, err := sql.Open("sqlite3", dbFile+optsPostfix)
	if err != nil {
		return nil, err
	}

	if write {
		// a single connection serializes all writes.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		// never recycle it, an in-memory database lives as long as its connection.
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}

	return db, nil
}

// Pool holds separate pools for reading and writing the same SQLite file.
type Pool struct {
	Write *sql.DB
	Read  *sql.DB
}

// OpenPool opens a write and a read pool for dbFile.
func OpenPool(dbFile string) (*Pool, error) {
	w, err := OpenSQLite(dbFile, true)
	if err != nil {
		return nil, err
	}

	r, err := OpenSQLite(dbFile, false)
	if err != nil {
		return nil, errors.Join(err, w.Close())
	}

	return &Pool{Write: w, Read: r}, nil
}

// Close closes both pools.
func (p *Pool) Close() error {
	return errors.Join(p.Write.Close(), p.Read.Close())
}
