package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"whispr/internal/observability"
)

// Options selects and configures a driver for Open.
type Options struct {
	Driver     string // file, redis, sql, badger, memory
	Dir        string
	RedisURL   string
	SQLDialect string
	SQLDSN     string
	BadgerDir  string
	Logger     *observability.Logger
}

// Open returns the Store named by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		store Store
		err   error
	)
	switch opts.Driver {
	case "memory":
		store = NewMemoryStore()
	case "file", "":
		var fs *FileStore
		if fs, err = NewFileStore(opts.Dir, opts.Logger); err == nil {
			store = fs
		}
	case "redis":
		var rs *RedisStore
		if rs, err = DialRedis(ctx, opts.RedisURL, opts.Logger); err == nil {
			store = rs
		}
	case "sql":
		var ss *SQLStore
		if ss, err = OpenSQL(opts.SQLDialect, opts.SQLDSN, opts.Logger); err == nil {
			store = ss
		}
	case "badger":
		dir := opts.BadgerDir
		if dir == "" && opts.Dir != "" {
			dir = filepath.Join(opts.Dir, "badger")
		}
		var bs *BadgerStore
		if bs, err = OpenBadger(BadgerConfig{Path: dir, Logger: opts.Logger}); err == nil {
			store = bs
		}
	default:
		err = fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
