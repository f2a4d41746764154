package database

import "errors"

// ErrUnsupportedDriver indicates a driver name other than sqlite3 or pgx.
var ErrUnsupportedDriver = errors.New("unsupported database driver")
