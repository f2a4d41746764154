package inspection

import "errors"

var (
	ErrNotDirectory    = errors.New("not a directory")
	ErrArchiveDisabled = errors.New("image archive is not configured")
)
