package classifier

import "errors"

var (
	ErrClassifyFailed = errors.New("classification failed")
	ErrImageTooLarge  = errors.New("image exceeds maximum size")
)
