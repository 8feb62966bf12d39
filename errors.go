package pagestore_go

import "errors"

var (
	ErrDirPathEmpty     = errors.New("storage dir path is empty")
	ErrFlushSizeInvalid = errors.New("flush size must be greater than 0")
	ErrStorageIO        = errors.New("storage i/o failure")
	ErrIllegalState     = errors.New("writer is in an illegal state")
	ErrNilPage          = errors.New("page reference has no in-memory page")
	ErrPageKeyUnset     = errors.New("page reference has not been persisted")
)
