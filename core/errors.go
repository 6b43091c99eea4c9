package core

import "errors"

var (
	ErrEmptyLogLocation = errors.New("log location is empty")
	ErrInvalidLogName   = errors.New("invalid log file name")
)
