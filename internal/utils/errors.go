package utils

import "errors"

var ErrInvalidFile = errors.New("invalid file")
