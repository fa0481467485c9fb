package attendance

import "errors"

var ErrInvalidRange = errors.New("attendance range end must be after start")
