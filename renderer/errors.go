package renderer

import "errors"

var (
	ErrNoGrid           = errors.New("renderer: no occupancy grid supplied")
	ErrNoRequest        = errors.New("renderer: no request supplied")
	ErrNoOutput         = errors.New("renderer: request defines no output framebuffer")
	ErrNoField          = errors.New("renderer: request defines no radiance field")
	ErrBadFrameDims     = errors.New("renderer: framebuffer does not match the request camera dimensions")
	ErrUnknownPattern   = errors.New("renderer: unknown render pattern")
	ErrControllerClosed = errors.New("renderer: controller is closed")
)
