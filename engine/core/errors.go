package core

import (
	"errors"
)

var (
	// ErrSwapchainBooting asks the caller to skip the current frame while the
	// swapchain is rebuilt.
	ErrSwapchainBooting = errors.New("swapchain resized or recreated, booting")
	// ErrFrameSkipped marks a failure local to one frame; the next tick retries.
	ErrFrameSkipped = errors.New("frame skipped")
	ErrDeviceLost   = errors.New("graphics device lost")
	ErrUnknown      = errors.New("unknown")
)
