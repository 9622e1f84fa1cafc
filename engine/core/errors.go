package core

import (
	"errors"
)

var (
	ErrSwapchainBooting   = errors.New("swapchain resized or recreated, booting")
	ErrNoSuitableDevice   = errors.New("cannot find a suitable device")
	ErrInvalidPresentMode = errors.New("invalid present mode")
	ErrSceneIndexRange    = errors.New("scene index is too large")
	ErrInvalidRenderer    = errors.New("invalid renderer type")
	ErrInvalidDimensions  = errors.New("invalid window dimensions")
	ErrFatal              = errors.New("fatal renderer error")
	ErrAccelBuild         = errors.New("acceleration structure build failed")
	ErrShaderBindingTable = errors.New("shader binding table construction failed")
	ErrUnknown            = errors.New("unknown")
)
