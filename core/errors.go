// Copyright (c) 2026 fathom3d
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import "errors"

var (
	// ErrOutOfDate reports that the presentation surface no longer
	// matches the swapchain. Controllers recover from it once; a
	// repeat failure becomes ErrRetryExhausted.
	ErrOutOfDate = errors.New("core: surface out of date")

	// ErrRetryExhausted reports that a swapchain rebuild did not fix
	// an out-of-date surface within the configured retry bound.
	ErrRetryExhausted = errors.New("core: swapchain rebuild retries exhausted")

	// ErrFenceTimeout reports that a fence wait exceeded its timeout.
	ErrFenceTimeout = errors.New("core: fence wait timed out")

	// ErrDeviceLost is fatal. A fence that never signals means the
	// device is gone; retrying cannot succeed.
	ErrDeviceLost = errors.New("core: device lost")
)
