package device

import "fmt"

// DeviceError reports a device binding or selection failure. These are
// unrecoverable: either the configuration names a device that does not exist,
// or the driver itself is unhealthy.
type DeviceError struct {
	Device DeviceID
	Op     string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: %s: %v", e.Device, e.Op, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// CapabilityQueryError reports a failed device attribute query. Capability is
// load-bearing for flag gating and has no safe default, so construction fails
// when it cannot be determined.
type CapabilityQueryError struct {
	Device DeviceID
	Attr   Attr
	Err    error
}

func (e *CapabilityQueryError) Error() string {
	return fmt.Sprintf("device %s: query %s: %v", e.Device, e.Attr, e.Err)
}

func (e *CapabilityQueryError) Unwrap() error { return e.Err }

// UnsupportedFeatureError reports an attempt to enable an execution mode the
// device's hardware capability does not support.
type UnsupportedFeatureError struct {
	Device        DeviceID
	Feature       string
	RequiredMajor int
	Actual        Capability
}

func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("device %s: %s requires compute capability %d.x or newer, device has %s",
		e.Device, e.Feature, e.RequiredMajor, e.Actual)
}

// ResourceCreationError reports a failed library context creation or device
// memory allocation.
type ResourceCreationError struct {
	Device   DeviceID
	Resource string
	Err      error
}

func (e *ResourceCreationError) Error() string {
	return fmt.Sprintf("device %s: create %s: %v", e.Device, e.Resource, e.Err)
}

func (e *ResourceCreationError) Unwrap() error { return e.Err }

// SynchronizationError reports a fault surfaced while waiting on an execution
// stream. Device state cannot be trusted afterwards.
type SynchronizationError struct {
	Device DeviceID
	Err    error
}

func (e *SynchronizationError) Error() string {
	return fmt.Sprintf("device %s: stream synchronize: %v", e.Device, e.Err)
}

func (e *SynchronizationError) Unwrap() error { return e.Err }
