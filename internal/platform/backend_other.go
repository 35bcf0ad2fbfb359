//go:build !linux

package platform

// Open reports ErrUnsupported; window commands then fail with a window error.
func Open(display string) (Backend, func(), error) {
	return nil, nil, ErrUnsupported
}
