//go:build !linux || !amd64

package cam

// OpenIOPorts is only available on linux/amd64
func OpenIOPorts() (Port, error) {
	return nil, ErrPortIONotSupported
}
