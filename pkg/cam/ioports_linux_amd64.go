//go:build linux && amd64

package cam

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// inl and outl are implemented in ioports_linux_amd64.s
func inl(port uint16) uint32
func outl(port uint16, value uint32)

type ioRequest struct {
	port  uint16
	value uint32
	write bool
	reply chan uint32
}

// ioPorts issues real IN/OUT instructions. ioperm grants are per thread, so
// all instructions run on one goroutine locked to the thread holding the
// grant; callers talk to it over reqs.
type ioPorts struct {
	reqs chan ioRequest
	done chan struct{}
}

// OpenIOPorts requests access to the CAM port range and returns a Port for
// it. Requires CAP_SYS_RAWIO.
func OpenIOPorts() (Port, error) {
	p := &ioPorts{
		reqs: make(chan ioRequest),
		done: make(chan struct{}),
	}
	started := make(chan error, 1)
	go p.serve(started)
	if err := <-started; err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ioPorts) serve(started chan<- error) {
	defer close(p.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := unix.Ioperm(int(AddressPort), 8, 1); err != nil {
		started <- fmt.Errorf("ioperm %#x-%#x: %w", AddressPort, DataPort+3, err)
		return
	}
	started <- nil

	for req := range p.reqs {
		if req.write {
			outl(req.port, req.value)
			req.reply <- 0
			continue
		}
		req.reply <- inl(req.port)
	}
	_ = unix.Ioperm(int(AddressPort), 8, 0)
}

func (p *ioPorts) In32(port uint16) uint32 {
	reply := make(chan uint32, 1)
	p.reqs <- ioRequest{port: port, reply: reply}
	return <-reply
}

func (p *ioPorts) Out32(port uint16, value uint32) {
	reply := make(chan uint32, 1)
	p.reqs <- ioRequest{port: port, value: value, write: true, reply: reply}
	<-reply
}

// Close drops the I/O grant and stops the port goroutine
func (p *ioPorts) Close() error {
	close(p.reqs)
	<-p.done
	return nil
}
