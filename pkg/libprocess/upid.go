package libprocess

import (
	"fmt"
	"regexp"

	"github.com/go-delve/lpdbg/pkg/proc"
)

// UPIDType is the type tag of process identities.
const UPIDType = "process::UPID"

// upidPattern matches process::UPID and process::PID<T>, the typed
// identities derived from it.
var upidPattern = regexp.MustCompile(`^process::(UPID|PID<.*>)$`)

func isUPID(tag string) bool {
	return upidPattern.MatchString(tag)
}

// UPIDPrinter prints a process::UPID (or process::PID<T>).
type UPIDPrinter struct {
	v    *proc.Variable
	opts *Options
}

// NewUPIDPrinter returns a printer for the process identity v.
func NewUPIDPrinter(v *proc.Variable, opts *Options) *UPIDPrinter {
	return &UPIDPrinter{v: v, opts: opts}
}

// String returns the identity of the process. Currently the same as
// BriefString, Long also includes the address.
func (p *UPIDPrinter) String() (string, error) {
	return p.BriefString()
}

// BriefString returns the id of the process, for example
// "__gc__@127.0.0.1:5050" is printed as "__gc__".
func (p *UPIDPrinter) BriefString() (string, error) {
	// UPID::id is a UPID::ID holding a std::shared_ptr<std::string>.
	id, err := p.v.Field("id")
	if err != nil {
		return "", err
	}
	sp, err := id.Field("id")
	if err != nil {
		return "", err
	}
	ptr, err := sp.Field("_M_ptr")
	if err != nil {
		return "", err
	}
	s, complete, err := ReadString(ptr, p.opts.maxStringLen())
	if err != nil {
		return "", err
	}
	if !complete {
		s += "..."
	}
	return s, nil
}

// Long returns the identity followed by the network address of the
// process, "id@ip:port". If the address can not be read only the id is
// returned.
func (p *UPIDPrinter) Long() (string, error) {
	id, err := p.BriefString()
	if err != nil {
		return "", err
	}
	addr, err := p.address()
	if err != nil {
		return id, nil
	}
	return id + "@" + addr, nil
}

func (p *UPIDPrinter) address() (string, error) {
	address, err := p.v.Field("address")
	if err != nil {
		return "", err
	}
	ipVar, err := address.Field("ip")
	if err != nil {
		return "", err
	}
	portVar, err := address.Field("port")
	if err != nil {
		return "", err
	}
	// The address is stored in network byte order.
	ip, err := ipVar.ReadBytes(4)
	if err != nil {
		return "", err
	}
	port, err := portVar.AsUint()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d.%d.%d.%d:%d", ip[0], ip[1], ip[2], ip[3], port), nil
}
