package sim

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"vmcore/kernel"
	"vmcore/kernel/mm/vmm"
	"vmcore/kernel/trap"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
)

const defaultFrames = 64

var (
	// ErrUnexpectedResult is returned when an op does not produce the
	// result the scenario expects.
	ErrUnexpectedResult = errors.New("unexpected result")

	// ErrUnknownOp is returned for ops with an unsupported kind.
	ErrUnknownOp = errors.New("unknown op")
)

// Addr is a 64-bit address in a scenario file. It accepts TOML integers as
// well as strings so that addresses above the signed 64-bit range, such as
// kernel half addresses, can be written as "0xffff800000000000".
type Addr uint64

// UnmarshalTOML implements toml.Unmarshaler.
func (a *Addr) UnmarshalTOML(value interface{}) error {
	switch v := value.(type) {
	case int64:
		*a = Addr(v)
	case string:
		parsed, err := strconv.ParseUint(strings.ReplaceAll(v, "_", ""), 0, 64)
		if err != nil {
			return fmt.Errorf("invalid address %q: %w", v, err)
		}
		*a = Addr(parsed)
	default:
		return fmt.Errorf("invalid address %v: expected an integer or a string", value)
	}
	return nil
}

// GuardConfig describes the stack guard region used by the trap reporter.
type GuardConfig struct {
	Start Addr `toml:"start"`
	End   Addr `toml:"end"`
}

// Op is a single scenario step.
type Op struct {
	// Kind is one of map, unmap, get, mark_user, protection, flush,
	// access, trap or sse_panic.
	Kind string `toml:"kind"`

	Virt Addr `toml:"virt"`
	Phys Addr `toml:"phys"`

	// Expect, if set, is compared against the address returned by get,
	// unmap and access.
	Expect *Addr `toml:"expect"`

	// Class, if set, is compared against the protection class reported
	// by protection ("none", "kernel" or "kernel+user").
	Class string `toml:"class"`

	// User and Write describe the access performed by access. Fault
	// marks the access as expected to fault; unexpected faults are
	// reported as page faults and halt the machine.
	User  bool `toml:"user"`
	Write bool `toml:"write"`
	Fault bool `toml:"fault"`

	// Trap state used by trap ops and by faulting accesses.
	Number    Addr `toml:"number"`
	ErrorCode Addr `toml:"error_code"`
	RIP       Addr `toml:"rip"`
	RFlags    Addr `toml:"rflags"`
	FaultAddr Addr `toml:"fault_addr"`
}

// Scenario is a sequence of ops executed against a fresh machine.
type Scenario struct {
	Frames     int         `toml:"frames"`
	StackGuard GuardConfig `toml:"stack_guard"`
	Ops        []Op        `toml:"op"`
}

// LoadScenario decodes the scenario stored at path. Unknown keys are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	var sc Scenario

	md, err := toml.DecodeFile(path, &sc)
	if err != nil {
		return nil, fmt.Errorf("failed to load scenario %q: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) != 0 {
		return nil, fmt.Errorf("scenario %q contains unknown keys: %v", path, undecoded)
	}

	if sc.Frames == 0 {
		sc.Frames = defaultFrames
	}

	return &sc, nil
}

// Result describes the outcome of one op.
type Result struct {
	Index int
	Kind  string
	Virt  uintptr

	// Value holds the address returned by get, unmap or access.
	Value uintptr

	// Class and Mapped hold the protection reported for the op's address
	// after map, mark_user and protection ops.
	Class  vmm.ProtectionClass
	Mapped bool

	// Err holds the fault raised by an access that was expected to fault.
	Err error
}

// Run executes the ops of sc against m, reporting traps through rep. Run
// stops at the first op that fails or does not meet its expectation. Once
// rep has halted, further ops fail with ErrHalted.
func Run(sc *Scenario, m *Machine, rep *trap.Reporter) ([]Result, error) {
	if sc.StackGuard.End != 0 {
		rep.Guard = trap.GuardRegion{Start: uintptr(sc.StackGuard.Start), End: uintptr(sc.StackGuard.End)}
	}

	results := make([]Result, 0, len(sc.Ops))
	for index, op := range sc.Ops {
		if rep.State() == trap.StateHalted {
			return results, fmt.Errorf("op %d (%s): %w", index, op.Kind, ErrHalted)
		}

		res, err := m.exec(op, rep)
		res.Index, res.Kind, res.Virt = index, op.Kind, uintptr(op.Virt)
		results = append(results, res)

		log := m.log.WithFields(logrus.Fields{
			"op":   index,
			"kind": op.Kind,
			"virt": hexAddr(res.Virt),
		})

		if err != nil {
			log.WithError(err).Error("op failed")
			return results, fmt.Errorf("op %d (%s): %w", index, op.Kind, err)
		}

		log.WithFields(logrus.Fields{
			"value": hexAddr(res.Value),
			"class": res.Class.String(),
		}).Info("op completed")
	}

	return results, nil
}

func (m *Machine) exec(op Op, rep *trap.Reporter) (Result, error) {
	var (
		res  Result
		virt = uintptr(op.Virt)
		tr   = m.translator
	)

	switch op.Kind {
	case "map":
		if err := tr.Map(m.AllocFrame, virt, uintptr(op.Phys)); err != nil {
			return res, err
		}
		res.Class, res.Mapped = tr.Protection(virt)
	case "unmap":
		res.Value = tr.Unmap(virt)
		return res, checkExpect(op, res.Value)
	case "get":
		res.Value = tr.Get(virt)
		return res, checkExpect(op, res.Value)
	case "mark_user":
		tr.MarkUser(virt)
		res.Class, res.Mapped = tr.Protection(virt)
	case "protection":
		res.Class, res.Mapped = tr.Protection(virt)
		return res, checkClass(op, res.Class, res.Mapped)
	case "flush":
		m.FlushTLBEntry(virt)
	case "access":
		return m.access(op, rep)
	case "trap":
		frame := &trap.Frame{
			RIP:        uint64(op.RIP),
			RFlags:     uint64(op.RFlags),
			TrapNumber: uint64(op.Number),
			ErrorCode:  uint64(op.ErrorCode),
		}
		rep.Report(trap.Info{
			Number:    uint64(op.Number),
			ErrorCode: uint64(op.ErrorCode),
			RIP:       uint64(op.RIP),
			RFlags:    uint64(op.RFlags),
			FaultAddr: uint64(op.FaultAddr),
		}, frame)
	case "sse_panic":
		rep.ReportSSEPanic()
	default:
		return res, ErrUnknownOp
	}

	return res, nil
}

// access emulates a data access. Faults that the op does not expect are
// delivered to rep as page faults.
func (m *Machine) access(op Op, rep *trap.Reporter) (Result, error) {
	var (
		res  Result
		virt = uintptr(op.Virt)
	)

	phys, err := m.Translate(virt, op.User)
	switch {
	case err != nil && op.Fault:
		res.Err = err
		return res, nil
	case err != nil:
		rep.Report(trap.Info{
			Number:    uint64(trap.PageFaultException),
			ErrorCode: pageFaultCode(err, op),
			RIP:       uint64(op.RIP),
			RFlags:    uint64(op.RFlags),
			FaultAddr: uint64(virt),
		}, &trap.Frame{RIP: uint64(op.RIP), RFlags: uint64(op.RFlags)})
		return res, err
	case op.Fault:
		res.Value = phys
		return res, fmt.Errorf("expected access to fault; got 0x%x: %w", phys, ErrUnexpectedResult)
	}

	res.Value = phys
	return res, checkExpect(op, phys)
}

// pageFaultCode builds the error code the CPU pushes for a faulting access.
func pageFaultCode(err *kernel.Error, op Op) uint64 {
	var code uint64
	if err == ErrProtectionFault {
		code |= 1
	}
	if op.Write {
		code |= 2
	}
	if op.User {
		code |= 4
	}
	return code
}

func checkExpect(op Op, got uintptr) error {
	if op.Expect == nil || uintptr(*op.Expect) == got {
		return nil
	}
	return fmt.Errorf("expected 0x%x; got 0x%x: %w", uint64(*op.Expect), got, ErrUnexpectedResult)
}

func checkClass(op Op, class vmm.ProtectionClass, mapped bool) error {
	if op.Class == "" {
		return nil
	}

	got := "none"
	if mapped {
		got = class.String()
	}

	if got != op.Class {
		return fmt.Errorf("expected protection %q; got %q: %w", op.Class, got, ErrUnexpectedResult)
	}
	return nil
}
