package vm

import (
	"errors"
	"fmt"
	"strings"
)

// UnitKind says what a compiled unit implements.
type UnitKind uint8

const (
	MethodUnit UnitKind = iota
	BlockUnit
	ScriptUnit
)

func (k UnitKind) String() string {
	switch k {
	case MethodUnit:
		return "method"
	case BlockUnit:
		return "block"
	case ScriptUnit:
		return "script"
	}
	return "unknown"
}

// Arity describes the parameters of a unit.
type Arity struct {
	Required int
	Optional int
	Rest     bool
	Post     int
}

// Accepts reports whether n positional arguments are allowed.
func (a Arity) Accepts(n int) bool {
	min := a.Required + a.Post
	if n < min {
		return false
	}
	return a.Rest || n <= min+a.Optional
}

// Expected renders the accepted argument count for error messages.
func (a Arity) Expected() string {
	min := a.Required + a.Post
	switch {
	case a.Rest:
		return fmt.Sprintf("%d+", min)
	case a.Optional > 0:
		return fmt.Sprintf("%d..%d", min, min+a.Optional)
	}
	return fmt.Sprint(min)
}

// Value returns the arity as a single integer: the required count, or
// its negated successor when extra arguments are allowed.
func (a Arity) Value() int {
	min := a.Required + a.Post
	if a.Rest || a.Optional > 0 {
		return -(min + 1)
	}
	return min
}

// RescueRange covers instructions [Start, End). A fault inside the range
// resumes at Target. Ensure ranges also intercept breaks and non-local
// returns.
type RescueRange struct {
	Start  int
	End    int
	Target int
	Ensure bool
}

// CompiledUnit is an immutable instruction sequence with its metadata: a
// method body, block body or top-level script. Units are shared between
// threads once finalized.
type CompiledUnit struct {
	Name  string
	Kind  UnitKind
	File  string
	Scope *StaticScope

	Instrs  []Instr
	Temps   [NumBanks]int
	Rescues []RescueRange
	Arity   Arity

	PushNewDynScope     bool
	ReuseParentDynScope bool
	AcceptsKeywords     bool

	// rescuePCs[ipc] is the handler for a fault at ipc, or -1.
	rescuePCs []int
	// ensurePCs[ipc] is the handler for a control transfer at ipc, or -1.
	ensurePCs []int

	finalized bool
}

// MaxTemps bounds the temps a unit may declare in one bank.
const MaxTemps = 1 << 16

// ErrOverlappingRescue reports two rescue ranges that neither nest nor are
// disjoint.
var ErrOverlappingRescue = errors.New("rescue ranges overlap")

// NewCompiledUnit assembles and finalizes a unit.
func NewCompiledUnit(name string, kind UnitKind, scope *StaticScope, instrs []Instr, temps [NumBanks]int, rescues []RescueRange) (*CompiledUnit, error) {
	u := &CompiledUnit{
		Name:    name,
		Kind:    kind,
		Scope:   scope,
		Instrs:  instrs,
		Temps:   temps,
		Rescues: rescues,
	}
	if err := u.Finalize(); err != nil {
		return nil, err
	}
	return u, nil
}

// Finalized reports whether Finalize has succeeded.
func (u *CompiledUnit) Finalized() bool { return u.finalized }

// Finalize validates the unit and precomputes its rescue tables. It must
// be called once before the unit is interpreted.
func (u *CompiledUnit) Finalize() error {
	if u.finalized {
		return nil
	}
	if u.Scope == nil {
		return fmt.Errorf("unit %s: missing static scope", u.Name)
	}
	for bank, k := range u.Temps {
		if k < 0 || k > MaxTemps {
			return fmt.Errorf("unit %s: %d temps in %s bank", u.Name, k, Bank(bank))
		}
	}
	n := len(u.Instrs)
	for ipc, instr := range u.Instrs {
		if err := u.validateInstr(ipc, instr); err != nil {
			return fmt.Errorf("unit %s: %w", u.Name, err)
		}
	}
	for i, r := range u.Rescues {
		if r.Start < 0 || r.End > n || r.Start >= r.End {
			return fmt.Errorf("unit %s: rescue range %d [%d,%d) out of bounds", u.Name, i, r.Start, r.End)
		}
		if r.Target < 0 || r.Target >= n {
			return fmt.Errorf("unit %s: rescue range %d targets %d outside the unit", u.Name, i, r.Target)
		}
		for j := 0; j < i; j++ {
			o := u.Rescues[j]
			disjoint := r.End <= o.Start || o.End <= r.Start
			nested := (r.Start >= o.Start && r.End <= o.End) || (o.Start >= r.Start && o.End <= r.End)
			if !disjoint && !nested {
				return fmt.Errorf("unit %s: ranges %d and %d: %w", u.Name, j, i, ErrOverlappingRescue)
			}
		}
	}
	u.rescuePCs = buildRescueTable(n, u.Rescues, false)
	u.ensurePCs = buildRescueTable(n, u.Rescues, true)
	u.finalized = true
	return nil
}

func (u *CompiledUnit) validateInstr(ipc int, instr Instr) error {
	if instr == nil {
		return fmt.Errorf("instruction %d is nil", ipc)
	}
	check := func(op Operand) error {
		switch t := op.(type) {
		case Temp:
			if t.Bank >= NumBanks || t.Index < 0 || t.Index >= u.Temps[t.Bank] {
				return fmt.Errorf("instruction %d (%s): temp %s outside bank of %d", ipc, instr, t, u.Temps[t.Bank%NumBanks])
			}
		case Local:
			if !u.hasLocal(t) {
				return fmt.Errorf("instruction %d (%s): local %s outside its scope", ipc, instr, t)
			}
		}
		return nil
	}
	for _, in := range instr.Inputs() {
		if in == nil {
			return fmt.Errorf("instruction %d (%s): nil operand", ipc, instr.Op())
		}
		if err := check(in); err != nil {
			return err
		}
	}
	if out := instr.Output(); out != nil {
		if err := check(out); err != nil {
			return err
		}
	}
	switch instr.Op().Class() {
	case IntOp, FloatOp:
		if _, ok := instr.(*AluInstr); !ok {
			return fmt.Errorf("instruction %d: %s must be an ALU instruction", ipc, instr.Op())
		}
	case RetOp:
		if _, ok := instr.(*ReturnInstr); !ok {
			return fmt.Errorf("instruction %d: %s must be a return instruction", ipc, instr.Op())
		}
	}
	switch x := instr.(type) {
	case *JumpInstr:
		if x.Target < 0 || x.Target >= len(u.Instrs) {
			return fmt.Errorf("instruction %d: jump target %d outside the unit", ipc, x.Target)
		}
	case *BranchInstr:
		if x.Target < 0 || x.Target >= len(u.Instrs) {
			return fmt.Errorf("instruction %d: branch target %d outside the unit", ipc, x.Target)
		}
		if (x.op == BEQ || x.op == BNE) != (x.Arg2 != nil) {
			return fmt.Errorf("instruction %d: %s has wrong operand count", ipc, x.op)
		}
	case *AluInstr:
		if c := x.op.Class(); c != IntOp && c != FloatOp {
			return fmt.Errorf("instruction %d: %s is not an ALU operation", ipc, x.op)
		}
	case *BuildClosureInstr:
		if x.Body == nil {
			return fmt.Errorf("instruction %d: closure without a body", ipc)
		}
		if err := x.Body.Finalize(); err != nil {
			return err
		}
	}
	return nil
}

// hasLocal reports whether l names a slot of the static scope chain the
// unit's locals resolve against. A block without a scope of its own reads
// its parent's.
func (u *CompiledUnit) hasLocal(l Local) bool {
	if l.Depth < 0 || l.Index < 0 {
		return false
	}
	s := u.Scope
	if u.Kind == BlockUnit && !u.PushNewDynScope {
		s = s.Parent
	}
	for d := 0; d < l.Depth && s != nil; d++ {
		s = s.Parent
	}
	return s != nil && l.Index < s.NumVariables()
}

// RescuePC returns the handler for a fault at ipc, or -1 when the fault
// propagates to the caller.
func (u *CompiledUnit) RescuePC(ipc int) int {
	if ipc < 0 || ipc >= len(u.rescuePCs) {
		return -1
	}
	return u.rescuePCs[ipc]
}

// EnsurePC returns the ensure handler covering ipc, or -1.
func (u *CompiledUnit) EnsurePC(ipc int) int {
	if ipc < 0 || ipc >= len(u.ensurePCs) {
		return -1
	}
	return u.ensurePCs[ipc]
}

// Disassemble renders the unit one instruction per line, with rescue
// ranges and nested closure bodies.
func (u *CompiledUnit) Disassemble() string {
	var sb strings.Builder
	u.disassemble(&sb, "")
	return sb.String()
}

func (u *CompiledUnit) disassemble(sb *strings.Builder, indent string) {
	fmt.Fprintf(sb, "%s%s %s (temps obj=%d fix=%d flo=%d bool=%d)\n", indent, u.Kind, u.Name,
		u.Temps[ObjectBank], u.Temps[FixnumBank], u.Temps[FloatBank], u.Temps[BooleanBank])
	for ipc, instr := range u.Instrs {
		fmt.Fprintf(sb, "%s  %4d  %s\n", indent, ipc, instr)
	}
	for _, r := range u.Rescues {
		kind := "rescue"
		if r.Ensure {
			kind = "ensure"
		}
		fmt.Fprintf(sb, "%s  %s [%d, %d) -> %d\n", indent, kind, r.Start, r.End, r.Target)
	}
	for _, instr := range u.Instrs {
		if bc, ok := instr.(*BuildClosureInstr); ok {
			bc.Body.disassemble(sb, indent+"  ")
		}
	}
}
