// Package wire encodes compiled units, whole programs and runtime values as
// canonical CBOR.
//
// Instructions travel as an operation mnemonic plus a small fixed set of
// fields whose meaning depends on the operation. Block bodies are encoded
// inline under the BUILD_CLOSURE that creates them, so a block's static
// scope parent is always the unit it is nested in. Call sites are rebuilt
// empty on decode.
package wire

import (
	"errors"
	"fmt"
	"os"

	"github.com/chazu/garnet/vm"
	"github.com/fxamacker/cbor/v2"
)

// FormatVersion is bumped whenever the encoding of units changes.
const FormatVersion = 1

const fileMagic = "garnet-ir"

// ErrVersion reports a program written by an incompatible encoder.
var ErrVersion = errors.New("wire: unsupported format version")

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Marshal encodes v with the canonical encoding mode used for every wire
// type.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

// Operand is the wire form of a vm.Operand. Kind selects which of the other
// fields are meaningful.
type Operand struct {
	Kind  string  `cbor:"k"`
	Int   int64   `cbor:"i,omitempty"`
	Float float64 `cbor:"f,omitempty"`
	Bool  bool    `cbor:"b,omitempty"`
	Str   string  `cbor:"s,omitempty"`
	Bank  uint8   `cbor:"bk,omitempty"`
	Depth int     `cbor:"d,omitempty"`
	Index int     `cbor:"x,omitempty"`
}

// Instr is the wire form of a vm.Instr.
type Instr struct {
	Op      string    `cbor:"op"`
	Result  *Operand  `cbor:"r,omitempty"`
	Args    []Operand `cbor:"a,omitempty"`
	Closure *Operand  `cbor:"c,omitempty"`
	Name    string    `cbor:"n,omitempty"`
	Ints    []int     `cbor:"ix,omitempty"`
	Flags   uint32    `cbor:"fl,omitempty"`
	Bits    uint8     `cbor:"bt,omitempty"`
	Body    *Unit     `cbor:"body,omitempty"`
}

// Instr.Bits values.
const (
	bitLiteralClosure uint8 = 1 << iota
	bitSplat
	bitRest
	bitRequired
	bitMaybeLambda
	bitCoverage
	bitOneShot
)

// Scope is the wire form of a static scope without its parent.
type Scope struct {
	Type  uint8    `cbor:"type"`
	Names []string `cbor:"names,omitempty"`
}

// Arity mirrors vm.Arity.
type Arity struct {
	Required int  `cbor:"req,omitempty"`
	Optional int  `cbor:"opt,omitempty"`
	Rest     bool `cbor:"rest,omitempty"`
	Post     int  `cbor:"post,omitempty"`
}

// Rescue mirrors vm.RescueRange.
type Rescue struct {
	Start  int  `cbor:"start"`
	End    int  `cbor:"end"`
	Target int  `cbor:"target"`
	Ensure bool `cbor:"ensure,omitempty"`
}

// Unit is the wire form of a vm.CompiledUnit.
type Unit struct {
	Name    string           `cbor:"name"`
	Kind    uint8            `cbor:"kind"`
	File    string           `cbor:"file,omitempty"`
	Scope   Scope            `cbor:"scope"`
	Arity   Arity            `cbor:"arity"`
	Temps   [vm.NumBanks]int `cbor:"temps"`
	Rescues []Rescue         `cbor:"rescues,omitempty"`
	Instrs  []Instr          `cbor:"instrs"`
	Flags   map[string]bool  `cbor:"flags,omitempty"`
}

// Method is a unit installed on a class.
type Method struct {
	Name       string `cbor:"name"`
	Visibility uint8  `cbor:"vis,omitempty"`
	Unit       *Unit  `cbor:"unit"`
}

// ClassDef declares a class, or reopens an existing one, and its methods.
type ClassDef struct {
	Name       string   `cbor:"name"`
	Superclass string   `cbor:"super,omitempty"`
	Methods    []Method `cbor:"methods,omitempty"`
}

// Program is what a .gir file holds: class definitions to install, then a
// script to run.
type Program struct {
	Magic   string     `cbor:"magic"`
	Version int        `cbor:"version"`
	Classes []ClassDef `cbor:"classes,omitempty"`
	Main    *Unit      `cbor:"main"`
}

// ---------------------------------------------------------------------------
// Units
// ---------------------------------------------------------------------------

// EncodeUnit serializes a compiled unit and its nested block bodies.
func EncodeUnit(u *vm.CompiledUnit) ([]byte, error) {
	w, err := FromUnit(u)
	if err != nil {
		return nil, err
	}
	return encMode.Marshal(w)
}

// DecodeUnit deserializes and finalizes a compiled unit.
func DecodeUnit(data []byte) (*vm.CompiledUnit, error) {
	var w Unit
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("wire: unmarshal unit: %w", err)
	}
	return w.ToUnit(nil)
}

// FromUnit converts a compiled unit to its wire form.
func FromUnit(u *vm.CompiledUnit) (*Unit, error) {
	w := &Unit{
		Name:  u.Name,
		Kind:  uint8(u.Kind),
		File:  u.File,
		Arity: Arity(u.Arity),
		Temps: u.Temps,
	}
	if u.Scope != nil {
		w.Scope = Scope{Type: uint8(u.Scope.Type), Names: u.Scope.Names}
	}
	for _, r := range u.Rescues {
		w.Rescues = append(w.Rescues, Rescue(r))
	}
	flags := map[string]bool{
		"push_new_dyn_scope":     u.PushNewDynScope,
		"reuse_parent_dyn_scope": u.ReuseParentDynScope,
		"accepts_keywords":       u.AcceptsKeywords,
	}
	for k, v := range flags {
		if v {
			if w.Flags == nil {
				w.Flags = make(map[string]bool)
			}
			w.Flags[k] = true
		}
	}
	w.Instrs = make([]Instr, len(u.Instrs))
	for ipc, instr := range u.Instrs {
		wi, err := fromInstr(instr)
		if err != nil {
			return nil, fmt.Errorf("wire: unit %s instruction %d: %w", u.Name, ipc, err)
		}
		w.Instrs[ipc] = wi
	}
	return w, nil
}

// ToUnit rebuilds a finalized compiled unit. parent is the static scope of
// the enclosing unit for block bodies, nil otherwise.
func (w *Unit) ToUnit(parent *vm.StaticScope) (*vm.CompiledUnit, error) {
	scope := vm.NewStaticScope(vm.ScopeType(w.Scope.Type), parent, w.Scope.Names...)
	u := &vm.CompiledUnit{
		Name:                w.Name,
		Kind:                vm.UnitKind(w.Kind),
		File:                w.File,
		Scope:               scope,
		Temps:               w.Temps,
		Arity:               vm.Arity(w.Arity),
		PushNewDynScope:     w.Flags["push_new_dyn_scope"],
		ReuseParentDynScope: w.Flags["reuse_parent_dyn_scope"],
		AcceptsKeywords:     w.Flags["accepts_keywords"],
	}
	for _, r := range w.Rescues {
		u.Rescues = append(u.Rescues, vm.RescueRange(r))
	}
	u.Instrs = make([]vm.Instr, len(w.Instrs))
	for ipc := range w.Instrs {
		instr, err := w.Instrs[ipc].toInstr(scope)
		if err != nil {
			return nil, fmt.Errorf("wire: unit %s instruction %d: %w", w.Name, ipc, err)
		}
		u.Instrs[ipc] = instr
	}
	if err := u.Finalize(); err != nil {
		return nil, fmt.Errorf("wire: %w", err)
	}
	return u, nil
}

// ---------------------------------------------------------------------------
// Programs
// ---------------------------------------------------------------------------

// NewProgram wraps main with the current magic and version.
func NewProgram(main *vm.CompiledUnit, classes ...ClassDef) (*Program, error) {
	w, err := FromUnit(main)
	if err != nil {
		return nil, err
	}
	return &Program{Magic: fileMagic, Version: FormatVersion, Classes: classes, Main: w}, nil
}

// NewMethod converts a method body for inclusion in a ClassDef.
func NewMethod(name string, vis vm.Visibility, unit *vm.CompiledUnit) (Method, error) {
	w, err := FromUnit(unit)
	if err != nil {
		return Method{}, err
	}
	return Method{Name: name, Visibility: uint8(vis), Unit: w}, nil
}

// EncodeProgram serializes a program.
func EncodeProgram(p *Program) ([]byte, error) {
	return encMode.Marshal(p)
}

// DecodeProgram deserializes a program and checks its header.
func DecodeProgram(data []byte) (*Program, error) {
	var p Program
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("wire: unmarshal program: %w", err)
	}
	if p.Magic != fileMagic {
		return nil, fmt.Errorf("wire: not a garnet program (magic %q)", p.Magic)
	}
	if p.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, p.Version)
	}
	if err := p.check(); err != nil {
		return nil, err
	}
	return &p, nil
}

// check rejects programs missing a unit where one is required.
func (p *Program) check() error {
	if p.Main == nil {
		return errors.New("wire: program has no main unit")
	}
	for _, cd := range p.Classes {
		if cd.Name == "" {
			return errors.New("wire: class definition without a name")
		}
		for _, m := range cd.Methods {
			if m.Unit == nil {
				return fmt.Errorf("wire: %s#%s has no unit", cd.Name, m.Name)
			}
		}
	}
	return nil
}

// WriteFile encodes p into path.
func WriteFile(path string, p *Program) error {
	data, err := EncodeProgram(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadFile decodes the program stored at path.
func ReadFile(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeProgram(data)
}

// Install defines the program's classes and methods on rt and returns the
// decoded main unit.
func (p *Program) Install(rt *vm.Runtime) (*vm.CompiledUnit, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	for _, cd := range p.Classes {
		class := rt.Classes.Lookup(cd.Name)
		if class == nil {
			var super *vm.Class
			if cd.Superclass != "" {
				if super = rt.Classes.Lookup(cd.Superclass); super == nil {
					return nil, fmt.Errorf("wire: class %s: unknown superclass %s", cd.Name, cd.Superclass)
				}
			}
			class = rt.DefineClass(cd.Name, super)
		}
		for _, m := range cd.Methods {
			unit, err := m.Unit.ToUnit(nil)
			if err != nil {
				return nil, fmt.Errorf("wire: %s#%s: %w", cd.Name, m.Name, err)
			}
			if err := rt.DefineMethod(class, m.Name, unit, vm.Visibility(m.Visibility)); err != nil {
				return nil, fmt.Errorf("wire: %s#%s: %w", cd.Name, m.Name, err)
			}
		}
	}
	return p.Main.ToUnit(nil)
}
