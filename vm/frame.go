package vm

import "fmt"

// Frame is the per-call record used for backtraces, method-name queries,
// visibility and the implicit block of a method.
type Frame struct {
	Module     *Class
	Name       string
	Self       Value
	Visibility Visibility
	Block      *Block
	File       string
	Line       int
}

func (f *Frame) String() string {
	owner := "main"
	if f.Module != nil {
		owner = f.Module.Name
	}
	if f.File != "" {
		return fmt.Sprintf("%s:%d:in '%s#%s'", f.File, f.Line, owner, f.Name)
	}
	return fmt.Sprintf("%d:in '%s#%s'", f.Line, owner, f.Name)
}

func (f *Frame) dup() *Frame {
	c := *f
	return &c
}
