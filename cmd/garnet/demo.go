package main

import (
	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/wire"
)

const demoFile = "fib.rb"

func line(b *vm.UnitBuilder, n int) {
	b.Emit(&vm.LineNumberInstr{Line: n, Coverage: true})
}

// demoProgram builds a small program exercising calls, recursion, blocks
// and a rescue:
//
//	def fib(n) = n < 2 ? n : fib(n - 1) + fib(n - 2)
//	r = fib(n)
//	[1, 2, 3].each { |x| puts x * r }
//	begin; 1 / 0; rescue ZeroDivisionError => e; puts e.class; end
//	r
//
// Every line is marked for coverage, so a profiled run records line hits
// against demoFile.
func demoProgram(n int64) (*wire.Program, error) {
	fib := vm.NewMethodBuilder("fib", vm.MethodUnit, "n")
	fib.Unit().File = demoFile
	arg := vm.Local{Index: 0, Name: "n"}
	fib.Emit(&vm.ReceivePreReqdArgInstr{Result: arg, Index: 0})
	line(fib, 1)
	small := fib.Temp(vm.ObjectBank)
	fib.Call(small, "<", vm.NormalCall, arg, vm.IntConst{V: 2})
	fib.Branch(vm.B_FALSE, small, nil, "recurse")
	fib.Return(vm.RETURN, arg)
	fib.Label("recurse")
	n1, n2 := fib.Temp(vm.ObjectBank), fib.Temp(vm.ObjectBank)
	f1, f2, sum := fib.Temp(vm.ObjectBank), fib.Temp(vm.ObjectBank), fib.Temp(vm.ObjectBank)
	fib.Call(n1, "-", vm.NormalCall, arg, vm.IntConst{V: 1})
	fib.Call(f1, "fib", vm.FunctionalCall, vm.Self{}, n1)
	fib.Call(n2, "-", vm.NormalCall, arg, vm.IntConst{V: 2})
	fib.Call(f2, "fib", vm.FunctionalCall, vm.Self{}, n2)
	fib.Call(sum, "+", vm.NormalCall, f1, f2)
	fib.Return(vm.RETURN, sum)
	fib.SetArity(vm.Arity{Required: 1})
	fibUnit, err := fib.Build()
	if err != nil {
		return nil, err
	}
	method, err := wire.NewMethod("fib", vm.Public, fibUnit)
	if err != nil {
		return nil, err
	}

	s := vm.NewMethodBuilder("main", vm.ScriptUnit, "r")
	s.Unit().File = demoFile
	r := vm.Local{Index: 0, Name: "r"}
	line(s, 2)
	s.Call(r, "fib", vm.FunctionalCall, vm.Self{}, vm.IntConst{V: n})

	body := vm.NewBlockBuilder("show", s.Unit().Scope, "x")
	body.Unit().File = demoFile
	body.BookKeeping(vm.PREPARE_FIXED_BLOCK_ARGS)
	x := vm.Local{Index: 0, Name: "x"}
	body.Emit(&vm.ReceivePreReqdArgInstr{Result: x, Index: 0})
	line(body, 3)
	p := body.Temp(vm.ObjectBank)
	body.Call(p, "*", vm.NormalCall, x, vm.Local{Depth: 1, Index: 0, Name: "r"})
	body.Call(nil, "puts", vm.FunctionalCall, vm.Self{}, p)
	body.Return(vm.RETURN, vm.NilConst{})
	body.SetArity(vm.Arity{Required: 1})
	blk, err := body.Build()
	if err != nil {
		return nil, err
	}

	line(s, 3)
	arr := s.Temp(vm.ObjectBank)
	s.Call(arr, "new", vm.NormalCall, vm.ConstRef{Name: "Array"})
	for i := int64(1); i <= 3; i++ {
		s.Call(nil, "push", vm.NormalCall, arr, vm.IntConst{V: i})
	}
	s.CallWithBlock(nil, "each", vm.NormalCall, arr, blk)

	line(s, 4)
	s.Label("begin")
	s.Alu(vm.IDIV, s.Temp(vm.FixnumBank), vm.IntConst{V: 1}, vm.IntConst{V: 0})
	s.Label("end")
	s.Label("done")
	line(s, 5)
	s.Return(vm.RETURN, r)

	s.Label("handler")
	exc, matched, class := s.Temp(vm.ObjectBank), s.Temp(vm.BooleanBank), s.Temp(vm.ObjectBank)
	s.Emit(vm.NewReceiveExceptionInstr(vm.RECV_EXC, exc))
	s.Emit(&vm.RescueMatchInstr{Result: matched, Exception: exc, Classes: []vm.Operand{vm.ConstRef{Name: "ZeroDivisionError"}}})
	s.Branch(vm.B_FALSE, matched, nil, "reraise")
	s.Call(class, "class", vm.NormalCall, exc)
	s.Call(nil, "puts", vm.FunctionalCall, vm.Self{}, class)
	s.Jump("done")
	s.Label("reraise")
	s.Emit(&vm.ThrowExceptionInstr{Exception: exc})
	s.Return(vm.RETURN, vm.NilConst{})
	s.Rescue("begin", "end", "handler")

	main, err := s.Build()
	if err != nil {
		return nil, err
	}
	return wire.NewProgram(main, wire.ClassDef{Name: "Object", Methods: []wire.Method{method}})
}
