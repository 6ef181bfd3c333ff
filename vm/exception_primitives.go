package vm

// ---------------------------------------------------------------------------
// Exception Primitives
// ---------------------------------------------------------------------------

func (rt *Runtime) registerExceptionPrimitives() {
	c := rt.ExceptionClass

	c.AddPrimitiveMethod("initialize", func(ctx *ThreadContext, self Value, args []Value, _ *Block) (Value, error) {
		e := self.(*Exception)
		switch len(args) {
		case 0:
			e.message = e.class.Name
		case 1:
			if IsNil(args[0]) {
				e.message = e.class.Name
			} else {
				e.message = displayString(args[0])
			}
		default:
			return nil, ctx.ArgumentCountError(len(args), "0..1")
		}
		return Nil, nil
	})
	c.AddMethod0("message", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return NewString(self.(*Exception).message), nil
	})
	c.AddMethod0("to_s", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return NewString(self.(*Exception).message), nil
	})
	c.AddMethod0("backtrace", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		bt := self.(*Exception).backtrace
		if bt == nil {
			return Nil, nil
		}
		out := NewArray()
		for _, line := range bt {
			out.Push(NewString(line))
		}
		return out, nil
	})
	c.AddMethod0("cause", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		if cause := self.(*Exception).cause; cause != nil {
			return cause, nil
		}
		return Nil, nil
	})
	c.AddMethod0("full_message", func(_ *ThreadContext, self Value, _ *Block) (Value, error) {
		return NewString(self.(*Exception).FullMessage()), nil
	})
}

// FullMessage renders the exception the way an uncaught fault is reported:
// the first frame, the message and class, then the remaining frames.
func (e *Exception) FullMessage() string {
	head := "-"
	if len(e.backtrace) > 0 {
		head = e.backtrace[0]
	}
	out := head + ": " + e.message + " (" + e.class.Name + ")"
	for i := 1; i < len(e.backtrace); i++ {
		out += "\n\tfrom " + e.backtrace[i]
	}
	return out
}
