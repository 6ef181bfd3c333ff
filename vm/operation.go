package vm

// ---------------------------------------------------------------------------
// Operation definitions
// ---------------------------------------------------------------------------

// Operation identifies what an instruction does.
type Operation uint8

// OpClass groups operations by how the dispatch loop handles them.
type OpClass uint8

const (
	IntOp OpClass = iota
	FloatOp
	ArgOp
	CallOp
	RetOp
	BranchOp
	BookKeepingOp
	OtherOp
)

// Integer ALU
const (
	IADD Operation = iota
	ISUB
	IMUL
	IDIV
	IOR
	IAND
	IXOR
	ISHL
	ISHR
	ILT
	IGT
	IEQ

	// Float ALU
	FADD
	FSUB
	FMUL
	FDIV
	FLT
	FGT
	FEQ

	// Argument receiving
	RECV_SELF
	RECV_PRE_REQD_ARG
	RECV_POST_REQD_ARG
	RECV_OPT_ARG
	RECV_REST_ARG
	RECV_KW_ARG
	RECV_EXC
	RECV_HOST_EXC
	LOAD_IMPLICIT_CLOSURE

	// Calls
	CALL
	NORESULT_CALL
	FRAME_NAME_CALL

	// Returns
	RETURN
	BREAK
	NONLOCAL_RETURN

	// Branches
	JUMP
	B_TRUE
	B_FALSE
	B_NIL
	B_UNDEF
	BEQ
	BNE

	// Bookkeeping
	LABEL
	PUSH_METHOD_BINDING
	PUSH_BLOCK_BINDING
	POP_BINDING
	PUSH_METHOD_FRAME
	POP_METHOD_FRAME
	PUSH_BLOCK_FRAME
	POP_BLOCK_FRAME
	SAVE_BINDING_VIZ
	RESTORE_BINDING_VIZ
	UPDATE_BLOCK_STATE
	PREPARE_NO_BLOCK_ARGS
	PREPARE_SINGLE_BLOCK_ARG
	PREPARE_FIXED_BLOCK_ARGS
	PREPARE_BLOCK_ARGS
	THREAD_POLL
	CHECK_ARITY
	LINE_NUM

	// Everything else
	COPY
	BOX_FIXNUM
	BOX_FLOAT
	BOX_BOOLEAN
	UNBOX_FIXNUM
	UNBOX_FLOAT
	UNBOX_BOOLEAN
	BUILD_CLOSURE
	CHECK_FOR_LJE
	THROW_EXCEPTION
	RESCUE_EXCEPTION_MATCH
	GET_FIELD
	PUT_FIELD
	LOAD_FRAME_CLOSURE
	LOAD_BLOCK_IMPLICIT_CLOSURE

	numOperations
)

// OperationInfo describes an operation.
type OperationInfo struct {
	Name     string
	Class    OpClass
	CanRaise bool
}

var operationTable = [numOperations]OperationInfo{
	IADD: {"iadd", IntOp, false},
	ISUB: {"isub", IntOp, false},
	IMUL: {"imul", IntOp, false},
	IDIV: {"idiv", IntOp, true},
	IOR:  {"ior", IntOp, false},
	IAND: {"iand", IntOp, false},
	IXOR: {"ixor", IntOp, false},
	ISHL: {"ishl", IntOp, false},
	ISHR: {"ishr", IntOp, false},
	ILT:  {"ilt", IntOp, false},
	IGT:  {"igt", IntOp, false},
	IEQ:  {"ieq", IntOp, false},

	FADD: {"fadd", FloatOp, false},
	FSUB: {"fsub", FloatOp, false},
	FMUL: {"fmul", FloatOp, false},
	FDIV: {"fdiv", FloatOp, false},
	FLT:  {"flt", FloatOp, false},
	FGT:  {"fgt", FloatOp, false},
	FEQ:  {"feq", FloatOp, false},

	RECV_SELF:             {"recv_self", ArgOp, false},
	RECV_PRE_REQD_ARG:     {"recv_pre_reqd_arg", ArgOp, false},
	RECV_POST_REQD_ARG:    {"recv_post_reqd_arg", ArgOp, false},
	RECV_OPT_ARG:          {"recv_opt_arg", ArgOp, false},
	RECV_REST_ARG:         {"recv_rest_arg", ArgOp, false},
	RECV_KW_ARG:           {"recv_kw_arg", ArgOp, true},
	RECV_EXC:              {"recv_exc", ArgOp, false},
	RECV_HOST_EXC:         {"recv_host_exc", ArgOp, false},
	LOAD_IMPLICIT_CLOSURE: {"load_implicit_closure", ArgOp, false},

	CALL:            {"call", CallOp, true},
	NORESULT_CALL:   {"noresult_call", CallOp, true},
	FRAME_NAME_CALL: {"frame_name_call", CallOp, false},

	RETURN:          {"return", RetOp, false},
	BREAK:           {"break", RetOp, true},
	NONLOCAL_RETURN: {"nonlocal_return", RetOp, true},

	JUMP:    {"jump", BranchOp, false},
	B_TRUE:  {"b_true", BranchOp, false},
	B_FALSE: {"b_false", BranchOp, false},
	B_NIL:   {"b_nil", BranchOp, false},
	B_UNDEF: {"b_undef", BranchOp, false},
	BEQ:     {"beq", BranchOp, false},
	BNE:     {"bne", BranchOp, false},

	LABEL:                    {"label", BookKeepingOp, false},
	PUSH_METHOD_BINDING:      {"push_method_binding", BookKeepingOp, false},
	PUSH_BLOCK_BINDING:       {"push_block_binding", BookKeepingOp, false},
	POP_BINDING:              {"pop_binding", BookKeepingOp, false},
	PUSH_METHOD_FRAME:        {"push_method_frame", BookKeepingOp, false},
	POP_METHOD_FRAME:         {"pop_method_frame", BookKeepingOp, false},
	PUSH_BLOCK_FRAME:         {"push_block_frame", BookKeepingOp, false},
	POP_BLOCK_FRAME:          {"pop_block_frame", BookKeepingOp, false},
	SAVE_BINDING_VIZ:         {"save_binding_viz", BookKeepingOp, false},
	RESTORE_BINDING_VIZ:      {"restore_binding_viz", BookKeepingOp, false},
	UPDATE_BLOCK_STATE:       {"update_block_state", BookKeepingOp, false},
	PREPARE_NO_BLOCK_ARGS:    {"prepare_no_block_args", BookKeepingOp, true},
	PREPARE_SINGLE_BLOCK_ARG: {"prepare_single_block_arg", BookKeepingOp, true},
	PREPARE_FIXED_BLOCK_ARGS: {"prepare_fixed_block_args", BookKeepingOp, true},
	PREPARE_BLOCK_ARGS:       {"prepare_block_args", BookKeepingOp, true},
	THREAD_POLL:              {"thread_poll", BookKeepingOp, true},
	CHECK_ARITY:              {"check_arity", BookKeepingOp, true},
	LINE_NUM:                 {"line_num", BookKeepingOp, false},

	COPY:                        {"copy", OtherOp, false},
	BOX_FIXNUM:                  {"box_fixnum", OtherOp, false},
	BOX_FLOAT:                   {"box_float", OtherOp, false},
	BOX_BOOLEAN:                 {"box_boolean", OtherOp, false},
	UNBOX_FIXNUM:                {"unbox_fixnum", OtherOp, false},
	UNBOX_FLOAT:                 {"unbox_float", OtherOp, false},
	UNBOX_BOOLEAN:               {"unbox_boolean", OtherOp, false},
	BUILD_CLOSURE:               {"build_closure", OtherOp, false},
	CHECK_FOR_LJE:               {"check_for_lje", OtherOp, true},
	THROW_EXCEPTION:             {"throw_exception", OtherOp, true},
	RESCUE_EXCEPTION_MATCH:      {"rescue_exception_match", OtherOp, true},
	GET_FIELD:                   {"get_field", OtherOp, false},
	PUT_FIELD:                   {"put_field", OtherOp, true},
	LOAD_FRAME_CLOSURE:          {"load_frame_closure", OtherOp, false},
	LOAD_BLOCK_IMPLICIT_CLOSURE: {"load_block_implicit_closure", OtherOp, false},
}

var operationsByName = func() map[string]Operation {
	m := make(map[string]Operation, numOperations)
	for op := Operation(0); op < numOperations; op++ {
		m[operationTable[op].Name] = op
	}
	return m
}()

// Info returns metadata for the operation.
func (op Operation) Info() OperationInfo {
	if op >= numOperations {
		return OperationInfo{Name: "unknown", Class: OtherOp}
	}
	return operationTable[op]
}

// Class returns the operation's dispatch group.
func (op Operation) Class() OpClass { return op.Info().Class }

// CanRaise reports whether instructions of this operation are expected to
// fault.
func (op Operation) CanRaise() bool { return op.Info().CanRaise }

func (op Operation) String() string { return op.Info().Name }

// OperationByName looks up an operation by its mnemonic.
func OperationByName(name string) (Operation, bool) {
	op, ok := operationsByName[name]
	return op, ok
}

// NumOperations is the number of defined operations.
const NumOperations = int(numOperations)
