package vm

// buildRescueTable maps every instruction to the target of the innermost
// range covering it, or -1. Ranges are nested or disjoint, so the innermost
// covering range is the narrowest one. With ensureOnly set, only ensure
// ranges are considered.
func buildRescueTable(n int, ranges []RescueRange, ensureOnly bool) []int {
	table := make([]int, n)
	width := make([]int, n)
	for i := range table {
		table[i] = -1
	}
	for _, r := range ranges {
		if ensureOnly && !r.Ensure {
			continue
		}
		for ipc := r.Start; ipc < r.End; ipc++ {
			if w := r.End - r.Start; table[ipc] == -1 || w < width[ipc] {
				table[ipc] = r.Target
				width[ipc] = w
			}
		}
	}
	return table
}

// resolveFault decides where a fault raised by instr at ipc goes. It
// returns the handler ipc, or -1 when the fault leaves the activation.
func (e *Engine) resolveFault(a *activation, instr Instr, ipc int, err error) int {
	if IsUnrescuable(err) {
		return -1
	}
	if !instr.CanRaise() {
		log.Warningf("BUG: got fault %v but instruction %s is not supposed to raise", err, instr)
	}
	rpc := a.unit.RescuePC(ipc)
	if e.debug {
		log.Debugf("fault at %s:%d (%s) -> rescue pc %d: %v", a.unit.Name, ipc, instr.Op(), rpc, err)
	}
	return rpc
}
