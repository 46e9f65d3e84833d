package chain

// journal is the undo log for one transaction group. Mutations register a
// compensating closure; revert applies them in reverse order.
type journal struct {
	undos []func()
}

func (j *journal) record(undo func()) {
	j.undos = append(j.undos, undo)
}

func (j *journal) revert() {
	for i := len(j.undos) - 1; i >= 0; i-- {
		j.undos[i]()
	}
	j.undos = nil
}
