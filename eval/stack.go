package eval

import (
	"slices"

	"fortio.org/log"
)

// Stack returns the names of the function calls in progress, innermost first.
func (ev *Evaluator) Stack() []string {
	stack := slices.Clone(ev.stack)
	slices.Reverse(stack)
	log.Debugf("Stack() depth %d returning %v", ev.depth, stack)
	return stack
}

// Depth is the current evaluation depth.
func (ev *Evaluator) Depth() int {
	return ev.depth
}
