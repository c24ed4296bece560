package token

import "fortio.org/sets"

// CalcInfo enables introspection of known keywords and operators.
type CalcInfo struct {
	Keywords  sets.Set[string]
	Operators sets.Set[string]
}

var info CalcInfo

func init() {
	info.Keywords = sets.New[string]()
	for k := range keywords {
		info.Keywords.Add(k)
	}
	info.Operators = sets.New[string]()
	for op := range operators {
		info.Operators.Add(op)
	}
}

func Info() CalcInfo {
	return info
}
