package repl

import (
	"fmt"
	"strings"

	"calcfield.io/calc/eval"
	"calcfield.io/calc/lexer"
	"calcfield.io/calc/trie"
	"fortio.org/terminal"
)

type AutoComplete struct {
	Trie *trie.Trie
}

func NewCompletion() *AutoComplete {
	return &AutoComplete{trie.NewTrie()}
}

// NewFunctionCompletion completes the registry's function names, followed by
// an opening parenthesis.
func NewFunctionCompletion(reg *eval.Registry) *AutoComplete {
	a := NewCompletion()
	for _, name := range reg.Names() {
		a.Trie.Insert(name + "(")
	}
	return a
}

func (a *AutoComplete) AutoComplete() terminal.AutoCompleteCallback {
	return func(t *terminal.Terminal, line string, pos int, key rune) (newLine string, newPos int, ok bool) {
		if key != '\t' {
			return // only tab for now
		}
		newLine, newPos, choices := a.Complete(line, pos)
		if len(choices) > 1 {
			fmt.Fprintln(t.Out, "One of:", strings.Join(choices, " "))
		}
		return newLine, newPos, len(choices) > 0
	}
}

// Complete expands the identifier ending at pos to the longest common prefix
// of the matching names, which are upper case.
func (a *AutoComplete) Complete(line string, pos int) (newLine string, newPos int, choices []string) {
	start := pos
	for start > 0 && lexer.IsAlphaNum(line[start-1]) {
		start--
	}
	word := strings.ToUpper(line[start:pos])
	l, choices := a.Trie.PrefixAll(word)
	if len(choices) == 0 {
		return line, pos, nil
	}
	completed := choices[0][:l]
	return line[:start] + completed + line[pos:], start + len(completed), choices
}
