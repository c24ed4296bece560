// Package repl evaluates formulas from strings, streams, JSON rows or an
// interactive terminal.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"calcfield.io/calc/ast"
	"calcfield.io/calc/eval"
	"calcfield.io/calc/lexer"
	"calcfield.io/calc/object"
	"fortio.org/log"
	"fortio.org/terminal"
	"fortio.org/version"
)

const (
	PROMPT        = "calc> "
	AssignmentSep = ":="
)

type Options struct {
	ShowParse   bool
	ShowEval    bool
	HistoryFile string
	MaxHistory  int
	MaxDepth    int
	// Registry of functions, eval.NewRegistry() when nil.
	Registry *eval.Registry
	// Fields of the document formulas are evaluated against.
	Fields map[string]object.Value
	// Minimum number of rows for EvalRows to show a progress bar, 0 for never.
	ProgressThreshold int
}

func (o Options) evaluator() *eval.Evaluator {
	ev := eval.New(o.Registry)
	if o.MaxDepth > 0 {
		ev.MaxDepth = o.MaxDepth
	}
	return ev
}

func (o Options) fields() map[string]object.Value {
	if o.Fields == nil {
		return make(map[string]object.Value)
	}
	return o.Fields
}

// EvalString evaluates a single formula against options.Fields and returns
// what would be printed and the errors, if any.
func EvalString(options Options, what string) (res string, errs []string) {
	out := &strings.Builder{}
	options.ShowEval = true
	errs = EvalAll(options.evaluator(), options.fields(), strings.NewReader(what), out, options)
	return out.String(), errs
}

// EvalAll evaluates one formula per line of in, against fields. A line of
// the form `name := formula` also adds the result to fields as name, for the
// next lines to use. Empty lines and lines starting with // are skipped.
func EvalAll(ev *eval.Evaluator, fields map[string]object.Value, in io.Reader, out io.Writer, options Options) []string {
	var errs []string
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		if err := EvalOne(ev, fields, line, out, options); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := scanner.Err(); err != nil {
		errs = append(errs, err.Error())
	}
	return errs
}

// SplitAssignment returns the target field name and the formula of a
// `name := formula` line, or "" and the line itself.
func SplitAssignment(line string) (string, string) {
	name, formula, found := strings.Cut(line, AssignmentSep)
	if !found {
		return "", line
	}
	name = strings.TrimSpace(name)
	if name == "" || name[0] >= '0' && name[0] <= '9' {
		return "", line
	}
	for i := range len(name) {
		if !lexer.IsAlphaNum(name[i]) {
			return "", line
		}
	}
	return name, strings.TrimSpace(formula)
}

// EvalOne evaluates what and prints the result (canonical form) when
// options.ShowEval is set.
func EvalOne(ev *eval.Evaluator, fields map[string]object.Value, what string, out io.Writer, options Options) error {
	name, formula := SplitAssignment(what)
	node, err := ev.Parse(formula)
	if err != nil {
		var fe *object.FormulaError
		if errors.As(err, &fe) {
			log.Errf("%s", fe.Pretty(formula))
		}
		return err
	}
	if options.ShowParse {
		fmt.Fprint(out, "== Parse ==> ")
		fmt.Fprintln(out, node.String())
		if refs := ast.References(node); len(refs) > 0 {
			fmt.Fprintln(out, "== Refs  ==>", strings.Join(refs, ", "))
		}
	}
	if options.ShowParse && options.ShowEval {
		fmt.Fprint(out, "== Eval  ==> ")
	}
	v, err := ev.Evaluate(node, eval.NewMapContext(fields))
	if err != nil {
		if options.ShowEval {
			fmt.Fprint(out, log.Colors.Red)
			fmt.Fprintln(out, "<err: "+err.Error()+">")
			fmt.Fprint(out, log.Colors.Reset)
		}
		return err
	}
	if name != "" {
		fields[name] = v
		log.LogVf("Set %s to %s", name, v.Inspect())
	}
	if options.ShowEval {
		fmt.Fprintln(out, v.Inspect())
	}
	return nil
}

var commands = []string{"help", "fields", "info", "exit"}

// Help prints the functions help, grouped by category, or the help of the
// function name when not empty.
func Help(reg *eval.Registry, out io.Writer, name string) {
	if name != "" {
		b, ok := reg.Info(name)
		if !ok {
			fmt.Fprintf(out, "Unknown function %s", strings.ToUpper(name))
			if s := reg.Suggest(name); s != "" {
				fmt.Fprintf(out, ", did you mean %s?", s)
			}
			fmt.Fprintln(out)
			return
		}
		help := b.Help
		if help == "" {
			help = b.Name + "(...)"
		}
		fmt.Fprintln(out, help)
		return
	}
	byCategory := make(map[string][]string)
	for _, n := range reg.Names() {
		b, _ := reg.Info(n)
		cat := b.Category
		if cat == "" {
			cat = "other"
		}
		byCategory[cat] = append(byCategory[cat], n)
	}
	cats := make([]string, 0, len(byCategory))
	for c := range byCategory {
		cats = append(cats, c)
	}
	slices.Sort(cats)
	for _, c := range cats {
		fmt.Fprintf(out, "%s: %s\n", c, strings.Join(byCategory[c], ", "))
	}
	fmt.Fprintln(out, "Commands:", strings.Join(commands, ", "), "- help NAME for details")
}

func printFields(out io.Writer, fields map[string]object.Value) {
	d := object.Dictionary(fields)
	for _, k := range d.Keys() {
		fmt.Fprintf(out, "%s: %s\n", k, d[k].Inspect())
	}
}

// Interactive is the terminal read-eval-print loop, with history and tab
// completion of function names. Returns the exit code.
func Interactive(options Options) int {
	options.ShowEval = true
	ev := options.evaluator()
	reg := ev.Registry
	fields := options.fields()
	term, err := terminal.Open(context.Background())
	if err != nil {
		return log.FErrf("Error creating terminal: %v", err)
	}
	defer term.Close()
	term.SetPrompt(PROMPT)
	terminal.LoggerSetup(term.Out)
	term.SetAutoCompleteCallback(NewFunctionCompletion(reg).AutoComplete())
	if options.MaxHistory > 0 {
		term.NewHistory(options.MaxHistory)
	}
	if options.HistoryFile != "" && options.MaxHistory > 0 {
		if err = term.SetHistoryFile(options.HistoryFile); err != nil {
			log.Warnf("Couldn't use history file %q: %v", options.HistoryFile, err)
		}
	}
	short, _, _ := version.FromBuildInfo()
	fmt.Fprintf(term.Out, "calc %s - %d functions, %d fields, 'help' for help\n", short, reg.Len(), len(fields))
	for {
		line, err := term.ReadLine()
		if errors.Is(err, terminal.ErrUserInterrupt) {
			log.Infof("Interrupted, use ^D or exit to exit")
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Infof("Exit on EOF")
				return 0
			}
			return log.FErrf("Error reading line: %v", err)
		}
		line = strings.TrimSpace(line)
		cmd, arg, _ := strings.Cut(line, " ")
		switch cmd {
		case "":
			continue
		case "exit":
			return 0
		case "help":
			Help(reg, term.Out, strings.TrimSpace(arg))
			continue
		case "fields":
			printFields(term.Out, fields)
			continue
		case "info":
			hits, misses := ev.Cache().Stats()
			fmt.Fprintf(term.Out, "%s, cache %d entries (%d hits, %d misses)\n", ev.String(), ev.Cache().Len(), hits, misses)
			continue
		}
		_ = EvalOne(ev, fields, line, term.Out, options)
	}
}
