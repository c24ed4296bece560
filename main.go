// Calc evaluates spreadsheet style formulas against JSON documents.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"calcfield.io/calc/eval"
	"calcfield.io/calc/extensions"
	"calcfield.io/calc/object"
	"calcfield.io/calc/repl"
	"fortio.org/cli"
	"fortio.org/log"
	"fortio.org/struct2env"
	"fortio.org/terminal"
)

func main() {
	os.Exit(Main())
}

type Config struct {
	HistoryFile string
	Document    string // JSON file with the fields formulas can reference.
}

var config = Config{}

func EnvHelp(w io.Writer) {
	res, _ := struct2env.StructToEnvVars(config)
	str := struct2env.ToShellWithPrefix("CALC_", res, true)
	fmt.Fprintln(w, "# Calc environment variables:")
	fmt.Fprint(w, str)
}

func Main() int {
	commandFlag := flag.String("c", "", "`formula` to evaluate instead of interactive mode")
	showParse := flag.Bool("parse", false, "show parse tree and referenced fields")
	showEval := flag.Bool("eval", true, "show eval results")
	rowsFile := flag.String("rows", "", "JSON array `file` of rows to evaluate the -c formula on, - for stdin")
	progress := flag.Int("progress", repl.DefaultProgressThreshold, "minimum number of rows to show a progress bar, -1 to disable")
	const historyDefault = "~/.calc_history" // virtual/token filename, will be replaced by actual home dir if not changed.
	cli.EnvHelpFuncs = append(cli.EnvHelpFuncs, EnvHelp)
	defaultHistoryFile := historyDefault
	errs := struct2env.SetFromEnv("CALC_", &config)
	if len(errs) > 0 {
		log.Errf("Error setting config from env: %v", errs)
	}
	if config.HistoryFile != "" {
		defaultHistoryFile = config.HistoryFile
	}
	docFile := flag.String("doc", config.Document, "JSON `file` with the document fields")
	historyFile := flag.String("history", defaultHistoryFile, "history `file` to use")
	maxHistory := flag.Int("max-history", terminal.DefaultHistoryCapacity, "max history `size`, use 0 to disable.")
	maxDepth := flag.Int("max-depth", eval.DefaultMaxDepth, "Maximum evaluation depth")
	noExt := flag.Bool("no-ext", false, "only the core functions, no extensions")
	noEval := flag.Bool("no-eval", false, "disable the EVAL() extension")

	cli.ArgsHelp = "files with one formula per line, or `-` for stdin without prompt, or no arguments for interactive mode..."
	cli.MaxArgs = -1
	cli.Main()
	histFile := *historyFile
	if histFile == historyDefault {
		homeDir, err := os.UserHomeDir()
		histFile = filepath.Join(homeDir, ".calc_history")
		if err != nil {
			log.Warnf("Couldn't get user home dir: %v", err)
			histFile = ""
		}
	}
	reg := eval.NewRegistry()
	if !*noExt {
		err := extensions.Init(reg, &extensions.Config{HasEval: !*noEval})
		if err != nil {
			return log.FErrf("Error initializing extensions: %v", err)
		}
	}
	options := repl.Options{
		ShowParse:         *showParse,
		ShowEval:          *showEval,
		HistoryFile:       histFile,
		MaxHistory:        *maxHistory,
		MaxDepth:          *maxDepth,
		Registry:          reg,
		ProgressThreshold: *progress,
	}
	if *docFile != "" {
		fields, err := readFile(*docFile, repl.ReadDocument)
		if err != nil {
			return log.FErrf("Error reading document: %v", err)
		}
		log.Infof("Loaded %d fields from %s", len(fields), *docFile)
		options.Fields = fields
	}
	if *rowsFile != "" {
		if *commandFlag == "" {
			return log.FErrf("-rows requires a -c formula")
		}
		rows, err := readFile(*rowsFile, repl.ReadRows)
		if err != nil {
			return log.FErrf("Error reading rows: %v", err)
		}
		err = repl.EvalRows(options, *commandFlag, rows, os.Stdout)
		if err != nil {
			return log.FErrf("Errors: %v", err)
		}
		return 0
	}
	if *commandFlag != "" {
		res, errs := repl.EvalString(options, *commandFlag)
		if len(errs) > 0 {
			log.Errf("Errors: %v", errs)
		}
		fmt.Print(res)
		return len(errs)
	}
	if len(flag.Args()) == 0 {
		return repl.Interactive(options)
	}
	ev := eval.New(reg)
	ev.MaxDepth = *maxDepth
	fields := options.Fields
	if fields == nil {
		fields = make(map[string]object.Value)
	}
	numErrs := 0
	for _, file := range flag.Args() {
		numErrs += processOneFile(file, ev, fields, options)
	}
	log.Infof("All done")
	return numErrs
}

// readFile opens file, or stdin for `-`, and decodes it.
func readFile[T any](file string, decode func(io.Reader) (T, error)) (T, error) {
	if file == "-" {
		return decode(os.Stdin)
	}
	f, err := os.Open(file)
	if err != nil {
		var zero T
		return zero, err
	}
	defer f.Close()
	return decode(f)
}

// Fields assigned with := in one file are visible to the next ones.
func processOneFile(file string, ev *eval.Evaluator, fields map[string]object.Value, options repl.Options) int {
	in := io.Reader(os.Stdin)
	if file == "-" {
		log.Infof("Running on stdin")
	} else {
		f, err := os.Open(file)
		if err != nil {
			return log.FErrf("%v", err)
		}
		defer f.Close()
		log.Infof("Running %s", file)
		in = f
	}
	errs := repl.EvalAll(ev, fields, in, os.Stdout, options)
	if len(errs) > 0 {
		log.Errf("Errors: %v", errs)
	}
	return len(errs)
}
