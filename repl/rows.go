package repl

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"sync"

	"calcfield.io/calc/eval"
	"calcfield.io/calc/object"
	"fortio.org/log"
	"fortio.org/progressbar"
	"github.com/hashicorp/go-multierror"
)

// DefaultProgressThreshold is the number of rows from which EvalRows shows a
// progress bar, when the option isn't set.
const DefaultProgressThreshold = 10_000

// ReadDocument decodes a JSON object into document fields.
func ReadDocument(in io.Reader) (map[string]object.Value, error) {
	var doc map[string]any
	if err := json.NewDecoder(in).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return object.MapFromGo(doc)
}

// ReadRows decodes a JSON array of rows.
func ReadRows(in io.Reader) ([]object.Value, error) {
	var rows []any
	if err := json.NewDecoder(in).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding rows: %w", err)
	}
	res := make([]object.Value, 0, len(rows))
	for i, r := range rows {
		v, err := object.FromGo(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		res = append(res, v)
	}
	return res, nil
}

// RowContext is the context of one row: options.Fields, then the row's own
// keys when it is a dictionary, then `row` (the whole row) and `index`.
func RowContext(fields map[string]object.Value, row object.Value, index int) eval.Context {
	m := make(map[string]object.Value, len(fields)+2)
	for k, v := range fields {
		m[k] = v
	}
	if d, ok := row.(object.Dictionary); ok {
		for k, v := range d {
			m[k] = v
		}
	}
	m["row"] = row
	m["index"] = object.Number{Value: float64(index)}
	return eval.NewMapContext(m)
}

type rowResult struct {
	value object.Value
	err   error
}

// EvalRows evaluates formula once per row, spread over GOMAXPROCS evaluators,
// and prints one result per line in row order. Failed rows print an error
// line and are all reported in the returned error.
func EvalRows(options Options, formula string, rows []object.Value, out io.Writer) error {
	ev := options.evaluator()
	node, err := ev.Parse(formula)
	if err != nil {
		return err
	}
	fields := options.fields()
	results := make([]rowResult, len(rows))
	threshold := options.ProgressThreshold
	if threshold == 0 {
		threshold = DefaultProgressThreshold
	}
	var bar *progressbar.Bar
	if threshold > 0 && len(rows) >= threshold {
		bar = progressbar.NewBar()
	}
	numWorkers := min(runtime.GOMAXPROCS(0), max(len(rows), 1))
	log.LogVf("Evaluating %s on %d rows with %d workers", node, len(rows), numWorkers)
	indexes := make(chan int)
	done := make(chan struct{})
	wg := sync.WaitGroup{}
	for range numWorkers {
		wg.Add(1)
		go func(wev *eval.Evaluator) {
			defer wg.Done()
			for i := range indexes {
				v, err := wev.Evaluate(node, RowContext(fields, rows[i], i))
				results[i] = rowResult{v, err}
				done <- struct{}{}
			}
		}(ev.Fork())
	}
	go func() {
		for i := range rows {
			indexes <- i
		}
		close(indexes)
		wg.Wait()
		close(done)
	}()
	n := 0
	for range done {
		n++
		if bar != nil && n%100 == 0 {
			bar.Progress(100. * float64(n) / float64(len(rows)))
		}
	}
	if bar != nil {
		bar.Progress(100.)
		bar.End()
	}
	var errs *multierror.Error
	for i, r := range results {
		if r.err != nil {
			fmt.Fprintf(out, "<err: %v>\n", r.err)
			errs = multierror.Append(errs, fmt.Errorf("row %d: %w", i, r.err))
			continue
		}
		fmt.Fprintln(out, r.value.Inspect())
	}
	return errs.ErrorOrNil()
}
