// Package loader reads expenditure datasets from files and other sources.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"budgetboard/internal/core"
	"budgetboard/internal/crossfilter"
)

// Loader fetches a complete dataset.
type Loader interface {
	Fetch(ctx context.Context) ([]core.Expenditure, error)
}

// Func adapts a function to the Loader interface.
type Func func(ctx context.Context) ([]core.Expenditure, error)

func (f Func) Fetch(ctx context.Context) ([]core.Expenditure, error) { return f(ctx) }

// JSONFile loads a JSON array of expenditure objects from Path.
type JSONFile struct {
	Path string
}

var _ Loader = JSONFile{}

func (j JSONFile) Fetch(ctx context.Context) ([]core.Expenditure, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(j.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", j.Path, err)
	}
	return records, nil
}

// Decode reads a JSON array of records. A record that cannot be decoded is
// reported as a *crossfilter.MalformedDataError carrying its position.
func Decode(r io.Reader) ([]core.Expenditure, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("read array: %w", err)
	}
	out := make([]core.Expenditure, len(raw))
	for i, msg := range raw {
		if err := json.Unmarshal(msg, &out[i]); err != nil {
			return nil, &crossfilter.MalformedDataError{Index: i, Err: err}
		}
	}
	return out, nil
}

// FetchAll runs every loader concurrently and concatenates the results in
// argument order. The first failure cancels the others.
func FetchAll(ctx context.Context, loaders ...Loader) ([]core.Expenditure, error) {
	results := make([][]core.Expenditure, len(loaders))
	g, gCtx := errgroup.WithContext(ctx)
	for i, l := range loaders {
		g.Go(func() error {
			records, err := l.Fetch(gCtx)
			if err != nil {
				return fmt.Errorf("source %d: %w", i, err)
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	n := 0
	for _, r := range results {
		n += len(r)
	}
	out := make([]core.Expenditure, 0, n)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

// Files returns one JSONFile loader per path.
func Files(paths ...string) []Loader {
	out := make([]Loader, len(paths))
	for i, p := range paths {
		out[i] = JSONFile{Path: p}
	}
	return out
}
