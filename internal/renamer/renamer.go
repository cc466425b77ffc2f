// Package renamer prefixes every stacked notebook's name with its stack name.
package renamer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/florianilch/stackprefix/internal/evernote"
)

// Separator joins the stack name and the original notebook name.
const Separator = "_"

// NotebookStore is the part of the note store the renamer needs.
type NotebookStore interface {
	ListNotebooks(ctx context.Context) ([]evernote.Notebook, error)
	UpdateNotebook(ctx context.Context, notebook evernote.Notebook) (int32, error)
}

// Summary counts the outcome of a rename pass.
type Summary struct {
	Renamed         int
	AlreadyPrefixed int
	NotStacked      int
}

// Total is the number of notebooks processed.
func (s Summary) Total() int {
	return s.Renamed + s.AlreadyPrefixed + s.NotStacked
}

// PrefixedName returns the name nb should carry and whether it differs from
// the current one. Unstacked and already prefixed notebooks keep their name,
// so applying the result again never changes it.
func PrefixedName(nb evernote.Notebook) (string, bool) {
	if nb.Stack == "" {
		return nb.Name, false
	}
	prefix := nb.Stack + Separator
	if strings.HasPrefix(nb.Name, prefix) {
		return nb.Name, false
	}
	return prefix + nb.Name, true
}

// Renamer runs the rename pass against a NotebookStore.
type Renamer struct {
	store NotebookStore
}

// New creates a Renamer.
func New(store NotebookStore) (*Renamer, error) {
	if store == nil {
		return nil, errors.New("missing notebook store")
	}
	return &Renamer{store: store}, nil
}

// Run renames notebooks in the order the store lists them. The first failed
// update stops the pass; the returned Summary covers the notebooks handled
// before it.
func (r *Renamer) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	notebooks, err := r.store.ListNotebooks(ctx)
	if err != nil {
		return summary, fmt.Errorf("listing notebooks: %w", err)
	}

	for _, nb := range notebooks {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if nb.Stack == "" {
			slog.InfoContext(ctx, "skipping, not in a stack", "notebook", nb.Name)
			summary.NotStacked++
			continue
		}

		newName, changed := PrefixedName(nb)
		if !changed {
			slog.InfoContext(ctx, "skipping, already prefixed", "stack", nb.Stack, "notebook", nb.Name)
			summary.AlreadyPrefixed++
			continue
		}

		oldName := nb.Name
		nb.Name = newName
		if _, err := r.store.UpdateNotebook(ctx, nb); err != nil {
			return summary, fmt.Errorf("renaming notebook %q in stack %q: %w", oldName, nb.Stack, err)
		}
		slog.InfoContext(ctx, "renamed notebook", "stack", nb.Stack, "from", oldName, "to", newName)
		summary.Renamed++
	}

	return summary, nil
}
