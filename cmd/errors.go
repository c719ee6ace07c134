/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
	"github.com/josephgoksu/TodoBuilder/internal/registry"
	"github.com/josephgoksu/TodoBuilder/internal/ui"
)

// PrintError prints err for a person. In verbose mode the full wrapped
// chain is shown; otherwise the outermost classified message and a hint.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "%s %s\n", ui.Icon("✗", ui.StyleError), errorMessage(err))

	var de *registry.DependentsError
	if errors.As(err, &de) {
		fmt.Fprintf(w, "  %s %v\n", ui.StyleSubtle.Render("blocked by:"), de.Dependents)
	}
	if hint := errorHint(err); hint != "" {
		fmt.Fprintf(w, "  %s\n", ui.StyleSubtle.Render(hint))
	}
}

func errorMessage(err error) string {
	if verbose {
		return err.Error()
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.Error()
	}
	return err.Error()
}

func errorHint(err error) string {
	switch {
	case errors.Is(err, registry.ErrFeatureNotFound):
		return "run 'todobuilder feature list' to see registered features"
	case errors.Is(err, registry.ErrDisableBlocked):
		return "disable the dependent features first, or check with 'todobuilder feature can-disable'"
	case apperr.Is(err, apperr.KindPersistence):
		return "check store.backend and store.dsn in your configuration"
	case apperr.Is(err, apperr.KindGeneration):
		return "check llm.provider, llm.model and llm.apiKey"
	}
	return ""
}
