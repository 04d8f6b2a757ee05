package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/obiente/whisperbridge/internal/models"
	"github.com/obiente/whisperbridge/internal/service"
	"github.com/obiente/whisperbridge/internal/whisper"
)

func runDownload(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "download")
	var name string
	stringFlag(fs, &name, "m", "model", "base", "model to download: "+strings.Join(models.Names, ", "))
	if err := parse(fs, args); err != nil {
		return err
	}
	path, err := service.NewResolver(e.cfg).Download(ctx, name)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Model downloaded successfully to %s!\n", path)
	return nil
}

func runModels(_ context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "models")
	if err := parse(fs, args); err != nil {
		return err
	}
	r := service.NewResolver(e.cfg)
	cached, err := r.Downloaded()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tCACHED\tPATH")
	for _, name := range r.Available() {
		path := r.Path(name)
		mark := ""
		if slices.Contains(cached, models.FileName(name)) {
			mark = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, mark, path)
	}
	for _, file := range cached {
		name := strings.TrimSuffix(strings.TrimPrefix(file, "ggml-"), ".bin")
		if !models.Known(name) {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", "-", "local", filepath.Join(r.Dir, file))
		}
	}
	return tw.Flush()
}

func runLanguages(_ context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "languages")
	if err := parse(fs, args); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\n", whisper.LanguageAuto, whisper.LanguageName(whisper.LanguageAuto))
	for _, code := range whisper.Languages {
		fmt.Fprintf(tw, "%s\t%s\n", code, whisper.LanguageName(code))
	}
	return tw.Flush()
}

// runInspect loads a model through the in-process engine and prints what it
// reports.
func runInspect(ctx context.Context, e *env, args []string) error {
	fs := newFlagSet(e, "inspect")
	var model string
	stringFlag(fs, &model, "m", "model", e.cfg.Model, "model file path or registry name")
	if err := parse(fs, args); err != nil {
		return err
	}
	path, err := service.NewResolver(e.cfg).Resolve(ctx, model)
	if err != nil {
		return err
	}
	info, err := whisper.Inspect(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "model:        %s\n", info.Path)
	fmt.Fprintf(e.stdout, "multilingual: %t\n", info.Multilingual)
	fmt.Fprintf(e.stdout, "languages:    %s\n", strings.Join(info.Languages, " "))
	return nil
}
