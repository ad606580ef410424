package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gioui.org/app"
	"gioui.org/font/gofont"
	"gioui.org/op"
	"gioui.org/text"
	"gioui.org/unit"
	"gioui.org/widget/material"

	"signpad/cmd/signpad-gui/internal/theme"
	"signpad/cmd/signpad-gui/internal/ui"
	"signpad/internal/bootstrap"
	"signpad/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Path to the configuration file")
	strict := flag.Bool("strict", false, "Panic on stale element references")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: signpad-gui [-config path] [-strict] [document.pdf]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	env, err := bootstrap.Setup(ctx, bootstrap.Options{ConfigPath: *configPath, Strict: *strict})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	go func() {
		w := new(app.Window)
		w.Option(app.Title("Signpad"))
		w.Option(app.Size(unit.Dp(1280), unit.Dp(900)))

		err := loop(ctx, w, env, flag.Arg(0))
		stop()
		if cerr := env.Close(); cerr != nil {
			env.Log.Warn("shutdown", "error", cerr)
		}
		if err != nil {
			log.Fatal(err)
		}
		os.Exit(0)
	}()
	app.Main()
}

func loop(ctx context.Context, w *app.Window, env *bootstrap.Env, path string) error {
	mt := material.NewTheme()
	mt.Shaper = text.NewShaper(text.WithCollection(gofont.Collection()))
	t := theme.NewTheme(mt)

	win, err := ui.NewWindow(ctx, t, env, w.Invalidate)
	if err != nil {
		return err
	}

	env.Loader.OnChange(func(old, new *config.Config) {
		if old == nil || old.Annotator.Name != new.Annotator.Name {
			win.SetAnnotator(new.Annotator.Name)
		}
	})
	if err := env.Loader.Watch(); err != nil {
		env.Log.Warn("config changes will not be picked up", "error", err)
	}
	go func() {
		<-ctx.Done()
		w.Invalidate()
	}()

	if path != "" {
		win.Open(path)
	}

	var ops op.Ops
	for {
		switch e := w.Event().(type) {
		case app.DestroyEvent:
			return e.Err
		case app.FrameEvent:
			if ctx.Err() != nil {
				return nil
			}
			gtx := app.NewContext(&ops, e)
			win.Layout(gtx)
			e.Frame(gtx.Ops)
		}
	}
}
