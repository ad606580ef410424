package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"signpad/internal/bootstrap"
	"signpad/internal/config"
	"signpad/internal/element"
	"signpad/internal/engine"
	"signpad/internal/fsutil"
	"signpad/internal/layout"
	"signpad/internal/pdfdoc"
	"signpad/internal/raster"
	"signpad/internal/render"
)

func cmdInfo(_ context.Context, args []string) error {
	fs, _ := flagSet("info")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return fmt.Errorf("%w: signpad info <pdf>", errUsage)
	}

	doc, err := pdfdoc.Open(pos[0])
	if err != nil {
		return err
	}
	defer doc.Close()

	fmt.Fprintf(stdout, "File:  %s\n", doc.Path())
	fmt.Fprintf(stdout, "Pages: %d\n", doc.PageCount())
	fmt.Fprintln(stdout)
	for i := 0; i < doc.PageCount(); i++ {
		size, err := doc.PageSize(i)
		if err != nil {
			fmt.Fprintf(stdout, "  page %d: %v\n", i+1, err)
			continue
		}
		fmt.Fprintf(stdout, "  page %d: %.2f x %.2f pt (%.1f x %.1f mm)\n",
			i+1, size.Width, size.Height, size.Width*25.4/72, size.Height*25.4/72)
	}
	return nil
}

// openSession sets up the environment, opens pdf and applies the layout
// file when one is given.
func openSession(ctx context.Context, env *bootstrap.Env, pdf, layoutPath string) (*engine.Session, error) {
	s := env.NewSession()
	if err := s.OpenDocument(ctx, pdf); err != nil {
		return nil, err
	}
	if layoutPath == "" {
		return s, nil
	}
	l, err := layout.Load(layoutPath)
	if err != nil {
		return nil, err
	}
	opts := layout.ApplyOptions{BaseDir: filepath.Dir(layoutPath)}
	if env.Library != nil {
		opts.Library = env.Library
	}
	elems, err := layout.Apply(ctx, s, l, opts)
	if err != nil {
		return nil, err
	}
	env.Log.Debug("layout applied", "file", layoutPath, "elements", len(elems))
	return s, nil
}

func cmdPreview(ctx context.Context, args []string) error {
	fs, configPath := flagSet("preview")
	layoutPath := fs.String("layout", "", "Layout file with the elements to draw")
	page := fs.Int("page", 1, "Page to render (1-based)")
	zoom := fs.Float64("zoom", 1, "Zoom factor")
	output := fs.String("o", "", "Output PNG (default: <pdf>_page<n>.png)")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 {
		return fmt.Errorf("%w: signpad preview <pdf> [-layout f] [-page n] [-zoom z] [-o out.png]", errUsage)
	}

	env, err := bootstrap.Setup(ctx, bootstrap.Options{ConfigPath: *configPath, SkipNotify: true})
	if err != nil {
		return err
	}
	defer env.Close()

	s, err := openSession(ctx, env, pos[0], *layoutPath)
	if err != nil {
		return err
	}
	defer s.CloseDocument()

	if err := s.SetZoom(ctx, *zoom); err != nil {
		return err
	}
	if err := s.GotoPage(ctx, *page-1); err != nil {
		return err
	}

	c, err := render.NewCompositor()
	if err != nil {
		return err
	}
	img, err := c.Compose(s.Adapter())
	if err != nil {
		return err
	}
	data, err := raster.EncodePNG(img)
	if err != nil {
		return err
	}

	out := *output
	if out == "" {
		base := strings.TrimSuffix(pos[0], filepath.Ext(pos[0]))
		out = fmt.Sprintf("%s_page%d.png", base, *page)
	}
	if err := fsutil.WriteFile(out, data, fsutil.PermPublicFile); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Preview of page %d/%d at %d%% written to %s\n",
		s.Page()+1, s.PageCount(), int(s.Viewport().Zoom*100+0.5), out)
	return nil
}

func cmdSign(ctx context.Context, args []string) error {
	fs, configPath := flagSet("sign")
	layoutPath := fs.String("layout", "", "Layout file with the elements to place (required)")
	name := fs.String("name", "", "Annotator name (default: from configuration)")
	outDir := fs.String("dir", "", "Output directory (default: from configuration)")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 || *layoutPath == "" {
		return fmt.Errorf("%w: signpad sign <pdf> -layout f [-name NAME] [-dir DIR]", errUsage)
	}

	env, err := bootstrap.Setup(ctx, bootstrap.Options{ConfigPath: *configPath})
	if err != nil {
		return err
	}
	defer env.Close()
	if *outDir != "" {
		env.Config.Export.OutputDir = *outDir
	}

	s, err := openSession(ctx, env, pos[0], *layoutPath)
	if err != nil {
		return err
	}
	defer s.CloseDocument()

	res, err := env.Sign(ctx, s, *name)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, res.Message(filepath.Base(res.Path)))
	fmt.Fprintf(stdout, "Output: %s\n", res.Path)
	fmt.Fprintf(stdout, "Images: %d  Texts: %d\n", res.Images, res.Texts)
	return nil
}

func cmdLayout(ctx context.Context, args []string) error {
	fs, configPath := flagSet("layout")
	layoutPath := fs.String("layout", "", "Layout file to check (required)")
	units := fs.String("units", "document", "Units of the printed layout: display or document")
	format := fs.String("format", "yaml", "Output format: yaml, json or toml")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) != 1 || *layoutPath == "" {
		return fmt.Errorf("%w: signpad layout <pdf> -layout f [-units u] [-format f]", errUsage)
	}

	env, err := bootstrap.Setup(ctx, bootstrap.Options{ConfigPath: *configPath, SkipNotify: true})
	if err != nil {
		return err
	}
	defer env.Close()

	s, err := openSession(ctx, env, pos[0], *layoutPath)
	if err != nil {
		return err
	}
	defer s.CloseDocument()

	u := layout.Units(*units)
	if u != layout.UnitsDisplay && u != layout.UnitsDocument {
		return fmt.Errorf("%w: -units must be display or document", errUsage)
	}
	// Images are listed by element ID; their source is not kept.
	l, err := layout.Capture(s, u, func(e *element.Element) string {
		return fmt.Sprintf("#%d", e.ID)
	})
	if err != nil {
		return err
	}
	data, err := layout.Encode(l, layout.Format(*format))
	if err != nil {
		return err
	}
	_, err = stdout.Write(data)
	return err
}

func cmdConfig(_ context.Context, args []string) error {
	fs, configPath := flagSet("config")
	initFile := fs.Bool("init", false, "Write the default configuration if the file does not exist")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	path := *configPath
	if len(pos) > 0 {
		path = pos[0]
	}
	path = bootstrap.ResolveConfigPath(path)

	var cfg *config.Config
	if *initFile {
		var created bool
		cfg, created, err = config.LoadOrCreate(path)
		if err == nil && created {
			fmt.Fprintf(stderr, "Created %s\n", path)
		}
	} else {
		cfg, err = config.NewLoader(path, nil).Load()
	}
	if err != nil {
		return err
	}

	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "# %s\n", path)
	_, err = stdout.Write(data)
	return err
}
