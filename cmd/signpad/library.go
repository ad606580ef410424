package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	"text/tabwriter"

	"signpad/internal/bootstrap"
	"signpad/internal/library"
	"signpad/internal/raster"
)

func cmdLibrary(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: signpad library list|add|rm|import|verify|status", errUsage)
	}
	action, rest := args[0], args[1:]

	fs, configPath := flagSet("library " + action)
	replace := fs.Bool("replace", false, "Replace an existing signature (add)")
	pos, err := parseArgs(fs, rest)
	if err != nil {
		return err
	}

	env, err := bootstrap.Setup(ctx, bootstrap.Options{ConfigPath: *configPath, SkipNotify: true})
	if err != nil {
		return err
	}
	defer env.Close()
	lib, err := env.RequireLibrary()
	if err != nil {
		return err
	}

	switch action {
	case "list", "ls":
		return libraryList(ctx, lib)
	case "add":
		if len(pos) != 2 {
			return fmt.Errorf("%w: signpad library add <name> <image> [-replace]", errUsage)
		}
		return libraryAdd(ctx, lib, pos[0], pos[1], *replace)
	case "rm", "remove", "delete":
		if len(pos) != 1 {
			return fmt.Errorf("%w: signpad library rm <name>", errUsage)
		}
		if err := lib.Delete(ctx, pos[0]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Deleted signature: %s\n", pos[0])
		return nil
	case "import":
		dir := env.Config.Library.LegacyDir
		if len(pos) > 0 {
			dir = pos[0]
		}
		return libraryImport(ctx, lib, dir)
	case "verify":
		bad, err := lib.Verify(ctx)
		if err != nil {
			return err
		}
		if len(bad) == 0 {
			fmt.Fprintln(stdout, "All signatures verified.")
			return nil
		}
		for _, name := range bad {
			fmt.Fprintf(stdout, "  [CORRUPT] %s\n", name)
		}
		return fmt.Errorf("%d signatures failed verification", len(bad))
	case "status":
		st, err := lib.MigrationStatus(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Database: %s\n", env.Config.LibraryPath())
		fmt.Fprintf(stdout, "Schema:   version %d of %d\n", st.CurrentVersion, st.LatestVersion)
		return nil
	default:
		return fmt.Errorf("%w: unknown library action %q", errUsage, action)
	}
}

func libraryList(ctx context.Context, lib *library.Store) error {
	entries, err := lib.List(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(stdout, "No saved signatures.")
		return nil
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tADDED\tDIGEST\tSOURCE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%dx%d\t%s\t%s\t%s\n",
			e.Name, e.Width, e.Height,
			e.CreatedAt.Local().Format("2006-01-02 15:04"),
			hex.EncodeToString(e.Digest[:6]), e.Source)
	}
	return tw.Flush()
}

func libraryAdd(ctx context.Context, lib *library.Store, name, path string, replace bool) error {
	img, err := raster.DecodeFile(path)
	if err != nil {
		return err
	}
	if replace {
		err = lib.Save(ctx, name, img)
	} else {
		err = lib.Add(ctx, name, img)
	}
	if err != nil {
		return err
	}
	b := img.Bounds()
	fmt.Fprintf(stdout, "Saved signature %q (%dx%d)\n", name, b.Dx(), b.Dy())
	return nil
}

func libraryImport(ctx context.Context, lib *library.Store, dir string) error {
	res, err := lib.ImportLegacy(ctx, dir)
	if err != nil {
		return err
	}
	if res.Annotator != "" {
		fmt.Fprintf(stdout, "Annotator in index: %s\n", res.Annotator)
	}
	fmt.Fprintf(stdout, "Imported %d signatures from %s\n", len(res.Imported), dir)
	for _, name := range res.Imported {
		fmt.Fprintf(stdout, "  + %s\n", name)
	}
	skipped := make([]string, 0, len(res.Skipped))
	for name := range res.Skipped {
		skipped = append(skipped, name)
	}
	sort.Strings(skipped)
	for _, name := range skipped {
		fmt.Fprintf(stdout, "  - %s: %s\n", name, res.Skipped[name])
	}
	return nil
}
