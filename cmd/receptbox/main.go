// Package main provides the receptbox binary: the thin shell around the
// recipe-box storage core. It loads configuration from environment
// variables, wires the SQLite image store, the document store, file
// delivery and metrics, and dispatches one subcommand.
//
// The application flow:
//  1. Configure logging.
//  2. Load and validate configuration.
//  3. Prepare the data and download directories.
//  4. Open the SQLite database and both stores.
//  5. Load (and migrate) the metadata document.
//  6. Run the requested subcommand.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/halvars/receptbox/internal/app"
	"github.com/halvars/receptbox/internal/autobackup"
	"github.com/halvars/receptbox/internal/backup"
	"github.com/halvars/receptbox/internal/codec"
	"github.com/halvars/receptbox/internal/config"
	"github.com/halvars/receptbox/internal/deliver"
	"github.com/halvars/receptbox/internal/domain"
	"github.com/halvars/receptbox/internal/metrics"
	"github.com/halvars/receptbox/internal/optimize"
	"github.com/halvars/receptbox/internal/store"
	"github.com/halvars/receptbox/internal/store/docfile"
	"github.com/halvars/receptbox/internal/store/sqlite"
)

// realClock implements app.Clock using time.Now.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	out := io.Writer(os.Stderr)
	color := false
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		out = colorable.NewColorable(os.Stderr)
		color = true
	}
	slog.SetDefault(slog.New(tint.NewHandler(out, &tint.Options{
		Level:      lvl,
		TimeFormat: "15:04:05",
		NoColor:    !color,
	})))
}

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(2)
	}
	return cfg
}

func ensureDir(dir string) {
	if st, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if mkErr := os.MkdirAll(dir, 0o700); mkErr != nil {
				slog.Error("failed to create directory", "dir", dir, "err", mkErr)
				os.Exit(3)
			}
		} else {
			slog.Error("stat directory", "dir", dir, "err", err)
			os.Exit(3)
		}
	} else if !st.IsDir() {
		slog.Error("path not a directory", "dir", dir)
		os.Exit(3)
	}
}

func openDatabase(dataDir string) *sql.DB {
	dbPath := filepath.Join(dataDir, "receptbox.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		slog.Error("open sqlite driver", "err", err)
		os.Exit(4)
	}
	return db
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: receptbox <command> [arguments]

commands:
  add         add a recipe (-title, -cat, -fav, -ings, -inst, -tags, image files...)
  list        list recipes (-cat NAME | -fav | -recent N)
  show        show one recipe by id
  image       write a recipe's image to the download dir (-n index)
  delete      delete a recipe by id
  fav         toggle a recipe's favorite flag
  theme       set the app theme
  search      search titles, ingredients and tags
  export      write a full backup (metadata + images)
  export-meta write a metadata-only export
  import      restore or merge from a backup file
  optimize    re-encode stored images at the smaller target size
  stats       print storage usage and counters
  autobackup  run the periodic metadata-only backup loop
`)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cfg := loadConfig()
	setupLogging(cfg.LogLevel)
	ensureDir(cfg.DataDir)

	db := openDatabase(cfg.DataDir)
	defer db.Close()
	images, err := sqlite.New(db)
	if err != nil {
		slog.Error("init sqlite schema", "err", err)
		os.Exit(4)
	}
	docs, err := docfile.New(cfg.DataDir, cfg.MaxDocBytes)
	if err != nil {
		slog.Error("init document store", "err", err)
		os.Exit(4)
	}
	downloads, err := deliver.New(cfg.DownloadDir)
	if err != nil {
		slog.Error("init download delivery", "err", err)
		os.Exit(5)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mgr := metrics.New(db, metrics.Config{})
	if err := mgr.InitSchema(ctx); err != nil {
		slog.Error("init metrics schema", "err", err)
		os.Exit(4)
	}
	mgr.Start(ctx)
	defer mgr.Stop(context.Background())

	svc := &app.Service{
		Docs:     store.New(docs, backup.Emergency{Delivery: downloads}, slog.Default()),
		Images:   images,
		Delivery: downloads,
		Clock:    realClock{},
		Codec: codec.Codec{
			MaxSide:  cfg.MaxImageSide,
			Quality:  cfg.JPEGQuality,
			HugeSide: cfg.HugeSideThreshold,
		},
		Optimize: optimize.Config{MaxSide: cfg.OptimizeMaxSide, Quality: cfg.OptimizeQuality},
		Metrics:  mgr,
	}
	if err := svc.Load(ctx); err != nil {
		slog.Error("load document", "err", err)
		os.Exit(6)
	}

	if err := run(ctx, svc, cfg, os.Args[1], os.Args[2:]); err != nil {
		slog.Error("command failed", "command", os.Args[1], "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, svc *app.Service, cfg *config.Config, cmd string, args []string) error {
	switch cmd {
	case "add":
		return cmdAdd(ctx, svc, args)
	case "list":
		return cmdList(svc, args)
	case "show":
		return cmdShow(svc, args)
	case "image":
		return cmdImage(ctx, svc, args)
	case "delete":
		return cmdDelete(ctx, svc, args)
	case "fav":
		return cmdFav(ctx, svc, args)
	case "theme":
		return cmdTheme(ctx, svc, args)
	case "search":
		return cmdSearch(svc, args)
	case "export":
		return cmdExport(ctx, svc)
	case "export-meta":
		_, err := svc.ExportMetadataOnly(ctx)
		return err
	case "import":
		return cmdImport(ctx, svc, args)
	case "optimize":
		return cmdOptimize(ctx, svc)
	case "stats":
		return cmdStats(ctx, svc)
	case "autobackup":
		return cmdAutobackup(ctx, svc, cfg)
	default:
		usage()
		return nil
	}
}

func cmdAdd(ctx context.Context, svc *app.Service, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	title := fs.String("title", "", "recipe title (required)")
	cat := fs.String("cat", "", "category (required)")
	fav := fs.Bool("fav", false, "mark as favorite")
	ings := fs.String("ings", "", "ingredients, one per line")
	inst := fs.String("inst", "", "instructions")
	tags := fs.String("tags", "", "comma-separated tags")
	_ = fs.Parse(args)
	var uploads [][]byte
	for _, path := range fs.Args() {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read image %s: %w", path, err)
		}
		uploads = append(uploads, raw)
	}
	rec, skipped, err := svc.SaveRecipe(ctx, app.SaveRecipeInput{
		Title:        *title,
		Category:     *cat,
		Favorite:     *fav,
		Ingredients:  *ings,
		Instructions: *inst,
		Tags:         *tags,
		Uploads:      uploads,
	})
	if err != nil {
		return err
	}
	fmt.Printf("saved %s (%s)\n", rec.Title, rec.ID)
	if skipped > 0 {
		fmt.Printf("%d image(s) could not be read and were skipped\n", skipped)
	}
	return nil
}

func cmdList(svc *app.Service, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	cat := fs.String("cat", "", "filter by category")
	fav := fs.Bool("fav", false, "favorites only")
	recent := fs.Int("recent", 0, "show the N newest recipes")
	_ = fs.Parse(args)
	var list []domain.Recipe
	switch {
	case *cat != "":
		list = svc.ListByCategory(*cat)
	case *fav:
		list = svc.Favorites()
	case *recent > 0:
		list = svc.Recent(*recent)
	default:
		list = svc.Document().Recipes
	}
	printRecipes(list)
	return nil
}

func cmdShow(svc *app.Service, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: receptbox show <id>")
	}
	rec := svc.Document().Find(args[0])
	if rec == nil {
		return domain.ErrNotFound
	}
	star := " "
	if rec.Favorite {
		star = "★"
	}
	fmt.Printf("%s %s [%s]\n", star, rec.Title, rec.Category)
	for _, i := range rec.Ingredients {
		fmt.Printf("  - %s\n", i)
	}
	if rec.Instructions != "" {
		fmt.Printf("\n%s\n", rec.Instructions)
	}
	if len(rec.Tags) > 0 {
		fmt.Printf("\ntags: %v\n", rec.Tags)
	}
	fmt.Printf("images: %d\n", len(rec.Images))
	return nil
}

func cmdImage(ctx context.Context, svc *app.Service, args []string) error {
	fs := flag.NewFlagSet("image", flag.ExitOnError)
	n := fs.Int("n", 0, "image index within the recipe")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: receptbox image [-n index] <recipe-id>")
	}
	rec := svc.Document().Find(fs.Arg(0))
	if rec == nil {
		return domain.ErrNotFound
	}
	var ref domain.ImageRef
	if *n < len(rec.Images) {
		ref = rec.Images[*n]
	}
	blob, mime, err := svc.ResolveImage(ctx, ref)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s-%d%s", rec.ID, *n, extFor(mime))
	if err := svc.Delivery.Deliver(name, mime, blob); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s, %d bytes)\n", name, mime, len(blob))
	return nil
}

func cmdDelete(ctx context.Context, svc *app.Service, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: receptbox delete <id>")
	}
	return svc.DeleteRecipe(ctx, args[0])
}

func cmdFav(ctx context.Context, svc *app.Service, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: receptbox fav <id>")
	}
	fav, err := svc.ToggleFavorite(ctx, args[0])
	if err != nil {
		return err
	}
	if fav {
		fmt.Println("favorited")
	} else {
		fmt.Println("unfavorited")
	}
	return nil
}

func cmdTheme(ctx context.Context, svc *app.Service, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: receptbox theme <%v>", domain.Themes)
	}
	return svc.SetTheme(ctx, args[0])
}

func cmdSearch(svc *app.Service, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: receptbox search <query>")
	}
	printRecipes(svc.Search(args[0]))
	return nil
}

func cmdExport(ctx context.Context, svc *app.Service) error {
	name, err := svc.ExportAll(ctx, func(done, total int) {
		fmt.Printf("\rconverting images %d/%d", done, total)
		if done == total {
			fmt.Println()
		}
	})
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", name)
	return nil
}

func cmdImport(ctx context.Context, svc *app.Service, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: receptbox import <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	res, err := svc.ImportFile(ctx, data)
	if err != nil {
		return fmt.Errorf("import failed, retry with the same file: %w", err)
	}
	fmt.Printf("imported: %d recipes, %d images (%d skipped)\n", res.Recipes, res.Images, res.Skipped)
	return nil
}

func cmdOptimize(ctx context.Context, svc *app.Service) error {
	rep, err := svc.RunOptimize(ctx)
	if err != nil {
		return err
	}
	if m, ok := svc.Metrics.(*metrics.Manager); ok {
		m.Observe(metrics.SummaryOptimizeSavedBytes, rep.Saved())
	}
	fmt.Printf("optimized: %d migrated, %d re-encoded, %d skipped, %d bytes saved\n",
		rep.Migrated, rep.Reencoded, rep.Skipped, rep.Saved())
	return nil
}

func cmdStats(ctx context.Context, svc *app.Service) error {
	u, err := svc.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("recipes: %d\nimages:  %d (%d bytes)\n", u.Recipes, u.Images, u.ImageBytes)
	if m, ok := svc.Metrics.(*metrics.Manager); ok {
		counters, err := m.Counters(ctx)
		if err != nil {
			return err
		}
		for _, c := range counters {
			fmt.Printf("%-28s %d\n", c.Name, c.Value)
		}
	}
	return nil
}

func cmdAutobackup(ctx context.Context, svc *app.Service, cfg *config.Config) error {
	r := autobackup.New(svc, autobackup.Config{Interval: cfg.AutoBackupInterval})
	r.Start(ctx)
	slog.Info("autobackup running", "interval", cfg.AutoBackupInterval.String())
	<-ctx.Done()
	r.Stop(context.Background())
	v := r.MetricsSnapshot()
	slog.Info("autobackup stopped", "cycles", v.Cycles, "failures", v.Failures, "last", v.LastFilename)
	return nil
}

func printRecipes(list []domain.Recipe) {
	for _, r := range list {
		star := " "
		if r.Favorite {
			star = "★"
		}
		fmt.Printf("%s %-36s  %-12s %s\n", star, r.ID, r.Category, r.Title)
	}
	fmt.Printf("%d recipe(s)\n", len(list))
}

func extFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/svg+xml":
		return ".svg"
	}
	return ".bin"
}
