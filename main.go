package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/samber/do/v2"
	flag "github.com/spf13/pflag"

	"github.com/willie68/go_tpkutils/configs"
	"github.com/willie68/go_tpkutils/internal"
	"github.com/willie68/go_tpkutils/internal/api"
	"github.com/willie68/go_tpkutils/internal/config"
	"github.com/willie68/go_tpkutils/internal/export"
	"github.com/willie68/go_tpkutils/internal/logging"
	"github.com/willie68/go_tpkutils/internal/tpk"
	"github.com/willie68/go_tpkutils/internal/utils/measurement"
	"github.com/willie68/go_tpkutils/pkg/extstrgutils"
	"github.com/willie68/go_tpkutils/pkg/fileutils"
)

var (
	log         *logging.Logger
	configFile  string
	showVersion bool
	initConfig  bool
	verbose     int
	zoomList    string
	overwrite   bool
	tileBounds  bool
	dropEmpty   bool
	scheme      string
	pathFormat  string
	port        int
)

func init() {
	flag.BoolVarP(&initConfig, "init", "i", false, "init config, writes out a default server config.")
	flag.BoolVar(&showVersion, "version", false, "showing the version")
	flag.StringVarP(&configFile, "config", "c", "config.yaml", "this is the path and filename to the server config file")
	flag.IntVarP(&port, "port", "p", 0, "overwrite the port of the server config")
	flag.StringVarP(&zoomList, "zoom", "z", "", "limit export to these zoom levels, csv if more than one needed")
	flag.BoolVar(&overwrite, "overwrite", false, "overwrite an existing mbtiles file")
	flag.BoolVar(&tileBounds, "tile-bounds", false, "derive the bounds metadata from the exported tiles")
	flag.BoolVar(&dropEmpty, "drop-empty", false, "skip the well known empty tiles")
	flag.StringVar(&scheme, "scheme", "arcgis", "tile numbering scheme for the disk export, xyz or arcgis")
	flag.StringVar(&pathFormat, "path-format", export.DefaultPathFormat, "relative tile path layout for the disk export")
	flag.CountVarP(&verbose, "verbose", "v", "more verbose output, repeat for debug output")
	flag.Usage = func() {
		fmt.Printf("Usage of %s:\n", os.Args[0])
		fmt.Println()
		fmt.Println("  export mbtiles <tilepackage> <output>   export a tile package to an mbtiles file")
		fmt.Println("  export disk <tilepackage> <directory>   export a tile package to a directory tree")
		fmt.Println("  serve                                   serve configured tile packages over http")
		fmt.Println()
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("examples:")
		fmt.Printf("%s export mbtiles world.tpk world.mbtiles -z 0,1,2 --overwrite\n", os.Args[0])
		fmt.Printf("%s export disk world.tpk ./tiles --scheme xyz --drop-empty\n", os.Args[0])
		fmt.Printf("%s serve -c config.yaml -p 8580\n", os.Args[0])
	}
}

func main() {
	flag.Parse()
	if showVersion {
		fmt.Println(config.NewVersion().String())
		os.Exit(0)
	}
	if initConfig {
		fmt.Println(configs.ConfigFile)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "export":
		err = runExport(args[1:])
	case "serve":
		err = runServe()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\r\n\r\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(0)
}

func runExport(args []string) error {
	if len(args) != 3 {
		flag.Usage()
		return fmt.Errorf("export needs a target, a tile package and an output path")
	}
	target, src, dst := args[0], args[1], args[2]

	initCliLogging()
	log = logging.New().WithName("main")

	var zoom []int
	if zoomList != "" {
		var err error
		zoom, err = extstrgutils.SplitIntParam(zoomList)
		if err != nil {
			return fmt.Errorf("invalid zoom list %q: %v", zoomList, err)
		}
	}

	p, err := tpk.Open(src)
	if err != nil {
		return err
	}
	defer p.Close()
	log.Infof("opened %s: %s, format %s, zoom levels %v", src, p.Meta.Name, p.Meta.Format, p.ZoomLevels())

	metrics := measurement.New(verbose >= 2)
	ex := export.NewExporter(metrics)
	start := time.Now()

	switch target {
	case "mbtiles":
		if fileutils.FileExists(dst) && !overwrite {
			return fmt.Errorf("%s already exists, use --overwrite to replace it", dst)
		}
		err = ex.ToMBTiles(p, dst, export.MBTilesOptions{
			Zoom:       zoom,
			TileBounds: tileBounds,
			DropEmpty:  dropEmpty,
			Progress:   verbose > 0,
		})
	case "disk":
		err = ex.ToDisk(p, dst, export.DiskOptions{
			Zoom:       zoom,
			Scheme:     scheme,
			DropEmpty:  dropEmpty,
			PathFormat: pathFormat,
			Progress:   verbose > 0,
		})
	default:
		return fmt.Errorf("unknown export target: %s", target)
	}
	if err != nil {
		return err
	}
	fmt.Printf("Exported tiles in %fs\n", time.Since(start).Seconds())
	for _, d := range metrics.Datas() {
		log.Debugf("%s: count %d, avg %dms, total %dms", d.Name, d.Count, d.Average, d.Total)
	}
	return nil
}

func runServe() error {
	if !fileutils.FileExists(configFile) {
		fmt.Fprint(os.Stderr, "no config given or dosn't exists.\r\n\r\n")
		flag.Usage()
		os.Exit(1)
	}
	if err := config.Load(configFile); err != nil {
		return err
	}
	config.SetPort(port)

	if err := logging.Init(*config.Logging()); err != nil {
		return err
	}
	defer logging.Close()
	log = logging.New().WithName("main")
	log.Infof("starting tile service on port %d", config.Port())

	inj := do.New()
	internal.Init(inj)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port()),
		Handler: api.APIRoutes(inj),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	log.Info("waiting for clients")
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("error on shutdown: %v", err)
	}
	internal.Stop(inj)
	log.Info("server finished")
	return nil
}

// initCliLogging maps the -v count to the log level for the export
// commands, which run without a config file.
func initCliLogging() {
	cfg := logging.Config{Level: "error"}
	_ = logging.Init(cfg)
	switch {
	case verbose >= 2:
		logging.SetLevel(slog.LevelDebug)
	case verbose == 1:
		logging.SetLevel(slog.LevelInfo)
	}
}
