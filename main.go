package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/talkincode/supplychain/config"
	"github.com/talkincode/supplychain/internal/adminapi"
	"github.com/talkincode/supplychain/internal/app"
	"github.com/talkincode/supplychain/internal/webserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

var (
	h         = flag.Bool("h", false, "help usage")
	showVer   = flag.Bool("v", false, "show version")
	conffile  = flag.String("c", "", "config yaml file")
	initdb    = flag.Bool("initdb", false, "run initdb")
	printConf = flag.Bool("printconf", false, "print default config yaml")
)

var (
	BuildVersion string
	BuildTime    string
)

func printHelp() {
	if *h {
		ustr := fmt.Sprintf("supplychain version: %s, Usage: supplychain -h\nOptions:", BuildVersion)
		_, _ = fmt.Fprintln(os.Stderr, ustr)
		flag.PrintDefaults()
		os.Exit(0)
	}
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("version: %s, build time: %s\n", BuildVersion, BuildTime)
		os.Exit(0)
	}

	printHelp()

	if *printConf {
		data, err := yaml.Marshal(config.DefaultAppConfig())
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(data))
		os.Exit(0)
	}

	cfg := config.LoadConfig(*conffile)
	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.S().Info("database initialized")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	adminapi.Init()
	server := webserver.NewAdminServer(application, cfg.Web.Host, cfg.Web.Port, cfg.System.Debug)
	application.StartBackgroundJobs(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		zap.S().Errorf("supplychain exited: %v", err)
	}
}
