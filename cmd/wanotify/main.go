package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdp/qrterminal/v3"
	"github.com/talkincode/wanotify/config"
	"github.com/talkincode/wanotify/internal/adminapi"
	"github.com/talkincode/wanotify/internal/app"
	"github.com/talkincode/wanotify/internal/webserver"
	"github.com/talkincode/wanotify/internal/whatsapp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	h        = flag.Bool("h", false, "help usage")
	conffile = flag.String("c", "", "config yaml file")
	initdb   = flag.Bool("initdb", false, "drop and recreate all application tables")
	showQR   = flag.Bool("qr", false, "print pairing QR codes to the terminal")
)

func main() {
	flag.Parse()
	if *h {
		flag.Usage()
		return
	}

	cfg, err := config.LoadConfig(*conffile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.NewApplication(cfg)
	if err := application.Init(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "init application: %v\n", err)
		os.Exit(1)
	}
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.S().Info("database initialized")
		return
	}

	if *showQR {
		err := application.Bus().SubscribeAsync(whatsapp.TopicState, printChallenge(), false)
		if err != nil {
			zap.S().Warnf("subscribe pairing challenges: %v", err)
		}
	}

	adminapi.Init()
	server := webserver.NewWebServer(application)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return application.Run(gctx)
	})
	g.Go(func() error {
		return server.Start(gctx)
	})
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		zap.S().Errorf("wanotify stopped: %v", err)
		application.Release()
		os.Exit(1)
	}
	zap.S().Info("wanotify stopped")
}

// printChallenge renders each new pairing challenge as a terminal QR code.
func printChallenge() func(whatsapp.Snapshot) {
	var last string
	return func(s whatsapp.Snapshot) {
		if s.PairingChallenge == "" || s.PairingChallenge == last {
			return
		}
		last = s.PairingChallenge
		fmt.Println("Scan with WhatsApp > Linked devices:")
		qrterminal.GenerateHalfBlock(s.PairingChallenge, qrterminal.L, os.Stdout)
	}
}
