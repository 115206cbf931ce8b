package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/npezzotti/go-chatsync/internal/api"
	"github.com/npezzotti/go-chatsync/internal/config"
	"github.com/npezzotti/go-chatsync/internal/directory"
	"github.com/npezzotti/go-chatsync/internal/inspect"
	"github.com/npezzotti/go-chatsync/internal/session"
	"github.com/npezzotti/go-chatsync/internal/stats"
	"github.com/npezzotti/go-chatsync/internal/transport"
	"github.com/teris-io/shortid"
)

var (
	configPath string
	wsEndpoint string
	apiBaseURL string
	debugAddr  string
)

func main() {
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.StringVar(&wsEndpoint, "ws", "ws://localhost:8000/ws", "realtime websocket endpoint (ws, wss, http or https)")
	flag.StringVar(&apiBaseURL, "api", "http://localhost:8000", "REST API base url")
	flag.StringVar(&debugAddr, "debug-addr", "", "debug inspector address, disabled if empty")
	flag.Parse()

	sid, err := shortid.Generate()
	if err != nil {
		log.Fatal("session id:", err)
	}
	logger := log.New(os.Stderr, "[chatsync "+sid+"] ", log.LstdFlags)

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("config:", err)
	}

	client, err := api.NewClient(cfg.APIBaseURL, &http.Client{Timeout: cfg.FetchTimeout})
	if err != nil {
		logger.Fatal("api client:", err)
	}

	mux := http.NewServeMux()
	statsUpdater := stats.NewStatsUpdater(mux)

	sess := session.NewSession(
		logger,
		directory.NewStore(logger),
		client,
		transport.NewWebSocket(logger, cfg.SendBufferSize),
		statsUpdater,
		session.Options{
			FetchTimeout: cfg.FetchTimeout,
			SendRate:     cfg.SendRate,
			SendBurst:    cfg.SendBurst,
		},
	)
	sess.RegisterMetrics()

	statsUpdater.Run()
	go sess.Run()

	errCh := make(chan error, 1)
	var inspector *inspect.Inspector
	if cfg.DebugAddr != "" {
		inspector = inspect.NewInspector(logger, mux, cfg.DebugAddr, sid, sess, statsUpdater)
		go func() {
			errCh <- inspector.Start()
		}()
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
	err = sess.Connect(connectCtx, cfg.WSEndpoint)
	cancel()
	if err != nil {
		logger.Fatal("connect:", err)
	}
	sess.Bootstrap()

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	ctx := context.Background()
loop:
	for {
		select {
		case sig := <-sigs:
			logger.Printf("received signal: %s\n", sig)
			break loop
		case err := <-errCh:
			logger.Println("inspector:", err)
			break loop
		case line, ok := <-lines:
			if !ok {
				logger.Println("input closed")
				break loop
			}

			cmd, err := parseCommand(line)
			if errors.Is(err, errEmptyLine) {
				continue
			}
			if err != nil {
				fmt.Fprintln(os.Stdout, err)
				continue
			}

			quit, err := execute(ctx, sess, cmd, os.Stdout)
			if err != nil {
				fmt.Fprintln(os.Stdout, "error:", err)
			}
			if quit {
				break loop
			}
		}
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if inspector != nil {
		if err := inspector.Shutdown(shutDownCtx); err != nil {
			logger.Println(err)
		}
	}

	if err := sess.Disconnect(shutDownCtx); err != nil {
		logger.Println(err)
	}

	logger.Println("shutting down session...")
	if err := sess.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln(err)
	}
	statsUpdater.Stop()

	logger.Println("shutdown complete")
}

// loadConfig builds the config from flag defaults, overlays the config file
// and then reapplies flags that were set explicitly.
func loadConfig() (*config.Config, error) {
	cfg, err := config.NewConfig(wsEndpoint, apiBaseURL, debugAddr)
	if err != nil {
		return nil, err
	}

	if configPath == "" {
		return cfg, nil
	}

	if err := cfg.LoadFile(configPath); err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ws":
			cfg.WSEndpoint = wsEndpoint
		case "api":
			cfg.APIBaseURL = apiBaseURL
		case "debug-addr":
			cfg.DebugAddr = debugAddr
		}
	})

	return cfg, cfg.Validate()
}

func readLines(r io.Reader, lines chan<- string) {
	defer close(lines)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines <- sc.Text()
	}
}
