package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/wave-analyzer/internal/app"
	"github.com/samvad-hq/wave-analyzer/internal/config"
	"github.com/samvad-hq/wave-analyzer/internal/domain"
	"github.com/samvad-hq/wave-analyzer/internal/logger"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "wave-analyzer: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("wave-analyzer", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: wave-analyzer [flags] <url>")
		fs.PrintDefaults()
	}
	config.RegisterFlags(fs)
	show := fs.Bool("show", false, "print the archived report for the URL instead of analyzing it")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one url, got %d", fs.NArg())
	}
	target := fs.Arg(0)

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.DebugObj("wave-analyzer starting", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	analyzer, err := app.NewAnalyzer(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize analyzer", "error", err)
		return err
	}
	defer analyzer.Close()

	if *show {
		rep, ok, err := analyzer.Show(target)
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}
		if !ok {
			return fmt.Errorf("no archived report for %s", target)
		}
		return printReport(out, rep)
	}

	rep, err := analyzer.Analyze(ctx, target)
	if err != nil {
		return err
	}
	return printReport(out, rep)
}

func printReport(out io.Writer, rep domain.Report) error {
	body := rep.Body
	if rep.Format == "json" {
		var buf bytes.Buffer
		if err := json.Indent(&buf, body, "", "  "); err == nil {
			body = buf.Bytes()
		}
	}
	if _, err := out.Write(body); err != nil {
		return err
	}
	_, err := fmt.Fprintln(out)
	return err
}
