package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/rkscollector/rkscollector/internal/config"
	"github.com/rkscollector/rkscollector/internal/database"
	"github.com/rkscollector/rkscollector/internal/service"
	"github.com/rkscollector/rkscollector/pkg/logger"
	"github.com/rkscollector/rkscollector/pkg/ssh"
)

const usage = `Usage: rkscli-diag [flags] <command> [args]

Commands:
  list                 list available operations
  run <operation>      run one operation against the configured AP
  validate             check AP connection settings without connecting

Flags:
`

var ipv4Re = regexp.MustCompile(`^(25[0-5]|2[0-4]\d|1?\d?\d)(\.(25[0-5]|2[0-4]\d|1?\d?\d)){3}$`)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rkscli-diag", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "config file")
	host := fs.String("host", "", "AP address (overrides AP_IP)")
	port := fs.Int("port", 0, "AP SSH port (overrides AP_PORT)")
	user := fs.String("user", "", "AP username (overrides AP_USERNAME)")
	transport := fs.String("transport", "", "network|process (overrides AP_TRANSPORT)")
	asJSON := fs.Bool("json", false, "print the full response envelope as JSON")
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *transport != "" {
		cfg.SSH.Transport = strings.ToLower(*transport)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(stderr, err)
			return 2
		}
	}
	logCfg := cfg.Log
	logCfg.Output = "stderr"
	if err := logger.Init(logCfg); err != nil {
		fmt.Fprintf(stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	info := cfg.ConnectionInfo()
	if *host != "" {
		info.Host = *host
	}
	if *port != 0 {
		info.Port = *port
	}
	if *user != "" {
		info.Username = *user
	}

	switch cmd := fs.Arg(0); cmd {
	case "list":
		return listOperations(cfg, stdout)
	case "validate":
		return validate(cfg, info, stdout)
	case "run":
		if fs.NArg() < 2 {
			fmt.Fprintln(stderr, "run: missing operation name")
			return 2
		}
		return runOperation(cfg, info, fs.Arg(1), *asJSON, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		fs.Usage()
		return 2
	}
}

func listOperations(cfg *config.Config, stdout io.Writer) int {
	svc, err := service.NewFromConfig(cfg, nil, nil)
	if err != nil {
		fmt.Fprintln(stdout, err)
		return 1
	}
	t := table.NewWriter()
	t.SetOutputMirror(stdout)
	t.AppendHeader(table.Row{"OPERATION", "ALIAS", "COMMANDS", "DESCRIPTION"})
	for _, op := range svc.Operations() {
		t.AppendRow(table.Row{op.Name, op.LegacyName, strings.Join(op.Commands, "\n"), op.Description})
	}
	t.SetStyle(table.StyleLight)
	t.Render()
	return 0
}

// validate 只检查参数，不建立连接；密码只输出长度
func validate(cfg *config.Config, info ssh.ConnectionInfo, stdout io.Writer) int {
	ok := true
	check := func(label string, pass bool, detail string) {
		mark := "OK  "
		if !pass {
			mark = "FAIL"
			ok = false
		}
		fmt.Fprintf(stdout, "[%s] %-10s %s\n", mark, label, detail)
	}

	switch {
	case info.Host == "":
		check("AP_IP", false, "not set")
	case ipv4Re.MatchString(info.Host):
		check("AP_IP", true, info.Host)
	default:
		fmt.Fprintf(stdout, "[WARN] %-10s %s is not an IPv4 address\n", "AP_IP", info.Host)
	}
	check("AP_PORT", info.Port > 0 && info.Port <= 65535, fmt.Sprint(info.Port))
	check("AP_USERNAME", info.Username != "", info.Username)
	if info.Password == "" {
		check("AP_PASSWORD", false, "not set")
	} else {
		check("AP_PASSWORD", true, fmt.Sprintf("set (%d characters)", len(info.Password)))
	}
	check("transport", true, cfg.SSH.Transport)

	if err := info.Validate(); err != nil {
		fmt.Fprintln(stdout, err)
		ok = false
	}
	if !ok {
		return 1
	}
	fmt.Fprintln(stdout, "Connection settings look valid.")
	return 0
}

func runOperation(cfg *config.Config, info ssh.ConnectionInfo, name string, asJSON bool, stdout, stderr io.Writer) int {
	var runs service.RunRecorder
	if cfg.Database.Enabled {
		if err := database.InitSQLite(cfg.Database); err != nil {
			logger.Warnf("Run history disabled: %v", err)
		} else {
			defer database.Close()
			runs = database.NewRunStore(database.GetDB())
		}
	}
	svc, err := service.NewFromConfig(cfg, runs, nil)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	env := svc.Execute(ctx, name, info)

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(env)
	} else if env.Success {
		fmt.Fprintln(stdout, env.Text)
		if env.Partial {
			fmt.Fprintln(stderr, "warning: session timed out; result is based on partial output")
		}
	} else {
		fmt.Fprintln(stderr, env.Text)
	}
	if !env.Success {
		return 1
	}
	return 0
}
