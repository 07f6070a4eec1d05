package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"viperssh/pkg/launcher"
)

const version = "0.4.1"

var (
	flagConfig      string
	flagHost        string
	flagProto       string
	flagList        bool
	flagQuery       string
	flagTheme       string
	flagDryRun      bool
	flagNoDriver    bool
	flagKeepalive   int
	flagAuthTimeout int
	flagPrintConfig bool
	flagDebug       bool
)

func init() {
	flag.StringVar(&flagConfig, "config", "", "Config directory (defaults to $VIPERSSH_CONFIG, then XDG paths)")
	flag.StringVar(&flagHost, "host", "", "Connect directly (host display name, bare token, or literal user@host)")
	flag.StringVar(&flagProto, "proto", "ssh", "Protocol for --host and history-less connects: ssh|sftp")
	flag.BoolVar(&flagList, "list", false, "List environments and hosts, then exit")
	flag.StringVar(&flagQuery, "query", "", "Initial search query for the picker")
	flag.StringVar(&flagTheme, "theme", "", "Theme name (overrides persisted selection)")
	flag.BoolVar(&flagDryRun, "dry-run", false, "Print the client command instead of connecting")
	flag.BoolVar(&flagNoDriver, "no-driver", false, "Run ssh/sftp directly without prompt automation")
	flag.IntVar(&flagKeepalive, "keepalive", 60, "Keepalive interval in seconds after handoff (0 disables)")
	flag.IntVar(&flagAuthTimeout, "auth-timeout", 30, "Seconds to drive auth prompts before assuming a live session")
	flag.BoolVar(&flagPrintConfig, "print-config-path", false, "Print resolved config path candidates and exit")
	flag.BoolVar(&flagDebug, "debug", false, "Verbose logging to stderr")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "viperssh %s — terminal SSH/SFTP launcher\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  viperssh [flags]                  open the host picker\n")
		fmt.Fprintf(os.Stderr, "  viperssh --host <h> [--proto p]   connect directly\n")
		fmt.Fprintf(os.Stderr, "  viperssh cred <set|status|delete> --host <h> [--user u]\n")
		fmt.Fprintf(os.Stderr, "  viperssh setup                    create config dir and PATH symlink\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}
}

func main() {
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false, Prefix: "viperssh"})
	if flagDebug || os.Getenv("VIPERSSH_DEBUG") != "" {
		logger.SetLevel(log.DebugLevel)
	}

	if flag.NArg() >= 1 {
		switch flag.Arg(0) {
		case "cred":
			if err := runCredSubcommand(flag.Args()[1:]); err != nil {
				logger.Error(err.Error())
				os.Exit(exitCodeFromErr(err))
			}
			return
		case "setup":
			if err := runSetupSubcommand(flag.Args()[1:]); err != nil {
				logger.Error(err.Error())
				os.Exit(exitCodeFromErr(err))
			}
			return
		case "__connect":
			if err := runConnectSubcommand(flag.Args()[1:], logger); err != nil {
				logger.Error(err.Error())
				os.Exit(exitCodeFromErr(err))
			}
			return
		default:
			fmt.Fprintf(os.Stderr, "unknown subcommand %q\n\n", flag.Arg(0))
			flag.Usage()
			os.Exit(2)
		}
	}

	if flagPrintConfig {
		for _, p := range launcher.ConfigPathCandidates(flagConfig) {
			fmt.Println(p)
		}
		return
	}

	cfg, cfgPath, err := launcher.LoadConfig(flagConfig)
	if err != nil {
		if errors.Is(err, launcher.ErrConfigNotFound) {
			fmt.Fprintln(os.Stderr, err.Error())
			fmt.Fprintln(os.Stderr, "Run `viperssh setup` to create the config directory with an example inventory.")
			os.Exit(1)
		}
		logger.Error(err.Error())
		os.Exit(1)
	}
	logger.Debug("config loaded", "path", cfgPath)

	if flagList {
		for i := range cfg.Environments {
			env := &cfg.Environments[i]
			for _, h := range env.Hosts {
				fmt.Printf("%s\t%s\t%s\n", env.Name, h.Display, env.BuildTarget(h.Target))
			}
		}
		return
	}

	if strings.TrimSpace(flagHost) != "" {
		target, ok := cfg.FindTarget(flagHost)
		if !ok {
			logger.Error("host not found in any environment", "host", flagHost)
			os.Exit(1)
		}
		req := &launcher.ConnectionRequest{Target: target, Proto: flagProto}
		if err := connect(req, logger); err != nil {
			logger.Error(err.Error())
			os.Exit(exitCodeFromErr(err))
		}
		return
	}

	histPath, _ := launcher.DefaultHistoryPath()
	hist, err := launcher.LoadHistory(histPath)
	if err != nil {
		logger.Debug("history unavailable", "err", err)
		hist = &launcher.History{}
	}

	req, err := launcher.RunTUI(cfg, launcher.UIOptions{
		InitialQuery: flagQuery,
		Theme:        launcher.LoadTheme(flagTheme),
		History:      hist,
		HistoryPath:  histPath,
		Version:      version,
	})
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	if req == nil {
		return
	}

	if hist.Add(req.Target, req.Proto) && histPath != "" {
		if err := launcher.SaveHistory(histPath, hist); err != nil {
			logger.Debug("history not saved", "err", err)
		}
	}

	if err := connect(req, logger); err != nil {
		logger.Error(err.Error())
		os.Exit(exitCodeFromErr(err))
	}
}

func driverOptions(proto string) launcher.DriverOptions {
	return launcher.DriverOptions{
		Proto:             proto,
		AuthTimeout:       time.Duration(flagAuthTimeout) * time.Second,
		KeepaliveInterval: time.Duration(flagKeepalive) * time.Second,
	}
}

// connect runs one session for req, honoring --dry-run and --no-driver.
func connect(req *launcher.ConnectionRequest, logger *log.Logger) error {
	opts := driverOptions(req.Proto)
	argv := launcher.ClientArgv(opts, req.Target)

	if flagDryRun {
		fmt.Println(strings.Join(argv, " "))
		return nil
	}
	if flagNoDriver {
		return runPlain(argv)
	}

	fmt.Printf("Connecting to %s (%s)...\n", req.Target, req.Proto)
	d := launcher.NewDriver(launcher.NewCredentialStore(), logger)
	return d.Dial(context.Background(), req.Target, opts)
}

// runPlain hands the terminal straight to the client, no PTY in between.
func runPlain(argv []string) error {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// runConnectSubcommand is the internal driver entry point, for wrappers and
// scripts that already know the destination.
func runConnectSubcommand(args []string, logger *log.Logger) error {
	fs := flag.NewFlagSet("__connect", flag.ContinueOnError)
	var host, proto, user string
	var keepalive, authTimeout int
	fs.StringVar(&host, "host", "", "Destination (user@host or host)")
	fs.StringVar(&proto, "proto", "ssh", "ssh|sftp")
	fs.StringVar(&user, "user", "", "Username for credential lookup when not part of --host")
	fs.IntVar(&keepalive, "keepalive", 60, "Keepalive interval seconds (0 disables)")
	fs.IntVar(&authTimeout, "auth-timeout", 30, "Auth window seconds")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return errors.New("usage: viperssh __connect --host <destination> [--proto ssh|sftp] [--user u]")
	}

	d := launcher.NewDriver(launcher.NewCredentialStore(), logger)
	return d.Dial(context.Background(), host, launcher.DriverOptions{
		Proto:             proto,
		User:              user,
		AuthTimeout:       time.Duration(authTimeout) * time.Second,
		KeepaliveInterval: time.Duration(keepalive) * time.Second,
	})
}

func runCredSubcommand(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: viperssh cred <set|status|delete> --host <destination> [--user u]")
	}
	action := args[0]
	fs := flag.NewFlagSet("cred", flag.ContinueOnError)
	var host, user string
	fs.StringVar(&host, "host", "", "Destination key for the credential (user@host or host)")
	fs.StringVar(&host, "target", "", "Alias for --host")
	fs.StringVar(&user, "user", "", "Username when not part of --host")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return errors.New("missing required --host")
	}

	store := launcher.NewCredentialStore()
	switch action {
	case "set":
		pw, err := launcher.ReadPassword(fmt.Sprintf("Password for %s: ", host))
		if err != nil {
			return err
		}
		if err := store.Set(host, user, pw); err != nil {
			return err
		}
		fmt.Println("stored")
		return nil
	case "status", "get":
		// Verifies existence/access only; never prints the secret.
		if err := store.Verify(host, user); err != nil {
			return err
		}
		fmt.Println("present")
		return nil
	case "delete":
		if err := store.Delete(host, user); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	default:
		return fmt.Errorf("unknown cred action %q (expected set|status|delete)", action)
	}
}

func runSetupSubcommand(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	var noLink bool
	fs.BoolVar(&noLink, "no-link", false, "Skip installing the PATH symlink")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir, err := launcher.EnsureConfigDir(flagConfig)
	if err != nil {
		return err
	}
	fmt.Printf("config dir: %s\n", dir)

	example, err := launcher.WriteExampleConfig(dir)
	if err != nil {
		return err
	}
	fmt.Printf("example inventory: %s\n", example)

	if !noLink {
		link, linkErr := launcher.InstallSymlink("", "viperssh")
		if linkErr != nil {
			fmt.Fprintf(os.Stderr, "symlink skipped: %v\n", linkErr)
		} else {
			fmt.Printf("symlink: %s\n", link)
		}
	}

	fmt.Printf("\nCopy %s to %s/hosts.yaml and edit it to finish.\n", example, dir)
	return nil
}

func exitCodeFromErr(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		if status, ok := ee.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
	}
	return 1
}
