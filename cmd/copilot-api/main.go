// Command copilot-api runs the GitHub Copilot API gateway: an HTTP server
// translating OpenAI chat-completions/Responses and Anthropic Messages
// requests onto a user's GitHub Copilot subscription.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/browser"
	log "github.com/sirupsen/logrus"

	"github.com/copilot-gateway/copilot-api/internal/api"
	"github.com/copilot-gateway/copilot-api/internal/approval"
	"github.com/copilot-gateway/copilot-api/internal/auth"
	"github.com/copilot-gateway/copilot-api/internal/config"
	"github.com/copilot-gateway/copilot-api/internal/hooks"
	"github.com/copilot-gateway/copilot-api/internal/logging"
	"github.com/copilot-gateway/copilot-api/internal/ratelimit"
	"github.com/copilot-gateway/copilot-api/internal/upstream"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		runStart(os.Args[1:])
		return
	}

	switch os.Args[1] {
	case "start":
		runStart(os.Args[2:])
	case "auth":
		runAuth(os.Args[2:])
	case "check-usage":
		runCheckUsage(os.Args[2:])
	case "debug":
		runDebug(os.Args[2:])
	case "hook":
		runHook(os.Args[2:])
	case "sync-skills":
		runSyncSkills(os.Args[2:])
	case "-h", "--help":
		printUsage()
	default:
		// No recognized subcommand: treat the whole argv as flags for the
		// implicit "start" command, matching the original CLI's top-level
		// flag set.
		runStart(os.Args[1:])
	}
}

func printUsage() {
	fmt.Println("copilot-api " + version)
	fmt.Println("usage: copilot-api [start|auth|check-usage|debug|hook|sync-skills] [flags]")
}

type sharedFlags struct {
	accountType  string
	githubToken  string
	showToken    bool
	verbose      bool
	manual       bool
	rateLimit    int64
	wait         bool
	proxyEnv     bool
	claudeCode   bool
}

func bindShared(fs *flag.FlagSet, f *sharedFlags) {
	fs.StringVar(&f.accountType, "account-type", "individual", "Copilot account type: individual, business, or enterprise")
	fs.StringVar(&f.githubToken, "github-token", "", "GitHub access token (overrides the persisted token file)")
	fs.BoolVar(&f.showToken, "show-token", false, "print tokens unmasked")
	fs.BoolVar(&f.verbose, "verbose", false, "enable debug logging")
	fs.BoolVar(&f.manual, "manual", false, "require interactive approval for every request")
	fs.Int64Var(&f.rateLimit, "rate-limit", 0, "minimum seconds between requests (0 disables)")
	fs.BoolVar(&f.wait, "wait", false, "block until the rate limit window elapses instead of rejecting")
	fs.BoolVar(&f.proxyEnv, "proxy-env", false, "honor HTTP_PROXY/HTTPS_PROXY for upstream calls")
	fs.BoolVar(&f.claudeCode, "claude-code", false, "accepted for compatibility; only logs a notice, changes no defaults")
}

func runStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	var f sharedFlags
	bindShared(fs, &f)
	addr := fs.String("addr", "127.0.0.1:4141", "listen address")
	logFile := fs.String("log-file", "", "rotate request logs to this file in addition to stdout")
	configPath := fs.String("config", "", "path to a YAML config file overlay")
	hookManifest := fs.String("hook-manifest", "", "explicit hooks.json path (skips ancestor-directory resolution)")
	fs.Parse(args)

	loadDotEnv()

	logging.SetupBaseLogger(*logFile)
	if f.verbose {
		logging.SetLogLevel("debug")
	} else {
		logging.SetLogLevel("info")
	}

	fileCfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config file")
	}
	seen := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { seen[fl.Name] = true })

	merged := *fileCfg
	if seen["account-type"] || merged.AccountType == "" {
		merged.AccountType = f.accountType
	}
	if seen["manual"] {
		merged.ManualApprove = f.manual
	}
	if seen["show-token"] {
		merged.ShowToken = f.showToken
	}
	if seen["rate-limit"] {
		merged.RateLimitSecs = optionalInt64(f.rateLimit)
	}
	if seen["wait"] {
		merged.RateLimitWait = f.wait
	}
	if *hookManifest != "" {
		merged.HookManifest = *hookManifest
	}

	cfg := config.New(&merged)
	if f.githubToken != "" {
		cfg.SetGitHubToken(f.githubToken)
	}
	cfg.SetProxyEnv(f.proxyEnv)

	paths, err := auth.EnsurePaths()
	if err != nil {
		log.WithError(err).Fatal("failed to prepare state directory")
	}

	if f.claudeCode {
		log.Info("--claude-code set; pointing Claude Code at this gateway is handled by the desktop configuration front-end, not this binary")
	}

	ghClient := auth.NewClient(nil)
	manager := auth.NewManager(cfg, ghClient, paths)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := manager.Bootstrap(ctx); err != nil {
		log.WithError(err).Warn("initial copilot token exchange failed; will retry in background")
	}
	go manager.Run(ctx)

	obs, err := hooks.NewObserver()
	if err != nil {
		log.WithError(err).Warn("failed to open hook observation log; observations will not be persisted")
	} else {
		go obs.Run(ctx)
	}

	hookExec := hooks.NewExecutor()
	if obs != nil {
		hookExec.Observe = obs.Publish
	}
	if cfg.HookManifest() != "" {
		hookExec.ExplicitManifestPath = cfg.HookManifest()
		go hooks.WatchManifest(ctx, cfg.HookManifest())
	}
	limitSecs, _, limitWait := cfg.RateLimit()
	limiter := ratelimit.New(limitSecs, limitWait)
	gate := &approval.Gate{
		Enabled:  cfg.ManualApprove,
		Prompter: approval.TerminalPrompter{In: os.Stdin, Out: os.Stdout},
	}

	upstreamClient := upstream.New(cfg, nil)
	upstreamClient.Refresh = manager.EnsureFresh

	deps := api.Deps{
		Cfg:        cfg,
		Upstream:   upstreamClient,
		Hooks:      hookExec,
		RateLimit:  limiter,
		Approval:   gate,
		AuthClient: ghClient,
		AuthPaths:  paths,
	}
	router := api.NewRouter(deps)

	srv := &http.Server{Addr: *addr, Handler: router}
	go func() {
		log.WithField("addr", *addr).Info("copilot-api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// loadDotEnv loads a ".env" file from the working directory if present,
// so provider API keys and endpoint overrides (OPENAI_API_KEY,
// AZURE_OPENAI_ENDPOINT, ANTHROPIC_API_KEY, ...) can live outside the
// shell environment.
func loadDotEnv() {
	wd, err := os.Getwd()
	if err != nil {
		return
	}
	if err := godotenv.Load(filepath.Join(wd, ".env")); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("failed to load .env file")
	}
}

func optionalInt64(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return &v
}

func runAuth(args []string) {
	fs := flag.NewFlagSet("auth", flag.ExitOnError)
	showToken := fs.Bool("show-token", false, "print the obtained token unmasked")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	fs.Parse(args)

	logging.SetupBaseLogger("")
	if *verbose {
		logging.SetLogLevel("debug")
	}

	paths, err := auth.EnsurePaths()
	if err != nil {
		log.WithError(err).Fatal("failed to prepare state directory")
	}
	cfg := config.New(&config.File{ShowToken: *showToken})
	client := auth.NewClient(nil)

	flow := &auth.DeviceFlow{
		Client: client,
		Paths:  paths,
		Cfg:    cfg,
		Notify: func(uri, code string) {
			fmt.Printf("Open %s and enter code: %s\n", uri, code)
			if err := browser.OpenURL(uri); err != nil {
				log.WithError(err).Debug("could not auto-open browser; use the printed URL instead")
			}
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	user, err := flow.Run(ctx)
	if err != nil {
		log.WithError(err).Fatal("authentication failed")
	}
	fmt.Printf("Authenticated as %s\n", user.Login)
}

func runCheckUsage(args []string) {
	fs := flag.NewFlagSet("check-usage", flag.ExitOnError)
	fs.Parse(args)

	logging.SetupBaseLogger("")
	paths, err := auth.EnsurePaths()
	if err != nil {
		log.WithError(err).Fatal("failed to prepare state directory")
	}
	token := auth.ReadToken(paths.GitHubTokenPath)
	if token == "" {
		log.Fatal("no github token found; run `copilot-api auth` first")
	}

	client := auth.NewClient(nil)
	usage, err := client.GetCopilotUsage(context.Background(), token)
	if err != nil {
		log.WithError(err).Fatal("failed to fetch copilot usage")
	}
	out, _ := json.MarshalIndent(usage, "", "  ")
	fmt.Println(string(out))
}

func runDebug(args []string) {
	fs := flag.NewFlagSet("debug", flag.ExitOnError)
	asJSON := fs.Bool("json", false, "emit machine-readable JSON instead of plain text")
	fs.Parse(args)

	paths, err := auth.EnsurePaths()
	if err != nil {
		log.WithError(err).Fatal("failed to prepare state directory")
	}
	cfg := config.New(&config.File{})
	if tok := auth.ReadToken(paths.GitHubTokenPath); tok != "" {
		cfg.SetGitHubToken(tok)
	}
	snap := cfg.Describe()

	if *asJSON {
		out, _ := json.MarshalIndent(snap, "", "  ")
		fmt.Println(string(out))
		return
	}

	fmt.Printf("account type:   %s\n", snap.AccountType)
	fmt.Printf("vscode version: %s\n", snap.VSCodeVersion)
	fmt.Printf("github token:   %s\n", snap.GitHubToken)
	fmt.Printf("copilot token:  %s\n", snap.CopilotToken)
	fmt.Printf("manual approve: %v\n", snap.ManualApprove)
	fmt.Printf("use tiktoken:   %v\n", snap.UseTiktoken)
	fmt.Printf("hook manifest:  %s\n", snap.HookManifest)
	if snap.RateLimitSecs != nil {
		fmt.Printf("rate limit:     %ds (wait: %v)\n", *snap.RateLimitSecs, snap.RateLimitWait)
	} else {
		fmt.Printf("rate limit:     off\n")
	}

	recent := logging.GetRecentGlobalEntries(50)
	for _, entry := range recent {
		fmt.Printf("[%s] %s %s\n", entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Message)
	}
}

func runHook(args []string) {
	fs := flag.NewFlagSet("hook", flag.ExitOnError)
	event := fs.String("event", "", "lifecycle event to invoke hooks for")
	manifestPath := fs.String("config", "", "explicit hooks.json path (skips ancestor-directory resolution)")
	fs.Parse(args)

	if *event == "" {
		log.Fatal("--event is required")
	}

	exec := hooks.NewExecutor()
	if *manifestPath != "" {
		exec.ExplicitManifestPath = *manifestPath
	}

	raw, _ := io.ReadAll(os.Stdin)
	var in hooks.Input
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &in)
	}
	cwd, _ := os.Getwd()
	if in.Cwd == "" {
		in.Cwd = cwd
	}

	results := exec.Run(context.Background(), hooks.NormalizeEvent(*event), in)
	for _, r := range results {
		if r.Stdout != "" {
			fmt.Println(r.Stdout)
		}
		if r.Stderr != "" {
			fmt.Fprintln(os.Stderr, r.Stderr)
		}
	}
	// Echo the (possibly cwd-filled-in) input back out so a caller piping
	// this subcommand into another tool sees exactly what was evaluated.
	echoed, err := json.Marshal(in)
	if err == nil {
		fmt.Println(string(echoed))
	}
	if hooks.AnyVetoed(results) {
		os.Exit(1)
	}
}

func runSyncSkills(args []string) {
	fs := flag.NewFlagSet("sync-skills", flag.ExitOnError)
	fs.Parse(args)

	logging.SetupBaseLogger("")
	paths, err := auth.EnsurePaths()
	if err != nil {
		log.WithError(err).Fatal("failed to prepare state directory")
	}
	log.WithField("app_dir", paths.AppDir).Info("sync-skills is a no-op in this gateway; skill sync is handled by the external skills-sync downloader")
}
