package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"voxtask/internal/dialogue"
	"voxtask/internal/intent"
	"voxtask/internal/match"
	"voxtask/internal/speech"
	"voxtask/internal/store"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitInternal = 10
)

type GlobalFlags struct {
	Root         string
	Memory       bool
	JSON         bool
	Quiet        bool
	Debug        bool
	SpeakCmd     string
	ExtractorURL string
}

func Run(args []string) int {
	gf, rest, err := extractGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return ExitUsage
	}

	if len(rest) == 0 {
		printHelp()
		return ExitUsage
	}

	cmd := rest[0]
	cmdArgs := rest[1:]

	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		printHelp()
		return ExitOK
	}

	a, err := newApp(gf)
	if err != nil {
		fmt.Fprintln(os.Stderr, "voxtask:", err)
		return ExitInternal
	}
	defer a.close()

	switch cmd {
	case "init":
		return a.cmdInit(cmdArgs)
	case "do":
		return a.cmdDo(cmdArgs)
	case "chat":
		return a.cmdChat(cmdArgs)
	case "ls", "list":
		return a.cmdList(cmdArgs)
	case "config", "cfg":
		return a.cmdConfig(cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printHelp()
		return ExitUsage
	}
}

func printHelp() {
	fmt.Print(`voxtask — natural-language task manager (no DB)

Usage:
  voxtask [global flags] <command> [args]

Global flags:
  --root <path>         Store root (default: ~/.voxtask or VOXTASK_ROOT)
  --memory              In-memory store, nothing persisted (chat demos)
  --json                Print results as JSON to stdout
  --quiet
  --debug               Development logging to stderr
  --speak-cmd <cmd>     Speak replies through an external program (e.g. "espeak -s 140")
  --extractor-url <url> Remote intent extractor; falls back to the local parser on failure

Commands:
  init
  do "<utterance>" [--yes]
  chat
  ls [--status <s>] [--search <q>]
  config show
  config set <key> <value>
  help

Config keys:
  engine.confirm_complete   ask yes/no before completing a task (default false)
  engine.require_target     reject complete/delete/rename without a target (default true)
  engine.min_score          similarity floor for matches (default 0.3)
  engine.max_list           max tasks shown by list (default 5)

Utterances:
  add buy milk                 remind me to call the bank tomorrow
  complete buy milk            mark task number 2 as done
  delete the meeting task      rename buy milk to buy oat milk
  show my tasks
`)
}

func extractGlobalFlags(args []string) (GlobalFlags, []string, error) {
	// Allow flags anywhere by scanning and stripping known globals.
	gf := GlobalFlags{}

	// Default root from env or home.
	if env := os.Getenv("VOXTASK_ROOT"); env != "" {
		gf.Root = env
	} else {
		home, _ := os.UserHomeDir()
		if home != "" {
			gf.Root = filepath.Join(home, ".voxtask")
		} else {
			gf.Root = ".voxtask"
		}
	}

	out := make([]string, 0, len(args))
	skip := 0

	for i := 0; i < len(args); i++ {
		if skip > 0 {
			skip--
			continue
		}
		a := args[i]
		switch a {
		case "--root":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--root requires a value")
			}
			gf.Root = args[i+1]
			skip = 1
		case "--memory":
			gf.Memory = true
		case "--json":
			gf.JSON = true
		case "--quiet":
			gf.Quiet = true
		case "--debug":
			gf.Debug = true
		case "--speak-cmd":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--speak-cmd requires a value")
			}
			gf.SpeakCmd = args[i+1]
			skip = 1
		case "--extractor-url":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--extractor-url requires a value")
			}
			gf.ExtractorURL = args[i+1]
			skip = 1
		default:
			out = append(out, a)
		}
	}
	return gf, out, nil
}

// app bundles the wired collaborators for one invocation.
type app struct {
	gf      GlobalFlags
	ws      *store.Workspace
	st      store.Store
	engine  *dialogue.Engine
	speaker speech.Speaker
	log     *zap.Logger
}

func newApp(gf GlobalFlags) (*app, error) {
	log := zap.NewNop()
	if gf.Debug {
		dev, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		log = dev
	}

	a := &app{gf: gf, log: log, speaker: speech.NewCommand(gf.SpeakCmd)}

	policy := store.DefaultEngineConfig()
	if gf.Memory {
		a.st = store.NewMemory()
	} else {
		ws, err := store.Open(gf.Root)
		if err != nil {
			return nil, err
		}
		a.ws = ws
		a.st = ws
		policy = ws.EngineConfig()
	}

	var extractor intent.Extractor
	if gf.ExtractorURL != "" {
		extractor = intent.NewFallback(intent.NewRemote(gf.ExtractorURL, 0), nil)
	}
	a.engine = dialogue.New(a.st, extractor, policy, log)
	return a, nil
}

func (a *app) close() {
	_ = a.log.Sync()
}

func (a *app) cmdInit(args []string) int {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if a.ws == nil {
		fmt.Fprintln(os.Stderr, "init: nothing to initialize with --memory")
		return ExitUsage
	}
	if err := a.ws.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "init:", err)
		return ExitInternal
	}
	if !a.gf.Quiet {
		fmt.Println("Initialized voxtask store at:", a.ws.Root)
	}
	return ExitOK
}

func (a *app) cmdDo(args []string) int {
	fs := flag.NewFlagSet("do", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	yes := fs.Bool("yes", false, "Answer yes to a raised confirmation")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	utterance := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if utterance == "" {
		fmt.Fprintln(os.Stderr, "Usage: voxtask do \"<utterance>\" [--yes]")
		return ExitUsage
	}

	ctx := context.Background()
	sess := dialogue.NewSession()
	res := a.engine.Process(ctx, sess, utterance)
	if res.RequiresConfirmation && *yes {
		a.emit(res)
		res = a.engine.Process(ctx, sess, "yes")
	}
	a.emit(res)
	a.speak(ctx, res.Message)

	switch {
	case res.Success:
		return ExitOK
	case res.RequiresConfirmation || res.RequiresDisambiguation:
		if !a.gf.Quiet {
			fmt.Println("(use \"voxtask chat\" to answer, or \"do --yes\" to confirm)")
		}
		return ExitConflict
	default:
		return ExitNotFound
	}
}

func (a *app) cmdChat(args []string) int {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}

	ctx := context.Background()
	sess := dialogue.NewSession()
	if !a.gf.Quiet {
		fmt.Println("voxtask chat. Tell me what to do; \"exit\" to leave.")
	}

	sc := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch strings.ToLower(line) {
		case "exit", "quit", "bye":
			if !a.gf.Quiet {
				fmt.Println("Bye.")
			}
			return ExitOK
		}
		if line != "" {
			res := a.engine.Process(ctx, sess, line)
			a.emit(res)
			a.speak(ctx, res.Message)
		}
		fmt.Print("> ")
	}
	if err := sc.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "chat:", err)
		return ExitInternal
	}
	fmt.Println()
	return ExitOK
}

func (a *app) cmdList(args []string) int {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	status := fs.String("status", "", "Filter by status (pending|in-progress|completed)")
	search := fs.String("search", "", "Rank tasks by title similarity")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}

	var tasks []store.Task
	var err error
	if *status != "" {
		tasks, err = a.st.FilterByStatus(strings.TrimSpace(*status))
	} else {
		tasks, err = a.st.GetAll()
	}
	if err != nil {
		if errors.Is(err, store.ErrInvalid) {
			fmt.Fprintln(os.Stderr, "ls:", err)
			return ExitUsage
		}
		fmt.Fprintln(os.Stderr, "ls:", err)
		return ExitInternal
	}

	scores := map[string]float64{}
	if q := strings.TrimSpace(*search); q != "" {
		titles := make([]string, len(tasks))
		for i, t := range tasks {
			titles[i] = t.Title
		}
		ranked := match.RankAll(q, titles)
		picked := make([]store.Task, 0, len(ranked))
		for _, c := range ranked {
			picked = append(picked, tasks[c.Index])
			scores[tasks[c.Index].ID] = c.Score
		}
		tasks = picked
	}

	if a.gf.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"tasks": tasks})
		return ExitOK
	}

	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	if len(scores) > 0 {
		fmt.Fprintln(w, "ID\tST\tPRI\tDUE\tSCORE\tTITLE")
	} else {
		fmt.Fprintln(w, "ID\tST\tPRI\tDUE\tTITLE")
	}
	for _, t := range tasks {
		dueStr := "-"
		if t.Due != "" {
			dueStr = t.Due
		}
		if len(scores) > 0 {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\n",
				t.IDShort(12), t.StatusAbbrev(), t.PriorityAbbrev(), dueStr, scores[t.ID], t.Title)
		} else {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				t.IDShort(12), t.StatusAbbrev(), t.PriorityAbbrev(), dueStr, t.Title)
		}
	}
	_ = w.Flush()
	return ExitOK
}

func (a *app) cmdConfig(args []string) int {
	if a.ws == nil {
		fmt.Fprintln(os.Stderr, "config: no config with --memory")
		return ExitUsage
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: voxtask config <show|set> ...")
		return ExitUsage
	}
	switch args[0] {
	case "show":
		engine := a.ws.EngineConfig()
		if a.gf.JSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(a.ws.Config())
			return ExitOK
		}
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE")
		fmt.Fprintf(w, "root\t%s\n", a.ws.Root)
		fmt.Fprintf(w, "engine.confirm_complete\t%t\n", engine.ConfirmComplete)
		fmt.Fprintf(w, "engine.require_target\t%t\n", engine.RequireTarget)
		fmt.Fprintf(w, "engine.min_score\t%g\n", engine.MinScore)
		fmt.Fprintf(w, "engine.max_list\t%d\n", engine.MaxList)
		_ = w.Flush()
		return ExitOK
	case "set":
		return a.cmdConfigSet(args[1:])
	default:
		fmt.Fprintln(os.Stderr, "Usage: voxtask config <show|set> ...")
		return ExitUsage
	}
}

func (a *app) cmdConfigSet(args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: voxtask config set <key> <value>")
		return ExitUsage
	}
	key := strings.ToLower(strings.TrimSpace(args[0]))
	value := strings.TrimSpace(args[1])

	cfg := a.ws.Config()
	if cfg.Engine == nil {
		engine := store.DefaultEngineConfig()
		cfg.Engine = &engine
	}

	switch key {
	case "engine.confirm_complete":
		v, ok := parseBool(value)
		if !ok {
			return configSetInvalid(key, value)
		}
		cfg.Engine.ConfirmComplete = v
	case "engine.require_target":
		v, ok := parseBool(value)
		if !ok {
			return configSetInvalid(key, value)
		}
		cfg.Engine.RequireTarget = v
	case "engine.min_score":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f <= 0 || f > 1 {
			return configSetInvalid(key, value)
		}
		cfg.Engine.MinScore = f
	case "engine.max_list":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return configSetInvalid(key, value)
		}
		cfg.Engine.MaxList = n
	default:
		fmt.Fprintln(os.Stderr, "Unknown config key:", key)
		fmt.Fprintln(os.Stderr, "Allowed keys: engine.confirm_complete, engine.require_target, engine.min_score, engine.max_list")
		return ExitUsage
	}

	if err := a.ws.SaveConfig(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "config set:", err)
		return ExitInternal
	}
	if !a.gf.Quiet {
		fmt.Printf("Updated %s\n", key)
	}
	return ExitOK
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off":
		return false, true
	default:
		return false, false
	}
}

func configSetInvalid(key, value string) int {
	fmt.Fprintf(os.Stderr, "Invalid value for %s: %q\n", key, value)
	return ExitUsage
}

func (a *app) emit(res dialogue.Result) {
	if a.gf.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(res)
		return
	}
	if res.Message != "" {
		fmt.Println(res.Message)
	}
}

// speak is best effort; a broken speech command never fails the command.
func (a *app) speak(ctx context.Context, text string) {
	if err := a.speaker.Speak(ctx, text); err != nil {
		a.log.Warn("speech output failed", zap.Error(err))
	}
}
