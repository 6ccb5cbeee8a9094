package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rusq/dlog"
	"github.com/rusq/osenv/v2"
	"github.com/rusq/tracer"
	"github.com/schollz/progressbar/v3"

	"github.com/rusq/wipemydiscord/internal/command"
	"github.com/rusq/wipemydiscord/internal/discord"
	"github.com/rusq/wipemydiscord/internal/discord/authflow"
	"github.com/rusq/wipemydiscord/internal/purge"
	"github.com/rusq/wipemydiscord/internal/settings"
	"github.com/rusq/wipemydiscord/internal/tui"
	"github.com/rusq/wipemydiscord/internal/waipu"
)

const cacheDirName = "discord_msg_cleaner"

const AppName = "Wipe My Discord"

var (
	version   = "dev"
	builtOn   = "just now"
	gitCommit = ""
	gitRef    = ""

	versionSig = fmt.Sprintf("%s %s (built %s)", AppName, version, builtOn)
)

var _ = godotenv.Load() // load environment variables from .env, if present

type Params struct {
	CacheDirName string

	Token string
	RPS   float64

	Reset bool
	List  bool

	Batch chatIDs
	Kind  string
	Limit string

	Listen bool
	Prefix string

	Version bool
	Verbose bool
	Trace   string

	cacheDir string
}

func main() {
	p, err := parseCmdLine()
	if err != nil {
		dlog.Fatal(err)
	}
	if p.Version {
		ver(os.Stdout)
		return
	}

	dlog.SetDebug(p.Verbose)

	if err := p.initCacheDir(cacheDirName); err != nil {
		dlog.Fatalf("failed to create cache directory: %s", err)
	}

	if err := run(context.Background(), p); err != nil {
		dlog.Fatal(err)
	}
}

// chatIDs is the comma separated list of destination IDs.
type chatIDs []snowflake.ID

func (c *chatIDs) Set(val string) error {
	ss := strings.Split(val, ",")
	var ids = make([]snowflake.ID, 0, len(ss))

	for _, sID := range ss {
		id, err := snowflake.Parse(strings.TrimSpace(sID))
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	*c = ids
	return nil
}

func (c *chatIDs) String() string {
	return fmt.Sprint([]snowflake.ID(*c))
}

func parseCmdLine() (Params, error) {
	var p = Params{CacheDirName: cacheDirName}
	{
		flag.StringVar(&p.Token, "token", osenv.Secret("DISCORD_TOKEN", ""), "Discord user `token` (optional, will be requested if not set)")
		flag.Float64Var(&p.RPS, "rps", 4, "maximum Discord API requests per second, 0 disables the limiter")
		flag.BoolVar(&p.Reset, "reset", false, "reset authentication")
		flag.BoolVar(&p.List, "list", false, "list direct messages and group chats with their IDs")
		flag.Var(&p.Batch, "wipe", "batch mode, specify comma separated destination IDs on the command line")
		flag.StringVar(&p.Kind, "kind", "channel", "kind of the -wipe destinations: channel, dm or group")
		flag.StringVar(&p.Limit, "limit", "all", "number of messages to delete per destination in batch mode, or \"all\"")
		flag.BoolVar(&p.Listen, "listen", false, "listen for the purge command in the chats")
		flag.StringVar(&p.Prefix, "prefix", osenv.Value("CMD_PREFIX", command.DefaultPrefix), "command `prefix` for -listen")

		flag.BoolVar(&p.Version, "v", false, "print version and exit")
		flag.BoolVar(&p.Verbose, "verbose", osenv.Value("DEBUG", "") != "", "verbose output")
		flag.StringVar(&p.Trace, "trace", osenv.Value("TRACE_FILE", ""), "trace `filename`")

		flag.Parse()
	}
	if _, err := purge.ParseKind(p.Kind); err != nil {
		return p, err
	}
	if p.RPS < 0 {
		return p, errors.New("-rps must not be negative")
	}
	return p, nil
}

func (p *Params) initCacheDir(appName string) error {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return err
	}
	cacheDir = filepath.Join(cacheDir, appName)
	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return err
	}
	p.cacheDir = cacheDir
	return nil
}

func unlink(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func run(ctx context.Context, p Params) error {
	if p.Trace != "" {
		tr := tracer.New(p.Trace)
		if err := tr.Start(); err != nil {
			return err
		}
		defer tr.End()
	}

	header(os.Stdout)

	credsFile := filepath.Join(p.cacheDir, "token.dat")
	if p.Reset {
		if err := unlink(credsFile); err != nil {
			return err
		}
	}

	st := &settings.Store{Path: filepath.Join(p.cacheDir, "settings.dat")}
	if migrated, err := migrateSettings(st, filepath.Join(p.cacheDir, legacyFile)); err != nil {
		dlog.Printf("settings migration failed: %s", err)
	} else if migrated {
		dlog.Println("settings migrated")
	}

	cl, err := discord.New(p.Token,
		discord.WithAuth(authflow.TermAuth{}),
		discord.WithCredsFile(credsFile),
		discord.WithRateLimit(p.RPS),
		discord.WithDebug(p.Verbose),
	)
	if err != nil {
		return err
	}

	dlog.Println("Connecting to Discord . . .")
	if err := cl.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := cl.Stop(); err != nil {
			dlog.Printf("stop error: %s", err)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := purge.New(cl.Self())

	switch {
	case p.Listen:
		return listen(ctx, cl, eng, p.Prefix)
	case len(p.Batch) > 0:
		kind, err := purge.ParseKind(p.Kind)
		if err != nil {
			return err
		}
		return waipu.Batch(ctx, cl, eng, kind, []snowflake.ID(p.Batch), purge.ParseTarget(p.Limit))
	case p.List:
		return waipu.List(ctx, os.Stdout, cl)
	}

	done, finished := fakeProgress("Getting conversations . . .", 0)
	dests, err := cl.Destinations(ctx)
	close(done)
	<-finished
	if err != nil {
		return err
	}
	dlog.Printf("got %d conversations", len(dests))

	// run UI
	tva := tui.New(ctx, cl, eng, st)
	return tva.Run(ctx, dests)
}

// listen serves the purge command until ctx is cancelled.
func listen(ctx context.Context, cl *discord.Client, eng *purge.Engine, prefix string) error {
	h := command.NewHandler(eng, cl, cl, prefix)
	dlog.Printf("Listening, post %q in any chat to delete your messages there, press Ctrl+C to stop", command.Usage(prefix))
	return cl.Listen(ctx, func(ctx context.Context, in discord.Incoming) {
		if err := h.Handle(ctx, in); err != nil {
			dlog.Printf("command failed: %s", err)
		}
	})
}

// fakeProgress starts a fake spinner and returns a channel that must be closed
// once the operation completes. interval is interval between iterations. If not
// set, will default to 50ms.
func fakeProgress(title string, interval time.Duration) (chan<- struct{}, <-chan struct{}) {
	if interval == 0 {
		interval = 50 * time.Millisecond
	}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		bar := progressbar.NewOptions(
			-1,
			progressbar.OptionSetDescription(title),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionSpinnerType(9),
		)
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-done:
				bar.Finish()
				fmt.Println()
				close(finished)
				return
			case <-t.C:
				bar.Add(1)
			}
		}
	}()
	return done, finished
}

func header(w io.Writer) {
	fmt.Fprintf(w,
		"%s\n%s\n%s\n", versionSig, strings.Repeat("-", len(versionSig)),
		color.New(color.Italic).Sprint("Deletes only your own messages, one at a time."),
	)
	fmt.Fprintln(w)
}

func ver(w io.Writer) {
	header(w)
	if gitCommit != "" {
		fmt.Fprintf(w, "commit: %s ref: %s\n", gitCommit, gitRef)
	}
}
