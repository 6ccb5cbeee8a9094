// Package discord provides the Discord side of the cleaner: it opens
// destinations for the purge engine, lists the account conversations and
// listens for the text commands.
package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bluele/gcache"
	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/mattn/go-colorable"
	"github.com/rusq/dlog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/time/rate"

	"github.com/rusq/wipemydiscord/internal/discord/authflow"
)

const (
	defCacheEvict = 10 * time.Minute
	defCacheSz    = 64
	defRPS        = 4 // requests per second, on top of discordgo own bucket limiter.
)

var (
	// ErrAlreadyRunning is returned if the attempt is made to start the client
	// twice.
	ErrAlreadyRunning = errors.New("already running, stop the running instance first")
	// ErrNotStarted is returned by the methods that need the caller identity
	// before Start was called.
	ErrNotStarted = errors.New("client is not started")
)

type Client struct {
	s *discordgo.Session

	cache   gcache.Cache
	limiter *rate.Limiter
	creds   credsStorage

	self    snowflake.ID
	started bool

	auth       authflow.TokenFlow
	debugLog   *zap.Logger
	httpClient *http.Client
}

type Option func(c *Client)

// WithAuth allows to override the token prompt.
func WithAuth(flow authflow.TokenFlow) Option {
	return func(c *Client) {
		c.auth = flow
	}
}

// WithCredsFile sets the path of the encrypted token file.
func WithCredsFile(path string) Option {
	return func(c *Client) {
		c.creds = credsStorage{filename: path}
	}
}

// WithRateLimit limits the rate of the REST calls to rps requests per second.
// Zero or negative value disables the limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithHTTPClient sets the HTTP client used for the REST calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithDebug(enable bool) Option {
	return func(c *Client) {
		if !enable {
			c.debugLog = nil
			return
		}
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		c.debugLog = zap.New(zapcore.NewCore(
			zapcore.NewConsoleEncoder(cfg),
			zapcore.AddSync(colorable.NewColorableStdout()),
			zapcore.DebugLevel,
		))
	}
}

// New creates a new client.  If the token is empty, it's loaded from the
// creds file, or requested from the user, if the file is not there.
func New(token string, opts ...Option) (*Client, error) {
	var c = Client{
		cache:   gcache.New(defCacheSz).LFU().Expiration(defCacheEvict).Build(),
		limiter: rate.NewLimiter(defRPS, 1),

		auth: authflow.TermAuth{}, // default is the terminal prompt
	}
	for _, opt := range opts {
		opt(&c)
	}

	if token == "" && c.creds.IsAvailable() {
		var err error
		token, err = c.loadToken()
		if err != nil {
			return nil, err
		}
	}
	if token == "" {
		return nil, errors.New("no token")
	}

	s, err := discordgo.New(token)
	if err != nil {
		return nil, err
	}
	if c.httpClient != nil {
		s.Client = c.httpClient
	}
	if c.debugLog != nil {
		s.LogLevel = discordgo.LogDebug
		discordgo.Logger = zapLogger(c.debugLog)
	}
	c.s = s

	return &c, nil
}

func (c *Client) loadToken() (string, error) {
	token, err := c.creds.Load()
	if err == nil && token != "" {
		return token, nil
	}
	dlog.Debugf("warning: error loading token file, requesting manual input: %s", err)
	token, err = c.auth.Token(context.Background())
	if err != nil {
		fmt.Println()
		if errors.Is(err, io.EOF) {
			return "", errors.New("exit")
		}
		return "", err
	}
	if err := c.creds.Save(token); err != nil {
		// not a fatal error
		dlog.Debugf("failed to save token: %s", err)
	}
	return token, nil
}

// Start validates the token and fetches the identity of the account.
func (c *Client) Start(ctx context.Context) error {
	if c.started {
		return ErrAlreadyRunning
	}
	if err := c.wait(ctx); err != nil {
		return err
	}
	me, err := c.s.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("login failed: %w", classify(err))
	}
	self, err := snowflake.Parse(me.ID)
	if err != nil {
		return fmt.Errorf("invalid user ID %q: %w", me.ID, err)
	}
	c.self = self
	c.started = true
	dlog.Debugf("logged in as %s (%s)", me.Username, self)
	return nil
}

// Stop releases the client resources.
func (c *Client) Stop() error {
	if !c.started {
		return nil
	}
	c.started = false
	if c.debugLog != nil {
		_ = c.debugLog.Sync()
	}
	return nil
}

// Self returns the ID of the authenticated user.
func (c *Client) Self() snowflake.ID {
	return c.self
}

// wait blocks until the limiter allows the next REST call.
func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

func zapLogger(l *zap.Logger) func(msgL, caller int, format string, a ...interface{}) {
	sl := l.Sugar()
	return func(msgL, _ int, format string, a ...interface{}) {
		switch msgL {
		case discordgo.LogError:
			sl.Errorf(format, a...)
		case discordgo.LogWarning:
			sl.Warnf(format, a...)
		case discordgo.LogInformational:
			sl.Infof(format, a...)
		default:
			sl.Debugf(format, a...)
		}
	}
}
