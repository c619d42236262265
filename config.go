package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind              string
	drawingsPerPlayer int
	maxPlayers        int
	playerTimeout     time.Duration
	port              int
	prefix            string
	profile           bool
	sessionTimeout    time.Duration
	tlsCert           string
	tlsKey            string
	turnDuration      time.Duration
	verbose           bool
	version           bool
	voteDuration      time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.sessionTimeout != 0 && c.sessionTimeout < time.Second {
		return fmt.Errorf("invalid session timeout (must be 0 or at least 1s): %s", c.sessionTimeout)
	}
	if c.turnDuration < time.Second {
		return fmt.Errorf("invalid turn duration (must be at least 1s): %s", c.turnDuration)
	}
	if c.voteDuration < time.Second {
		return fmt.Errorf("invalid vote duration (must be at least 1s): %s", c.voteDuration)
	}
	if c.drawingsPerPlayer < 1 {
		return fmt.Errorf("invalid drawings per player (must be at least 1): %d", c.drawingsPerPlayer)
	}
	if c.maxPlayers < minPlayers {
		return fmt.Errorf("invalid max players (must be at least %d): %d", minPlayers, c.maxPlayers)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) gameSettings() GameSettings {
	return GameSettings{
		TurnDuration:      c.turnDuration,
		VoteDuration:      c.voteDuration,
		DrawingsPerPlayer: c.drawingsPerPlayer,
		MaxPlayers:        c.maxPlayers,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("MEMODRAW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "memodraw",
		Short:         "A multiplayer memory drawing party game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: MEMODRAW_BIND)")
	fs.IntVar(&cfg.drawingsPerPlayer, "drawings-per-player", 3, "drawings each player makes before the game ends (env: MEMODRAW_DRAWINGS_PER_PLAYER)")
	fs.IntVar(&cfg.maxPlayers, "max-players", 10, "maximum number of players per room (env: MEMODRAW_MAX_PLAYERS)")
	fs.DurationVar(&cfg.playerTimeout, "player-timeout", 30*time.Second, "time before disconnected players leave their room (env: MEMODRAW_PLAYER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: MEMODRAW_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: MEMODRAW_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: MEMODRAW_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are closed (env: MEMODRAW_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: MEMODRAW_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: MEMODRAW_TLS_KEY)")
	fs.DurationVar(&cfg.turnDuration, "turn-duration", 60*time.Second, "time each player has to draw (env: MEMODRAW_TURN_DURATION)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: MEMODRAW_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: MEMODRAW_VERSION)")
	fs.DurationVar(&cfg.voteDuration, "vote-duration", 20*time.Second, "time players have to answer an error vote (env: MEMODRAW_VOTE_DURATION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("memodraw v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
