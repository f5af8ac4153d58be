package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/0xkowalskidev/a2sprobe/a2s"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// fileConfig is what --config (or a discovered a2sprobe.yml) supplies on
// top of the command line.
type fileConfig struct {
	Endpoints []string      `mapstructure:"endpoints"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func newRootCmd() *cobra.Command {
	var (
		configPath    string
		timeoutFlag   time.Duration
		format        string
		verbose       bool
		endpointFlags []string
	)

	cmd := &cobra.Command{
		Use:   "a2sprobe [host:port ...]",
		Short: "Query Source/GoldSource game servers over the A2S protocol",
		Long: `a2sprobe sends the A2S_INFO / A2S_PLAYER / A2S_RULES / A2S_PING sequence to
one or more game servers and prints the parsed results.

Endpoints may be given as positional host:port arguments, repeated
-e/--endpoint flags, or an "endpoints:" list in a --config YAML file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadFileConfig(configPath)
			if err != nil {
				return err
			}

			raw := append(append([]string{}, cfg.Endpoints...), endpointFlags...)
			raw = append(raw, args...)
			if len(raw) == 0 {
				return fmt.Errorf("no endpoints given: pass host:port arguments, -e/--endpoint, or --config")
			}

			specs := make([]a2s.EndpointSpec, 0, len(raw))
			for _, e := range raw {
				spec, err := parseEndpoint(e)
				if err != nil {
					return err
				}
				specs = append(specs, spec)
			}

			timeout := timeoutFlag
			if !cmd.Flags().Changed("timeout") && cfg.Timeout > 0 {
				timeout = cfg.Timeout
			}

			logger := zerolog.Nop()
			if verbose {
				logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
			}

			done := a2s.Query(cmd.Context(), specs, a2s.Options{Timeout: timeout, Logger: logger})
			return output(done, format)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file listing endpoints and timeout")
	cmd.Flags().DurationVar(&timeoutFlag, "timeout", a2s.DefaultTimeout, "overall query deadline")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "log dispatcher activity to stderr")
	cmd.Flags().StringArrayVarP(&endpointFlags, "endpoint", "e", nil, "host:port endpoint (repeatable)")

	return cmd
}

func loadFileConfig(path string) (fileConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("a2sprobe")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if path == "" {
			return fileConfig{}, nil // no config requested and none found; that's fine
		}
		return fileConfig{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg fileConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return fileConfig{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func parseEndpoint(raw string) (a2s.EndpointSpec, error) {
	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		return a2s.EndpointSpec{}, fmt.Errorf("endpoint %q: expected host:port: %w", raw, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return a2s.EndpointSpec{}, fmt.Errorf("endpoint %q: invalid port: %w", raw, err)
	}
	return a2s.EndpointSpec{Host: host, Port: uint16(port)}, nil
}

func output(done a2s.DoneEvent, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(done.Results)
	case "text":
		return outputText(done)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func outputText(done a2s.DoneEvent) error {
	if done.TimedOut {
		fmt.Println("(run timed out; some endpoints below may be incomplete)")
	}

	for _, r := range done.Results {
		fmt.Printf("== %s:%d ==\n", r.Spec.Host, r.Spec.Port)
		if r.Err != nil {
			fmt.Printf("error: %v\n", r.Err)
			fmt.Println()
			continue
		}
		printInfo(r.Info)
		if r.PingMs > 0 {
			fmt.Printf("Ping: %.1fms\n", r.PingMs)
		}
		printPlayers(r.Players)
		printRules(r.Rules)
		fmt.Println()
	}
	return nil
}

func printInfo(info *a2s.Info) {
	if info == nil {
		fmt.Println("(no info)")
		return
	}
	if si := info.Source; si != nil {
		fmt.Printf("Name: %s\n", si.Name)
		fmt.Printf("Map: %s\n", si.Map)
		fmt.Printf("Game: %s\n", si.Game)
		fmt.Printf("Players: %d/%d (%d bots)\n", si.Players, si.MaxPlayers, si.Bots)
		if si.Version != "" {
			fmt.Printf("Version: %s\n", si.Version)
		}
		return
	}
	if gs := info.GoldSource; gs != nil {
		fmt.Printf("Name: %s\n", gs.Name)
		fmt.Printf("Map: %s\n", gs.Map)
		fmt.Printf("Game: %s\n", gs.Game)
		fmt.Printf("Players: %d/%d\n", gs.Players, gs.MaxPlayers)
	}
}

func printPlayers(players []a2s.Player) {
	if len(players) == 0 {
		return
	}
	fmt.Println("Players:")
	for _, p := range players {
		fmt.Printf("  %-20s score=%d time=%s\n", p.Name, p.Score, time.Duration(p.Duration*float32(time.Second)).Round(time.Second))
	}
}

func printRules(rules []a2s.Rule) {
	if len(rules) == 0 {
		return
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Name < rules[j].Name })
	fmt.Println("Rules:")
	for _, r := range rules {
		fmt.Printf("  %s = %s\n", r.Name, r.Value)
	}
}
