package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/atrtrace/atr/internal/config"
	"github.com/atrtrace/atr/internal/logger"
	"github.com/atrtrace/atr/internal/metrics"
	"github.com/atrtrace/atr/internal/output"
	"github.com/atrtrace/atr/internal/probe"
	"github.com/atrtrace/atr/internal/trace"
	"github.com/atrtrace/atr/internal/tui"
)

type buildInfo struct {
	version string
	commit  string
	date    string
}

// options holds the parsed flags of one invocation.
type options struct {
	// Probe
	protocol   protocolValue
	targetHost string
	port       int

	// Sweep
	maxHops         int
	firstHop        int
	timeout         time.Duration
	concurrent      bool
	dropTimeouts    bool
	skipSetupErrors bool
	setupRetries    int

	// Output
	verbose    bool
	jsonOutput bool
	csvOutput  bool
	tuiMode    bool
	noColor    bool
	outputFile string

	// Telemetry
	logLevel    string
	metricsFile string
	otelStdout  bool

	// Config file
	cfgFile string
	cfg     *config.Config

	build buildInfo
}

func newRootCmd(build buildInfo) *cobra.Command {
	return newOptions(build).rootCmd()
}

func newOptions(build buildInfo) *options {
	return &options{build: build, protocol: protocolValue(probe.MethodICMP)}
}

func (o *options) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "atr [flags] [host[:port]]",
		Short: "Hop-by-hop path discovery with ICMP or TCP probes",
		Long: `atr discovers the hops toward a destination by sending one probe per
TTL and classifying what comes back: an ICMP Time Exceeded or a refused
connection means the path continues, an echo reply or an accepted
connection means the destination was reached.

Examples:
  atr example.com                  ICMP echo sweep (needs raw sockets)
  atr -P tcp example.com:443       TCP connect sweep to port 443
  atr -P tcp -p 22 192.0.2.10      TCP sweep, default port 22
  atr --concurrent example.com     Probe every TTL at once
  atr -v example.com               Verbose table output
  atr --json example.com           JSON output
  atr --tui example.com            Interactive TUI mode
  atr config --init                Create default config file`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return o.loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}

	cmd.PersistentFlags().StringVar(&o.cfgFile, "config", "", "Config file (default: "+config.GetConfigPath()+")")

	f := cmd.Flags()
	f.VarP(&o.protocol, "protocol", "P", "Probe protocol: icmp or tcp")
	f.StringVarP(&o.targetHost, "target-host", "t", "", "Target host[:port] (alternative to the positional argument)")
	f.IntVarP(&o.port, "port", "p", 80, "Destination port when the target names none")

	f.IntVarP(&o.maxHops, "max-hops", "m", 64, "TTL ceiling")
	f.IntVarP(&o.firstHop, "first-hop", "f", 1, "Starting TTL")
	f.DurationVarP(&o.timeout, "timeout", "w", 0, "Per-probe timeout (default 300ms icmp, 1s tcp)")
	f.BoolVar(&o.concurrent, "concurrent", false, "Probe every TTL at once")
	f.BoolVar(&o.dropTimeouts, "drop-timeouts", false, "With --concurrent, omit timed out hops")
	f.BoolVar(&o.skipSetupErrors, "skip-setup-errors", false, "Report socket setup failures as failed hops instead of aborting")
	f.IntVar(&o.setupRetries, "setup-retries", 0, "Extra attempts when socket setup fails")

	f.BoolVarP(&o.verbose, "verbose", "v", false, "Show detailed table output")
	f.BoolVar(&o.jsonOutput, "json", false, "Output in JSON format")
	f.BoolVar(&o.csvOutput, "csv", false, "Output in CSV format")
	f.BoolVar(&o.tuiMode, "tui", false, "Interactive TUI mode")
	f.BoolVar(&o.noColor, "no-color", false, "Disable colored output")
	f.StringVarP(&o.outputFile, "output", "o", "", "Also write the report to this file (extension added from the format when missing)")

	f.StringVar(&o.logLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	f.StringVar(&o.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	f.BoolVar(&o.otelStdout, "otel-stdout", false, "Print OpenTelemetry spans to stderr")

	cmd.MarkFlagsMutuallyExclusive("json", "csv", "verbose", "tui")

	cmd.AddCommand(newVersionCmd(o), newConfigCmd(o))
	return cmd
}

// loadConfig loads the config file and applies its values to unset flags.
func (o *options) loadConfig(cmd *cobra.Command) error {
	var err error
	if o.cfgFile != "" {
		o.cfg, err = config.LoadFrom(o.cfgFile)
	} else {
		o.cfg, _, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	return o.applyConfigDefaults(cmd)
}

// applyConfigDefaults applies config file values for unset flags.
func (o *options) applyConfigDefaults(cmd *cobra.Command) error {
	if o.cfg == nil {
		return nil
	}
	d := o.cfg.Defaults
	changed := cmd.Flags().Changed

	if !changed("protocol") && d.Protocol != "" {
		if err := o.protocol.Set(d.Protocol); err != nil {
			return fmt.Errorf("config defaults.protocol: %w", err)
		}
	}
	if !changed("max-hops") && d.MaxHops > 0 {
		o.maxHops = d.MaxHops
	}
	if !changed("first-hop") && d.FirstHop > 0 {
		o.firstHop = d.FirstHop
	}
	if !changed("timeout") && d.Timeout > 0 {
		o.timeout = d.Timeout
	}
	if !changed("port") && d.Port > 0 {
		o.port = d.Port
	}
	if !changed("setup-retries") && d.SetupRetries > 0 {
		o.setupRetries = d.SetupRetries
	}
	if !changed("metrics-file") && d.MetricsFile != "" {
		o.metricsFile = d.MetricsFile
	}
	if !changed("log-level") && o.cfg.LogLevel != "" {
		o.logLevel = o.cfg.LogLevel
	}

	for flag, v := range map[string]struct {
		dst *bool
		val bool
	}{
		"concurrent":        {&o.concurrent, d.Concurrent},
		"drop-timeouts":     {&o.dropTimeouts, d.DropTimeouts},
		"skip-setup-errors": {&o.skipSetupErrors, d.SkipSetupErrors},
		"otel-stdout":       {&o.otelStdout, d.OTelStdout},
		"no-color":          {&o.noColor, d.NoColor},
	} {
		if !changed(flag) && v.val {
			*v.dst = true
		}
	}

	// Only one output mode can come from the config, and never over a flag.
	if !changed("tui") && !changed("verbose") && !changed("json") && !changed("csv") {
		switch {
		case d.TUI:
			o.tuiMode = true
		case d.Verbose:
			o.verbose = true
		case d.JSON:
			o.jsonOutput = true
		case d.CSV:
			o.csvOutput = true
		}
	}
	return nil
}

// traceConfig builds the sweep configuration from the flags.
func (o *options) traceConfig() *trace.Config {
	tc := trace.DefaultConfig()
	tc.ProbeMethod = o.protocol.method()
	tc.MaxHops = o.maxHops
	tc.FirstHop = o.firstHop
	tc.Timeout = o.timeout
	tc.Port = o.port
	tc.SetupRetries = o.setupRetries

	if o.concurrent {
		tc.Strategy = trace.StrategyConcurrent
	}
	if o.dropTimeouts {
		tc.TimeoutPolicy = trace.TimeoutDrop
	}
	if o.skipSetupErrors {
		tc.SetupPolicy = trace.SetupSkip
	}
	return tc
}

func (o *options) format() output.Format {
	switch {
	case o.jsonOutput:
		return output.FormatJSON
	case o.csvOutput:
		return output.FormatCSV
	case o.verbose:
		return output.FormatVerbose
	default:
		return output.FormatText
	}
}

// target picks the target from the argument, --target-host or a prompt,
// then expands aliases.
func (o *options) target(cmd *cobra.Command, args []string) (string, error) {
	var target string
	switch {
	case len(args) == 1 && o.targetHost != "":
		return "", errors.New("target given both as argument and --target-host")
	case len(args) == 1:
		target = args[0]
	case o.targetHost != "":
		target = o.targetHost
	default:
		in, ok := cmd.InOrStdin().(*os.File)
		if !ok || !isatty.IsTerminal(in.Fd()) {
			return "", errors.New("no target given")
		}
		var err error
		target, err = promptForTarget(in, cmd.OutOrStdout(), o.cfg)
		if err != nil {
			return "", err
		}
	}

	if o.cfg != nil {
		target = o.cfg.ResolveAlias(target)
	}
	return target, nil
}

func (o *options) run(cmd *cobra.Command, args []string) error {
	target, err := o.target(cmd, args)
	if errors.Is(err, errPromptQuit) {
		return nil
	}
	if err != nil {
		return err
	}

	ctx := logger.IntoContext(cmd.Context(), logger.New(o.logLevel, cmd.ErrOrStderr()))

	// trace.Config treats port 0 as unset; on the command line it is an error.
	if o.port < 1 || o.port > 65535 {
		return fmt.Errorf("--port %d: %w", o.port, trace.ErrInvalidPort)
	}

	tc := o.traceConfig()
	if err := tc.Validate(); err != nil {
		return err
	}

	var rec *metrics.Recorder
	if o.metricsFile != "" {
		rec = metrics.New(tc.ProbeMethod.String())
		tc.OnHop = rec.ObserveHop
	}

	if o.otelStdout {
		tracing, err := metrics.InitTracing(ctx, cmd.ErrOrStderr(), o.build.version)
		if err != nil {
			return err
		}
		defer func() {
			if err := tracing.Shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.FromContext(ctx).WithError(err).Warn("Failed to flush spans")
			}
		}()
		tc.OTelTracer = tracing.Tracer()
	}

	result, err := o.trace(ctx, cmd.OutOrStdout(), target, tc)

	if o.outputFile != "" && result != nil {
		path, werr := output.WriteToFile(result, o.outputFile, output.NewFormatter(o.format(), output.Config{}))
		if werr != nil {
			return errors.Join(err, fmt.Errorf("failed to write report: %w", werr))
		}
		logger.FromContext(ctx).WithField("path", path).Info("Report written")
	}

	if rec != nil && result != nil {
		rec.ObserveTrace(result)
		if werr := rec.WriteToTextfile(o.metricsFile); werr != nil {
			return errors.Join(err, fmt.Errorf("failed to write metrics: %w", werr))
		}
	}
	return err
}

// trace runs the sweep and renders it to out.
func (o *options) trace(ctx context.Context, out io.Writer, target string, tc *trace.Config) (*trace.TraceResult, error) {
	if o.tuiMode {
		return tui.Run(ctx, target, tc, tui.ThemeFor(o.noColor))
	}

	outCfg := output.Config{Colors: !o.noColor}
	format := o.format()

	var lw *output.LineWriter
	if format.Streams() {
		lw = output.NewLineWriter(out, outCfg)
		protocol := tc.ProbeMethod.String()
		tc.OnResolved = func(t trace.Target) { lw.WriteHeader(t, protocol) }
		tc.OnHop = chainHops(tc.OnHop, lw.WriteHop)
	}

	tracer, err := trace.New(tc)
	if err != nil {
		return nil, withPermissionHint(fmt.Errorf("failed to create tracer: %w", err))
	}
	defer tracer.Close()

	result, err := tracer.Trace(ctx, target)
	if result == nil {
		return nil, withPermissionHint(fmt.Errorf("trace failed: %w", err))
	}

	if lw != nil {
		lw.WriteSummary(result)
		if werr := lw.Err(); werr != nil {
			return result, werr
		}
	} else {
		w := output.NewWriter(out, format, outCfg)
		if werr := w.Write(result); werr != nil {
			return result, werr
		}
	}

	if err != nil {
		return result, fmt.Errorf("trace interrupted: %w", err)
	}
	return result, nil
}

// withPermissionHint tells the user how to get past a raw socket
// permission failure.
func withPermissionHint(err error) error {
	if !probe.IsPermissionError(err) {
		return err
	}
	return fmt.Errorf("%w\nICMP probes need a raw socket: run as root or with CAP_NET_RAW, or use --protocol tcp", err)
}

func chainHops(fns ...func(trace.HopResult)) func(trace.HopResult) {
	return func(hop trace.HopResult) {
		for _, fn := range fns {
			if fn != nil {
				fn(hop)
			}
		}
	}
}

func newVersionCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "atr %s\n", o.build.version)
			fmt.Fprintf(out, "  Commit: %s\n", o.build.commit)
			fmt.Fprintf(out, "  Built:  %s\n", o.build.date)
			fmt.Fprintf(out, "  Config: %s\n", config.GetConfigPath())
		},
	}
}

func newConfigCmd(o *options) *cobra.Command {
	var initFlag, showFlag, pathFlag, exampleFlag bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the atr configuration file.

Commands:
  atr config --init       Create default config file
  atr config --show       Show the effective configuration
  atr config --path       Show config file path
  atr config --example    Print a commented example file`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			switch {
			case pathFlag:
				fmt.Fprintln(out, config.GetConfigPath())
				return nil

			case initFlag:
				path := config.GetConfigPath()
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config file already exists: %s", path)
				}
				if err := config.DefaultConfig().Save(); err != nil {
					return fmt.Errorf("failed to create config: %w", err)
				}
				fmt.Fprintf(out, "Created config file: %s\n", path)
				fmt.Fprintln(out, "\nEdit this file to customize defaults.")
				fmt.Fprintln(out, "Example: Set 'protocol: tcp' under 'defaults:' to always use TCP probes.")
				return nil

			case showFlag:
				s, err := o.cfg.YAML()
				if err != nil {
					return err
				}
				fmt.Fprint(out, s)
				return nil

			case exampleFlag:
				fmt.Fprint(out, config.GenerateExample())
				return nil
			}
			return cmd.Help()
		},
	}

	cmd.Flags().BoolVar(&initFlag, "init", false, "Create default config file")
	cmd.Flags().BoolVar(&showFlag, "show", false, "Show the effective configuration")
	cmd.Flags().BoolVar(&pathFlag, "path", false, "Show config file path")
	cmd.Flags().BoolVar(&exampleFlag, "example", false, "Print a commented example file")
	return cmd
}
