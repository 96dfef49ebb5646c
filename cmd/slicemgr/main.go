// slicemgr – network slice deployment front end
//
// Usage:
//
//	slicemgr create [flags]       – normalize a slice request and deploy it
//	slicemgr list                 – list deployed slices
//	slicemgr show <slice>         – show a slice's status
//	slicemgr delete <slice>       – delete a slice
//	slicemgr flavors              – print the flavor catalog
//	slicemgr validate <file>      – check a slice document
//	slicemgr watch                – live slice dashboard
//	slicemgr serve                – run the HTTP API
//	slicemgr doctor               – check prerequisites
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/h3ow3d/slicemgr/internal/config"
	"github.com/h3ow3d/slicemgr/internal/dashboard"
	"github.com/h3ow3d/slicemgr/internal/doctor"
	"github.com/h3ow3d/slicemgr/internal/flavor"
	"github.com/h3ow3d/slicemgr/internal/log"
	"github.com/h3ow3d/slicemgr/internal/manifest"
	"github.com/h3ow3d/slicemgr/internal/naming"
	"github.com/h3ow3d/slicemgr/internal/normalize"
	"github.com/h3ow3d/slicemgr/internal/server"
	"github.com/h3ow3d/slicemgr/internal/slice"
	"github.com/h3ow3d/slicemgr/internal/xdg"
)

// app carries the settings resolved before any subcommand runs.
type app struct {
	configPath string
	verbose    bool

	dirs xdg.Dirs
	cfg  *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "slicemgr",
		Short: "Network slice deployment front end",
		Long: `slicemgr turns slice requests into the canonical slice document and hands
it to the external deployment backend.

A request is either a structured payload, an uploaded document passed
through untouched, or discrete fields (name, topology, VM count, per-VM
names and flavors) filled in from defaults and the flavor catalog.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/slicemgr/config.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "print backend diagnostics")

	root.AddCommand(
		createCmd(a),
		listCmd(a),
		showCmd(a),
		deleteCmd(a),
		flavorsCmd(),
		validateCmd(),
		watchCmd(a),
		serveCmd(a),
		doctorCmd(a),
	)
	return root
}

func (a *app) load() error {
	a.dirs = xdg.Default()
	path := a.configPath
	if path == "" {
		path = a.dirs.ConfigFile()
	}
	cfg, err := config.LoadFile(path, a.dirs)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Verbose = true
	}
	log.SetVerbose(cfg.Verbose)
	a.cfg = cfg
	return nil
}

func (a *app) manager() *slice.Manager {
	return slice.FromConfig(a.cfg)
}

// ── create ────────────────────────────────────────────────────────────────────

type createOpts struct {
	payload  string
	file     string
	name     string
	topology string
	numVMs   string
	vms      []string
	dryRun   bool
}

func createCmd(a *app) *cobra.Command {
	o := &createOpts{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Normalize a slice request and deploy it",
		Long: `Builds the slice document from exactly one input channel and runs the
deploy backend with it. When several channels are given the first one wins:

  1. --payload <file|->   structured JSON or YAML, used as-is
  2. --file <file>        uploaded document, passed through byte for byte
  3. --name, --topology, --num-vms, --vm i=name:flavor
                          discrete fields; blanks take defaults

Examples:
  slicemgr create --name lab --num-vms 3 --vm 2=db:f4
  slicemgr create --payload slice.yaml
  slicemgr create --file exported.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := o.request(cmd)
			if err != nil {
				return err
			}
			if o.dryRun {
				out, err := a.manager().Render(req)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			return runCreate(cmd.Context(), a.manager(), req, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.payload, "payload", "", "structured slice document (path, or - for stdin)")
	f.StringVar(&o.file, "file", "", "slice document to pass through unchanged")
	f.StringVar(&o.name, "name", "", "slice name (default "+naming.DefaultSlice+")")
	f.StringVar(&o.topology, "topology", "", "slice topology (default Ring)")
	f.StringVar(&o.numVMs, "num-vms", "", "number of VMs (at most 1024, larger values are clamped)")
	f.StringArrayVar(&o.vms, "vm", nil, "per-VM override as i=name:flavor, e.g. 2=db:f4 (repeatable)")
	f.BoolVar(&o.dryRun, "dry-run", false, "print the document instead of deploying it")
	return cmd
}

// request builds the raw request from the flags that were actually set.
func (o *createOpts) request(cmd *cobra.Command) (normalize.RawCreateRequest, error) {
	var req normalize.RawCreateRequest
	f := cmd.Flags()

	if f.Changed("payload") {
		data, err := readInput(o.payload, cmd.InOrStdin())
		if err != nil {
			return req, err
		}
		if data == nil {
			data = []byte{}
		}
		req.Payload = data
	}

	if f.Changed("file") {
		up := &normalize.Upload{Filename: filepath.Base(o.file)}
		if o.file != "" {
			data, err := os.ReadFile(o.file)
			if err != nil {
				return req, fmt.Errorf("read %s: %w", o.file, err)
			}
			up.Content = data
		}
		req.Upload = up
	}

	if f.Changed("name") || f.Changed("topology") || f.Changed("num-vms") || f.Changed("vm") {
		fields := map[string]string{
			normalize.FieldSliceName: o.name,
			normalize.FieldTopology:  o.topology,
			normalize.FieldNumVMs:    o.numVMs,
		}
		for _, v := range o.vms {
			idx, name, flv, err := parseVMFlag(v)
			if err != nil {
				return req, err
			}
			fields[naming.VMFieldName(idx)] = name
			fields[naming.FlavorFieldName(idx)] = flv
		}
		req.Fields = fields
	}

	if n := countChannels(req); n > 1 {
		log.Warn(fmt.Sprintf("Several inputs given; using the %s channel", req.Channel()))
	}
	return req, nil
}

func countChannels(req normalize.RawCreateRequest) int {
	n := 0
	if req.Payload != nil {
		n++
	}
	if req.Upload != nil {
		n++
	}
	if req.Fields != nil {
		n++
	}
	return n
}

// parseVMFlag splits "i=name:flavor". Either side of the colon may be empty.
func parseVMFlag(s string) (int, string, string, error) {
	idxStr, rest, ok := strings.Cut(s, "=")
	if !ok {
		return 0, "", "", fmt.Errorf("--vm %q: want i=name:flavor", s)
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 1 {
		return 0, "", "", fmt.Errorf("--vm %q: index must be a positive integer", s)
	}
	name, flv, _ := strings.Cut(rest, ":")
	return idx, name, flv, nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func runCreate(ctx context.Context, mgr *slice.Manager, req normalize.RawCreateRequest, out io.Writer) error {
	o, err := mgr.Create(ctx, req)
	if err != nil {
		return err
	}
	if !o.OK() {
		return fmt.Errorf("deploy failed (%s)", o.Reason)
	}
	if o.Detail != "" {
		fmt.Fprintln(out, o.Detail)
	}
	return nil
}

// ── list ──────────────────────────────────────────────────────────────────────

func listCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List deployed slices",
		Long: `Runs the list backend and prints one slice name per line. If the backend
fails the list is empty.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names := a.manager().List(cmd.Context())
			if len(names) == 0 {
				log.Skip("No slices")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

// ── show ──────────────────────────────────────────────────────────────────────

func showCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <slice>",
		Short: "Show a slice's status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := a.manager().Show(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), info)
			return nil
		},
	}
}

// ── delete ────────────────────────────────────────────────────────────────────

func deleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <slice>",
		Short: "Delete a slice",
		Long: `Runs the delete backend for the named slice. A delete waits for any
deploy of the same slice that is still in progress in this process.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o := a.manager().Delete(cmd.Context(), args[0])
			if !o.OK() {
				return fmt.Errorf("delete failed (%s)", o.Reason)
			}
			if o.Detail != "" {
				fmt.Fprintln(cmd.OutOrStdout(), o.Detail)
			}
			return nil
		},
	}
}

// ── flavors ───────────────────────────────────────────────────────────────────

func flavorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flavors",
		Short: "Print the flavor catalog",
		Args:  cobra.NoArgs,
		// The catalog is compiled in; no config is needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tCORES\tDISK (GB)\tRAM (GB)")
			for _, k := range flavor.Keys() {
				f := flavor.Resolve(k)
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", k, f.Cores, f.DiskGB, f.RAMGB)
			}
			return tw.Flush()
		},
	}
}

// ── validate ──────────────────────────────────────────────────────────────────

func validateCmd() *cobra.Command {
	var (
		strict bool
		format string
	)
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a slice document",
		Long: `Decodes a slice document the way a structured payload is decoded, then
reports anything the backend may not expect: unknown topology, blank or
duplicate VM names, unknown flavor keys and flavors that differ from the
catalog. With --print the canonical document is written to stdout.`,
		Args:              cobra.ExactArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			findings := manifest.Lint(spec)
			for _, f := range findings {
				log.Warn(f)
			}
			if format != "" {
				ff, err := manifest.ParseFormat(format)
				if err != nil {
					return err
				}
				out, err := manifest.Encode(*spec, ff)
				if err != nil {
					return err
				}
				if _, err := cmd.OutOrStdout().Write(out); err != nil {
					return err
				}
			}
			if len(findings) == 0 {
				log.Ok(fmt.Sprintf("%s is a valid slice document", args[0]))
				return nil
			}
			if strict {
				return fmt.Errorf("%s: %d finding(s)", args[0], len(findings))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when there are findings")
	cmd.Flags().StringVar(&format, "print", "", "print the canonical document as json or yaml")
	return cmd
}

// ── watch ─────────────────────────────────────────────────────────────────────

func watchCmd(a *app) *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show a live slice dashboard",
		Long: `Redraws the slice list in place, with the first status line the show
backend reports for each slice and any deploys still in flight in the
scratch directory. Press Ctrl-C to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr := a.manager()
			if once {
				for _, l := range dashboard.Render(cmd.Context(), mgr, a.cfg.ScratchDir, time.Now()) {
					fmt.Fprintln(cmd.OutOrStdout(), l)
				}
				return nil
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			dashboard.Run(ctx, mgr, dashboard.Options{
				Out:        cmd.OutOrStdout(),
				Interval:   interval,
				ScratchDir: a.cfg.ScratchDir,
			})
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "refresh interval")
	cmd.Flags().BoolVar(&once, "once", false, "print a single frame and exit")
	return cmd
}

// ── serve ─────────────────────────────────────────────────────────────────────

func serveCmd(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serves the slice API until interrupted:

  GET    /slices          list slices
  POST   /slices          create a slice (JSON/YAML body, multipart json_file, or form fields)
  GET    /slices/{name}   show a slice
  DELETE /slices/{name}   delete a slice
  GET    /flavors         flavor catalog
  GET    /healthz         liveness
  GET    /metrics         Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.Listen = listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(a.manager(), server.Options{MaxUploadBytes: a.cfg.MaxUploadBytes})
			return srv.ListenAndServe(ctx, a.cfg.Listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config, :5000)")
	return cmd
}

// ── doctor ────────────────────────────────────────────────────────────────────

func doctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the backend commands and directories are usable",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			failed := 0
			for _, r := range doctor.Run(a.cfg, a.dirs) {
				if r.OK {
					log.Ok(fmt.Sprintf("%s: %s", r.Name, r.Message))
					continue
				}
				failed++
				log.Error(fmt.Sprintf("%s: %s", r.Name, r.Message))
				for _, line := range strings.Split(r.HowToFix, "\n") {
					log.Info("  " + line)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
}
