// Garnet CLI - runs compiled .gir programs, or serves the evaluation service
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/garnet/config"
	"github.com/chazu/garnet/profstore"
	"github.com/chazu/garnet/server"
	"github.com/chazu/garnet/vm"
	"github.com/chazu/garnet/vm/wire"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("garnet.cli")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is main without the process exit, returning the exit status.
func run(argv []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("garnet", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configDir := fs.String("config", "", "Directory holding garnet.toml (default: search upward from the working directory)")
	verbosity := fs.Int("v", -1, "Log verbosity (overrides [log] verbosity)")
	serveMode := fs.Bool("serve", false, "Start the evaluation service")
	addr := fs.String("addr", "", "Service address (overrides [server] addr)")
	remote := fs.String("remote", "", "Run the program on the service at this base URL")
	profile := fs.Bool("profile", false, "Collect and store a profile of the run")
	debug := fs.Bool("debug", false, "Trace every instruction")
	disasm := fs.Bool("disasm", false, "Print the program's instructions instead of running it")
	demo := fs.String("demo", "", "Write a sample program to this path and exit")
	demoN := fs.Int64("demo-n", 20, "Argument of fib in the sample program")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: garnet [options] [program.gir [args...]]\n\n")
		fmt.Fprintf(stderr, "Runs a compiled garnet program with the main object as self.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  garnet -demo fib.gir            # Write a sample program\n")
		fmt.Fprintf(stderr, "  garnet fib.gir                  # Run it\n")
		fmt.Fprintf(stderr, "  garnet -disasm fib.gir          # Show its instructions\n")
		fmt.Fprintf(stderr, "  garnet -profile fib.gir         # Run and store a profile\n")
		fmt.Fprintf(stderr, "  garnet -serve -addr :4567       # Start the evaluation service\n")
		fmt.Fprintf(stderr, "  garnet -remote http://localhost:4567 fib.gir\n")
	}
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *verbosity >= 0 {
		cfg.Log.Verbosity = *verbosity
	}
	commonlog.Configure(cfg.Log.Verbosity, nil)

	opts := cfg.EngineOptions()
	opts.Debug = opts.Debug || *debug
	opts.Profile = opts.Profile || *profile

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *demo != "" {
		p, err := demoProgram(*demoN)
		if err == nil {
			err = wire.WriteFile(*demo, p)
		}
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "wrote %s\n", *demo)
		return 0
	}

	if *serveMode {
		if *addr != "" {
			cfg.Server.Addr = *addr
		}
		return serve(ctx, cfg, opts, stderr)
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		return 2
	}
	prog, err := wire.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if *disasm {
		return disassemble(prog, stdout, stderr)
	}
	if *remote != "" {
		return runRemote(ctx, *remote, args, stdout, stderr)
	}

	rt := vm.NewRuntime(opts)
	rt.Stdout = stdout
	main, err := prog.Install(rt)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	scriptArgs := make([]vm.Value, len(args)-1)
	for i, a := range args[1:] {
		scriptArgs[i] = vm.NewString(a)
	}

	start := time.Now()
	result, err := rt.Run(rt.NewThreadContext(ctx), main, nil, scriptArgs...)
	log.Infof("%s finished in %s", args[0], time.Since(start))

	if opts.Profile {
		saveProfile(cfg, rt, filepath.Base(args[0]), stderr)
	}

	if err != nil {
		if exc, ok := vm.AsException(err); ok {
			fmt.Fprintln(stderr, exc.FullMessage())
		} else {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return 1
	}
	fmt.Fprintf(stdout, "=> %s\n", vm.Inspect(result))
	return 0
}

func loadConfig(dir string) (*config.Config, error) {
	if dir != "" {
		return config.Load(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return config.FindAndLoad(wd)
}

func serve(ctx context.Context, cfg *config.Config, opts vm.Options, stderr io.Writer) int {
	srv := server.New(opts, cfg.Server.MaxConcurrent)
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(cfg.Server.Addr) }()

	select {
	case err := <-errc:
		if err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return 1
		}
		return 0
	case <-ctx.Done():
		log.Notice("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return 1
		}
		return 0
	}
}

func disassemble(prog *wire.Program, stdout, stderr io.Writer) int {
	for _, cd := range prog.Classes {
		for _, m := range cd.Methods {
			unit, err := m.Unit.ToUnit(nil)
			if err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return 1
			}
			fmt.Fprintf(stdout, "# %s#%s\n%s\n", cd.Name, m.Name, unit.Disassemble())
		}
	}
	main, err := prog.Main.ToUnit(nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "# main\n%s", main.Disassemble())
	return 0
}

func runRemote(ctx context.Context, baseURL string, args []string, stdout, stderr io.Writer) int {
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	req := &server.RunRequest{Program: data}
	for _, a := range args[1:] {
		req.Args = append(req.Args, wire.FromValue(vm.NewString(a)))
	}

	client := server.NewClient(http.DefaultClient, strings.TrimSuffix(baseURL, "/"))
	resp, err := client.Run(ctx, req)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if resp.ExceptionClass != "" {
		head := "-"
		if len(resp.Backtrace) > 0 {
			head = resp.Backtrace[0]
		}
		fmt.Fprintf(stderr, "%s: %s (%s)\n", head, resp.Message, resp.ExceptionClass)
		for _, frame := range resp.Backtrace[min(1, len(resp.Backtrace)):] {
			fmt.Fprintf(stderr, "\tfrom %s\n", frame)
		}
		return 1
	}
	fmt.Fprintf(stdout, "=> %s [%s]\n", resp.Result, resp.InvocationID)
	return 0
}

func saveProfile(cfg *config.Config, rt *vm.Runtime, label string, stderr io.Writer) {
	store, err := profstore.Open(cfg.DatabasePath())
	if err != nil {
		fmt.Fprintf(stderr, "Warning: cannot open profile store: %v\n", err)
		return
	}
	defer store.Close()

	snap := rt.Profiler().Snapshot()
	id, err := store.Save(label, snap)
	if err != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", err)
		return
	}
	log.Noticef("saved profile run %d to %s (%d call sites, %d invocations)",
		id, cfg.DatabasePath(), len(snap.CallSites), snap.TotalInvocations)
}
