// Spacey CLI - runs JavaScript and TypeScript files, one-liners and an
// interactive REPL
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/spacey-js/spacey/cache"
	"github.com/spacey-js/spacey/engine"
	"github.com/spacey-js/spacey/manifest"
	"github.com/spacey-js/spacey/server"
	"github.com/spacey-js/spacey/vm"
	"github.com/spacey-js/spacey/vm/dist"
)

// options are the parsed command-line flags.
type options struct {
	code       string
	typeScript bool
	disasm     bool
	compileOut string
	runChunk   string
	verbosity  int
	cachePath  string
	version    bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run is main without the process exit, so tests can drive it.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		switch args[0] {
		case "watch":
			return runWatch(args[1:], stdout, stderr)
		case "lsp":
			return runLSP(stderr)
		}
	}

	m, err := loadManifest()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("spacey", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := bindFlags(fs, m)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: spacey [options] [file]\n")
		fmt.Fprintf(stderr, "       spacey watch [options] [file]\n")
		fmt.Fprintf(stderr, "       spacey lsp\n\n")
		fmt.Fprintf(stderr, "Runs a JavaScript or TypeScript file, or starts a REPL when no file is given.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  spacey                        # Start REPL\n")
		fmt.Fprintf(stderr, "  spacey app.ts                 # Run a TypeScript file\n")
		fmt.Fprintf(stderr, "  spacey -e '1 + 2'             # Evaluate and print\n")
		fmt.Fprintf(stderr, "  spacey --compile app.sbc app.js\n")
		fmt.Fprintf(stderr, "  spacey --run-chunk app.sbc\n")
		fmt.Fprintf(stderr, "  spacey watch app.js           # Re-run on every save\n")
		fmt.Fprintf(stderr, "  spacey lsp                    # Language server on stdio\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "spacey %s\n", engine.Version)
		return 0
	}
	if err := m.CheckEngineVersion(engine.Version); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	configureLogging(opts.verbosity, m)

	eng, closeEngine, err := newEngine(m, opts, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeEngine()

	switch {
	case opts.runChunk != "":
		return runChunkFile(eng, opts.runChunk, stdout, stderr)
	case opts.code != "":
		return runSource(eng, opts.code, opts.typeScript, opts, true, stdout, stderr)
	case fs.NArg() > 0:
		path := fs.Arg(0)
		src, err := engine.ReadSource(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		ts := opts.typeScript || engine.IsTypeScriptPath(path)
		return runSource(eng, src, ts, opts, false, stdout, stderr)
	}

	if f, ok := stdin.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		return runREPL(eng, opts.typeScript, stdout, stderr)
	}
	src, err := io.ReadAll(stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return runSource(eng, string(src), opts.typeScript, opts, false, stdout, stderr)
}

// bindFlags registers the flags, taking their defaults from m.
func bindFlags(fs *flag.FlagSet, m *manifest.Manifest) *options {
	opts := &options{}
	fs.StringVar(&opts.code, "e", "", "Evaluate code and print the result")
	fs.BoolVar(&opts.typeScript, "ts", m.Engine.TypeScript, "Treat input as TypeScript")
	fs.BoolVar(&opts.disasm, "disasm", false, "Print the compiled bytecode instead of running it")
	fs.StringVar(&opts.compileOut, "compile", "", "Write the compiled chunk to `file` instead of running it")
	fs.StringVar(&opts.runChunk, "run-chunk", "", "Run a chunk written by --compile")
	fs.IntVar(&opts.verbosity, "v", m.Log.Verbosity, "Log verbosity (0 quiet, 1 info, 2 debug)")
	fs.StringVar(&opts.cachePath, "cache", m.CachePath(), "Compiled chunk cache database")
	fs.BoolVar(&opts.version, "version", false, "Print the version and exit")
	return opts
}

// loadManifest finds spacey.toml above the working directory, falling back
// to defaults when there is none.
func loadManifest() (*manifest.Manifest, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default(cwd)
	}
	return m, nil
}

func configureLogging(verbosity int, m *manifest.Manifest) {
	if path := m.LogFile(); path != "" {
		commonlog.Configure(verbosity, &path)
		return
	}
	commonlog.Configure(verbosity, nil)
}

// newEngine builds an engine from the manifest and flags. The returned
// function releases the chunk cache, if one was opened.
func newEngine(m *manifest.Manifest, opts *options, stdout io.Writer) (*engine.Engine, func(), error) {
	engineOpts := []engine.Option{engine.WithManifest(m), engine.WithOutput(stdout)}
	closer := func() {}
	if opts.cachePath != "" {
		c, err := cache.Open(opts.cachePath, cache.WithEngineVersion(engine.Version))
		if err != nil {
			return nil, nil, err
		}
		engineOpts = append(engineOpts, engine.WithCache(c))
		closer = func() { c.Close() }
	}
	return engine.New(engineOpts...), closer, nil
}

// runSource compiles src and then, depending on opts, disassembles it,
// writes it out, or runs it. printResult reports the completion value.
func runSource(eng *engine.Engine, src string, ts bool, opts *options, printResult bool, stdout, stderr io.Writer) int {
	chunk, err := eng.Compile(src, ts)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, w := range eng.Warnings() {
		fmt.Fprintf(stderr, "Warning: %s\n", w)
	}

	if opts.disasm {
		chunk.Disassemble(stdout)
		return 0
	}
	if opts.compileOut != "" {
		return writeChunk(chunk, opts.compileOut, stderr)
	}

	v, err := eng.Run(chunk)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if printResult {
		fmt.Fprintln(stdout, eng.Format(v))
	}
	return 0
}

func writeChunk(chunk *vm.Chunk, path string, stderr io.Writer) int {
	data, err := dist.MarshalChunk(chunk)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func runChunkFile(eng *engine.Engine, path string, stdout, stderr io.Writer) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", vm.NewError(vm.IOError, err.Error()))
		return 1
	}
	chunk, err := dist.UnmarshalChunk(data)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if _, err := eng.Run(chunk); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// runLSP serves the language protocol on stdio. Logging goes to the
// manifest's log file, if any, since stdout carries the protocol.
func runLSP(stderr io.Writer) int {
	m, err := loadManifest()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	configureLogging(m.Log.Verbosity, m)
	eng := engine.New(engine.WithManifest(m), engine.WithOutput(io.Discard))
	if err := server.NewLSP(eng).Run(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
