package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"cpl/internal/config"
	"cpl/internal/diag"
	"cpl/internal/driver"
	"cpl/internal/imports"
	"cpl/internal/output"
	"cpl/internal/server"
)

// customized via -ldflags
var (
	Version = "development"
	GitHash = "unknown"
)

var (
	// logger instance
	log = logrus.New()

	exitFn = os.Exit

	// signalContext is replaced in tests to stop long-running commands.
	signalContext = func() (context.Context, context.CancelFunc) {
		return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	}
)

// exit codes
const (
	exitOK          = 0
	exitDiagnostics = 1
	exitUsage       = 2
)

// exitCode is the panic value of the kingpin terminate hook.
type exitCode int

const stdinName = "<stdin>"

func main() {
	exitFn(runCLI(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// cli holds parsed flags and the streams of one invocation.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	format     string
	recover    bool
	timing     bool
	file       string
	watch      bool
	address    string

	cfg *config.Config
}

func runCLI(args []string, stdin io.Reader, stdout, stderr io.Writer) (code int) {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}
	app := c.application()

	defer func() {
		if r := recover(); r != nil {
			ec, ok := r.(exitCode)
			if !ok {
				panic(r)
			}
			code = int(ec)
		}
	}()

	command, err := app.Parse(args)
	if err != nil {
		app.Errorf("%s, try --help", err)
		return exitUsage
	}

	if err := c.configure(); err != nil {
		app.Errorf("%s", err)
		return exitUsage
	}

	switch command {
	case "tokens":
		return c.doTokens()
	case "parse":
		return c.doParse()
	case "check":
		return c.doCheck()
	case "repl":
		return c.doRepl()
	case "serve":
		return c.doServe()
	}

	app.Errorf("command not specified, try --help")
	return exitUsage
}

func (c *cli) application() *kingpin.Application {
	app := kingpin.New("cpl", "Front end of the CPL language: lexer, parser and syntax tree tools.")
	app.Version(fmt.Sprintf("%s (%s)", Version, GitHash))
	app.HelpFlag.Short('h')
	app.UsageWriter(c.stdout)
	app.ErrorWriter(c.stderr)
	app.Terminate(func(status int) { panic(exitCode(status)) })

	app.Flag("config", "Configuration in YAML format.").Short('c').StringVar(&c.configPath)
	app.Flag("log-level", "Log level: debug, info, warning, error.").Short('L').StringVar(&c.logLevel)
	app.Flag("format", "Output format.").Short('f').EnumVar(&c.format,
		config.FormatText, config.FormatJSON, config.FormatMsgpack)
	app.Flag("recover", "Report every diagnostic instead of stopping at the first one.").Short('r').BoolVar(&c.recover)
	app.Flag("timing", "Report the duration of each phase.").BoolVar(&c.timing)

	tokens := app.Command("tokens", "Print the token stream of a source file.")
	tokens.Arg("file", "Source file, - for standard input.").Default("-").StringVar(&c.file)

	parse := app.Command("parse", "Parse a source file and print its syntax tree.")
	parse.Arg("file", "Source file, - for standard input.").Default("-").StringVar(&c.file)

	check := app.Command("check", "Report the diagnostics of a source file.")
	check.Arg("file", "Source file, - for standard input.").Default("-").StringVar(&c.file)
	check.Flag("watch", "Check again every time the file changes.").Short('w').BoolVar(&c.watch)

	app.Command("repl", "Print tokens and tree for each line read, until exit.")

	serve := app.Command("serve", "Serve the HTTP API for editor tooling.")
	serve.Flag("address", "Address:port to listen on.").Short('l').StringVar(&c.address)

	return app
}

// configure loads the configuration file and applies flag overrides.
func (c *cli) configure() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	if len(c.logLevel) != 0 {
		cfg.LogLevel = c.logLevel
	}
	if len(c.format) != 0 {
		cfg.Format = c.format
	}
	if c.recover {
		cfg.Recover = true
	}
	if c.timing {
		cfg.Timing = true
	}
	if len(c.address) != 0 {
		cfg.Server.Address = c.address
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	for _, set := range []func(string) error{
		setLogLevelString,
		driver.SetLogLevelString,
		server.SetLogLevelString,
	} {
		if err := set(cfg.LogLevel); err != nil {
			return fmt.Errorf("failed to set log level %q: %s", cfg.LogLevel, err)
		}
	}
	log.Out = c.stderr
	driver.SetLogOutput(c.stderr)
	server.SetLogOutput(c.stderr)

	c.cfg = cfg
	log.WithFields(map[string]interface{}{
		"config":    c.configPath,
		"format":    cfg.Format,
		"recover":   cfg.Recover,
		"extension": cfg.Extension,
	}).Debug("configuration")
	return nil // OK
}

func setLogLevelString(level string) error {
	ll, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	log.Level = ll
	return nil // OK
}

// readUnit reads the file argument, or standard input for "-".
func (c *cli) readUnit() (*driver.Unit, error) {
	if c.file == "-" {
		buf, err := io.ReadAll(c.stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read standard input: %s", err)
		}
		return &driver.Unit{Name: stdinName, Source: string(buf)}, nil
	}
	return driver.Load(c.file, c.cfg.Extension)
}

// encode writes v in the configured structured format.
func (c *cli) encode(v interface{}) error {
	if err := output.Encode(c.stdout, c.cfg.Format, v); err != nil {
		return fmt.Errorf("failed to encode output: %s", err)
	}
	if c.cfg.Format == config.FormatJSON {
		fmt.Fprintln(c.stdout)
	}
	return nil
}

func (c *cli) fail(err error) int {
	fmt.Fprintf(c.stderr, "cpl: error: %s\n", err)
	return exitUsage
}

func (c *cli) doTokens() int {
	unit, err := c.readUnit()
	if err != nil {
		return c.fail(err)
	}

	resp, err := output.NewTokensResponse(unit)
	if err != nil {
		return c.fail(err)
	}

	if c.cfg.Format != config.FormatText {
		if err := c.encode(resp); err != nil {
			return c.fail(err)
		}
	} else {
		writeTokens(c.stdout, resp)
		if resp.Error != nil {
			fmt.Fprint(c.stderr, diag.Render(unit.Source, resp.Error))
		}
	}

	if !resp.OK {
		return exitDiagnostics
	}
	return exitOK
}

func writeTokens(w io.Writer, resp *output.TokensResponse) {
	for _, tok := range resp.Tokens {
		fmt.Fprintf(w, "%-8s %-8s %s\n", tok.Span, tok.Kind, tok.Lexeme)
	}
}

func (c *cli) doParse() int {
	unit, err := c.readUnit()
	if err != nil {
		return c.fail(err)
	}

	res, _ := driver.Compile(unit, driver.Options{Recover: c.cfg.Recover})
	resp := output.NewParseResponse(res, c.cfg.Recover, c.cfg.Timing)

	if c.cfg.Format != config.FormatText {
		if err := c.encode(resp); err != nil {
			return c.fail(err)
		}
	} else {
		if resp.AST != nil {
			fmt.Fprint(c.stdout, resp.AST.String())
		}
		fmt.Fprint(c.stderr, res.Render())
		c.writeTimings(res)
	}

	if !resp.OK {
		return exitDiagnostics
	}
	return exitOK
}

func (c *cli) writeTimings(res *driver.Result) {
	if !c.cfg.Timing {
		return
	}
	fmt.Fprintf(c.stderr, "lex %s, parse %s, total %s\n",
		res.Timings.Lex, res.Timings.Parse, res.Timings.Total)
}

func (c *cli) doCheck() int {
	if !c.watch {
		return c.check()
	}
	if c.file == "-" {
		return c.fail(fmt.Errorf("--watch needs a file argument"))
	}

	code := c.check()
	ctx, cancel := signalContext()
	defer cancel()
	err := driver.Watch(ctx, c.file, func() {
		code = c.check()
	})
	if err != nil {
		return c.fail(err)
	}
	return code
}

// check compiles the unit and reports its diagnostics, plus a warning for
// every import or export that is not at top level.
func (c *cli) check() int {
	unit, err := c.readUnit()
	if err != nil {
		return c.fail(err)
	}

	res, _ := driver.Compile(unit, driver.Options{Recover: c.cfg.Recover})
	if c.cfg.Format != config.FormatText {
		if err := c.encode(output.NewParseResponse(res, false, c.cfg.Timing)); err != nil {
			return c.fail(err)
		}
	} else {
		fmt.Fprint(c.stderr, res.Render())
		if res.Tree != nil {
			for _, id := range imports.Nested(res.Tree) {
				s := res.Tree.Stmt(id)
				fmt.Fprintf(c.stderr, "%s:%s: warning: %s is only allowed at top level\n",
					unit.Name, s.Span, strings.ToLower(s.Kind.String()))
			}
		}
		if len(res.Diagnostics) == 0 {
			fmt.Fprintf(c.stdout, "%s: ok (%d statements, %d expressions)\n",
				unit.Name, res.Stats.Statements, res.Stats.Expressions)
		}
		c.writeTimings(res)
	}

	log.WithFields(map[string]interface{}{
		"unit":        unit.Name,
		"diagnostics": len(res.Diagnostics),
	}).Debug("checked")

	if len(res.Diagnostics) != 0 {
		return exitDiagnostics
	}
	return exitOK
}

// doRepl reads one unit per line until exit or end of input.
func (c *cli) doRepl() int {
	prompt := func() { fmt.Fprint(c.stdout, "> ") }

	in := bufio.NewScanner(c.stdin)
	prompt()
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		switch {
		case strings.EqualFold(line, "exit"):
			fmt.Fprintln(c.stdout, "Exiting REPL...")
			return exitOK
		case len(line) != 0:
			c.replLine(line)
		}
		prompt()
	}
	fmt.Fprintln(c.stdout)

	if err := in.Err(); err != nil {
		return c.fail(fmt.Errorf("failed to read input: %s", err))
	}
	return exitOK
}

func (c *cli) replLine(line string) {
	unit := &driver.Unit{Name: "<repl>", Source: line}

	toks, err := output.NewTokensResponse(unit)
	if err != nil {
		fmt.Fprintf(c.stdout, "error: %s\n", err)
		return
	}
	fmt.Fprintln(c.stdout, "Tokens:")
	writeTokens(c.stdout, toks)

	res, _ := driver.Compile(unit, driver.Options{Recover: c.cfg.Recover})
	if res.Tree != nil {
		fmt.Fprintln(c.stdout, "AST:")
		fmt.Fprint(c.stdout, res.Tree.String())
	}
	fmt.Fprint(c.stdout, res.Render())
}

func (c *cli) doServe() int {
	if c.cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := signalContext()
	defer cancel()

	srv := server.New(c.cfg, Version)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.WithError(err).Error("server failed")
		return c.fail(err)
	}
	return exitOK
}
