// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/aplane-algo/kestrel/cmd/kestrel/internal/repl"
	"github.com/aplane-algo/kestrel/internal/hostapi"
	"github.com/aplane-algo/kestrel/internal/loop"
	"github.com/aplane-algo/kestrel/internal/modules"
	"github.com/aplane-algo/kestrel/internal/render"
	"github.com/aplane-algo/kestrel/internal/scripting"
	"github.com/aplane-algo/kestrel/internal/shell"
	"github.com/aplane-algo/kestrel/internal/store"
	"github.com/aplane-algo/kestrel/internal/util"
)

var errExit = errors.New("exit")

// replSession evaluates lines against the standard modules over a headless
// window. Save data is kept in memory.
type replSession struct {
	out    io.Writer
	styled util.Styled

	window render.Window
	store  *store.Store
	reg    *hostapi.Registry
	rt     *scripting.Context
	driver *loop.Driver
	cancel context.CancelFunc
}

func newREPLSession(ctx context.Context, out io.Writer, config util.Config, script string) (*replSession, error) {
	src := scripting.Source{Name: "repl.js"}
	if script != "" {
		var err error
		if src, err = scripting.LoadSource(script); err != nil {
			return nil, err
		}
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, err
	}
	window, err := render.NewHeadless(render.Options{}).CreateWindow(render.Settings{
		Title:      config.Title,
		Width:      config.Width,
		Height:     config.Height,
		FPS:        config.FPS,
		Background: shell.Background,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	mixer := modules.NewMixer()
	go mixer.Run(ctx)

	scene := render.NewScene(config.Width, config.Height, shell.Background)
	set := modules.Standard(modules.Deps{
		Title:         config.Title,
		Window:        window,
		Scene:         scene,
		Store:         st,
		SaveNamespace: config.Title,
		Mixer:         mixer,
	})
	s := &replSession{
		out:    out,
		styled: util.NewStyled(),
		window: window,
		store:  st,
		reg:    hostapi.NewRegistry(),
		cancel: cancel,
		driver: &loop.Driver{Window: window, Scene: scene, Observer: set},
	}
	if err := s.reg.Install(set.Modules()...); err != nil {
		s.Close()
		return nil, err
	}
	s.reg.Seal()

	s.rt, err = scripting.Initialize(s.reg, src,
		scripting.WithCallBudget(time.Duration(config.FrameBudgetMS)*time.Millisecond))
	if err != nil {
		s.Close()
		return nil, err
	}
	// Run the script's top level now so its definitions are in scope.
	if _, err := s.rt.Run(""); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Close tears the binding down if one was bootstrapped.
func (s *replSession) Close() {
	if s.rt != nil {
		if b := s.rt.Binding(); b != nil {
			if err := b.Close(); err != nil && !errors.Is(err, scripting.ErrBindingClosed) {
				s.printError(err)
			}
		}
	}
	s.cancel()
	_ = s.window.Close()
	_ = s.store.Close()
}

// Execute handles one input line: a dot command or JavaScript.
func (s *replSession) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, ".") {
		return s.eval(line)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case ".exit", ".quit":
		return errExit
	case ".help":
		if len(fields) > 1 {
			return s.helpNamespace(fields[1])
		}
		s.help()
	case ".types":
		s.types()
	case ".tick":
		n := 1
		if len(fields) > 1 {
			var err error
			if n, err = strconv.Atoi(fields[1]); err != nil || n <= 0 {
				return fmt.Errorf("invalid tick count %q", fields[1])
			}
		}
		return s.tick(ctx, n)
	default:
		return fmt.Errorf("unknown command %s (try .help)", fields[0])
	}
	return nil
}

func (s *replSession) eval(code string) error {
	result, err := s.rt.Run(code)
	if err != nil {
		return err
	}
	if result.IsEmpty {
		return nil
	}
	switch v := result.Value.(type) {
	case map[string]interface{}, []interface{}:
		_, _ = fmt.Fprintf(s.out, "%v\n", v)
	default:
		_, _ = fmt.Fprintln(s.out, result.Value)
	}
	return nil
}

// tick bootstraps Main on first use, then runs n loop ticks.
func (s *replSession) tick(ctx context.Context, n int) error {
	if s.driver.Binding == nil {
		b, err := s.rt.Bootstrap()
		if err != nil {
			return err
		}
		s.driver.Binding = b
	}
	s.driver.MaxTicks = s.driver.Stats().Ticks + uint64(n) // #nosec G115 - n is positive
	if err := s.driver.Run(ctx); err != nil {
		return err
	}
	stats := s.driver.Stats()
	_, _ = fmt.Fprintf(s.out, "tick %d (%s)\n", stats.Ticks, stats.StopReason)
	return nil
}

func (s *replSession) help() {
	_, _ = fmt.Fprintln(s.out, "Namespaces:")
	for _, ns := range s.reg.Namespaces() {
		_, _ = fmt.Fprintf(s.out, "  %-10s %s\n", ns.Name, ns.Doc)
	}
	_, _ = fmt.Fprintln(s.out)
	_, _ = fmt.Fprintln(s.out, "Commands:")
	_, _ = fmt.Fprintln(s.out, "  .help [namespace]  list namespaces or a namespace's functions")
	_, _ = fmt.Fprintln(s.out, "  .types             list handle types and their methods")
	_, _ = fmt.Fprintln(s.out, "  .tick [n]          bootstrap Main if needed and run n ticks")
	_, _ = fmt.Fprintln(s.out, "  .exit              leave the REPL")
}

func (s *replSession) helpNamespace(name string) error {
	ns, ok := s.reg.Lookup(name)
	if !ok {
		return fmt.Errorf("no namespace %q", name)
	}
	for _, fn := range ns.Funcs() {
		_, _ = fmt.Fprintf(s.out, "  %s.%s\n", ns.Name, fn.Signature())
		if fn.Doc != "" {
			_, _ = fmt.Fprintf(s.out, "      %s\n", s.styled.Location(fn.Doc))
		}
	}
	return nil
}

func (s *replSession) types() {
	for _, t := range s.reg.Types() {
		_, _ = fmt.Fprintf(s.out, "%s (%s)\n", t.Name, t.Namespace)
		for _, m := range t.Methods() {
			_, _ = fmt.Fprintf(s.out, "  .%s\n", m.Signature())
		}
	}
}

func (s *replSession) printError(err error) {
	reportError(s.out, s.styled, err)
}

func startBasicREPL(ctx context.Context, s *replSession) {
	fmt.Println("Running in basic mode (no history/completion)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("js> ")
		if !scanner.Scan() {
			break
		}
		if err := s.Execute(ctx, scanner.Text()); err != nil {
			if errors.Is(err, errExit) {
				break
			}
			s.printError(err)
		}
	}
}

// startREPL runs the interactive loop and returns the exit code.
func startREPL(ctx context.Context, config util.Config, script string) int {
	s, err := newREPLSession(ctx, os.Stdout, config, script)
	if err != nil {
		reportError(os.Stderr, util.NewStyled(), err)
		return 1
	}
	defer s.Close()

	fmt.Println("kestrel - JavaScript REPL")
	fmt.Println("Type '.help' for namespaces and commands or '.exit' to leave")

	homeDir, _ := os.UserHomeDir()
	historyFile := filepath.Join(homeDir, ".kestrel_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "\033[32mjs>\033[0m ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		AutoComplete:      repl.NewCompleter(s.reg),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		fmt.Printf("Failed to create readline instance, falling back to basic input: %v\n", err)
		startBasicREPL(ctx, s)
		return 0
	}
	defer func() {
		_ = rl.Close() // Best-effort close, errors during shutdown not critical
	}()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					fmt.Println("Use '.exit' to leave")
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				break
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}
		if err := s.Execute(ctx, line); err != nil {
			if errors.Is(err, errExit) {
				break
			}
			s.printError(err)
		}
	}
	return 0
}
