// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package shell implements the interactive REPL: read a line, dispatch
// it through the validator, present the outcome, and maintain session
// state and history. Adapted from the teacher's ChatCLI/HandleChatCommand
// (internal/cli/chat.go) — a liner-backed chat REPL repurposed into the
// command-validation REPL spec.md §4.10 describes.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/jeranaias/aegish/internal/audit"
	"github.com/jeranaias/aegish/internal/config"
	"github.com/jeranaias/aegish/internal/executor"
	"github.com/jeranaias/aegish/internal/policy"
	"github.com/jeranaias/aegish/internal/session"
)

// Validator is the subset of *validator.Validator the shell depends on,
// narrowed so tests can substitute a stub.
type Validator interface {
	Validate(ctx context.Context, command string, cwd string, env map[string]string) (policy.Decision, error)
}

// Shell owns the REPL loop over one session.
type Shell struct {
	Config    *config.Config
	Validator Validator
	Executor  *executor.Executor
	Session   *session.Manager
	Audit     *audit.Emitter
	Model     string
	Sandbox   string // human-readable sandbox status for the banner

	editor *LineEditor
	out    *os.File
	errOut *os.File
}

// New builds a Shell. Run takes the line editor's backing file from
// cfg.HistoryPath ($HOME/.aegish_history by convention, see internal/config).
func New(cfg *config.Config, v Validator, exec *executor.Executor, sess *session.Manager, aud *audit.Emitter, model, sandboxStatus string) *Shell {
	return &Shell{
		Config:    cfg,
		Validator: v,
		Executor:  exec,
		Session:   sess,
		Audit:     aud,
		Model:     model,
		Sandbox:   sandboxStatus,
		out:       os.Stdout,
		errOut:    os.Stderr,
	}
}

// Run prints the startup banner and drives the REPL until exit, SIGTERM,
// or a read error (EOF). It never returns a non-nil error for a normal
// user-initiated exit.
func (s *Shell) Run(ctx context.Context) error {
	s.editor = NewLineEditor(s.Config.HistoryPath)
	defer s.editor.Close()

	s.printBanner()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	signal.Ignore(syscall.SIGTSTP) // never escape to a parent shell via Ctrl+Z

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	go func() {
		for sig := range sigChan {
			switch sig {
			case syscall.SIGTERM:
				s.shutdown()
				os.Exit(0)
			case os.Interrupt:
				cancelRun()
			}
		}
	}()

	for {
		select {
		case <-runCtx.Done():
			runCtx, cancelRun = context.WithCancel(ctx)
		default:
		}

		prompt := fmt.Sprintf("aegish:%s$ ", s.Session.Cwd())
		input, err := s.editor.ReadInput(prompt)
		if err != nil {
			if err == liner.ErrPromptAborted {
				// Ctrl+C at the prompt itself: record exit code 130 per
				// spec.md §5's cancellation contract and prompt again.
				s.Session.SetLastExitCode(130)
				continue
			}
			// EOF (Ctrl+D) or another read error: exit cleanly.
			return nil
		}

		input = strings.TrimSpace(input)
		if input == "" {
			// Route through the normal pipeline rather than filtering here:
			// spec.md §8's empty-input boundary case is the blocklist's own
			// len(primary)==0 rule (Block, confidence 1.0, source
			// Blocklist), not a shell-level special case.
			s.handleCommand(runCtx, input)
			continue
		}

		if input == "exit" {
			s.handleExit()
			return nil
		}

		if cmd, ok := strings.CutPrefix(input, "cd"); ok && (cmd == "" || cmd[0] == ' ') {
			s.handleCd(strings.TrimSpace(cmd))
			continue
		}

		s.handleCommand(runCtx, input)
	}
}

func (s *Shell) handleExit() {
	if s.Config.Mode == config.ModeProduction {
		return
	}
	fmt.Fprintln(s.errOut, "exiting development-mode shell (no login-shell restriction applies)")
}

// handleCd implements the §4.10 `cd` fast-path: no subprocess, just
// syntactic validation plus a realpath-style resolution via
// filepath.EvalSymlinks.
func (s *Shell) handleCd(arg string) {
	target := arg
	if target == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(s.errOut, "cd: %v\n", err)
			s.Session.SetLastExitCode(1)
			return
		}
		target = home
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.Session.Cwd(), target)
	}

	resolved, err := filepath.EvalSymlinks(target)
	if err != nil {
		fmt.Fprintf(s.errOut, "cd: %s: %v\n", arg, err)
		s.Session.SetLastExitCode(1)
		return
	}

	info, err := os.Stat(resolved)
	if err != nil || !info.IsDir() {
		fmt.Fprintf(s.errOut, "cd: %s: not a directory\n", arg)
		s.Session.SetLastExitCode(1)
		return
	}

	s.Session.SetCwd(resolved)
	s.Session.SetLastExitCode(0)
}

// handleCommand runs one non-fast-path command through the validator
// and, depending on the verdict, the executor.
func (s *Shell) handleCommand(ctx context.Context, input string) {
	decision, err := s.Validator.Validate(ctx, input, s.Session.Cwd(), s.Session.Env())
	if err != nil {
		fmt.Fprintf(s.errOut, "validation error: %v\n", err)
		return
	}

	if s.Audit != nil {
		s.Audit.Emit(audit.NewEvent(input, decision, s.Model, "operator", string(s.Config.Mode)))
	}

	switch decision.Action {
	case policy.Block:
		fmt.Fprintf(s.errOut, "[blocked] %s\n", decision.Reason)
		return
	case policy.Warn:
		fmt.Fprintf(s.out, "[warn] %s\n", decision.Reason)
		if !s.confirm("Proceed anyway?") {
			return
		}
	}

	s.execute(ctx, input)
}

// execute runs the command and commits its resulting cwd/env/exit code
// into session state, and records history — but only ever for a
// command that reached this point, i.e. never a Blocked one.
func (s *Shell) execute(ctx context.Context, input string) {
	result, err := s.Executor.Run(ctx, input, s.Session.Cwd(), s.Session.Env(), s.Session.LastExitCode())
	if err != nil {
		fmt.Fprintf(s.errOut, "execution error: %v\n", err)
		return
	}

	if result.TimedOut {
		s.Session.SetLastExitCode(124)
	} else if ctx.Err() != nil {
		s.Session.SetLastExitCode(130)
		return
	} else {
		s.Session.SetLastExitCode(result.ExitCode)
		s.Session.SetCwd(result.Cwd)
		s.Session.SetEnv(result.Env)
	}

	s.Session.AppendHistory(input)

	if result.Stdout != "" {
		fmt.Fprint(s.out, result.Stdout)
	}
	if result.Stderr != "" {
		fmt.Fprint(s.errOut, result.Stderr)
	}
}

// confirm prompts a yes/no question on stdin, matching the teacher's
// PromptYesNo shape (internal/cli/confirm.go) — defaults to "no" on any
// read error or non-"y"/"yes" answer.
func (s *Shell) confirm(question string) bool {
	fmt.Fprintf(s.out, "%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes"
}

func (s *Shell) printBanner() {
	fmt.Fprintf(s.out, "aegish — mode=%s fail_mode=%s sandbox=%s model=%s\n",
		s.Config.Mode, s.Config.FailMode, s.Sandbox, s.Model)
}

// shutdown runs the SIGTERM clean-shutdown sequence: flush history and
// the audit buffer before the process exits.
func (s *Shell) shutdown() {
	if s.editor != nil {
		s.editor.SaveHistory()
	}
	if s.Audit != nil {
		_ = s.Audit.Flush()
	}
}
