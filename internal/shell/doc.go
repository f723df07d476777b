// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package shell implements the interactive command-validation REPL
// described by spec.md §4.10: read a line, fast-path `cd`/`exit`,
// otherwise drive the validator and present Allow/Warn/Block outcomes,
// committing session state after every execution.
//
// # Key Types
//
//   - Shell: owns the REPL loop over one Config/Validator/Executor/Session
//   - LineEditor: peterh/liner wrapper with secure history persistence
//
// # Usage
//
//	sh := shell.New(cfg, validatorInstance, exec, sess, auditor, model, sandboxStatus)
//	if err := sh.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package shell
