// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session tracks the mutable per-session state a shell loop
// carries between commands: working directory, environment, the last
// exit code, and a bounded command history.
//
// # Key Types
//
//   - Manager: mutex-guarded holder of cwd/env/last_exit_code/history
//
// # Usage
//
//	m := session.New(startCwd, os.Environ() filtered to a map)
//	m.SetLastExitCode(result.ExitCode)
//	m.SetCwd(result.Cwd)
//	m.SetEnv(result.Env)
//	m.AppendHistory(command) // never for a Block decision
package session
