// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with a local
// Ollama server, used as the primary command classifier provider.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Message: Chat message with role and content
//   - ChatRequest / ChatResponse: /api/chat wire format
//
// # Usage
//
//	client := ollama.NewClient()
//	if err := client.EnsureRunning(ctx); err != nil {
//	    log.Fatal("ollama not available:", err)
//	}
//	resp, err := client.Chat(ctx, "qwen2.5-coder:14b", []ollama.Message{
//	    ollama.NewSystemMessage(prompt),
//	    ollama.NewUserMessage(command),
//	}, &ollama.Options{Temperature: 0})
//
// The classifier always uses non-streaming chat requests: a verdict is
// only useful once the complete JSON response has arrived.
package ollama
