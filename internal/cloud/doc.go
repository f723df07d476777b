// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides an OpenRouter client used as the cloud fallback
// provider for command classification when a local Ollama model is
// unreachable or exceeds its timeout.
//
// # Key Types
//
//   - OpenRouterClient: HTTP client with TLS 1.2+, retry, and backoff
//   - ChatMessage / ChatRequest / ChatResponse: OpenRouter wire format
//
// # Usage
//
//	client := cloud.NewOpenRouterClient(apiKey)
//	client.SetModel("anthropic/claude-3-haiku")
//	resp, err := client.Chat(ctx, []cloud.ChatMessage{
//	    cloud.NewSystemMessage(prompt),
//	    cloud.NewUserMessage(command),
//	})
//
// API keys are never logged; the Authorization header is cleared
// immediately after each request completes.
package cloud
