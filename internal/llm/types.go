// Package llm provides the language model abstraction used by the crew.
// Message and request types are agentkit's, so agentkit providers plug in
// without conversion.
package llm

import "github.com/vinayprograms/agentkit/llm"

type (
	// Provider is the interface for LLM providers.
	Provider = llm.Provider

	// Message is one turn of a conversation. Role is system, user,
	// assistant or tool.
	Message = llm.Message

	// ToolDef describes a tool the model may call.
	ToolDef = llm.ToolDef

	// ToolCallResponse is a tool invocation requested by the model.
	ToolCallResponse = llm.ToolCallResponse

	// ChatRequest is a single model call. MaxTokens 0 uses the provider
	// default.
	ChatRequest = llm.ChatRequest

	// ChatResponse is the model's reply.
	ChatResponse = llm.ChatResponse

	// RetryConfig controls backoff for rate limits and transient errors.
	// Zero fields take agentkit's defaults.
	RetryConfig = llm.RetryConfig
)
