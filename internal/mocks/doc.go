// Package mocks provides shared mock implementations for testing.
//
// # Usage
//
//	import "github.com/DataNeuron/enterpirse-workflow-agent/internal/mocks"
//
//	func TestSomething(t *testing.T) {
//	    mockLLM := mocks.NewMockLLMClient()
//	    mockLLM.RespondWith("Category: bug\nPriority: P2\nReasoning: broken button")
//	    // Use mockLLM in test...
//	}
//
// # Available Mocks
//
//   - MockLLMClient: Mock for pkg/llm.LLMClient
//   - MockNotifier: Mock for the channel notifier, with per-channel failures
//   - FailingStateStore: state store that rejects every append
//
// Mocks here must not import pkg/triage or anything depending on it, since
// the triage tests import this package.
package mocks
