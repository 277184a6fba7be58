// Package assess implements the LLM-backed completion assessment layer.
//
// It answers one question: given the most recent assistant output of an
// agent session, does a small external model judge the task DONE or
// NOT_DONE? The answer feeds the smart-continue gate of the session
// driver's continuation policy.
//
// # Architecture
//
// The package is organized around three pieces:
//
//   - Caller: a single-call contract against one of three interchangeable
//     HTTP completion backends (anthropic, openai, gemini). The backends
//     differ only in request/response shape; HTTPCaller normalizes all
//     three to one trimmed, upper-cased string.
//   - Resolve: credential- and model-aware provider selection. Explicit
//     provider choices never fall through to a different backend; absence
//     of any credential resolves to nil, which is an expected outcome.
//   - Assessor: joins a bounded window of recent assistant texts, keeps
//     the tail, and prompts the resolved backend for exactly one word.
//
// Every failure in this layer degrades to "not done", whether it is a
// missing credential, a timeout, a non-success status, or a malformed
// response. The assessment call may nudge a session to keep going, but it
// can never crash it or wrongly declare completion.
package assess
