// Package generation holds the LLM-facing core of report generation. It defines
// the Provider interface that text-generation backends (Gemini, OpenAI)
// implement, a Caller that retries provider calls with exponential backoff, and
// a Chainer that generates report sections in order while threading earlier
// sections into each later prompt.
package generation
