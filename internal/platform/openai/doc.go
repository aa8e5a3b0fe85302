// Package openai implements generation.Provider on top of the OpenAI chat
// completions API using the official openai-go SDK. Any OpenAI-compatible
// endpoint can be targeted through the configured base URL.
package openai
