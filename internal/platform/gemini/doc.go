// Package gemini provides an implementation of the generation.Provider interface
// backed by Google's Gemini API.
//
// This package is an infrastructure adapter: it connects the report pipeline to
// the external Gemini service without exposing SDK types to the rest of the
// application.
//
// Key components:
//
// 1. Provider:
//   - Implements generation.Provider on top of the google.golang.org/genai client
//   - Applies the configured system instruction and temperature to every request
//
// 2. Error classification:
//   - Translates genai.APIError status codes into generation.ProviderError kinds
//   - Treats safety blocks as malformed requests and empty answers as transient
//
// Retries are deliberately absent here; generation.Caller owns them.
package gemini
