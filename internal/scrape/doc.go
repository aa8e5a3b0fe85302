// Package scrape fetches web pages and PDF documents and reduces them to
// plain text that can be quoted as source material in generation prompts.
package scrape
