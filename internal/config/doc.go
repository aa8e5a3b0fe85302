// Package config loads Ereuna's settings with viper from EREUNA_-prefixed
// environment variables and an optional YAML file, then validates them with
// struct tags. Components receive only the sub-struct they need, such as
// LLMConfig or ScraperConfig.
package config
