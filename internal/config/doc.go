// Package config handles configuration loading for chatd.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and duration parsing.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${CHATD_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	lifecycle:
//	  archive_after: "10m"
//	  purge_after: "10m"
//	  janitor_interval: "30s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database settings:
//
//	database:
//	  path: "./chatd.db"
//
// Admin authentication:
//
//	auth:
//	  jwt_secret: "${CHATD_JWT_SECRET}"
//	  token_ttl: "12h"
//
// Conversation housekeeping:
//
//	lifecycle:
//	  max_active: 3
//	  archive_after: "10m"
//	  purge_after: "10m"
//	  janitor_interval: "30s"
//
// Message synchronization:
//
//	sync:
//	  poll_interval: "2s"
//
// AI reply suggestions (optional):
//
//	suggest:
//	  enabled: true
//	  base_url: "https://api.openai.com/v1"
//	  api_key: "${OPENAI_API_KEY}"
//	  model: "gpt-4o-mini"
//
// Logging:
//
//	logging:
//	  level: "info"
//	  format: "json"
package config
