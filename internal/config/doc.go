// Package config loads the agentcatalog configuration.
//
// Configuration is read from a single directory containing config.yaml.
// The default directory is ~/.config/agentcatalog; commands accept
// --config-path to point elsewhere. A missing config.yaml is not an error:
// the defaults apply.
//
// # File Format
//
//	database:
//	  path: agentcatalog.db
//	  poolSize: 4
//	inventory:
//	  mode: file            # file or http
//	  path: inventory       # file mode: <path>/<tenantId>/<resourceId>.yaml
//	  url: http://inventory:8081
//	  timeout: 5s
//	  debounce: 200ms
//	  resyncOnStart: true
//	notifier:
//	  mode: log             # log or webhook
//	  url: https://hooks.example.com/bindings
//	  timeout: 10s
//	  pollInterval: 1s
//	  batchSize: 100
//	  retention: 168h
//	reconciler:
//	  workers: 4
//	  maxRetries: 5
//	  initialBackoff: 1s
//	  maxBackoff: 1m
//	  eventTimeout: 30s
//	ingest:
//	  enabled: true
//	  addr: 127.0.0.1:8091
//	logging:
//	  level: info
//	  format: text
//
// Durations use Go duration syntax. Relative paths are resolved against
// the configuration directory.
package config
