/*
Package config provides typed access to layered map[string]any configuration.

# Overview

Config wraps a map[string]any and returns default values when a key is
missing or holds the wrong type. Layers loaded from different places
(programmatic values, bundled files, cached or fetched documents) are combined
with Merge, later layers winning key by key.

# Environment Overrides

A key written as "__<env>__<key>" shadows "<key>" when the config's
"build.environment" value equals <env>:

	cfg := config.New(map[string]any{
	    "build.environment":     "dev",
	    "analytics.server":      "prod.example.com",
	    "__dev__analytics.server": "dev.example.com",
	})
	cfg.ForEnvironment().String("analytics.server", "") // "dev.example.com"

# Hub Settings

Settings decodes the event hub's own options (wrapper type, response timeout,
state cache size, history database path, log level) from a Config.

# File Loading

	cfg, err := config.FromFile("eventhub.yaml")
	cfg, err = config.FromYAML(yamlBytes)
	cfg, err = config.FromJSON(jsonBytes)

# Thread Safety

Config is safe for concurrent reads. Merge and ForEnvironment return new
Configs and never modify their inputs.
*/
package config
