// Package config loads, normalizes, and validates erpfetch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file, and honours
// environment fallbacks such as ERP_BASE_URL and ERP_USER_PASSWORD. The Config
// type centralizes every knob the orchestrator, session controller and CLI
// need, so nothing downstream reads process-wide settings directly.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
