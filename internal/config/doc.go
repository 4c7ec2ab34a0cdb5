// Package config loads, normalizes, and validates cardsync configuration data.
//
// It supplies repository defaults (the card server at http://cardserver.local
// on port 80 with placeholder credentials), expands user paths including
// tilde shortcuts, reads TOML files, and honours environment overrides such as
// CARDSERVER_USERNAME and CARDSERVER_PASSWORD.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
