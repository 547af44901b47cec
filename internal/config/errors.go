package config

import (
	"errors"
)

var (
	// ErrEmptyURL error if config webserver.URL is empty.
	ErrEmptyURL = errors.New("toml config webserver.url can not be empty")

	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("toml config webserver.port listening port can not be 0")

	// ErrNoVerifierConfigured error if neither OIDC nor a dev token secret is set.
	ErrNoVerifierConfigured = errors.New("toml config identity needs oidc enabled or a dev token secret")
)
