// Package config provides configuration management for the Rescind service.
package config

import (
	"time"
)

// ServiceConfig holds configuration for the HTTP decisioning API service.
type ServiceConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	MaxPageSize    int // cap on review-queue and rule listings
	LogLevel       string
	LogFormat      string
}

// DefaultServiceConfig returns configuration with default values.
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		RequestTimeout: 30 * time.Second,
		MaxPageSize:    200,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}
