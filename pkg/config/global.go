package config

import (
	"net/url"
)

// Global is used for globally shared parameters that are set from CLI flags
// rather than from the configuration file.
type Global struct {
	// InternalMonitoringListenerAddress is the address the internal monitoring
	// endpoint binds to when running in serve mode.
	InternalMonitoringListenerAddress *url.URL
}
