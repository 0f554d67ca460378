// Package bot defines the bot entity, its invocation log, and the
// management service.
package bot

import (
	"github.com/langboard/engine/id"
	"github.com/langboard/engine/internal/entity"
)

// Platform selects which runtime hosts a bot.
type Platform string

// Bot platforms.
const (
	PlatformDefault Platform = "Default"
	PlatformFlow    Platform = "Flow"
)

// RunningType selects the transport used to invoke a bot.
type RunningType string

// Bot running types.
const (
	RunningDefault  RunningType = "Default"
	RunningEndpoint RunningType = "Endpoint"
	RunningFlowJSON RunningType = "FlowJson"
)

// legalRunningTypes maps each platform to the running types it supports.
var legalRunningTypes = map[Platform][]RunningType{
	PlatformDefault: {RunningDefault},
	PlatformFlow:    {RunningEndpoint, RunningFlowJSON},
}

// allowAllIPsSafelist enumerates the (platform, running type) pairs that may
// set AllowAllIPs.
var allowAllIPsSafelist = map[Platform]map[RunningType]bool{
	PlatformFlow: {RunningEndpoint: true},
}

// ValidCombination reports whether the running type is legal for the platform.
func ValidCombination(p Platform, rt RunningType) bool {
	for _, legal := range legalRunningTypes[p] {
		if legal == rt {
			return true
		}
	}
	return false
}

// AllowAllIPsPermitted reports whether a bot with this (platform, running
// type) pair may set the AllowAllIPs bit.
func AllowAllIPsPermitted(p Platform, rt RunningType) bool {
	return allowAllIPsSafelist[p][rt]
}

// Bot is a project-owned automation identity.
type Bot struct {
	entity.Entity

	// ID is the unique TypeID for this bot.
	ID id.ID `json:"id"`

	// ProjectID is the owning project. Deleting the project cascades.
	ProjectID id.ID `json:"project_id"`

	// Name is the display name.
	Name string `json:"name"`

	// Platform selects the hosting runtime.
	Platform Platform `json:"platform"`

	// RunningType selects the invocation transport. Must be legal for
	// Platform per ValidCombination.
	RunningType RunningType `json:"running_type"`

	// Prompt is an optional instruction string forwarded on invocation.
	Prompt string `json:"prompt,omitempty"`

	// APIURL is the endpoint URL for Flow/Endpoint bots.
	APIURL string `json:"api_url,omitempty"`

	// APIKey is sent as the Authorization header on endpoint calls.
	// Never serialized.
	APIKey string `json:"-"`

	// Value holds the flow graph JSON for Flow/FlowJson bots.
	Value string `json:"value,omitempty"`

	// AllowAllIPs permits the bot endpoint to be called regardless of IP
	// restrictions. Legal only for safelisted (platform, running type) pairs.
	AllowAllIPs bool `json:"allow_all_ips"`

	// Enabled indicates whether the bot participates in dispatch.
	Enabled bool `json:"enabled"`

	// RateLimit is the maximum outbound invocations per second for this
	// bot's endpoint. 0 means unlimited.
	RateLimit int `json:"rate_limit"`
}

// ListOpts configures filtering and pagination for bot listing.
type ListOpts struct {
	Offset  int
	Limit   int
	Enabled *bool
}
