// Package models holds the request and response bodies of the shell bridge.
package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"Bridge is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	BuildID   string `json:"build_id" doc:"Build identifier"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go runtime version"`
	Compiler  string `json:"compiler" example:"gc" doc:"Go compiler"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Port models
type PortData struct {
	Port uint16 `json:"port" example:"54231" doc:"Port the backend announced"`
	URL  string `json:"url" example:"http://127.0.0.1:54231" doc:"Backend base URL"`
}

type PortResponse struct {
	Body PortData
}

// State models
type StateData struct {
	InstanceID       string  `json:"instance_id" doc:"Supervised process instance"`
	State            string  `json:"state" example:"ready" enum:"starting,running,ready,terminated" doc:"Supervisor state"`
	Port             *uint16 `json:"port,omitempty" example:"54231" doc:"Backend port, absent until announced"`
	NotifierAttached bool    `json:"notifier_attached" doc:"Whether a UI target receives the navigation directive"`
	NavigationSent   bool    `json:"navigation_sent" doc:"Whether the one-time navigation has been claimed (pending or done)"`
	SettleDelayMs    int64   `json:"settle_delay_ms" example:"300" doc:"Delay between readiness and navigation"`
	Clients          int     `json:"clients" example:"1" doc:"Connected event stream clients"`
}

type StateResponse struct {
	Body StateData
}
