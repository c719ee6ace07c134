package telemetry

// Event names.
const (
	EventCommandExecuted   = "command_executed"
	EventServerStarted     = "server_started"
	EventFeatureRegistered = "feature_registered"
	EventFeatureBuilt      = "feature_built"
	EventIntegration       = "integration_completed"
	EventRollback          = "backup_rolled_back"
)

// BuildProperties describes a build without naming the feature; only sizes
// and outcomes leave the machine.
func BuildProperties(items, failed int, success, dryRun bool) Properties {
	return Properties{
		"items":   items,
		"failed":  failed,
		"success": success,
		"dry_run": dryRun,
	}
}
