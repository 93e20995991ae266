package workflow

import "github.com/DataNeuron/enterpirse-workflow-agent/pkg/triage"

// Default channel names.
const (
	AlertChannel   = "#alerts"
	DefaultChannel = "#bugs"
)

// ChannelsFor returns the channels to notify for priority, in delivery order:
// the alert channel and then defaultChannel for P0/P1, otherwise only defaultChannel.
func ChannelsFor(priority triage.Priority, defaultChannel string) []string {
	return routeChannels(priority, AlertChannel, defaultChannel)
}

func routeChannels(priority triage.Priority, alertChannel, defaultChannel string) []string {
	if priority.Urgent() {
		return []string{alertChannel, defaultChannel}
	}
	return []string{defaultChannel}
}
