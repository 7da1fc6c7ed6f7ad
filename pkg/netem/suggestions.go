// Package netem renders the tc/netem shell commands an engineer can run by
// hand to reproduce a scenario's simulated network faults against a real
// interface. LabOps never executes these commands itself: scenario faults
// are always simulated in-process by pkg/backends/sim, so this package is a
// pure string builder with no sidecar/exec dependency.
//
// Adapted from pkg/injection/l3l4/tc_wrapper.go's buildTCNetemCommand.
package netem

import "fmt"

// FaultParams are the scenario sim_faults fields that have a netem
// equivalent: delay/jitter, loss percent, and reorder percent.
type FaultParams struct {
	DelayMs        uint32
	JitterUs       uint32
	LossPercent    uint32
	ReorderPercent uint32
}

// CommandSuggestions is the rendered, human-facing netem command block for
// one scenario + interface pairing.
type CommandSuggestions struct {
	ProfileID        string
	ProfilePath      string
	SafetyNote       string
	ApplyCommand     string
	ShowCommand      string
	TeardownCommand  string
}

const defaultSafetyNote = "Run only against a lab/test interface; these commands mutate kernel qdisc " +
	"state on the host and are not reverted automatically by LabOps."

// BuildCommandSuggestions renders the tc qdisc add/show/del command trio for
// iface given a scenario's fault parameters. iface must be non-empty; the
// caller (orchestrator.ExecuteRun, via RunRequest.NetemIface) is
// responsible for that contract.
func BuildCommandSuggestions(profileID, profilePath, iface string, params FaultParams) CommandSuggestions {
	return CommandSuggestions{
		ProfileID:       profileID,
		ProfilePath:     profilePath,
		SafetyNote:      defaultSafetyNote,
		ApplyCommand:    buildApplyCommand(iface, params),
		ShowCommand:     fmt.Sprintf("tc qdisc show dev %s", iface),
		TeardownCommand: fmt.Sprintf("tc qdisc del dev %s root", iface),
	}
}

func buildApplyCommand(iface string, params FaultParams) string {
	command := fmt.Sprintf("tc qdisc add dev %s root netem", iface)

	if params.DelayMs > 0 {
		command += fmt.Sprintf(" delay %dms", params.DelayMs)
		if params.JitterUs > 0 {
			command += fmt.Sprintf(" %dus", params.JitterUs)
		}
	}
	if params.LossPercent > 0 {
		command += fmt.Sprintf(" loss %d%%", params.LossPercent)
	}
	if params.ReorderPercent > 0 {
		command += fmt.Sprintf(" reorder %d%%", params.ReorderPercent)
		if params.DelayMs == 0 {
			// netem requires a non-zero delay for reorder to take effect.
			command += " delay 10ms"
		}
	}

	return command
}
