package protocol

// Vote is a participant's answer in the voting phase
type Vote string

const (
	VoteCommit Vote = "COMMIT"
	VoteAbort  Vote = "ABORT"
)

// Decision is the coordinator's irrevocable outcome for a transaction
type Decision string

const (
	DecisionCommit  Decision = "COMMIT"
	DecisionAbort   Decision = "ABORT"
	DecisionUnknown Decision = "UNKNOWN"
)

// Phase identifies a 2PC phase in log lines and metrics
type Phase string

const (
	PhaseVoting   Phase = "voting"
	PhaseDecision Phase = "decision"
)
