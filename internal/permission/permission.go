package permission

// Decision is the outcome of a rule check.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
	DecisionAsk   Decision = "ask"
)

// Result is the outcome of Checker.Check.
type Result struct {
	Decision Decision `json:"decision"`
	Rule     string   `json:"rule,omitempty"`   // Matched rule, empty if none
	Source   string   `json:"source,omitempty"` // Bucket the rule came from
}

// Matched reports whether a rule produced the decision.
func (r Result) Matched() bool {
	return r.Rule != ""
}

func allowResult(rule string) Result {
	return Result{Decision: DecisionAllow, Rule: rule, Source: string(DecisionAllow)}
}

func denyResult(rule string) Result {
	return Result{Decision: DecisionDeny, Rule: rule, Source: string(DecisionDeny)}
}

func askResult(rule string) Result {
	if rule == "" {
		return Result{Decision: DecisionAsk}
	}
	return Result{Decision: DecisionAsk, Rule: rule, Source: string(DecisionAsk)}
}
