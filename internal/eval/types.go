package eval

// #region check
// Check captures a single invariant check result.
type Check struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail,omitempty"`
}

// #endregion check

// #region result
// Result is the outcome of one harness run.
type Result struct {
	Passed bool    `json:"passed"`
	Checks []Check `json:"checks"`
	Reason string  `json:"reason"`
}

// #endregion result
