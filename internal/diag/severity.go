package diag

// Severity ranks how strongly a diagnostic affects the analysis outcome.
type Severity uint8

const (
	// SevInfo carries non-actionable context, e.g. a degraded cache.
	SevInfo Severity = iota
	// SevWarning flags inference that stays sound but may over-restrict.
	SevWarning
	// SevError marks a memory safety violation; codegen is withheld.
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Fails reports whether a diagnostic at this severity fails the run.
// Warnings count only when the project promotes them via
// warnings-as-errors.
func (s Severity) Fails(warningsAsErrors bool) bool {
	return s >= SevError || (warningsAsErrors && s == SevWarning)
}
