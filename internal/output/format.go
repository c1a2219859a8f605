package output

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
)

// RecoverableError is implemented by errors that suggest a recovery action.
type RecoverableError interface {
	error
	RecoveryHint() string
}

// GetRecoveryHint extracts a recovery hint from anywhere in err's chain.
// Returns empty string if no hint is available.
func GetRecoveryHint(err error) string {
	var re RecoverableError
	if errors.As(err, &re) {
		return re.RecoveryHint()
	}
	return ""
}

// PrintError prints err and, when available, its recovery hint.
func (l *Logger) PrintError(err error) {
	if err == nil {
		return
	}
	l.Error("%v", err)
	if hint := GetRecoveryHint(err); hint != "" {
		fmt.Fprintf(l.errOut, "  %s %s\n", color.New(color.FgYellow).Sprint("Hint:"), hint)
	}
}
