package worktree

import (
	"time"

	"github.com/majorcontext/ccs/internal/id"
)

// GenerateBranchName returns a unique branch name for default worktree mode,
// e.g. "ccs-20260114-093012-3fa9".
func GenerateBranchName(now time.Time) string {
	return "ccs-" + now.Format("20060102-150405") + "-" + id.Hex(2)
}
