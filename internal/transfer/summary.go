package transfer

import (
	"fmt"
	"path/filepath"

	"github.com/rcliao/vitesse-sync/internal/model"
)

// SentSummary counts successfully sent files by the first two letters of
// their names, in order of first appearance: "3 PL files sent".
func SentSummary(outcomes []model.TransferOutcome) []string {
	counts := map[string]int{}
	var order []string
	for _, o := range outcomes {
		if !o.Succeeded {
			continue
		}
		name := filepath.Base(o.RecordPath)
		prefix := name
		if len(prefix) > 2 {
			prefix = prefix[:2]
		}
		if counts[prefix] == 0 {
			order = append(order, prefix)
		}
		counts[prefix]++
	}
	lines := make([]string, 0, len(order))
	for _, p := range order {
		lines = append(lines, fmt.Sprintf("%d %s files sent", counts[p], p))
	}
	return lines
}
