// Package audit compares classifier labels with registered sender-ID types.
package audit

import (
	"fmt"

	"github.com/edwin001-tech/misused-senders/internal/domain"
)

// Compare returns a Mismatch for every record whose label differs from its
// registered SenderIDType. Unknown labels count as mismatches.
func Compare(records []domain.Record, labels []string) ([]domain.Mismatch, error) {
	if len(records) != len(labels) {
		return nil, fmt.Errorf("audit: %d records but %d labels", len(records), len(labels))
	}

	var out []domain.Mismatch
	for i, r := range records {
		if labels[i] == r.SenderIDType {
			continue
		}
		out = append(out, domain.Mismatch{
			Date:           r.CreatedAt,
			SenderID:       r.SenderID,
			Message:        r.Message,
			ClassifiedType: labels[i],
			ExpectedType:   r.SenderIDType,
		})
	}
	return out, nil
}
