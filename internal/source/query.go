package source

import (
	"fmt"
	"regexp"
	"time"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// BuildQuery renders the campaign query against the given schema and
// tables. Identifiers are checked rather than quoted, so the same text
// works on MySQL and SQLite. An empty schema leaves tables unqualified.
//
// The query takes two parameters: the created_at cutoff and the expected
// sender-ID type.
func BuildQuery(schema, campaigns, senderIDs string) (string, error) {
	for _, id := range []string{campaigns, senderIDs} {
		if !identRe.MatchString(id) {
			return "", fmt.Errorf("invalid table name %q", id)
		}
	}
	if schema != "" {
		if !identRe.MatchString(schema) {
			return "", fmt.Errorf("invalid schema name %q", schema)
		}
		campaigns = schema + "." + campaigns
		senderIDs = schema + "." + senderIDs
	}

	return fmt.Sprintf(`
SELECT DISTINCT %[1]s.message,
                %[1]s.sender_id,
                %[2]s.sender_id_type,
                %[1]s.created_at
FROM %[1]s
INNER JOIN %[2]s
    ON %[1]s.client_id = %[2]s.client_id
WHERE %[1]s.created_at >= ?
  AND %[2]s.sender_id_type = ?;
`, campaigns, senderIDs), nil
}

// Cutoff is the oldest created_at included in a run started at now,
// expressed in loc, the zone the source stores created_at in.
func Cutoff(now time.Time, window time.Duration, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return now.Add(-window).In(loc)
}
