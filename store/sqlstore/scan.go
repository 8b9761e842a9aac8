package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/warp/brokerdesk/brokerage"
)

// Dates are written as YYYY-MM-DD text and read back the same way on both
// dialects (MySQL runs without parseTime).

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(brokerage.DateLayout)
}

func stringArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func int64Arg(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func policyIDArg(p *brokerage.PolicyID) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func parseDate(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	s := ns.String
	if len(s) > len(brokerage.DateLayout) {
		s = s[:len(brokerage.DateLayout)]
	}
	t, err := time.Parse(brokerage.DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", ns.String, err)
	}
	return &t, nil
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid stored timestamp %q", s)
}

func nullInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullPolicyID(n sql.NullInt64) *brokerage.PolicyID {
	if !n.Valid {
		return nil
	}
	v := brokerage.PolicyID(n.Int64)
	return &v
}

func nullString(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}
