package handler

import (
	"net/url"
	"time"

	dErrors "fasela/pkg/domain-errors"
)

const monthLayout = "2006-01"

// parseRange reads the from and to query parameters of the monthly report. Each
// accepts a month (YYYY-MM), a date (YYYY-MM-DD) or an RFC 3339 timestamp and is
// taken as the first instant it names; to is exclusive.
func parseRange(q url.Values) (from, to *time.Time, err error) {
	if from, err = parseBound(q, "from"); err != nil {
		return nil, nil, err
	}
	if to, err = parseBound(q, "to"); err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func parseBound(q url.Values, name string) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly, monthLayout} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeInvalidInput, name+" must be a month (YYYY-MM), a date (YYYY-MM-DD) or an RFC 3339 timestamp")
}
