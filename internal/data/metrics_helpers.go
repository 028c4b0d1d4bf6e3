package data

import (
	"time"

	"github.com/corvidmail/mail-backend/internal/metrics"
	"github.com/corvidmail/mail-backend/internal/utils"
)

// observeQuery records duration and outcome of one database query. A nil
// metrics service (CLI tools, tests) disables instrumentation.
func observeQuery(ms metrics.MetricsService, queryType, table string, start time.Time, err error) {
	if ms == nil {
		return
	}
	ms.ObserveDBQueryDuration(queryType, table, time.Since(start).Seconds())
	if err != nil {
		ms.IncDBQueryError(queryType, table, utils.GetDBErrorType(err))
		return
	}
	ms.IncDBQuery(queryType, table)
}
