package entities

import (
	"fmt"
	"strconv"
	"strings"
)

// State tokens are opaque to clients. A plain collection state is the decimal
// string of a modSeq. A query state additionally binds a persisted filter/sort
// snapshot: "qs:<recordID>:<modSeq>".

const queryStatePrefix = "qs:"

// FormatState encodes a ledger position as an opaque state token.
func FormatState(modSeq int64) string {
	return strconv.FormatInt(modSeq, 10)
}

// ParseState decodes a plain state token into a ledger position. A token that
// does not decode is a terminal condition for the presenting client.
func ParseState(token string) (int64, error) {
	modSeq, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing state token %q: %w", token, err)
	}
	if modSeq < 0 {
		return 0, fmt.Errorf("parsing state token %q: negative modSeq", token)
	}
	return modSeq, nil
}

// QueryState is the decoded form of a composite query-state token.
type QueryState struct {
	RecordID string
	ModSeq   int64
}

// EncodeQueryState binds a query-state record to a ledger position.
func EncodeQueryState(recordID string, modSeq int64) string {
	return queryStatePrefix + recordID + ":" + strconv.FormatInt(modSeq, 10)
}

// DecodeQueryState decodes a composite query-state token. ok is false when
// the token is not in composite form; callers fall back to treating the whole
// value as a plain state token.
func DecodeQueryState(token string) (QueryState, bool) {
	rest, found := strings.CutPrefix(token, queryStatePrefix)
	if !found {
		return QueryState{}, false
	}
	idx := strings.LastIndex(rest, ":")
	if idx <= 0 {
		return QueryState{}, false
	}
	recordID := rest[:idx]
	modSeq, err := strconv.ParseInt(rest[idx+1:], 10, 64)
	if err != nil || modSeq < 0 {
		return QueryState{}, false
	}
	return QueryState{RecordID: recordID, ModSeq: modSeq}, true
}
