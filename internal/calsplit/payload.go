package calsplit

import (
	"fmt"
	"strconv"

	"livesync/internal/gateway"
	"livesync/internal/model"
)

// buildSplitRequest constructs the three request bodies the calendar
// change operations expect:
//
//   - originEvent: the unmodified payload, used to compute impact
//   - newEvent: a copy detached from the series, carrying only this
//     occurrence (marked), with the old id moved to old_id
//   - pastEvent: a copy with this occurrence removed and a fresh
//     exception range covering exactly this occurrence's date
//
// The new exception id is the previous minimum exception id minus one,
// unique by construction.
func buildSplitRequest(payload gateway.CalendarPayload, ev *model.Event) (gateway.CalendarPayload, error) {
	occurrenceKey := strconv.Itoa(ev.ID)

	csevents, _ := payload["csevents"].(map[string]any)
	occurrence, ok := csevents[occurrenceKey].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("calsplit: occurrence %d missing from series payload", ev.ID)
	}

	request := gateway.CalendarPayload{
		"originEvent":  deepCopy(payload),
		"splitDate":    ev.Start.Format(model.TimeLayoutShort),
		"untilEnd_yn":  0,
		"browsertabId": 1,
	}

	newEvent := deepCopy(payload)
	newEvent["old_id"] = newEvent["id"]
	delete(newEvent, "id")
	delete(newEvent, "exceptions")
	delete(newEvent, "additions")
	newEvent["repeat_id"] = 0
	newEvent["startdate"] = ev.Start.Format(model.TimeLayout)
	newEvent["enddate"] = ev.End.Format(model.TimeLayout)
	marked := deepCopy(occurrence)
	marked["mark"] = true
	newEvent["csevents"] = map[string]any{occurrenceKey: marked}
	newEvent["informCreator"] = false
	newEvent["informMe"] = false
	request["newEvent"] = newEvent

	pastEvent := deepCopy(payload)
	if pastCs, ok := pastEvent["csevents"].(map[string]any); ok {
		delete(pastCs, occurrenceKey)
	}
	exceptions, _ := pastEvent["exceptions"].(map[string]any)
	if exceptions == nil {
		exceptions = map[string]any{}
	}
	exceptionID := 0
	for key, raw := range exceptions {
		id := exceptionIDOf(key, raw)
		if id < exceptionID {
			exceptionID = id
		}
	}
	exceptionID--
	date := ev.Start.Format(model.DateLayout)
	exceptions[strconv.Itoa(exceptionID)] = map[string]any{
		"id":                exceptionID,
		"except_date_start": date,
		"except_date_end":   date,
	}
	pastEvent["exceptions"] = exceptions
	pastEvent["exceptionids"] = exceptionID
	request["pastEvent"] = pastEvent

	return request, nil
}

// exceptionIDOf extracts an exception's numeric id, preferring the
// element's own id field over its map key.
func exceptionIDOf(key string, raw any) int {
	if m, ok := raw.(map[string]any); ok {
		switch id := m["id"].(type) {
		case int:
			return id
		case float64:
			return int(id)
		case string:
			if n, err := strconv.Atoi(id); err == nil {
				return n
			}
		}
	}
	if n, err := strconv.Atoi(key); err == nil {
		return n
	}
	return 0
}

// deepCopy clones nested payload maps/slices so mutating one request
// body never leaks into another.
func deepCopy[M map[string]any](in M) M {
	out := make(M, len(in))
	for k, v := range in {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopy(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
