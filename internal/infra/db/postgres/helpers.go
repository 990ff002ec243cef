package postgres

import (
    "database/sql"
    "encoding/json"
    "strings"
    "time"
)

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
    if strings.TrimSpace(s) == "" {
        return "-"
    }
    return s
}

func jsonOrEmpty(details string) string {
    if strings.TrimSpace(details) == "" {
        return "{}"
    }
    var js any
    if json.Unmarshal([]byte(details), &js) != nil {
        b, _ := json.Marshal(map[string]string{"raw": details})
        return string(b)
    }
    return details
}

func nullTime(t *time.Time) sql.NullTime {
    if t == nil {
        return sql.NullTime{}
    }
    return sql.NullTime{Time: *t, Valid: true}
}
