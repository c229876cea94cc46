package database

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/caremint/backend/core"
)

// getExec returns the executor to run a query on; an explicit exec (a
// transaction usually) takes precedence over the repository's default.
func getExec(dflt core.DBExecutor, exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 && exec[0] != nil {
		return exec[0]
	}
	return dflt
}

// orderByClause renders ordering into ORDER BY terms. Ordering fields come
// from the query string and are interpolated into raw SQL, so anything that
// is not a known column of the table is dropped. Falls back to the stable
// (created_at, id) order when nothing survives.
func orderByClause(ordering []core.DBOrdering, columns ...string) []string {
	allowed := make(map[string]bool, len(columns))
	for _, col := range columns {
		allowed[col] = true
	}

	orderBy := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if !allowed[ord.Field] {
			continue
		}
		orderBy = append(orderBy, ord.String())
	}
	if len(orderBy) == 0 {
		orderBy = []string{
			core.DBOrdering{Field: "created_at", Ascending: true}.String(),
			core.DBOrdering{Field: "id", Ascending: true}.String(),
		}
	}
	return orderBy
}

// jsonbMap maps a flat string bag onto a JSONB column.
type jsonbMap map[string]string

func (m jsonbMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *jsonbMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.Errorf("jsonbMap: cannot scan %T", src)
	}
	return json.Unmarshal(raw, m)
}
