package validators

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/zazmarga/online-cinema/pkg/errors"
	"github.com/zazmarga/online-cinema/pkg/pagination"
)

// DateLayout is the calendar-day format accepted by date filters.
const DateLayout = "2006-01-02"

func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter must be numeric").WithDetails(map[string]any{"field": key})
	}
	if value < min || value > max {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").WithDetails(map[string]any{"field": key, "min": min, "max": max})
	}
	return value, nil
}

// ParsePagination reads the cursor and limit query parameters.
func ParsePagination(r *http.Request) (pagination.Params, error) {
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

// ParseQueryDate parses a YYYY-MM-DD parameter; an absent parameter yields nil.
func ParseQueryDate(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	value, err := time.ParseInLocation(DateLayout, raw, time.UTC)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date must be formatted as YYYY-MM-DD").WithDetails(map[string]any{"field": key})
	}
	return &value, nil
}

// ParseQueryList collects a parameter given either repeated or comma separated.
func ParseQueryList(r *http.Request, key string) []string {
	var out []string
	for _, raw := range r.URL.Query()[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ParseQueryUUIDs parses a list parameter of uuids.
func ParseQueryUUIDs(r *http.Request, key string) ([]uuid.UUID, error) {
	values := ParseQueryList(r, key)
	if len(values) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(values))
	for _, value := range values {
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid uuid").WithDetails(map[string]any{"field": key, "value": value})
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParsePathUUID reads a uuid chi URL parameter.
func ParsePathUUID(r *http.Request, param string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, param+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+param)
	}
	return id, nil
}
