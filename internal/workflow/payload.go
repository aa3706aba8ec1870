package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/complaint-service/internal/domain"
)

// Payload maps stage field names to caller supplied values.
type Payload map[string]any

type value struct {
	text string
	flag bool
	at   time.Time
	file domain.FileMeta
}

var errAbsent = errors.New("absent")

const isoDate = "2006-01-02"

// ParseDate accepts a calendar date (read as UTC midnight) or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(isoDate, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("not an ISO-8601 date: %q", s)
	}
	return t.UTC(), nil
}

func coerce(kind FieldKind, raw any) (value, error) {
	if raw == nil {
		return value{}, errAbsent
	}
	switch kind {
	case FieldText:
		return coerceText(raw)
	case FieldBool:
		return coerceBool(raw)
	case FieldDate:
		return coerceDate(raw)
	case FieldFile:
		return coerceFile(raw)
	}
	return value{}, fmt.Errorf("unknown field kind %q", kind)
}

func coerceText(raw any) (value, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	default:
		return value{}, fmt.Errorf("expected text, got %T", raw)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return value{}, errAbsent
	}
	return value{text: s}, nil
}

func coerceBool(raw any) (value, error) {
	switch v := raw.(type) {
	case bool:
		return value{flag: v}, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "":
			return value{}, errAbsent
		case "yes", "true":
			return value{flag: true}, nil
		case "no", "false":
			return value{flag: false}, nil
		}
		return value{}, fmt.Errorf("expected Yes or No, got %q", v)
	}
	return value{}, fmt.Errorf("expected boolean, got %T", raw)
}

func coerceDate(raw any) (value, error) {
	switch v := raw.(type) {
	case time.Time:
		if v.IsZero() {
			return value{}, errAbsent
		}
		return value{at: v.UTC()}, nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return value{}, errAbsent
		}
		return value{at: v.UTC()}, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return value{}, errAbsent
		}
		t, err := ParseDate(v)
		if err != nil {
			return value{}, err
		}
		return value{at: t}, nil
	}
	return value{}, fmt.Errorf("expected date string, got %T", raw)
}

func coerceFile(raw any) (value, error) {
	var meta domain.FileMeta
	switch v := raw.(type) {
	case domain.FileMeta:
		meta = v
	case *domain.FileMeta:
		if v == nil {
			return value{}, errAbsent
		}
		meta = *v
	case map[string]any:
		name, _ := v["fileName"].(string)
		kind, _ := v["fileType"].(string)
		meta = domain.FileMeta{FileName: strings.TrimSpace(name), FileType: kind}
		switch size := v["fileSize"].(type) {
		case float64:
			meta.FileSize = int64(size)
		case int:
			meta.FileSize = int64(size)
		case int64:
			meta.FileSize = size
		case json.Number:
			n, err := size.Int64()
			if err != nil {
				return value{}, fmt.Errorf("invalid fileSize: %w", err)
			}
			meta.FileSize = n
		case nil:
		default:
			return value{}, fmt.Errorf("invalid fileSize type %T", size)
		}
	default:
		return value{}, fmt.Errorf("expected file metadata, got %T", raw)
	}
	if meta.FileName == "" {
		return value{}, errors.New("fileName required")
	}
	if meta.FileSize < 0 {
		return value{}, errors.New("fileSize must not be negative")
	}
	return value{file: meta}, nil
}

// Build converts a payload into a stage record. It reports every required
// field that is missing and every supplied field that cannot be coerced.
func (d StageDefinition) Build(payload Payload) (domain.StageRecord, []string) {
	rec := domain.StageRecord{Stage: d.Number}
	var invalid []string
	for _, f := range d.Fields {
		v, err := coerce(f.Kind, payload[f.Name])
		if errors.Is(err, errAbsent) {
			if f.Required {
				invalid = append(invalid, f.Name)
			}
			continue
		}
		if err != nil {
			invalid = append(invalid, f.Name)
			continue
		}
		f.assign(&rec, v)
	}
	return rec, invalid
}
