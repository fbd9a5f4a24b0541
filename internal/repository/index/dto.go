package index

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/campushq/coursedex/internal/domain/document"
)

// Reserved hash field names. Double underscore keeps them clear of metadata
// field names.
const (
	fieldPassage = "__passage"
	fieldVector  = "vector"

	fieldID       = "id"
	fieldType     = "type"
	fieldCourseID = "course_id"
	fieldModuleID = "module_id"
)

// Entry is one vector index record ready for upsert.
type Entry struct {
	ID      string
	Passage string
	Vector  []float32
	Meta    Metadata
}

// Metadata is the flat filterable record stored next to every vector.
// Timestamp is zero when the document carries no parseable date; the field
// is then omitted from the hash entirely.
type Metadata struct {
	Type           document.Type
	CourseID       string
	ModuleID       string
	TimestampField string
	Timestamp      int64
}

// Hit is one vector query result.
type Hit struct {
	ID         string
	Similarity float64
	Type       document.Type
}

func entryFields(e *Entry) map[string]string {
	fields := map[string]string{
		fieldPassage:  e.Passage,
		fieldVector:   vectorToBytes(e.Vector),
		fieldID:       e.ID,
		fieldType:     string(e.Meta.Type),
		fieldCourseID: e.Meta.CourseID,
	}
	if e.Meta.ModuleID != "" {
		fields[fieldModuleID] = e.Meta.ModuleID
	}
	if e.Meta.TimestampField != "" && e.Meta.Timestamp != 0 {
		fields[e.Meta.TimestampField] = strconv.FormatInt(e.Meta.Timestamp, 10)
	}
	return fields
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
