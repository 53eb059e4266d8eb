package nav

import "fmt"

// State prefixes carried in callback data. The prefix names the menu the
// button leads to; the fields behind it are the accumulated path.
const (
	PrefixSubject       = "sub"  // fields: batch, subject
	PrefixTeacher       = "tch"  // fields: batch, subject, teacher
	PrefixChapterFormat = "chf"  // fields: batch, subject, teacher, format
	PrefixChapter       = "chp"  // fields: batch, subject, teacher, chapter
	PrefixContentType   = "cnt"  // fields: batch, subject, teacher, chapter, content type
	PrefixLeaf          = "leaf" // fields: batch, subject, teacher, chapter, content type, item
	PrefixBack          = "back" // fields: level, then that level's path prefix
)

// Chapter list formats.
const (
	FormatNumber = "num"
	FormatName   = "name"
)

// Content types. These values are stored on ContentRecords, so changing
// them is a data migration.
const (
	ContentLectures  = "Lectures"
	ContentDPP       = "DPP"
	ContentMaterials = "Materials"
)

// Back levels.
const (
	BackSubjects     = "subjects"
	BackTeachers     = "teachers"
	BackFormats      = "formats"
	BackChapters     = "chapters"
	BackContentTypes = "ctypes"
)

// Path is the navigation position accumulated across menu steps. It is
// rebuilt from callback data on every button press and never stored as an
// object; individual fields are persisted on the user record for resumption.
type Path struct {
	Batch       string
	Subject     string
	Teacher     string
	Format      string
	Chapter     string
	ContentType string
	Item        string
}

func requireFields(prefix string, fields []string, want int) error {
	if len(fields) != want {
		return fmt.Errorf("callback %q carries %d fields, want %d", prefix, len(fields), want)
	}
	return nil
}

// DecodePath interprets decoded callback fields for a given state prefix.
// Arity is checked strictly; a mismatch means the button came from an
// incompatible bot version.
func DecodePath(prefix string, fields []string) (Path, error) {
	var p Path
	switch prefix {
	case PrefixSubject:
		if err := requireFields(prefix, fields, 2); err != nil {
			return p, err
		}
		p.Batch, p.Subject = fields[0], fields[1]
	case PrefixTeacher:
		if err := requireFields(prefix, fields, 3); err != nil {
			return p, err
		}
		p.Batch, p.Subject, p.Teacher = fields[0], fields[1], fields[2]
	case PrefixChapterFormat:
		if err := requireFields(prefix, fields, 4); err != nil {
			return p, err
		}
		p.Batch, p.Subject, p.Teacher, p.Format = fields[0], fields[1], fields[2], fields[3]
	case PrefixChapter:
		if err := requireFields(prefix, fields, 4); err != nil {
			return p, err
		}
		p.Batch, p.Subject, p.Teacher, p.Chapter = fields[0], fields[1], fields[2], fields[3]
	case PrefixContentType:
		if err := requireFields(prefix, fields, 5); err != nil {
			return p, err
		}
		p.Batch, p.Subject, p.Teacher, p.Chapter, p.ContentType =
			fields[0], fields[1], fields[2], fields[3], fields[4]
	case PrefixLeaf:
		if err := requireFields(prefix, fields, 6); err != nil {
			return p, err
		}
		p.Batch, p.Subject, p.Teacher, p.Chapter, p.ContentType, p.Item =
			fields[0], fields[1], fields[2], fields[3], fields[4], fields[5]
	default:
		return p, fmt.Errorf("unknown callback prefix %q", prefix)
	}
	return p, nil
}
