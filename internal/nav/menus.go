package nav

import (
	"fmt"

	"studybot/internal/models"
)

// Button is one inline-keyboard button before it is handed to the transport.
type Button struct {
	Label string
	Data  string
}

// Menu is a rendered screen: message text plus button rows.
type Menu struct {
	Text string
	Rows [][]Button
}

// MaterialSubtypes is the fixed all-study-materials list, rendered
// regardless of what has actually been uploaded.
var MaterialSubtypes = []string{
	"Notes",
	"Short Notes",
	"Mind Maps",
	"Module",
	"Handwritten Notes",
	"NCERT",
	"PYQ",
	"Test",
	"Formula Sheet",
	"Revision",
	"Extra",
}

// DPPSubtypes is the fixed daily-practice-problems choice.
var DPPSubtypes = []string{"Quiz", "PDF"}

// defaultChapterNames backs the chapters-by-name format for subjects that
// ship with a known syllabus. Other subjects fall back to numbered chapters.
var defaultChapterNames = map[string][]string{
	"Physics": {
		"Units and Measurements", "Motion in a Straight Line", "Motion in a Plane",
		"Laws of Motion", "Work Energy and Power", "Rotational Motion",
		"Gravitation", "Thermodynamics", "Oscillations", "Waves",
	},
	"Chemistry": {
		"Basic Concepts", "Structure of Atom", "Chemical Bonding",
		"States of Matter", "Thermodynamics", "Equilibrium",
		"Redox Reactions", "Organic Chemistry Basics", "Hydrocarbons",
	},
	"Biology": {
		"The Living World", "Biological Classification", "Plant Kingdom",
		"Animal Kingdom", "Cell The Unit of Life", "Biomolecules",
		"Cell Cycle", "Human Physiology", "Plant Physiology",
	},
}

// Menus renders each navigation screen. Rendering is a pure function of the
// path and batch configuration, so the same state always yields the same
// button set.
type Menus struct {
	codec        *Codec
	chapterCount int
	lectureCount int
}

// NewMenus creates a renderer with the configured fixed menu sizes.
func NewMenus(codec *Codec, chapterCount, lectureCount int) *Menus {
	return &Menus{codec: codec, chapterCount: chapterCount, lectureCount: lectureCount}
}

// twoColumns packs buttons into rows of two, the teacher-list layout.
func twoColumns(buttons []Button) [][]Button {
	var rows [][]Button
	var current []Button
	for i, b := range buttons {
		current = append(current, b)
		if len(current) == 2 || i == len(buttons)-1 {
			rows = append(rows, current)
			current = nil
		}
	}
	return rows
}

func (m *Menus) backRow(level string, fields ...string) []Button {
	data := append([]string{level}, fields...)
	return []Button{{Label: "⬅️ Back", Data: m.codec.Encode(PrefixBack, data...)}}
}

// Subjects renders the BatchSelected screen: one button per configured subject.
func (m *Menus) Subjects(batch *models.Batch) Menu {
	buttons := make([]Button, 0, len(batch.Subjects))
	for _, s := range batch.Subjects {
		buttons = append(buttons, Button{
			Label: "📖 " + s,
			Data:  m.codec.Encode(PrefixSubject, batch.Name, s),
		})
	}
	return Menu{
		Text: fmt.Sprintf("📚 %s\n\nSelect a subject:", batch.Name),
		Rows: twoColumns(buttons),
	}
}

// Teachers renders the SubjectSelected screen: one button per configured teacher.
func (m *Menus) Teachers(batch *models.Batch, subject string) Menu {
	buttons := make([]Button, 0, len(batch.Teachers))
	for _, t := range batch.Teachers {
		buttons = append(buttons, Button{
			Label: "👨‍🏫 " + t,
			Data:  m.codec.Encode(PrefixTeacher, batch.Name, subject, t),
		})
	}
	rows := twoColumns(buttons)
	rows = append(rows, m.backRow(BackSubjects, batch.Name))
	return Menu{
		Text: fmt.Sprintf("📖 %s › %s\n\nSelect a teacher:", batch.Name, subject),
		Rows: rows,
	}
}

// ChapterFormats renders the TeacherSelected screen: chapters by number or name.
func (m *Menus) ChapterFormats(p Path) Menu {
	rows := [][]Button{
		{
			{Label: "🔢 Chapter Number", Data: m.codec.Encode(PrefixChapterFormat, p.Batch, p.Subject, p.Teacher, FormatNumber)},
			{Label: "📑 Chapter Name", Data: m.codec.Encode(PrefixChapterFormat, p.Batch, p.Subject, p.Teacher, FormatName)},
		},
		m.backRow(BackTeachers, p.Batch, p.Subject),
	}
	return Menu{
		Text: fmt.Sprintf("👨‍🏫 %s\n\nHow do you want to browse chapters?", p.Teacher),
		Rows: rows,
	}
}

// Chapters renders the fixed-size chapter list. The list does not depend on
// which chapters actually have content; empty selections resolve to a
// "not available" notice at the leaf.
func (m *Menus) Chapters(p Path) Menu {
	var buttons []Button
	if p.Format == FormatName {
		if names, ok := defaultChapterNames[p.Subject]; ok {
			for _, name := range names {
				buttons = append(buttons, Button{
					Label: name,
					Data:  m.codec.Encode(PrefixChapter, p.Batch, p.Subject, p.Teacher, name),
				})
			}
		}
	}
	if buttons == nil {
		for i := 1; i <= m.chapterCount; i++ {
			ch := fmt.Sprintf("CH%02d", i)
			buttons = append(buttons, Button{
				Label: ch,
				Data:  m.codec.Encode(PrefixChapter, p.Batch, p.Subject, p.Teacher, ch),
			})
		}
	}
	rows := twoColumns(buttons)
	rows = append(rows, m.backRow(BackFormats, p.Batch, p.Subject, p.Teacher))
	return Menu{
		Text: fmt.Sprintf("📑 %s › %s\n\nSelect a chapter:", p.Subject, p.Teacher),
		Rows: rows,
	}
}

// ContentTypes renders the ChapterSelected screen.
func (m *Menus) ContentTypes(p Path) Menu {
	rows := [][]Button{
		{{Label: "🎥 Lectures", Data: m.codec.Encode(PrefixContentType, p.Batch, p.Subject, p.Teacher, p.Chapter, ContentLectures)}},
		{{Label: "📝 DPP", Data: m.codec.Encode(PrefixContentType, p.Batch, p.Subject, p.Teacher, p.Chapter, ContentDPP)}},
		{{Label: "📚 All Study Materials", Data: m.codec.Encode(PrefixContentType, p.Batch, p.Subject, p.Teacher, p.Chapter, ContentMaterials)}},
		m.backRow(BackChapters, p.Batch, p.Subject, p.Teacher, FormatNumber),
	}
	return Menu{
		Text: fmt.Sprintf("📖 %s\n\nWhat are you looking for?", p.Chapter),
		Rows: rows,
	}
}

// Items renders the ContentTypeSelected screen, branching per content type.
func (m *Menus) Items(p Path) Menu {
	var buttons []Button
	var text string

	switch p.ContentType {
	case ContentLectures:
		text = fmt.Sprintf("🎥 %s › Lectures\n\nSelect a lecture:", p.Chapter)
		for i := 1; i <= m.lectureCount; i++ {
			item := fmt.Sprintf("L%02d", i)
			buttons = append(buttons, Button{
				Label: item,
				Data:  m.codec.Encode(PrefixLeaf, p.Batch, p.Subject, p.Teacher, p.Chapter, p.ContentType, item),
			})
		}
	case ContentDPP:
		text = fmt.Sprintf("📝 %s › DPP\n\nSelect a format:", p.Chapter)
		for _, item := range DPPSubtypes {
			buttons = append(buttons, Button{
				Label: item,
				Data:  m.codec.Encode(PrefixLeaf, p.Batch, p.Subject, p.Teacher, p.Chapter, p.ContentType, item),
			})
		}
	default:
		text = fmt.Sprintf("📚 %s › Study Materials\n\nSelect a material:", p.Chapter)
		for _, item := range MaterialSubtypes {
			buttons = append(buttons, Button{
				Label: item,
				Data:  m.codec.Encode(PrefixLeaf, p.Batch, p.Subject, p.Teacher, p.Chapter, p.ContentType, item),
			})
		}
	}

	rows := twoColumns(buttons)
	rows = append(rows, m.backRow(BackContentTypes, p.Batch, p.Subject, p.Teacher, p.Chapter))
	return Menu{Text: text, Rows: rows}
}
