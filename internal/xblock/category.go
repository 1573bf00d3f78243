package xblock

// Kind is the outline level of a block.
type Kind int

const (
	KindOther Kind = iota
	KindCourse
	KindChapter
	KindSequential
	KindVertical
)

// Category values as sent by Studio.
const (
	CategoryCourse     = "course"
	CategoryChapter    = "chapter"
	CategorySequential = "sequential"
	CategoryVertical   = "vertical"
)

// KindOf matches category exactly; anything else is KindOther.
func KindOf(category string) Kind {
	switch category {
	case CategoryCourse:
		return KindCourse
	case CategoryChapter:
		return KindChapter
	case CategorySequential:
		return KindSequential
	case CategoryVertical:
		return KindVertical
	default:
		return KindOther
	}
}

func (k Kind) String() string {
	switch k {
	case KindCourse:
		return CategoryCourse
	case KindChapter:
		return CategoryChapter
	case KindSequential:
		return CategorySequential
	case KindVertical:
		return CategoryVertical
	default:
		return "other"
	}
}

// Label is the author-facing name of the level ("Section" for chapters and so on).
func (k Kind) Label() string {
	switch k {
	case KindCourse:
		return "Course"
	case KindChapter:
		return "Section"
	case KindSequential:
		return "Subsection"
	case KindVertical:
		return "Unit"
	default:
		return "Component"
	}
}
