// Package filter is the dashboard-side view engine: given an in-memory list
// of colleges (exam lists possibly not yet loaded) and the active criteria,
// it produces the visible, ordered subset. Pure functions; the input slice is
// never mutated, so it is safe to re-run on every keystroke.
package filter

import (
	"sort"
	"strings"

	"github.com/clepfinder/backend/internal/models"
)

type SortKey string

const (
	SortByName       SortKey = "name"
	SortByState      SortKey = "state"
	SortByZip        SortKey = "zip"
	SortByExamCount  SortKey = "examCount"
	SortByTotalFlags SortKey = "totalFlags"
)

type SortDir string

const (
	Ascending  SortDir = "asc"
	Descending SortDir = "desc"
)

// Criteria holds every active filter and the sort selection.
type Criteria struct {
	// Query matches case-insensitively against name, state and zip.
	Query string
	// MinExamCount excludes colleges with fewer exams. Colleges whose exam
	// count is not yet known are kept: the filter cannot judge them until
	// the caller loads their exams.
	MinExamCount int
	// AcceptedExam excludes colleges whose loaded exam list has no exam name
	// containing the substring. Colleges with unloaded exams are kept for
	// the same reason as above.
	AcceptedExam string
	// Exam-level criteria applied by VisibleExams within an expanded row.
	MinCredits  float64
	MinScore    int
	OnlyFlagged bool

	SortKey SortKey
	SortDir SortDir
}

// Apply returns the filtered, ordered college list. Ties keep input order.
func Apply(colleges []models.College, c Criteria) []models.College {
	out := make([]models.College, 0, len(colleges))
	for _, college := range colleges {
		if matches(college, c) {
			out = append(out, college)
		}
	}

	key := c.SortKey
	if key == "" {
		return out
	}
	desc := c.SortDir == Descending

	sort.SliceStable(out, func(i, j int) bool {
		less := compare(out[i], out[j], key)
		if less == 0 {
			return false
		}
		if desc {
			return less > 0
		}
		return less < 0
	})
	return out
}

// VisibleExams filters the exam rows shown within an expanded college.
func VisibleExams(exams []models.Exam, c Criteria) []models.Exam {
	out := make([]models.Exam, 0, len(exams))
	for _, exam := range exams {
		if exam.Credits < c.MinCredits {
			continue
		}
		if exam.MinScore < c.MinScore {
			continue
		}
		if c.OnlyFlagged && exam.Flagged == 0 {
			continue
		}
		out = append(out, exam)
	}
	return out
}

// TotalFlags sums the flagged counters of the loaded exams. Colleges with
// unloaded exam lists report zero, so callers sorting by flags should load
// exams first.
func TotalFlags(college models.College) int {
	total := 0
	for _, exam := range college.Exams {
		total += exam.Flagged
	}
	return total
}

func matches(college models.College, c Criteria) bool {
	if q := strings.ToLower(strings.TrimSpace(c.Query)); q != "" {
		name := strings.ToLower(college.Name)
		state := strings.ToLower(college.State)
		zip := strings.ToLower(college.ZipCode)
		if !strings.Contains(name, q) && !strings.Contains(state, q) && !strings.Contains(zip, q) {
			return false
		}
	}

	if c.MinExamCount > 0 && college.ExamsCount != nil && *college.ExamsCount < c.MinExamCount {
		return false
	}

	if accepted := strings.ToLower(strings.TrimSpace(c.AcceptedExam)); accepted != "" && college.Exams != nil {
		found := false
		for _, exam := range college.Exams {
			if strings.Contains(strings.ToLower(exam.ExamName), accepted) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// compare returns <0, 0 or >0 the way strings.Compare does, for the sort key.
func compare(a, b models.College, key SortKey) int {
	switch key {
	case SortByState:
		return strings.Compare(a.State, b.State)
	case SortByZip:
		return strings.Compare(a.ZipCode, b.ZipCode)
	case SortByExamCount:
		return compareInt(examCount(a), examCount(b))
	case SortByTotalFlags:
		return compareInt(TotalFlags(a), TotalFlags(b))
	default:
		return strings.Compare(a.Name, b.Name)
	}
}

func examCount(college models.College) int {
	if college.ExamsCount != nil {
		return *college.ExamsCount
	}
	return len(college.Exams)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
