package grading

import "strings"

// PageRange is an inclusive page interval inside an uploaded PDF.
type PageRange struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether page falls inside the range. A zero range matches
// nothing.
func (r PageRange) Contains(page int) bool {
	if r.From == 0 && r.To == 0 {
		return false
	}
	return page >= r.From && page <= r.To
}

// PageRanges maps roles to explicit page intervals supplied by the caller.
type PageRanges struct {
	Student *PageRange `json:"student"`
	Problem *PageRange `json:"problem"`
	Model   *PageRange `json:"model"`
}

// Filename keyword sets, checked lowercase. The romanized forms cover the
// common scanner naming habits (seito_kaitou, mondai, mohan_kaitou). Bare
// "kaitou"/"解答" is deliberately absent from the student set: it also appears
// in model-answer names like mohan_kaitou.
var (
	studentKeywords = []string{"answer", "student", "seito", "答案", "生徒"}
	problemKeywords = []string{"problem", "question", "mondai", "問題", "設問"}
	modelKeywords   = []string{"model", "key", "mohan", "模範", "正答"}
)

// Categorize buckets uploaded parts into the four role sequences. Precedence
// per file: explicit page range, then caller-supplied role tag, then filename
// keywords (student > problem > model), then other. A fallback pass then moves
// the earliest remaining "other" entries into empty primary buckets, in
// student, problem, model order, so the prompt never sees an empty category
// while unclassified files remain.
//
// Pure function: identical ordered input yields identical output.
func Categorize(files []UploadedFilePart, ranges *PageRanges) CategorizedFiles {
	var out CategorizedFiles

	for _, f := range files {
		switch classify(f, ranges) {
		case RoleStudent:
			out.StudentFiles = append(out.StudentFiles, f)
		case RoleProblem:
			out.ProblemFiles = append(out.ProblemFiles, f)
		case RoleModelAnswer:
			out.ModelAnswerFiles = append(out.ModelAnswerFiles, f)
		default:
			out.OtherFiles = append(out.OtherFiles, f)
		}
	}

	// Fallback: fill empty primary buckets from other, input order.
	for _, bucket := range []*[]UploadedFilePart{&out.StudentFiles, &out.ProblemFiles, &out.ModelAnswerFiles} {
		if len(*bucket) > 0 || len(out.OtherFiles) == 0 {
			continue
		}
		moved := out.OtherFiles[0]
		out.OtherFiles = out.OtherFiles[1:]
		*bucket = append(*bucket, moved)
	}

	return out
}

func classify(f UploadedFilePart, ranges *PageRanges) FileRole {
	if ranges != nil && f.PageNumber > 0 {
		switch {
		case ranges.Student != nil && ranges.Student.Contains(f.PageNumber):
			return RoleStudent
		case ranges.Problem != nil && ranges.Problem.Contains(f.PageNumber):
			return RoleProblem
		case ranges.Model != nil && ranges.Model.Contains(f.PageNumber):
			return RoleModelAnswer
		}
	}

	switch f.Role {
	case RoleStudent, RoleProblem, RoleModelAnswer:
		return f.Role
	}

	name := strings.ToLower(f.Name)
	if name == "" {
		name = strings.ToLower(f.SourceFileName)
	}
	switch {
	case matchesAny(name, studentKeywords):
		return RoleStudent
	case matchesAny(name, problemKeywords):
		return RoleProblem
	case matchesAny(name, modelKeywords):
		return RoleModelAnswer
	}

	return RoleOther
}

func matchesAny(name string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}
