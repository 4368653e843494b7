package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filePart(name string, role FileRole) UploadedFilePart {
	return UploadedFilePart{
		Buffer:         []byte{0x1},
		MIMEType:       "image/jpeg",
		Name:           name,
		SourceFileName: name,
		Role:           role,
	}
}

func TestCategorizeByFilenameKeywords(t *testing.T) {
	files := []UploadedFilePart{
		filePart("seito_kaitou.jpg", RoleOther),
		filePart("mondai.jpg", RoleOther),
		filePart("mohan.jpg", RoleOther),
	}

	got := Categorize(files, nil)

	require.Len(t, got.StudentFiles, 1)
	require.Len(t, got.ProblemFiles, 1)
	require.Len(t, got.ModelAnswerFiles, 1)
	assert.Empty(t, got.OtherFiles)
	assert.Equal(t, "seito_kaitou.jpg", got.StudentFiles[0].Name)
	assert.Equal(t, "mondai.jpg", got.ProblemFiles[0].Name)
	assert.Equal(t, "mohan.jpg", got.ModelAnswerFiles[0].Name)
}

func TestCategorizeExplicitRoleTagWins(t *testing.T) {
	// The filename says problem, the tag says student. The tag wins.
	files := []UploadedFilePart{filePart("mondai.jpg", RoleStudent)}

	got := Categorize(files, nil)

	require.Len(t, got.StudentFiles, 1)
	assert.Empty(t, got.ProblemFiles)
}

func TestCategorizePageRangeBeatsRoleTag(t *testing.T) {
	f := filePart("scan.pdf", RoleStudent)
	f.PageNumber = 3

	got := Categorize([]UploadedFilePart{f}, &PageRanges{
		Problem: &PageRange{From: 3, To: 4},
	})

	require.Len(t, got.ProblemFiles, 1)
	assert.Empty(t, got.StudentFiles)
}

func TestCategorizePageRangeIgnoredForUnpagedFiles(t *testing.T) {
	f := filePart("scan.jpg", RoleStudent)

	got := Categorize([]UploadedFilePart{f}, &PageRanges{
		Problem: &PageRange{From: 1, To: 10},
	})

	require.Len(t, got.StudentFiles, 1)
}

func TestCategorizeFallbackFillsEmptyBucketsInInputOrder(t *testing.T) {
	files := []UploadedFilePart{
		filePart("IMG_0001.jpg", RoleOther),
		filePart("IMG_0002.jpg", RoleOther),
		filePart("IMG_0003.jpg", RoleOther),
		filePart("IMG_0004.jpg", RoleOther),
	}

	got := Categorize(files, nil)

	require.Len(t, got.StudentFiles, 1)
	require.Len(t, got.ProblemFiles, 1)
	require.Len(t, got.ModelAnswerFiles, 1)
	require.Len(t, got.OtherFiles, 1)
	assert.Equal(t, "IMG_0001.jpg", got.StudentFiles[0].Name)
	assert.Equal(t, "IMG_0002.jpg", got.ProblemFiles[0].Name)
	assert.Equal(t, "IMG_0003.jpg", got.ModelAnswerFiles[0].Name)
	assert.Equal(t, "IMG_0004.jpg", got.OtherFiles[0].Name)
}

func TestCategorizeFallbackOnlyFillsMissingBuckets(t *testing.T) {
	files := []UploadedFilePart{
		filePart("seito_kaitou.jpg", RoleOther),
		filePart("IMG_0002.jpg", RoleOther),
	}

	got := Categorize(files, nil)

	require.Len(t, got.StudentFiles, 1)
	assert.Equal(t, "seito_kaitou.jpg", got.StudentFiles[0].Name)
	require.Len(t, got.ProblemFiles, 1)
	assert.Equal(t, "IMG_0002.jpg", got.ProblemFiles[0].Name)
	assert.Empty(t, got.ModelAnswerFiles)
	assert.Empty(t, got.OtherFiles)
}

func TestCategorizeDeterministic(t *testing.T) {
	files := []UploadedFilePart{
		filePart("a.jpg", RoleOther),
		filePart("b.jpg", RoleOther),
		filePart("student_answer.jpg", RoleOther),
	}

	first := Categorize(files, nil)
	second := Categorize(files, nil)
	assert.Equal(t, first, second)
}

func TestCategorizeModelAnswerKeywordNotStolenByStudentSet(t *testing.T) {
	files := []UploadedFilePart{
		filePart("mohan_kaitou.jpg", RoleOther),
		filePart("seito_kaitou.jpg", RoleOther),
	}

	got := Categorize(files, nil)

	require.Len(t, got.ModelAnswerFiles, 1)
	assert.Equal(t, "mohan_kaitou.jpg", got.ModelAnswerFiles[0].Name)
	require.Len(t, got.StudentFiles, 1)
}
