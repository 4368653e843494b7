package grading

import "fmt"

// Section markers for the multimodal prompt. Downstream models are sensitive
// to ordering, so BuildSequence must stay byte-deterministic.
const (
	markerStudent = "【生徒の解答】以下が採点対象の生徒の手書き解答です。"
	markerProblem = "【問題文】以下が出題された問題文です。"
	markerModel   = "【模範解答】以下が模範解答です。採点基準として使用してください。"
	markerOther   = "【参考資料】以下は未分類の補助資料です。必要な場合のみ参照し、採点の主要根拠にはしないでください。"
)

// BuildSequence flattens categorized files into the ordered content list for
// one model call: a header marker per section, then each file as a name marker
// followed by its bytes, in original upload order. The other section is
// appended only when non-empty.
func BuildSequence(categorized CategorizedFiles) []ContentPart {
	parts := make([]ContentPart, 0, 8)

	parts = appendSection(parts, markerStudent, categorized.StudentFiles)
	parts = appendSection(parts, markerProblem, categorized.ProblemFiles)
	parts = appendSection(parts, markerModel, categorized.ModelAnswerFiles)
	if len(categorized.OtherFiles) > 0 {
		parts = appendSection(parts, markerOther, categorized.OtherFiles)
	}

	return parts
}

func appendSection(parts []ContentPart, marker string, files []UploadedFilePart) []ContentPart {
	parts = append(parts, TextPart(marker))
	for _, f := range files {
		parts = append(parts, TextPart(fileMarker(f)), BlobPart(f.MIMEType, f.Buffer))
	}
	return parts
}

func fileMarker(f UploadedFilePart) string {
	if f.PageNumber > 0 {
		return fmt.Sprintf("ファイル: %s (%dページ目)", f.Name, f.PageNumber)
	}
	return fmt.Sprintf("ファイル: %s", f.Name)
}
