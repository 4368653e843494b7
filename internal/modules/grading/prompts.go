package grading

import (
	"fmt"
	"strings"
)

// IllegiblePlaceholder is the glyph the transcription pass must emit instead
// of guessing unreadable characters.
const IllegiblePlaceholder = "[判読不能]"

const transcribeSystemPrompt = `Role: あなたは手書き答案の文字起こし専用モジュールです。

以下のルールを厳守してください:
1) 生徒の手書き解答を一字一句そのまま書き起こすこと。語順、表記、誤字、脱字も含めて原文のまま。
2) 判読できない文字は推測せず、必ず ` + IllegiblePlaceholder + ` という記号で置き換えること。文脈から補完してはならない。
3) 書かれていない文字を追加しない。書かれている文字を省略しない。
4) 問題文や模範解答の文字は書き起こし対象外。生徒の解答のみを対象とする。

出力は次のJSONのみ。JSON以外のテキスト、コメント、コードフェンスは一切禁止:
{"recognizedText": "書き起こした文字列"}`

const transcribeUserPrompt = `上記の生徒の手書き解答を書き起こしてください。出力はJSONのみ。`

const gradeSystemPromptTemplate = `Role: あなたは記述式答案の採点者です。問題文と模範解答を基準に、生徒の解答を採点してください。

採点方針: %s

必ず守るルール:
1) 減点項目は一つずつ deductionDetails に列挙し、各項目に reason と deductionPercentage (数値) を付けること。
2) 文体の一貫性を必ず確認すること。敬体(です・ます)と常体(だ・である)が混在している場合は、deductionDetails に理由「文体の混在」として deductionPercentage 10 を必ず追加すること。混在がなければ追加しない。
3) 記述式の場合、表記の正しさと内容の質を混同しないこと。漢字や送り仮名が正しくても内容が模範解答の要点を外していれば内容面で減点し、内容が正しければ些末な表記揺れだけで大きく減点しない。
4) scoreは0から100の数値。満点から減点方式で算出すること。
5) feedbackContentの各フィールドは生徒に向けた日本語の文章で書くこと。

出力は次のJSONのみ。JSON以外のテキスト、コメント、コードフェンスは一切禁止:
{
  "recognizedText": "生徒の解答の書き起こし",
  "score": 0-100の数値,
  "deductionDetails": [{"reason": "減点理由", "deductionPercentage": 数値}],
  "feedbackContent": {"goodPoint": "良かった点", "improvementAdvice": "改善のアドバイス", "rewriteExample": "書き直し例"}
}`

var strictnessDirectives = map[Strictness]string{
	StrictnessLenient:  "甘口。部分点を積極的に認め、要点が伝わっていれば表現の粗さは軽微な減点にとどめる。",
	StrictnessStandard: "標準。模範解答の要点ごとに配点し、欠落・誤りを相応に減点する。",
	StrictnessStrict:   "辛口。要点の欠落、論理の飛躍、表現の曖昧さを厳しく減点する。満点は模範解答と同等の水準に限る。",
}

func gradeSystemPrompt(strictness Strictness) string {
	directive, ok := strictnessDirectives[strictness]
	if !ok {
		directive = strictnessDirectives[StrictnessStandard]
	}
	return fmt.Sprintf(gradeSystemPromptTemplate, directive)
}

// gradeUserPrompt builds the trailing instruction for one label. When a
// verbatim transcription exists it is injected as ground truth so the grading
// pass does not re-read the handwriting into a cleaner answer than was
// actually written.
func gradeUserPrompt(label, recognizedText string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "採点対象の設問: %s\n", label)
	if strings.TrimSpace(recognizedText) != "" {
		sb.WriteString("\n【確定済みの書き起こし】以下は生徒の解答の確定済みの書き起こしです。")
		sb.WriteString("画像から読み直さず、この文字列を解答本文として採点してください。")
		sb.WriteString("recognizedTextにもこの文字列をそのまま返してください。\n")
		sb.WriteString(recognizedText)
		sb.WriteString("\n")
	}
	sb.WriteString("\n上記の資料に基づいて採点し、JSONのみを出力してください。")
	return sb.String()
}
