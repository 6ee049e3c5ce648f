package util

import (
	"regexp"
	"strings"
)

const (
	KakaoSeeMorePadding = 500
	KakaoZeroWidthSpace = "\u200b"
)

var mentionRE = regexp.MustCompile(`<@!?(\d+)>`)

// 카카오톡 '전체보기'용 제로폭 문자를 채워 메시지를 접는다.
func ApplyKakaoSeeMorePadding(text, instruction string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	message := strings.TrimSpace(instruction)

	var builder strings.Builder
	builder.Grow(len(text) + KakaoSeeMorePadding*len(KakaoZeroWidthSpace) + len(message) + 1)
	builder.WriteString(message)
	builder.WriteString(strings.Repeat(KakaoZeroWidthSpace, KakaoSeeMorePadding))
	if !strings.HasPrefix(text, "\n") {
		builder.WriteByte('\n')
	}
	builder.WriteString(text)
	return builder.String()
}

// FoldLongText folds texts of at least minLines lines behind '전체보기',
// keeping the first line visible as the preview.
func FoldLongText(text string, minLines int) string {
	if minLines <= 0 || strings.Count(text, "\n")+1 < minLines {
		return text
	}
	header, body, _ := strings.Cut(text, "\n")
	if strings.TrimSpace(header) == "" {
		return ApplyKakaoSeeMorePadding(body, "")
	}
	return ApplyKakaoSeeMorePadding(body, header)
}

// HumanizeMentions rewrites <@id> tokens as @name for platforms without
// mention markup. Unknown ids are shown as @id.
func HumanizeMentions(text string, name func(id string) (string, bool)) string {
	return mentionRE.ReplaceAllStringFunc(text, func(tok string) string {
		id := mentionRE.FindStringSubmatch(tok)[1]
		if n, ok := name(id); ok && strings.TrimSpace(n) != "" {
			return "@" + n
		}
		return "@" + id
	})
}
