package apperr

import (
	"errors"
	"fmt"
)

const (
	LangKo = "ko"
	LangEn = "en"
)

var labels = map[string]map[Kind]string{
	LangKo: {
		KindInvalid:        "입력값이 올바르지 않습니다",
		KindDuplicate:      "이미 존재하는 학번입니다",
		KindNotFound:       "해당 학생 또는 평가를 찾을 수 없습니다",
		KindFormatMismatch: "CSV의 컬럼이 올바르지 않습니다",
		KindIO:             "파일 또는 데이터베이스 처리 중 오류가 발생했습니다",
		KindUnknown:        "알 수 없는 오류가 발생했습니다",
	},
	LangEn: {
		KindInvalid:        "invalid input",
		KindDuplicate:      "student number already exists",
		KindNotFound:       "student or evaluation not found",
		KindFormatMismatch: "CSV columns do not match",
		KindIO:             "file or database failure",
		KindUnknown:        "unexpected error",
	},
}

// Label returns the static user-facing label for a kind. Unknown languages
// fall back to Korean.
func Label(kind Kind, lang string) string {
	table, ok := labels[lang]
	if !ok {
		table = labels[LangKo]
	}
	return table[kind]
}

// Message renders err as the single line shown to the user.
func Message(err error, lang string) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if !errors.As(err, &ae) {
		return fmt.Sprintf("%s: %v", Label(KindUnknown, lang), err)
	}

	detail := ae.Msg
	if detail == "" && ae.Err != nil {
		detail = ae.Err.Error()
	}
	if detail == "" {
		return Label(ae.Kind, lang)
	}
	return fmt.Sprintf("%s: %s", Label(ae.Kind, lang), detail)
}
