package dialog

import (
	"sort"
	"strings"
)

// Reply is the reading of a customer answer to the confirmation prompt
type Reply int

const (
	ReplyAmbiguous Reply = iota
	ReplyConfirm
	ReplyCancel
)

func (r Reply) String() string {
	switch r {
	case ReplyConfirm:
		return "confirm"
	case ReplyCancel:
		return "cancel"
	default:
		return "ambiguous"
	}
}

var negations = byLength([]string{
	"取消", "不要", "不行", "不對", "不是", "算了", "錯", "重新", "不",
})

var affirmations = byLength([]string{
	"確認", "確定", "沒問題", "可以", "正確", "好", "是", "對", "要", "嗯", "恩", "行", "ok", "yes",
})

func byLength(words []string) []string {
	sort.SliceStable(words, func(i, j int) bool {
		return len([]rune(words[i])) > len([]rune(words[j]))
	})
	return words
}

// ClassifyReply reads an answer to the confirmation prompt. Negations are
// removed from the text before affirmations are looked for, so 不要 never
// counts as 要. Only an affirmation confirms, only a negation cancels, and
// anything else is ambiguous.
func ClassifyReply(text string) Reply {
	rest := strings.ToLower(strings.TrimSpace(text))
	if rest == "" {
		return ReplyAmbiguous
	}

	negated := false
	for _, w := range negations {
		if strings.Contains(rest, w) {
			negated = true
			rest = strings.ReplaceAll(rest, w, " ")
		}
	}

	affirmed := false
	for _, w := range affirmations {
		if strings.Contains(rest, w) {
			affirmed = true
			break
		}
	}

	switch {
	case affirmed && !negated:
		return ReplyConfirm
	case negated && !affirmed:
		return ReplyCancel
	default:
		return ReplyAmbiguous
	}
}
