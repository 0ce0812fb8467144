package tmall

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const maxTitleRunes = 30

var titleStripper = strings.NewReplacer(`\`, "", "/", "", ":", "", "*", "", "?", "", `"`, "", "<", "", ">", "", "|", "")

// DefaultFilename names an export after the first record's item and title:
// {itemId}_{title}_{n}条评论_{YYYYMMDD}.{ext}.
func DefaultFilename(records []Record, n int, ext string, now time.Time) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "xlsx"
	}
	if len(records) == 0 {
		return fmt.Sprintf("天猫商品评论_%s.%s", now.Format("20060102150405"), ext)
	}
	itemID := textField(records[0], "auctionNumId")
	title := titleStripper.Replace(textField(records[0], "auctionTitle"))
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes]) + "..."
	}
	return fmt.Sprintf("%s_%s_%d条评论_%s.%s", itemID, title, n, now.Format("20060102"), ext)
}

func textField(rec Record, path string) string {
	v, ok := Lookup(rec, path)
	if !ok {
		return ""
	}
	return scalarText(v)
}
