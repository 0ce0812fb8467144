package tmall

import (
	"fmt"
	"strings"
)

// Field maps a dotted source path to its column label.
type Field struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

type FieldSelection []Field

func (s FieldSelection) Paths() []string {
	out := make([]string, len(s))
	for i, f := range s {
		out[i] = f.Path
	}
	return out
}

const (
	pathRateType = "rateType"
	pathFeedback = "feedback"
	pathSkuMap   = "skuMap"
	pathUserTags = "userTagList"
)

var allFields = FieldSelection{
	{"userNick", "用户昵称"},
	{"feedback", "评论内容"},
	{"createTime", "评论时间"},
	{"createTimeInterval", "评论时间间隔"},
	{"feedbackDate", "评价日期"},
	{"id", "评论ID"},
	{"auctionNumId", "商品ID"},
	{"auctionTitle", "商品标题"},
	{"skuId", "SKUID"},
	{"skuMap", "商品规格"},
	{"skuValueStr", "规格字符串"},
	{"rateType", "评价类型"},
	{"annoy", "是否匿名"},
	{"topRate", "是否置顶"},
	{"hasDetail", "是否有详情"},
	{"repeatBusiness", "是否复购"},
	{"goldUser", "是否金牌用户"},
	{"formalBlackUser", "是否黑名单用户"},
	{"copy", "是否复制"},
	{"own", "是否本人"},
	{"structTagEndSize", "结构标签结束大小"},
	{"interactInfo.likeCount", "点赞数"},
	{"interactInfo.commentCount", "评论数"},
	{"interactInfo.readCount", "阅读数"},
	{"interactInfo.alreadyLike", "是否已点赞"},
	{"interactInfo.enableComment", "可否评论"},
	{"interactInfo.enableLike", "可否点赞"},
	{"interactInfo.enableShare", "可否分享"},
	{"reply", "商家回复"},
	{"userId", "用户ID"},
	{"creditLevel", "用户信用等级"},
	{"userStar", "用户星级"},
	{"headPicUrl", "用户头像URL"},
	{"headFrameUrl", "用户头像框URL"},
	{"userIndexURL", "用户主页URL"},
	{"userMark", "用户标记"},
	{"reduceUserNick", "减少用户昵称"},
	{"share.shareURL", "分享URL"},
	{"share.detailUrl", "详情URL"},
	{"share.detailShareUrl", "详情分享URL"},
	{"share.shareSupport", "支持分享"},
	{"addCartUrl", "添加购物车URL"},
	{"allowComment", "允许评论"},
	{"allowInteract", "允许互动"},
	{"allowNote", "允许笔记"},
	{"allowReportReview", "允许举报评论"},
	{"allowReportUser", "允许举报用户"},
	{"allowShieldReview", "允许屏蔽评论"},
	{"allowShieldUser", "允许屏蔽用户"},
	{"extraInfoMap.userGrade", "用户等级"},
	{"extraInfoMap.report_url", "举报URL"},
	{"userTagList", "用户标签"},
}

var commonFieldPaths = []string{
	"userNick",
	"feedback",
	"createTime",
	"feedbackDate",
	"auctionTitle",
	"skuValueStr",
	"rateType",
	"reply",
	"userStar",
	"interactInfo.likeCount",
	"repeatBusiness",
}

// Fields rendered as 是/否.
var flagFields = map[string]bool{
	"annoy":                      true,
	"topRate":                    true,
	"hasDetail":                  true,
	"repeatBusiness":             true,
	"goldUser":                   true,
	"formalBlackUser":            true,
	"copy":                       true,
	"own":                        true,
	"interactInfo.alreadyLike":   true,
	"interactInfo.enableComment": true,
	"interactInfo.enableLike":    true,
	"interactInfo.enableShare":   true,
	"share.shareSupport":         true,
	"allowComment":               true,
	"allowInteract":              true,
	"allowNote":                  true,
	"allowReportReview":          true,
	"allowReportUser":            true,
	"allowShieldReview":          true,
	"allowShieldUser":            true,
}

// AllFields returns every known field in display order.
func AllFields() FieldSelection {
	return append(FieldSelection(nil), allFields...)
}

func CommonFields() FieldSelection {
	sel, _ := FieldsByPath(commonFieldPaths)
	return sel
}

// LabelFor returns the display label of a known path.
func LabelFor(path string) (string, bool) {
	for _, f := range allFields {
		if f.Path == path {
			return f.Label, true
		}
	}
	return "", false
}

// FieldsByPath builds a selection in the given order from known paths.
func FieldsByPath(paths []string) (FieldSelection, error) {
	out := make(FieldSelection, 0, len(paths))
	seen := map[string]bool{}
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		label, ok := LabelFor(p)
		if !ok {
			return nil, fmt.Errorf("unknown field: %s", p)
		}
		seen[p] = true
		out = append(out, Field{Path: p, Label: label})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no fields selected")
	}
	return out, nil
}

// ParseFieldSpec accepts "all", "common" or a comma separated list of paths.
func ParseFieldSpec(spec string) (FieldSelection, error) {
	switch strings.ToLower(strings.TrimSpace(spec)) {
	case "", "all":
		return AllFields(), nil
	case "common":
		return CommonFields(), nil
	}
	return FieldsByPath(strings.Split(spec, ","))
}
