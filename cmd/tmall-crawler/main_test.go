package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"tmall-review-crawler/internal/crawler"
)

func TestPromptRequest(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("714871191114\n3\ny\n"))
	var out bytes.Buffer
	req := crawler.Request{Pages: 5}
	if err := promptRequest(in, &out, &req, true, true); err != nil {
		t.Fatalf("promptRequest: %v", err)
	}
	if len(req.ItemIDs) != 1 || req.ItemIDs[0] != "714871191114" || req.Pages != 3 || !req.FilterEmpty {
		t.Fatalf("req = %+v", req)
	}
	if !strings.Contains(out.String(), "请输入商品ID") || !strings.Contains(out.String(), "是否过滤空评论") {
		t.Fatalf("prompts = %q", out.String())
	}
}

func TestPromptRequestInvalidPagesFallsBack(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("1\nabc\n\n"))
	req := crawler.Request{Pages: 9}
	if err := promptRequest(in, &bytes.Buffer{}, &req, true, true); err != nil {
		t.Fatalf("promptRequest: %v", err)
	}
	if req.Pages != defaultPages || req.FilterEmpty {
		t.Fatalf("req = %+v", req)
	}
}

func TestPromptRequestEmptyItem(t *testing.T) {
	in := bufio.NewReader(strings.NewReader("\n"))
	if err := promptRequest(in, &bytes.Buffer{}, &crawler.Request{}, true, true); err == nil {
		t.Fatalf("expected error for empty item id")
	}
}

func TestPrintResult(t *testing.T) {
	var out bytes.Buffer
	printResult(&out, crawler.Result{Records: 35, Rows: 30, Filtered: 5, Exported: []crawler.Export{
		{ItemID: "1", Path: "data/tmall/a.xlsx", Rows: 18},
		{ItemID: "2", Path: "data/tmall/b.xlsx", Rows: 12},
	}})
	got := out.String()
	if !strings.Contains(got, "共获取 35 条评论，过滤 5 条空评论") || !strings.Contains(got, "成功导出 18 条评论到 data/tmall/a.xlsx") || !strings.Contains(got, "成功导出 12 条评论到 data/tmall/b.xlsx") {
		t.Fatalf("output = %q", got)
	}

	out.Reset()
	printResult(&out, crawler.Result{LastError: "鉴权失败，请更新Cookie和token"})
	if !strings.Contains(out.String(), "未获取到评论") || !strings.Contains(out.String(), "鉴权失败") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestResolvePlatform(t *testing.T) {
	for _, name := range []string{"tmall", " TM ", "天猫"} {
		got, err := resolvePlatform(name)
		if err != nil || got != "tmall" {
			t.Fatalf("resolvePlatform(%q) = %q, %v", name, got, err)
		}
	}
	if _, err := resolvePlatform("taobao"); err == nil || !strings.Contains(err.Error(), "tmall") {
		t.Fatalf("unknown platform err = %v", err)
	}
}
