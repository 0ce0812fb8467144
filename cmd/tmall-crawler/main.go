package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"tmall-review-crawler/internal/api"
	"tmall-review-crawler/internal/config"
	"tmall-review-crawler/internal/crawler"
	"tmall-review-crawler/internal/logger"
	"tmall-review-crawler/internal/platform"
	"tmall-review-crawler/internal/platform/tmall"
	"tmall-review-crawler/internal/store"
)

const defaultPages = 5

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", ".", "path to config file")
	apiMode := flag.Bool("api", false, "start api server")
	apiAddr := flag.String("addr", ":8080", "api server address")
	platformName := flag.String("platform", "", "platform name or alias (default from config)")
	itemIDs := flag.String("item", "", "comma separated item ids")
	pages := flag.Int("pages", 0, "pages per item (20 reviews per page)")
	order := flag.String("order", "", "review order: default or feedbackdate")
	filterEmpty := flag.Bool("filter-empty", false, "drop reviews the user left empty")
	fields := flag.String("fields", "", "export fields: all, common or a comma separated list")
	out := flag.String("out", "", "export file path")
	format := flag.String("format", "", "export format: xlsx, csv or json")
	cookie := flag.String("cookie", "", "cookie string carrying _m_h5_tk")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		return 1
	}
	if v := strings.TrimSpace(*platformName); v != "" {
		config.AppConfig.Platform = v
	}
	name, err := resolvePlatform(config.AppConfig.Platform)
	if err != nil {
		fmt.Println(err)
		return 1
	}
	config.AppConfig.Platform = name
	if v := strings.TrimSpace(*cookie); v != "" {
		config.AppConfig.Cookies = v
	}
	if v := strings.TrimSpace(*format); v != "" {
		config.AppConfig.SaveDataOption = v
		config.Normalize(&config.AppConfig)
	}
	logger.InitFromConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := store.Init(ctx); err != nil {
		logger.Error("store init failed", "backend", store.Backend(), "err", err)
		return 1
	}
	// One page cache and proxy pool for every run in this process.
	res := tmall.Shared()
	defer func() {
		if err := tmall.CloseShared(); err != nil {
			logger.Warn("close shared resources failed", "err", err)
		}
	}()

	if *apiMode {
		return serveAPI(ctx, *apiAddr, api.NewServer(api.NewTaskManagerWithRunner(api.TmallRunner(res))))
	}

	req := crawler.RequestFromConfig(config.AppConfig)
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["item"] {
		req.ItemIDs = config.SplitCSV(*itemIDs)
	}
	if set["pages"] && *pages > 0 {
		req.Pages = *pages
	}
	if set["order"] {
		req.OrderType = crawler.NormalizeOrder(*order)
	}
	if set["filter-empty"] {
		req.FilterEmpty = *filterEmpty
	}
	if set["fields"] {
		req.Fields = config.SplitCSV(*fields)
	}
	if set["out"] {
		req.ExportPath = strings.TrimSpace(*out)
	}

	if len(req.ItemIDs) == 0 {
		in := bufio.NewReader(os.Stdin)
		if err := promptRequest(in, os.Stdout, &req, !set["pages"], !set["filter-empty"]); err != nil {
			fmt.Println(err)
			return 1
		}
	}

	logger.Info("starting crawler", "platform", config.AppConfig.Platform, "items", len(req.ItemIDs), "pages", req.Pages)

	r, err := platform.New(config.AppConfig.Platform)
	if err != nil {
		logger.Error("crawler init failed", "err", err)
		return 1
	}
	result, err := r.Run(ctx, req)
	if err != nil {
		logger.Error("crawler failed", "err", err, "error_kind", crawler.KindOf(err), "platform", result.Platform)
		fmt.Println(err)
		return 1
	}

	printResult(os.Stdout, result)
	logger.Info("crawler finished", "platform", result.Platform, "records", result.Records, "rows", result.Rows, "filtered", result.Filtered, "failed", result.Failed, "failure_kinds", result.FailureKinds)
	if result.Records == 0 {
		return 1
	}
	return 0
}

// serveAPI blocks until ctx is done, then drains in-flight requests.
func serveAPI(ctx context.Context, addr string, srv *api.Server) int {
	hs := &http.Server{Addr: addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() {
		logger.Info("starting api server", "addr", addr)
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		logger.Error("api server failed", "err", err)
		return 1
	case <-ctx.Done():
	}
	srv.Manager().Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api server shutdown", "err", err)
	}
	logger.Info("api server stopped")
	return 0
}

// resolvePlatform maps a name or alias to the registered platform name.
func resolvePlatform(name string) (string, error) {
	if !platform.Exists(name) {
		return "", fmt.Errorf("unknown platform: %q (available: %s)", name, strings.Join(platform.Names(), ", "))
	}
	return platform.Canonical(name), nil
}

// promptRequest asks for what the command line left out.
func promptRequest(in *bufio.Reader, out io.Writer, req *crawler.Request, askPages, askFilter bool) error {
	fmt.Fprint(out, "请输入商品ID (例如: 714871191114): ")
	ids := config.SplitCSV(readLine(in))
	if len(ids) == 0 {
		return errors.New("商品ID不能为空")
	}
	req.ItemIDs = ids

	if askPages {
		fmt.Fprintf(out, "请输入要爬取的页数 (每页20条评论，默认%d页): ", defaultPages)
		req.Pages = defaultPages
		if n, err := strconv.Atoi(readLine(in)); err == nil && n > 0 {
			req.Pages = n
		}
	}
	if askFilter {
		fmt.Fprint(out, "是否过滤空评论? (y/n，默认n): ")
		switch strings.ToLower(readLine(in)) {
		case "y", "yes", "是":
			req.FilterEmpty = true
		case "n", "no", "否":
			req.FilterEmpty = false
		}
	}
	return nil
}

func readLine(in *bufio.Reader) string {
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}

func printResult(out io.Writer, res crawler.Result) {
	if res.Records == 0 {
		fmt.Fprintln(out, "爬取完成，但未获取到评论数据")
		if res.LastError != "" {
			fmt.Fprintf(out, "最后错误: %s\n", res.LastError)
		}
		return
	}
	fmt.Fprintf(out, "共获取 %d 条评论", res.Records)
	if res.Filtered > 0 {
		fmt.Fprintf(out, "，过滤 %d 条空评论", res.Filtered)
	}
	fmt.Fprintln(out)
	for _, e := range res.Exported {
		fmt.Fprintf(out, "成功导出 %d 条评论到 %s\n", e.Rows, e.Path)
	}
	if res.LastError != "" {
		fmt.Fprintf(out, "部分页面失败，最后错误: %s\n", res.LastError)
	}
}
