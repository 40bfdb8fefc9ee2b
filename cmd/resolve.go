package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"QFMResolver/config"
	"QFMResolver/core/resolver"
	"QFMResolver/logger"
	"QFMResolver/model"
	"QFMResolver/server"

	"github.com/spf13/cobra"
)

var (
	resolveQuality  string
	resolvePriority string
	resolveTimeout  time.Duration
	resolveJSON     bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <source> <id>",
	Short: "解析一首歌的播放地址",
	Long:  `按缓存、数据库、音源的顺序解析一次播放地址并输出，例如: resolve netease 186016 -q lossless`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		src, err := model.ParseMusicSource(args[0])
		if err != nil {
			log.Fatalf("未知音源: %v", err)
		}
		priority, err := model.ParseSourceList(resolvePriority)
		if err != nil {
			log.Fatalf("优先级参数错误: %v", err)
		}

		cfg := config.Load()
		logger.InitLogger(logger.DefaultConfig(cfg.LogLevel, cfg.LogFile))
		defer logger.Sync()

		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()

		app, err := server.NewApp(ctx, cfg)
		if err != nil {
			log.Fatalf("初始化失败: %v", err)
		}
		defer app.Close()

		key := model.TrackKey{Source: src, SourceID: args[1]}
		out, err := app.Resolver.Resolve(ctx, key, resolveQuality, priority)
		if err != nil {
			var ex *resolver.ExhaustedError
			if errors.As(err, &ex) {
				fmt.Fprintf(os.Stderr, "没有可用的播放地址 (retryable=%v)\n", ex.Retryable())
				for _, a := range ex.Attempts {
					fmt.Fprintf(os.Stderr, "  %s\n", a)
				}
				return
			}
			log.Fatalf("解析失败: %v", err)
		}

		if resolveJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			enc.Encode(out.Candidate)
			return
		}

		c := out.Candidate
		if c.Track != nil && c.Track.Title != "" {
			fmt.Printf("歌曲: %s - %s\n", c.Track.Title, c.Track.Artist)
		}
		fmt.Printf("音源: %s\n", c.Source.Lower())
		fmt.Printf("音质: %s", out.ActualQuality)
		if out.Degraded() {
			fmt.Printf(" (请求 %s)", out.RequestedQuality)
		}
		fmt.Println()
		fmt.Printf("来源: %s\n", out.Origin)
		if c.ExpiresAt != nil {
			fmt.Printf("有效期至: %s\n", c.ExpiresAt.Local().Format(time.DateTime))
		}
		fmt.Printf("播放地址: %s\n", c.URL)
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	// 添加命令行参数
	resolveCmd.Flags().StringVarP(&resolveQuality, "quality", "q", model.QualityExhigh, "期望音质 standard/higher/exhigh/lossless/hires")
	resolveCmd.Flags().StringVarP(&resolvePriority, "priority", "p", "", "音源优先级，逗号分隔，默认取 SOURCE_PRIORITY")
	resolveCmd.Flags().DurationVarP(&resolveTimeout, "timeout", "t", 30*time.Second, "解析超时")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "以 JSON 输出候选地址")
}
