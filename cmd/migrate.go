package cmd

import (
	"fmt"
	"log"

	"QFMResolver/config"
	"QFMResolver/db"
	"QFMResolver/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建或更新数据表",
	Long:  `对 songs、song_urls、cache_entries 三张表执行 GORM AutoMigrate。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()
		logger.InitLogger(logger.DefaultConfig(cfg.LogLevel, cfg.LogFile))
		defer logger.Sync()

		gdb, err := db.OpenGorm(cfg)
		if err != nil {
			log.Fatalf("无法连接数据库: %v", err)
		}
		defer db.CloseGormDB(gdb)

		if err := db.AutoMigrate(gdb); err != nil {
			log.Fatalf("迁移失败: %v", err)
		}
		fmt.Println("数据表迁移完成")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
