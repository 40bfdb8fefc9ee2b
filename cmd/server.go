package cmd

import (
	"QFMResolver/server"

	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "启动解析服务",
	Long:  `启动播放地址解析的HTTP服务，提供 /api/resolve、/healthz 和 /metrics`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
