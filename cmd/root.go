package cmd

import (
	"fmt"
	"os"

	"QFMResolver/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "qfm-resolver",
	Short: "QFM 多音源播放地址解析服务",
	Run: func(cmd *cobra.Command, args []string) {
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
