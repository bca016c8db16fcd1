package main

import (
	"fmt"
	"os"

	"xinyuan_tech/checkout-service/internal/biz"
	"xinyuan_tech/checkout-service/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"
)

var Version = "dev"

var (
	flagconf   string
	flagFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "checkoutctl",
		Short:         "checkoutctl - operator tool for the checkout service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&flagconf, "conf", "c", "configs/config.yaml", "config path")
	rootCmd.PersistentFlags().StringVarP(&flagFormat, "output", "o", "text", "output format (text, json)")

	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(captureCmd())
	rootCmd.AddCommand(refundCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*conf.Bootstrap, error) {
	bc, err := conf.Load(flagconf)
	if err != nil {
		return nil, err
	}
	if err := bc.ValidateWorker(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return bc, nil
}

func newLogger() log.Logger {
	return log.With(log.NewStdLogger(os.Stderr),
		"ts", log.DefaultTimestamp,
		"service.name", "checkoutctl",
	)
}

// withUsecase 加载配置并初始化状态机，fn 返回后释放资源
func withUsecase(fn func(uc *biz.CheckoutUsecase) error) error {
	bc, err := loadConfig()
	if err != nil {
		return err
	}
	uc, cleanup, err := wireUsecase(bc, newLogger())
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(uc)
}
