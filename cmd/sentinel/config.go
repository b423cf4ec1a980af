package main

import (
	"github.com/dushixiang/sentinel/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const maskedSecret = "******"

func newConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "配置相关操作",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "输出合并默认值与环境变量后的配置",
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewLoader(*configPath, zap.NewNop())
			cfg, err := loader.Load()
			if err != nil {
				return err
			}
			maskSecrets(cfg)

			out, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			if file := loader.ConfigFile(); file != "" {
				cmd.Printf("# %s\n", file)
			}
			cmd.Print(string(out))
			return nil
		},
	})
	return cmd
}

func maskSecrets(cfg *config.AppConfig) {
	if email := cfg.Notify.Email; email != nil && email.Password != "" {
		masked := *email
		masked.Password = maskedSecret
		cfg.Notify.Email = &masked
	}
	if hook := cfg.Notify.Webhook; hook != nil && len(hook.Headers) > 0 {
		masked := *hook
		masked.Headers = make(map[string]string, len(hook.Headers))
		for k := range hook.Headers {
			masked.Headers[k] = maskedSecret
		}
		cfg.Notify.Webhook = &masked
	}
}
