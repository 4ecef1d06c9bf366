package main

import (
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
)

// effectiveConfig 合并配置文件、环境变量与命令行参数后的结果
type effectiveConfig struct {
	Path   string `toml:"path"`
	Server string `toml:"server"`
	Lang   string `toml:"lang"`
	Token  string `toml:"token,omitempty"`
}

func newConfigCmd(a *app) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the settings moodctl would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := effectiveConfig{
				Path:   a.path,
				Server: a.v.GetString(keyServer),
				Lang:   a.v.GetString(keyLang),
				Token:  maskToken(a.v.GetString(keyToken), reveal),
			}
			raw, err := toml.Marshal(out)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the stored token in full")
	return cmd
}

func maskToken(token string, reveal bool) string {
	if reveal || len(token) <= 8 {
		return token
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}
