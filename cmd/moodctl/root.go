package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"MoodCapture/pkg/moodclient"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configFileName = ".moodctl.toml"

	keyServer = "server"
	keyToken  = "token"
	keyLang   = "lang"
)

type app struct {
	v    *viper.Viper
	path string
	log  *logrus.Logger
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "moodctl",
		Short:         "moodctl: log in, fill in your profile and submit daily mood entries",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().String(keyServer, "", "Server base URL (overrides config)")

	a, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}
	_ = a.v.BindPFlag(keyServer, rootCmd.PersistentFlags().Lookup(keyServer))
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		a.log.SetOutput(cmd.ErrOrStderr())
		if verbose {
			a.log.SetLevel(logrus.DebugLevel)
		}
	}

	rootCmd.AddCommand(
		newSignupCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newProfileCmd(a),
		newLandingCmd(a),
		newMoodCmd(a),
		newConfigCmd(a),
	)
	return rootCmd
}

func wireApp() (*app, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	path := filepath.Join(homeDir, configFileName)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix("MOODCTL")
	v.AutomaticEnv()
	v.SetDefault(keyServer, "http://localhost:5000")
	v.SetDefault(keyLang, "en")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.WarnLevel)
	return &app{v: v, path: path, log: log}, nil
}

func (a *app) client() *moodclient.Client {
	return moodclient.New(a.v.GetString(keyServer), a.v.GetString(keyToken), a.log)
}

// saveToken 写回配置文件，空 token 表示退出登录
func (a *app) saveToken(token string) error {
	a.v.Set(keyToken, token)
	if err := a.v.WriteConfigAs(a.path); err != nil {
		return fmt.Errorf("write %s: %w", a.path, err)
	}
	return nil
}

func (a *app) requireToken() error {
	if a.v.GetString(keyToken) == "" {
		return errors.New("not logged in: run `moodctl login` first")
	}
	return nil
}
