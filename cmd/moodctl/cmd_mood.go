package main

import (
	"fmt"

	"MoodCapture/pkg/capture"
	"MoodCapture/pkg/device"
	"MoodCapture/pkg/i18n"
	"MoodCapture/pkg/submit"

	"github.com/spf13/cobra"
)

func newMoodCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mood",
		Short: "Record mood entries",
	}
	cmd.AddCommand(newMoodSubmitCmd(a))
	return cmd
}

func newMoodSubmitCmd(a *app) *cobra.Command {
	var text, audioPath, imagePath string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a mood entry from text, a voice clip and a photo",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			lang := a.v.GetString(keyLang)
			bundle, err := i18n.NewI18nSupport(lang)
			if err != nil {
				return err
			}

			// 文件回放代替麦克风和摄像头
			mgr := device.NewManager(&device.FileDriver{AudioPath: audioPath, ImagePath: imagePath}, a.log)
			defer mgr.Close()
			session := capture.NewSession(mgr, capture.Options{Lang: lang, I18n: bundle, Logger: a.log})
			defer session.Close()

			session.SetText(text)
			if audioPath != "" {
				if err := session.StartRecording(ctx); err != nil {
					return noticeError(session, err)
				}
				if err := session.StopRecording(); err != nil {
					return noticeError(session, err)
				}
			}
			if imagePath != "" {
				if err := session.StartCamera(ctx); err != nil {
					return noticeError(session, err)
				}
				if err := session.CaptureImage(); err != nil {
					return noticeError(session, err)
				}
			}

			coord := submit.NewCoordinator(submit.Identity{Token: a.v.GetString(keyToken)}, session, submit.Options{
				BaseURL: a.v.GetString(keyServer),
				Logger:  a.log,
			})
			if !coord.CanSubmit() {
				return fmt.Errorf("%s (missing: %v)", bundle.T(lang, "missing_inputs", nil), coord.Missing())
			}
			res, err := coord.Submit(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d)\n", res.Message, res.Mood.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "How are you feeling?")
	cmd.Flags().StringVar(&audioPath, "audio", "", "Voice clip file (e.g. .webm)")
	cmd.Flags().StringVar(&imagePath, "image", "", "Photo file (e.g. .jpg)")
	return cmd
}

// noticeError 优先展示会话提示
func noticeError(s *capture.Session, err error) error {
	if n := s.Notice(); n != nil {
		return fmt.Errorf("%s: %w", n.Message, err)
	}
	return err
}
