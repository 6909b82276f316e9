package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tomohiro-takahashi/autovideo/internal/config"
	"github.com/tomohiro-takahashi/autovideo/internal/pipeline"
)

var makeFlags struct {
	captions    bool
	voice       string
	provider    string
	workers     int
	keepWorkDir bool
}

var makeCmd = &cobra.Command{
	Use:   "make [slug]",
	Short: "Assemble the narrated video and transcript for a slug",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg := config.FromContext(cmd.Context())
		if cmd.Flags().Changed("voice") {
			cfg.Speech.Voice = makeFlags.voice
		}
		if cmd.Flags().Changed("provider") {
			cfg.Speech.Provider = makeFlags.provider
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// Create pipeline
		pipeCfg := &pipeline.Config{
			Workers:     cfg.Concurrency,
			Captions:    cfg.Subtitles.Enabled || makeFlags.captions,
			KeepWorkDir: makeFlags.keepWorkDir,
		}
		if cmd.Flags().Changed("workers") {
			pipeCfg.Workers = makeFlags.workers
		}

		pipe, err := pipeline.New(log.Logger, pipeCfg, cfg)
		if err != nil {
			return err
		}

		result, err := pipe.Run(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		log.Info().
			Str("run_id", result.RunID).
			Str("video", result.VideoPath).
			Str("transcript", result.TranscriptPath).
			Int("segments", result.Segments).
			Dur("duration", result.Duration).
			Msg("video ready")

		return nil
	},
}

var segmentsCmd = &cobra.Command{
	Use:   "segments [slug]",
	Short: "Show the narration segments and the image each one uses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg := config.FromContext(cmd.Context())
		pipe, err := pipeline.NewDryRun(log.Logger, cfg)
		if err != nil {
			return err
		}

		plan, err := pipe.Plan(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "script:     %s\n", plan.ScriptPath)
		fmt.Fprintf(out, "images:     %d (%s)\n", len(plan.Images), plan.ImageSource)
		fmt.Fprintf(out, "video:      %s\n", plan.VideoPath)
		fmt.Fprintf(out, "transcript: %s\n\n", plan.TranscriptPath)

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tIMAGE\tTEXT")
		for _, seg := range plan.Segments {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", seg.Index, plan.Images[seg.ImageIndex], seg.Text)
		}
		return tw.Flush()
	},
}

func init() {
	makeCmd.Flags().BoolVar(&makeFlags.captions, "captions", false, "burn narration captions into the video")
	makeCmd.Flags().StringVar(&makeFlags.voice, "voice", "", "speech voice (default from config)")
	makeCmd.Flags().StringVar(&makeFlags.provider, "provider", "", "speech provider: edge-tts or openai")
	makeCmd.Flags().IntVar(&makeFlags.workers, "workers", 1, "concurrent speech synthesis calls")
	makeCmd.Flags().BoolVar(&makeFlags.keepWorkDir, "keep-work-dir", false, "keep intermediate audio, frames and segments")
}
