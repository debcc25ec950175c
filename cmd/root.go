// root.go viper root command code
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zinkosoft/sensestream/cmd/download"
	"github.com/zinkosoft/sensestream/cmd/selftest"
	"github.com/zinkosoft/sensestream/cmd/transcribe"
	"github.com/zinkosoft/sensestream/internal/conf"
)

// RootCommand creates and returns the root command. Running the binary
// without a subcommand starts realtime transcription.
func RootCommand(settings *conf.Settings) *cobra.Command {
	transcribeCmd := transcribe.Command(settings)

	rootCmd := &cobra.Command{
		Use:   "sensestream",
		Short: "SenseStream realtime speech-to-text",
		RunE:  transcribeCmd.RunE,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
	}

	subcommands := []*cobra.Command{
		transcribeCmd,
		selftest.Command(settings),
		download.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Model.Path, "model", viper.GetString("model.path"), "Path to the encoder model file")
	rootCmd.PersistentFlags().StringVar(&settings.Model.Language, "language", viper.GetString("model.language"), "Language selection: auto, en, zh, ja, ko, yue")
	rootCmd.PersistentFlags().IntVarP(&settings.Model.Threads, "threads", "j", viper.GetInt("model.threads"), "Number of CPU threads for inference (0 = all CPUs)")
	rootCmd.PersistentFlags().Float64Var(&settings.Audio.ChunkDuration, "chunk", viper.GetFloat64("audio.chunkduration"), "Analysis window length in seconds")
	rootCmd.PersistentFlags().Float64Var(&settings.Audio.OverlapDuration, "overlap", viper.GetFloat64("audio.overlapduration"), "Window overlap in seconds")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
