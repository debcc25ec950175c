package transcribe

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zinkosoft/sensestream/internal/audiocore"
	"github.com/zinkosoft/sensestream/internal/conf"
	"github.com/zinkosoft/sensestream/internal/transcribe"
)

// Command creates the realtime transcription command.
func Command(settings *conf.Settings) *cobra.Command {
	var listDevices bool

	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe microphone audio in realtime",
		Long:  "Capture audio from the configured input device and stream transcribed words to the console and the WebSocket broadcast endpoint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listDevices {
				return printDevices()
			}
			return transcribe.RealtimeTranscription(settings)
		},
	}

	cmd.Flags().BoolVar(&listDevices, "list-devices", false, "List available capture devices and exit")
	cmd.Flags().StringVar(&settings.Audio.Device, "device", settings.Audio.Device, "Preferred capture device substring")

	return cmd
}

func printDevices() error {
	devices, err := audiocore.EnumerateDevices()
	if err != nil {
		return err
	}
	for _, d := range devices {
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Printf("%s [%d] %s\n", marker, d.Index, d.Name)
	}
	return nil
}
