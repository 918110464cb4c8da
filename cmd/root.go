package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/ppe-go/cmd/config"
	"github.com/tphakala/ppe-go/cmd/directory"
	"github.com/tphakala/ppe-go/cmd/image"
	"github.com/tphakala/ppe-go/cmd/serve"
	"github.com/tphakala/ppe-go/cmd/version"
	"github.com/tphakala/ppe-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ppe-go",
		Short:         "PPE-Go construction site PPE compliance detector",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	if err := setupFlags(rootCmd, settings); err != nil {
		conf.GetLogger().Warn(err.Error())
	}

	versionCmd := version.Command(settings)
	configCmd := config.Command(settings)

	rootCmd.AddCommand(
		serve.Command(settings),
		image.Command(settings),
		directory.Command(settings),
		configCmd,
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() || cmd.Name() == configCmd.Name() {
			return nil
		}
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	flags.StringVar(&settings.Detector.ModelPath, "model", viper.GetString("detector.modelpath"), "Path to the PPE detection .tflite model")
	flags.StringVar(&settings.Detector.LabelPath, "labels", viper.GetString("detector.labelpath"), "Optional labels.txt or metadata.yaml overriding the model vocabulary")
	flags.Float64VarP(&settings.Detector.Confidence, "confidence", "c", viper.GetFloat64("detector.confidence"), "Minimum detection confidence, 0.0 to 1.0")
	flags.IntVar(&settings.Detector.Threads, "threads", viper.GetInt("detector.threads"), "Inference threads, 0 selects automatically")

	for flag, key := range map[string]string{
		"debug":      "debug",
		"model":      "detector.modelpath",
		"labels":     "detector.labelpath",
		"confidence": "detector.confidence",
		"threads":    "detector.threads",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
