package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewConfigCmd создаёт группу команд для конфигурации измерений.
func NewConfigCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the measurement configuration",
	}

	cmd.AddCommand(
		newConfigGetCmd(clientFn, outputFn),
		newConfigSetCmd(clientFn, outputFn),
	)

	return cmd
}

func printConfig(out *Output, cfg *ConfigResponse) {
	out.Print(
		[]string{"ID", "FREQUENCY", "FIRST_RUN", "RGB", "MULTISPECTRAL", "SENSORS", "AE_LENGTH"},
		[][]string{{
			strconv.FormatInt(cfg.ConfigID, 10),
			strconv.Itoa(cfg.MeasurementFrequency) + "m",
			formatTime(cfg.FirstMeasurement),
			Status(strconv.FormatBool(cfg.RGBCamera)),
			Status(strconv.FormatBool(cfg.MultispectralCamera)),
			strconv.Itoa(cfg.NumberOfSensors),
			strconv.FormatFloat(cfg.LengthOfAE, 'f', -1, 64) + "m",
		}},
		cfg,
	)
}

func newConfigGetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := clientFn().GetConfig()
			if err != nil {
				return err
			}
			printConfig(outputFn(), cfg)
			return nil
		},
	}
}

func newConfigSetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var (
		frequency     int
		firstRun      string
		rgb           bool
		multispectral bool
		sensors       int
		aeLength      float64
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a new configuration (unset flags keep their current values)",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			current, err := client.GetConfig()
			if err != nil {
				return err
			}

			req := ConfigRequest{
				MeasurementFrequency: current.MeasurementFrequency,
				FirstMeasurement:     current.FirstMeasurement,
				RGBCamera:            current.RGBCamera,
				MultispectralCamera:  current.MultispectralCamera,
				NumberOfSensors:      current.NumberOfSensors,
				LengthOfAE:           current.LengthOfAE,
			}

			flags := cmd.Flags()
			if flags.Changed("frequency") {
				req.MeasurementFrequency = frequency
			}
			if flags.Changed("first-run") {
				if firstRun == "" {
					req.FirstMeasurement = nil
				} else {
					t, err := parseFlagTime(firstRun)
					if err != nil {
						return fmt.Errorf("invalid --first-run: %w", err)
					}
					req.FirstMeasurement = &t
				}
			}
			if flags.Changed("rgb") {
				req.RGBCamera = rgb
			}
			if flags.Changed("multispectral") {
				req.MultispectralCamera = multispectral
			}
			if flags.Changed("sensors") {
				req.NumberOfSensors = sensors
			}
			if flags.Changed("ae-length") {
				req.LengthOfAE = aeLength
			}

			cfg, err := client.UpdateConfig(req)
			if err != nil {
				return err
			}

			if cfg.ConfigID == current.ConfigID {
				out.Success("Configuration unchanged")
			} else {
				out.Success(fmt.Sprintf("Configuration stored: %d", cfg.ConfigID))
			}
			printConfig(out, cfg)
			return nil
		},
	}

	cmd.Flags().IntVar(&frequency, "frequency", 0, "Measurement frequency in minutes (0 disables the schedule)")
	cmd.Flags().StringVar(&firstRun, "first-run", "", "Schedule anchor (RFC3339 or YYYY-MM-DD, empty: now + frequency)")
	cmd.Flags().BoolVar(&rgb, "rgb", false, "Enable the RGB camera stage")
	cmd.Flags().BoolVar(&multispectral, "multispectral", false, "Enable the multispectral camera stage")
	cmd.Flags().IntVar(&sensors, "sensors", 0, "Number of acoustic sensors")
	cmd.Flags().Float64Var(&aeLength, "ae-length", 0, "Acoustic recording length in minutes")

	return cmd
}
