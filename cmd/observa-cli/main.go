// Observa CLI — инструмент командной строки для управления станцией
// через HTTP API.
//
// Использование:
//
//	observa [--api-url URL] [--json] <command> [subcommand] [flags]
//
// Команды:
//
//	status    Статус планировщика
//	trigger   Запустить измерение сейчас
//	config    Конфигурация измерений (get, set)
//	runs      Измерения (latest, history, show)
//	devices   Проверка устройств
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Observa/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	defaultURL := "http://localhost:8080"
	if v := os.Getenv("OBSERVA_API_URL"); v != "" {
		defaultURL = v
	}

	rootCmd := &cobra.Command{
		Use:           "observa",
		Short:         "Observa CLI — measurement station control",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", defaultURL, "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewStatusCmd(clientFn, outputFn),
		cli.NewTriggerCmd(clientFn, outputFn),
		cli.NewConfigCmd(clientFn, outputFn),
		cli.NewRunsCmd(clientFn, outputFn),
		cli.NewDevicesCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
